package textract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// OCRConfig configures the tesseract command line.
type OCRConfig struct {
	Command   string // binary name or path, "tesseract" when empty
	Language  string
	PageModes []int // page segmentation modes tried in order
}

// CommandOCR recognises image text with the tesseract CLI. Each page
// segmentation mode is tried in turn and the first non-empty result wins.
type CommandOCR struct {
	cfg    OCRConfig
	run    Runner
	logger *slog.Logger
}

// NewCommandOCR creates an OCR extractor. A nil runner executes the real
// command.
func NewCommandOCR(cfg OCRConfig, run Runner, logger *slog.Logger) *CommandOCR {
	if cfg.Command == "" {
		cfg.Command = "tesseract"
	}
	if cfg.Language == "" {
		cfg.Language = "eng"
	}
	if len(cfg.PageModes) == 0 {
		cfg.PageModes = []int{6, 3}
	}
	if run == nil {
		run = execRunner
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CommandOCR{cfg: cfg, run: run, logger: logger}
}

// ExtractText implements Extractor.
func (o *CommandOCR) ExtractText(ctx context.Context, data []byte) (string, error) {
	f, err := os.CreateTemp("", "ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}

	var lastErr error
	for _, mode := range o.cfg.PageModes {
		out, err := o.run(ctx, o.cfg.Command, f.Name(), "stdout",
			"-l", o.cfg.Language, "--psm", strconv.Itoa(mode))
		if err != nil {
			lastErr = err
			o.logger.Warn("ocr attempt failed",
				slog.Int("psm", mode),
				slog.Any("error", err),
			)
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if text := strings.TrimSpace(string(out)); text != "" {
			o.logger.Debug("ocr succeeded",
				slog.Int("psm", mode),
				slog.Int("length", len(text)),
			)
			return text, nil
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("all ocr attempts failed: %w", lastErr)
	}
	return "", nil
}
