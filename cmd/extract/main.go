// Command extract runs the extraction engine over a local file or stdin and
// prints the candidate transactions without touching the database.
//
//	extract -file receipt.pdf -format csv
//	echo "Lunch 250" | extract
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/FACorreiaa/receipt-ledger/cmd/api"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/extraction"
	"github.com/FACorreiaa/receipt-ledger/internal/domain/receipt/export"
	"github.com/FACorreiaa/receipt-ledger/pkg/config"
	"github.com/FACorreiaa/receipt-ledger/pkg/money"
	"github.com/FACorreiaa/receipt-ledger/pkg/textract"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "extract:", err)
		os.Exit(1)
	}
}

type options struct {
	file        string
	contentType string
	format      string
	currency    string
	verbose     bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.file, "file", "", "input file (PDF, image or text); stdin when empty")
	fs.StringVar(&o.contentType, "type", "", "content type override, e.g. application/pdf")
	fs.StringVar(&o.format, "format", "json", "output format: json, csv or xlsx")
	fs.StringVar(&o.currency, "currency", "", "currency when the text has no hint (default from EXTRACTION_DEFAULT_CURRENCY)")
	fs.BoolVar(&o.verbose, "v", false, "log engine decisions to stderr")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg := extractionConfig()

	data, contentType, err := readInput(o, stdin)
	if err != nil {
		return err
	}
	text, err := recoverText(ctx, api.NewTextRouter(cfg, logger), contentType, data)
	if err != nil {
		return err
	}

	res := extraction.NewEngine(api.EngineConfig(cfg), logger).Extract(text)
	currency := money.ResolveCurrency(extraction.DetectCurrency(text), money.ResolveCurrency(o.currency, cfg.DefaultCurrency))

	if o.format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*extraction.Result
			Currency string `json:"currency"`
		}{res, currency})
	}
	format, err := export.ParseFormat(o.format)
	if err != nil {
		return err
	}
	return export.Write(stdout, format, export.FromCandidates(res.Candidates, currency))
}

// extractionConfig reads the extraction section without requiring the
// server-only settings.
func extractionConfig() config.ExtractionConfig {
	cfg, err := config.Load()
	if err != nil {
		return config.ExtractionConfig{DefaultCurrency: money.INR}
	}
	return cfg.Extraction
}

func readInput(o options, stdin io.Reader) ([]byte, string, error) {
	if o.file == "" {
		data, err := io.ReadAll(stdin)
		return data, valueOr(o.contentType, "text/plain"), err
	}
	data, err := os.ReadFile(o.file)
	if err != nil {
		return nil, "", err
	}
	ct := o.contentType
	if ct == "" {
		ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(o.file)))
	}
	return data, valueOr(ct, "text/plain"), nil
}

// recoverText routes PDFs and images through the extractors and passes
// plain text through as is.
func recoverText(ctx context.Context, router textract.Router, contentType string, data []byte) (string, error) {
	if strings.HasPrefix(contentType, "text/") {
		return string(data), nil
	}
	ex, err := router.For(contentType)
	if err != nil {
		return "", fmt.Errorf("%s: %w", contentType, err)
	}
	return ex.ExtractText(ctx, data)
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
