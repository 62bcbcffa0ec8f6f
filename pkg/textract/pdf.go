package textract

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/dslipak/pdf"
)

// lineTolerance is the vertical distance, in points, beyond which two text
// runs are treated as separate lines.
const lineTolerance = 5

// PDFExtractor reads the text layer of a PDF and rebuilds it as one
// space-separated stream of lines.
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF text extractor.
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// ExtractText implements Extractor.
func (p *PDFExtractor) ExtractText(ctx context.Context, data []byte) (text string, err error) {
	// The pdf package panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		runs := make([]textRun, 0, len(page.Content().Text))
		for _, t := range page.Content().Text {
			runs = append(runs, textRun{y: t.Y, s: t.S})
		}
		if pageText := joinLines(runs); pageText != "" {
			pages = append(pages, pageText)
		}
	}
	return strings.Join(strings.Fields(strings.Join(pages, " ")), " "), nil
}

type textRun struct {
	y float64
	s string
}

// joinLines concatenates runs in content order, starting a new line whenever
// the baseline moves by more than lineTolerance. Lines are joined by spaces.
func joinLines(runs []textRun) string {
	var lines []string
	var line strings.Builder
	lastY := math.NaN()

	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	for _, r := range runs {
		y := math.Round(r.y)
		if !math.IsNaN(lastY) && math.Abs(y-lastY) > lineTolerance {
			flush()
		}
		line.WriteString(r.s)
		lastY = y
	}
	flush()
	return strings.Join(lines, " ")
}
