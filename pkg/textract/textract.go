// Package textract turns uploaded documents into plain text for the
// extraction engine: PDFs through their text layer, images through OCR.
package textract

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupportedType is returned for content types with no text collaborator.
var ErrUnsupportedType = errors.New("unsupported content type")

// Extractor pulls text out of one document.
type Extractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, data []byte) (string, error)

func (f ExtractorFunc) ExtractText(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}

// Router picks an extractor by content type.
type Router struct {
	PDF   Extractor
	Image Extractor
}

// For returns the extractor for contentType: application/pdf goes to PDF,
// image/* goes to Image.
func (r Router) For(contentType string) (Extractor, error) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	switch {
	case ct == "application/pdf" && r.PDF != nil:
		return r.PDF, nil
	case strings.HasPrefix(ct, "image/") && r.Image != nil:
		return r.Image, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// Preview returns the first n bytes of text, cut on a rune boundary, with
// "..." appended when text was longer.
func Preview(text string, n int) string {
	if len(text) <= n {
		return text
	}
	cut := n
	for cut > 0 && !isRuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
