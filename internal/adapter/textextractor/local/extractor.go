// Package local implements document text extraction in-process. PDF pages
// are read with unipdf, DOCX paragraphs with go-docx; both paths feed the
// shared normalizer so stored text is canonical for hashing and embedding.
package local

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
	"github.com/fairyhunter13/resume-job-matcher/pkg/textx"
)

// Extractor converts uploaded document bytes into normalized plain text.
// It is a pure function over the input bytes: callers keep ownership of
// any underlying stream and its read position.
type Extractor struct {
	// strictDOCX makes an empty DOCX extraction fatal like the PDF
	// all-pages-empty case.
	strictDOCX bool
}

// New constructs an Extractor. strictDOCX controls whether an empty DOCX
// body fails the extraction or is merely logged.
func New(strictDOCX bool) *Extractor {
	return &Extractor{strictDOCX: strictDOCX}
}

// Extract dispatches on the declared filename extension (case-insensitive)
// and returns normalized text. Unknown extensions fail with
// domain.ErrUnsupportedFormat; documents without any extractable text fail
// with domain.ErrEmptyDocument per the strictness policy.
func (e *Extractor) Extract(ctx domain.Context, filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("op=extract: %w: empty file", domain.ErrEmptyDocument)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		raw, err := extractPDF(ctx, filename, data)
		if err != nil {
			return "", err
		}
		return e.finish(filename, raw, true)
	case ".docx":
		raw, err := extractDOCX(ctx, filename, data)
		if err != nil {
			return "", err
		}
		return e.finish(filename, raw, e.strictDOCX)
	default:
		return "", fmt.Errorf("op=extract: %w: %q", domain.ErrUnsupportedFormat, ext)
	}
}

// finish normalizes raw text and applies the empty-document policy.
func (e *Extractor) finish(filename, raw string, emptyFatal bool) (string, error) {
	text := textx.Normalize(raw)
	if text == "" {
		if emptyFatal {
			return "", fmt.Errorf("op=extract: %w: no usable text in %s", domain.ErrEmptyDocument, filename)
		}
		slog.Warn("extraction produced no text", slog.String("filename", filename))
	}
	return text, nil
}
