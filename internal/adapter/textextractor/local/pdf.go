package local

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
	"github.com/fairyhunter13/resume-job-matcher/internal/observability"
)

// extractPDF walks every page of the document and concatenates the text.
// A page that fails to parse is skipped with a warning; the document only
// fails when no page yields any text at all.
func extractPDF(ctx domain.Context, filename string, data []byte) (string, error) {
	reader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("op=extract.pdf: %w: %v", domain.ErrInvalidArgument, err)
	}
	numPages, err := reader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("op=extract.pdf: %w: %v", domain.ErrInvalidArgument, err)
	}

	log := observability.LoggerFromContext(ctx)
	pages := make([]pdfPage, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := reader.GetPage(i)
		if err != nil {
			log.Warn("skipping unreadable pdf page",
				"filename", filename, "page", i, "error", err)
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			log.Warn("skipping pdf page without extractor",
				"filename", filename, "page", i, "error", err)
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			log.Warn("pdf page text extraction failed",
				"filename", filename, "page", i, "error", err)
			continue
		}
		pages = append(pages, pdfPage{num: i, text: text})
	}
	return joinPages(ctx, filename, pages)
}

type pdfPage struct {
	num  int
	text string
}

// joinPages concatenates per-page text with newlines. A page that parsed but
// yielded no text is skipped with a warning; the document fails only when no
// page produced any text.
func joinPages(ctx domain.Context, filename string, pages []pdfPage) (string, error) {
	log := observability.LoggerFromContext(ctx)
	var sb strings.Builder
	extracted := 0
	for _, p := range pages {
		if strings.TrimSpace(p.text) == "" {
			log.Warn("skipping pdf page without text",
				"filename", filename, "page", p.num)
			continue
		}
		sb.WriteString(p.text)
		sb.WriteString("\n")
		extracted++
	}
	if extracted == 0 {
		return "", fmt.Errorf("op=extract.pdf: %w: no page in %s produced text", domain.ErrEmptyDocument, filename)
	}
	return sb.String(), nil
}
