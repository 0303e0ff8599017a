package local

import (
	"bytes"
	"fmt"
	"strings"

	docxlib "github.com/fumiama/go-docx"

	"github.com/fairyhunter13/resume-job-matcher/internal/domain"
)

// extractDOCX concatenates the text of every paragraph and table in the
// document body, one block per line.
func extractDOCX(_ domain.Context, filename string, data []byte) (string, error) {
	doc, err := docxlib.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("op=extract.docx: %w: %s: %v", domain.ErrInvalidArgument, filename, err)
	}
	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		switch block := item.(type) {
		case *docxlib.Paragraph:
			line := strings.TrimSpace(block.String())
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		case *docxlib.Table:
			line := strings.TrimSpace(block.String())
			if line == "" {
				continue
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String(), nil
}
