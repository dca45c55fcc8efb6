package extraction

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/dslipak/pdf"
)

const pageExtractTimeout = 10 * time.Second

// probePDFPages opens the document just far enough to read the page count.
func probePDFPages(data []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("opening pdf: %w", err)
	}
	return r.NumPage(), nil
}

// pdfTextBackend is the local fallback: plain text layer per page, no
// layout recovery. Handles truncation of oversized documents.
type pdfTextBackend struct{}

func (b *pdfTextBackend) Method() Method { return MethodPDFText }

func (b *pdfTextBackend) Extract(ctx context.Context, in Input) (*docModel.NormalizedDocument, error) {
	r, err := pdf.NewReader(bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}

	totalPages := r.NumPage()
	limit := totalPages
	if in.MaxPages > 0 && in.MaxPages < totalPages {
		limit = in.MaxPages
	}

	var sb strings.Builder
	extracted := 0
	for i := 1; i <= limit; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := protectExtract(page)
		if err != nil {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(content)
		extracted++
	}

	doc := &docModel.NormalizedDocument{
		Text:             sb.String(),
		PageCount:        totalPages,
		ProcessingMethod: string(MethodPDFText),
		Metadata: map[string]any{
			"total_pages":     totalPages,
			"processed_pages": extracted,
		},
	}
	if limit < totalPages {
		doc.Metadata["warning"] = fmt.Sprintf("document truncated to first %d of %d pages", limit, totalPages)
	}
	return doc, nil
}

// protectExtract bounds a single page parse; malformed pages can hang the
// parser indefinitely.
func protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-time.After(pageExtractTimeout):
		return "", errors.New("page extraction timeout")
	}
}
