package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/lu4p/cat"
)

// officeBackend reads .docx, .odt, .rtf and plaintext. The converter is
// path based, so the blob is staged to a temp file first.
type officeBackend struct{}

func (b *officeBackend) Method() Method { return MethodOffice }

func (b *officeBackend) Extract(_ context.Context, in Input) (*docModel.NormalizedDocument, error) {
	tmp, err := os.CreateTemp("", "extract-*"+filepath.Ext(in.Filename))
	if err != nil {
		return nil, fmt.Errorf("staging temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(in.Data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	text, err := cat.File(tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("converting document: %w", err)
	}

	return &docModel.NormalizedDocument{
		Text:             text,
		PageCount:        1,
		ProcessingMethod: string(MethodOffice),
		Metadata: map[string]any{
			"total_pages":     1,
			"processed_pages": 1,
		},
	}, nil
}
