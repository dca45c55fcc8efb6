package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/xuri/excelize/v2"
)

// spreadsheetBackend flattens each worksheet to tab-separated rows. Every
// sheet also becomes a table entry so retrieval can cite it.
type spreadsheetBackend struct{}

func (b *spreadsheetBackend) Method() Method { return MethodSpreadsheet }

func (b *spreadsheetBackend) Extract(_ context.Context, in Input) (*docModel.NormalizedDocument, error) {
	f, err := excelize.OpenReader(bytes.NewReader(in.Data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	var tables []docModel.Table
	sheets := f.GetSheetList()
	for idx, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %s: %w", sheet, err)
		}

		var sheetText strings.Builder
		for _, row := range rows {
			sheetText.WriteString(strings.Join(row, "\t"))
			sheetText.WriteByte('\n')
		}

		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "Sheet: %s\n%s", sheet, sheetText.String())
		tables = append(tables, docModel.Table{
			Content:     sheetText.String(),
			Description: fmt.Sprintf("worksheet %q", sheet),
			Page:        idx + 1,
		})
	}

	return &docModel.NormalizedDocument{
		Text:             sb.String(),
		Tables:           tables,
		PageCount:        len(sheets),
		ProcessingMethod: string(MethodSpreadsheet),
		Metadata: map[string]any{
			"total_pages":     len(sheets),
			"processed_pages": len(sheets),
			"sheet_names":     sheets,
		},
	}, nil
}
