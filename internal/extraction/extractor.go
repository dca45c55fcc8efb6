package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

type Method string

const (
	MethodGemini      Method = "gemini"
	MethodPDFText     Method = "pdftext"
	MethodOffice      Method = "office"
	MethodSpreadsheet Method = "spreadsheet"
)

var ErrUnsupportedType = errors.New("unsupported file type")

// ExtractionError wraps a backend failure with the method that produced it.
type ExtractionError struct {
	Filename string
	Method   Method
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction %s failed for %s: %v", e.Method, e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Input is one document handed to a backend. MaxPages caps how far into
// the document a backend reads; 0 means no cap.
type Input struct {
	Filename  string
	MimeType  string
	Data      []byte
	PageCount int
	MaxPages  int
}

type Backend interface {
	Method() Method
	Extract(ctx context.Context, in Input) (*docModel.NormalizedDocument, error)
}

// Service orders backends per file type and falls through the chain on
// failure. An empty extraction result counts as a failure even when the
// backend reports none.
type Service struct {
	gemini      Backend
	pdftext     Backend
	office      Backend
	spreadsheet Backend
	probePages  func(data []byte) (int, error)
	logger      *logger_i.Logger
}

// NewService builds the backend chain. gemini may be nil when no API key
// is configured; PDFs then go straight to local text extraction.
func NewService(gemini Backend) *Service {
	return &Service{
		gemini:      gemini,
		pdftext:     &pdfTextBackend{},
		office:      &officeBackend{},
		spreadsheet: &spreadsheetBackend{},
		probePages:  probePDFPages,
		logger:      logger_i.NewLogger("ContentExtractor"),
	}
}

func (s *Service) Extract(ctx context.Context, filename string, mimeType string, data []byte) (*docModel.NormalizedDocument, error) {
	in := Input{Filename: filename, MimeType: mimeType, Data: data}

	chain, err := s.chainFor(&in)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, backend := range chain {
		doc, err := backend.Extract(ctx, in)
		if err == nil && (doc == nil || strings.TrimSpace(doc.Text) == "") {
			err = errors.New("backend returned no text")
		}
		if err != nil {
			lastErr = &ExtractionError{Filename: filename, Method: backend.Method(), Err: err}
			s.logger.Warn("Extraction backend failed", "method", backend.Method(), "filename", filename, "error", err)
			continue
		}
		s.logger.Info("Extraction complete", "method", backend.Method(), "filename", filename, "pages", doc.PageCount, "chars", len(doc.Text))
		return doc, nil
	}
	return nil, lastErr
}

// chainFor resolves the backend order for one document. PDFs get a cheap
// page probe first so the premium backend is skipped for documents it
// would reject anyway.
func (s *Service) chainFor(in *Input) ([]Backend, error) {
	switch {
	case isPDF(in):
		pages, err := s.probePages(in.Data)
		if err != nil {
			s.logger.Warn("PDF page probe failed", "filename", in.Filename, "error", err)
		}
		in.PageCount = pages

		if pages > config.GeminiMaxPages && config.TruncateLargePDFs {
			in.MaxPages = config.TruncateToPages
		}

		var chain []Backend
		if s.geminiEligible(in, pages) {
			chain = append(chain, s.gemini)
		}
		return append(chain, s.pdftext), nil
	case isSpreadsheet(in):
		return []Backend{s.spreadsheet}, nil
	case isOfficeOrText(in):
		return []Backend{s.office}, nil
	case isImage(in):
		// No local OCR; images need the premium backend.
		if s.gemini == nil {
			return nil, fmt.Errorf("%w: %s requires the gemini backend", ErrUnsupportedType, in.Filename)
		}
		return []Backend{s.gemini}, nil
	default:
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, in.Filename, in.MimeType)
	}
}

func (s *Service) geminiEligible(in *Input, pages int) bool {
	if s.gemini == nil {
		return false
	}
	if pages > config.GeminiMaxPages {
		s.logger.Info("Skipping premium extraction, page count over limit", "filename", in.Filename, "pages", pages)
		return false
	}
	if len(in.Data) > config.GeminiFileAPILimit {
		s.logger.Info("Skipping premium extraction, file over upload limit", "filename", in.Filename, "bytes", len(in.Data))
		return false
	}
	return true
}

func isPDF(in *Input) bool {
	return in.MimeType == "application/pdf" || strings.HasSuffix(strings.ToLower(in.Filename), ".pdf")
}

func isSpreadsheet(in *Input) bool {
	name := strings.ToLower(in.Filename)
	for _, ext := range []string{".xlsx", ".xlsm", ".xls"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return in.MimeType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

func isImage(in *Input) bool {
	return strings.HasPrefix(in.MimeType, "image/")
}

func isOfficeOrText(in *Input) bool {
	name := strings.ToLower(in.Filename)
	for _, ext := range []string{".docx", ".odt", ".rtf", ".txt", ".md"} {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return strings.HasPrefix(in.MimeType, "text/")
}
