package extraction

import (
	"context"
	"errors"
	"testing"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

type fakeBackend struct {
	method      Method
	calls       int
	ExtractFunc func(ctx context.Context, in Input) (*docModel.NormalizedDocument, error)
}

func (f *fakeBackend) Method() Method { return f.method }

func (f *fakeBackend) Extract(ctx context.Context, in Input) (*docModel.NormalizedDocument, error) {
	f.calls++
	return f.ExtractFunc(ctx, in)
}

func newTestService(gemini, pdftext, office, spreadsheet Backend) *Service {
	return &Service{
		gemini:      gemini,
		pdftext:     pdftext,
		office:      office,
		spreadsheet: spreadsheet,
		probePages:  probePDFPages,
		logger:      logger_i.NewLogger("ContentExtractor"),
	}
}

func okResult(method Method) func(context.Context, Input) (*docModel.NormalizedDocument, error) {
	return func(_ context.Context, in Input) (*docModel.NormalizedDocument, error) {
		return &docModel.NormalizedDocument{Text: "extracted text", ProcessingMethod: string(method)}, nil
	}
}

func TestExtractRoutesOfficeFiles(t *testing.T) {
	office := &fakeBackend{method: MethodOffice, ExtractFunc: okResult(MethodOffice)}
	gemini := &fakeBackend{method: MethodGemini, ExtractFunc: okResult(MethodGemini)}
	svc := newTestService(gemini, nil, office, nil)

	doc, err := svc.Extract(context.Background(), "report.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ProcessingMethod != string(MethodOffice) {
		t.Errorf("method = %q, want office", doc.ProcessingMethod)
	}
	if office.calls != 1 || gemini.calls != 0 {
		t.Errorf("calls office=%d gemini=%d, want 1/0", office.calls, gemini.calls)
	}
}

func TestExtractRoutesSpreadsheets(t *testing.T) {
	spreadsheet := &fakeBackend{method: MethodSpreadsheet, ExtractFunc: okResult(MethodSpreadsheet)}
	svc := newTestService(nil, nil, nil, spreadsheet)

	doc, err := svc.Extract(context.Background(), "budget.xlsx", "", []byte("data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ProcessingMethod != string(MethodSpreadsheet) {
		t.Errorf("method = %q, want spreadsheet", doc.ProcessingMethod)
	}
}

func TestExtractFallsBackToNextBackend(t *testing.T) {
	gemini := &fakeBackend{method: MethodGemini, ExtractFunc: func(_ context.Context, _ Input) (*docModel.NormalizedDocument, error) {
		return nil, errors.New("quota exceeded")
	}}
	pdftext := &fakeBackend{method: MethodPDFText, ExtractFunc: okResult(MethodPDFText)}
	svc := newTestService(gemini, pdftext, nil, nil)

	doc, err := svc.Extract(context.Background(), "paper.pdf", "application/pdf", []byte("not a real pdf"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ProcessingMethod != string(MethodPDFText) {
		t.Errorf("method = %q, want pdftext", doc.ProcessingMethod)
	}
	if gemini.calls != 1 || pdftext.calls != 1 {
		t.Errorf("calls gemini=%d pdftext=%d, want 1/1", gemini.calls, pdftext.calls)
	}
}

func TestExtractEmptyTextCountsAsFailure(t *testing.T) {
	gemini := &fakeBackend{method: MethodGemini, ExtractFunc: func(_ context.Context, _ Input) (*docModel.NormalizedDocument, error) {
		return &docModel.NormalizedDocument{Text: "   \n"}, nil
	}}
	pdftext := &fakeBackend{method: MethodPDFText, ExtractFunc: okResult(MethodPDFText)}
	svc := newTestService(gemini, pdftext, nil, nil)

	doc, err := svc.Extract(context.Background(), "blank.pdf", "application/pdf", []byte("data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ProcessingMethod != string(MethodPDFText) {
		t.Errorf("empty result should fall through, got method %q", doc.ProcessingMethod)
	}
}

func TestExtractChainExhaustionReturnsLastError(t *testing.T) {
	fail := func(_ context.Context, _ Input) (*docModel.NormalizedDocument, error) {
		return nil, errors.New("parse failure")
	}
	gemini := &fakeBackend{method: MethodGemini, ExtractFunc: fail}
	pdftext := &fakeBackend{method: MethodPDFText, ExtractFunc: fail}
	svc := newTestService(gemini, pdftext, nil, nil)

	_, err := svc.Extract(context.Background(), "broken.pdf", "application/pdf", []byte("data"))
	if err == nil {
		t.Fatal("expected error after chain exhaustion")
	}
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("error type = %T, want *ExtractionError", err)
	}
	if exErr.Method != MethodPDFText {
		t.Errorf("last error from %q, want pdftext", exErr.Method)
	}
}

func TestExtractRoutesImagesToGemini(t *testing.T) {
	gemini := &fakeBackend{method: MethodGemini, ExtractFunc: okResult(MethodGemini)}
	svc := newTestService(gemini, nil, nil, nil)

	doc, err := svc.Extract(context.Background(), "scan.png", "image/png", []byte("data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ProcessingMethod != string(MethodGemini) || gemini.calls != 1 {
		t.Errorf("method = %q calls = %d, want gemini/1", doc.ProcessingMethod, gemini.calls)
	}

	noGemini := newTestService(nil, nil, nil, nil)
	if _, err := noGemini.Extract(context.Background(), "scan.png", "image/png", []byte("data")); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("images without gemini should be unsupported, got %v", err)
	}
}

func TestExtractUnsupportedType(t *testing.T) {
	svc := newTestService(nil, nil, nil, nil)

	_, err := svc.Extract(context.Background(), "archive.zip", "application/zip", []byte("data"))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestExtractOverLimitPDFSkipsGemini(t *testing.T) {
	gemini := &fakeBackend{method: MethodGemini, ExtractFunc: okResult(MethodGemini)}
	var captured Input
	pdftext := &fakeBackend{method: MethodPDFText, ExtractFunc: func(_ context.Context, in Input) (*docModel.NormalizedDocument, error) {
		captured = in
		return &docModel.NormalizedDocument{Text: "extracted text", ProcessingMethod: string(MethodPDFText)}, nil
	}}
	svc := newTestService(gemini, pdftext, nil, nil)
	svc.probePages = func(_ []byte) (int, error) { return config.GeminiMaxPages + 500, nil }

	doc, err := svc.Extract(context.Background(), "tome.pdf", "application/pdf", []byte("data"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ProcessingMethod != string(MethodPDFText) {
		t.Errorf("method = %q, want pdftext", doc.ProcessingMethod)
	}
	if gemini.calls != 0 {
		t.Errorf("gemini called %d times for an over-limit document, want 0", gemini.calls)
	}
	if pdftext.calls != 1 {
		t.Errorf("pdftext calls = %d, want 1", pdftext.calls)
	}
	if captured.MaxPages != config.TruncateToPages {
		t.Errorf("MaxPages = %d, want %d", captured.MaxPages, config.TruncateToPages)
	}
	if captured.PageCount != config.GeminiMaxPages+500 {
		t.Errorf("PageCount = %d, want %d", captured.PageCount, config.GeminiMaxPages+500)
	}
}

func TestGeminiEligible(t *testing.T) {
	gemini := &fakeBackend{method: MethodGemini, ExtractFunc: okResult(MethodGemini)}
	svc := newTestService(gemini, nil, nil, nil)

	tests := []struct {
		name  string
		svc   *Service
		in    Input
		pages int
		want  bool
	}{
		{"within limits", svc, Input{Data: make([]byte, 1024)}, 10, true},
		{"page count over limit", svc, Input{Data: make([]byte, 1024)}, config.GeminiMaxPages + 1, false},
		{"file over upload limit", svc, Input{Data: make([]byte, config.GeminiFileAPILimit+1)}, 10, false},
		{"no gemini configured", newTestService(nil, nil, nil, nil), Input{Data: make([]byte, 1024)}, 10, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.svc.geminiEligible(&tc.in, tc.pages); got != tc.want {
				t.Errorf("geminiEligible = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestOfficeBackendPlaintext(t *testing.T) {
	b := &officeBackend{}

	doc, err := b.Extract(context.Background(), Input{
		Filename: "notes.txt",
		Data:     []byte("plain text body"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Text != "plain text body" {
		t.Errorf("text = %q", doc.Text)
	}
	if doc.ProcessingMethod != string(MethodOffice) {
		t.Errorf("method = %q", doc.ProcessingMethod)
	}
}
