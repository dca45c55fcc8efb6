package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
	"google.golang.org/genai"
)

const extractionPrompt = `Extract the full text content of this document.
Respond with JSON: {"text": "<full document text>",
"sections": [{"heading": "", "content": "", "page": 0}],
"tables": [{"content": "", "description": "", "page": 0}],
"images": [{"description": "", "page": 0}]}.
Include every section heading you find. Describe tables and images briefly.`

// structuredResult mirrors the JSON shape requested from the model.
type structuredResult struct {
	Text     string            `json:"text"`
	Sections []docModel.Section `json:"sections"`
	Tables   []docModel.Table   `json:"tables"`
	Images   []docModel.Image   `json:"images"`
}

// GeminiBackend is the premium extraction path: layout-aware text with
// section, table and image structure. Documents over the inline limit are
// staged through the Files API and always cleaned up afterwards.
type GeminiBackend struct {
	client *genai.Client
	model  string
	logger *logger_i.Logger
}

func NewGeminiBackend(ctx context.Context, modelName string, apikey string) (*GeminiBackend, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	logger := logger_i.NewLogger("gemini_extraction")
	logger.Info("Gemini extraction client created", "model", modelName)
	return &GeminiBackend{client: c, model: modelName, logger: logger}, nil
}

func (b *GeminiBackend) Method() Method { return MethodGemini }

func (b *GeminiBackend) Extract(ctx context.Context, in Input) (*docModel.NormalizedDocument, error) {
	part, cleanup, err := b.documentPart(ctx, in)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{part, {Text: extractionPrompt}}, genai.RoleUser),
	}
	result, err := b.client.Models.GenerateContent(ctx, b.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	raw := result.Text()
	doc := &docModel.NormalizedDocument{
		PageCount:        in.PageCount,
		ProcessingMethod: string(MethodGemini),
		Metadata: map[string]any{
			"total_pages":     in.PageCount,
			"processed_pages": in.PageCount,
		},
	}

	var structured structuredResult
	if err := json.Unmarshal([]byte(raw), &structured); err == nil && structured.Text != "" {
		doc.Text = structured.Text
		doc.Sections = structured.Sections
		doc.Tables = structured.Tables
		doc.Images = structured.Images
	} else {
		// Model drifted off the schema; keep whatever text came back.
		doc.Text = raw
	}
	return doc, nil
}

// documentPart picks inline bytes or a staged upload depending on size.
// The returned cleanup deletes the staged artifact, nil for inline.
func (b *GeminiBackend) documentPart(ctx context.Context, in Input) (*genai.Part, func(), error) {
	if len(in.Data) <= config.GeminiInlineLimitBytes {
		return genai.NewPartFromBytes(in.Data, in.MimeType), nil, nil
	}
	if len(in.Data) > config.GeminiFileAPILimit {
		return nil, nil, fmt.Errorf("file too large for upload: %d bytes", len(in.Data))
	}

	file, err := b.client.Files.Upload(ctx, bytes.NewReader(in.Data), &genai.UploadFileConfig{
		MIMEType:    in.MimeType,
		DisplayName: in.Filename,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("uploading to files api: %w", err)
	}

	cleanup := func() {
		// Best effort; the service expires artifacts on its own eventually.
		delCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := b.client.Files.Delete(delCtx, file.Name, nil); err != nil {
			b.logger.Warn("Failed deleting staged file", "name", file.Name, "error", err)
		}
	}

	file, err = b.awaitActive(ctx, file)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return genai.NewPartFromURI(file.URI, in.MimeType), cleanup, nil
}

func (b *GeminiBackend) awaitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	deadline := time.Now().Add(config.GeminiUploadWait)
	for file.State == genai.FileStateProcessing {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("staged file %s still processing after %s", file.Name, config.GeminiUploadWait)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
		var err error
		file, err = b.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("polling staged file: %w", err)
		}
	}
	if file.State != genai.FileStateActive {
		return nil, fmt.Errorf("staged file %s in state %s", file.Name, file.State)
	}
	return file, nil
}
