package chunking

import (
	"context"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/embedding"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

// Method selects a chunking strategy. Unknown methods resolve to recursive.
type Method string

const (
	MethodRecursive Method = "recursive"
	MethodSentence  Method = "sentence"
	MethodSemantic  Method = "semantic"
)

type Strategy interface {
	Chunk(ctx context.Context, text string, metadata map[string]any) ([]docModel.Chunk, error)
}

// Factory resolves methods to strategies and guarantees that chunking never
// hard-fails the pipeline: any strategy error falls back to recursive.
type Factory struct {
	recursive Strategy
	sentence  Strategy
	semantic  Strategy
	logger    *logger_i.Logger
}

// NewFactory builds the strategy set. The semantic strategy needs an
// embedder; with a nil embedder semantic requests fall back to recursive.
func NewFactory(embedder embedding.Embedder) *Factory {
	f := &Factory{
		recursive: &recursiveChunker{size: config.ChunkSize, overlap: config.ChunkOverlap},
		sentence:  &sentenceChunker{size: config.ChunkSize},
		logger:    logger_i.NewLogger("Chunker"),
	}
	if embedder != nil {
		f.semantic = &semanticChunker{embedder: embedder, logger: f.logger}
	}
	return f
}

func (f *Factory) ChunkText(ctx context.Context, text string, method Method, metadata map[string]any) ([]docModel.Chunk, error) {
	strategy, resolved := f.strategyFor(method)

	chunks, err := strategy.Chunk(ctx, text, metadata)
	if err != nil && resolved != MethodRecursive {
		f.logger.Warn("Chunking failed, falling back to recursive", "method", resolved, "error", err)
		return f.recursive.Chunk(ctx, text, metadata)
	}
	return chunks, err
}

func (f *Factory) strategyFor(method Method) (Strategy, Method) {
	switch method {
	case MethodSentence:
		return f.sentence, MethodSentence
	case MethodSemantic:
		if f.semantic != nil {
			return f.semantic, MethodSemantic
		}
		f.logger.Warn("Semantic chunker unavailable, using recursive")
		return f.recursive, MethodRecursive
	default:
		return f.recursive, MethodRecursive
	}
}

// toChunks wraps raw spans into ordered chunks carrying the strategy name
// and size alongside the caller's metadata.
func toChunks(spans []string, method Method, metadata map[string]any) []docModel.Chunk {
	chunks := make([]docModel.Chunk, 0, len(spans))
	for idx, span := range spans {
		md := map[string]any{
			"chunk_index":  idx,
			"chunk_method": string(method),
			"chunk_size":   len(span),
		}
		for k, v := range metadata {
			md[k] = v
		}
		chunks = append(chunks, docModel.Chunk{
			Index:    idx,
			Content:  span,
			Method:   string(method),
			Metadata: md,
		})
	}
	return chunks
}
