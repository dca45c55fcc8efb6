package chunking

import (
	"context"
	"fmt"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/tmc/langchaingo/textsplitter"
)

// recursiveChunker splits on a separator hierarchy, preferring paragraph
// boundaries and degrading down to single characters. Default strategy.
type recursiveChunker struct {
	size    int
	overlap int
}

func (r *recursiveChunker) Chunk(_ context.Context, text string, metadata map[string]any) ([]docModel.Chunk, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(r.size),
		textsplitter.WithChunkOverlap(r.overlap),
		textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
	)
	spans, err := splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("recursive split: %w", err)
	}
	return toChunks(spans, MethodRecursive, metadata), nil
}
