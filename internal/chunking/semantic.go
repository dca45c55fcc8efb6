package chunking

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/embedding"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

// breakpointPercentile marks the cosine-distance threshold above which a
// topic shift is assumed between adjacent sentences.
const breakpointPercentile = 95

// semanticChunker embeds every sentence and cuts chunks where adjacent
// sentences diverge. Needs one embedding round trip per document, so it is
// opt-in per request.
type semanticChunker struct {
	embedder embedding.Embedder
	logger   *logger_i.Logger
}

func (s *semanticChunker) Chunk(ctx context.Context, text string, metadata map[string]any) ([]docModel.Chunk, error) {
	sentences := splitSentences(text)
	if len(sentences) < 2 {
		return toChunks(sentences, MethodSemantic, metadata), nil
	}

	vectors, err := s.embedder.BatchEmbedding(ctx, sentences)
	if err != nil {
		return nil, fmt.Errorf("embedding sentences: %w", err)
	}
	if len(vectors) != len(sentences) {
		return nil, fmt.Errorf("got %d sentence embeddings for %d sentences", len(vectors), len(sentences))
	}

	distances := make([]float64, len(sentences)-1)
	for i := range distances {
		distances[i] = 1 - cosineSimilarity(vectors[i], vectors[i+1])
	}
	threshold := percentile(distances, breakpointPercentile)

	var spans []string
	start := 0
	for i, d := range distances {
		if d > threshold {
			spans = append(spans, strings.Join(sentences[start:i+1], " "))
			start = i + 1
		}
	}
	spans = append(spans, strings.Join(sentences[start:], " "))

	s.logger.Debug("Semantic chunking complete", "sentences", len(sentences), "chunks", len(spans))
	return toChunks(spans, MethodSemantic, metadata), nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// percentile interpolates linearly between the two nearest ranks.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
