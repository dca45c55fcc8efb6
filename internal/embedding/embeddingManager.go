package embedding

import "context"

// Embedder is the embedding capability the pipeline consumes. GetEmbedding
// embeds a retrieval query; BatchEmbedding embeds document chunks.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error)
}
