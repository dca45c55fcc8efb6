package vectorstore

import (
	"context"
	"fmt"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/data/pgpool"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/embedding"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
	"github.com/pgvector/pgvector-go"
)

// ConnSource hands out pooled database connections.
type ConnSource interface {
	Acquire(ctx context.Context) (*pgpool.Lease, error)
}

// Index stores chunk embeddings in pgvector and serves similarity queries.
// All reads and writes are scoped to a project.
type Index struct {
	pool     ConnSource
	embedder embedding.Embedder
	logger   *logger_i.Logger
}

func NewIndex(pool ConnSource, embedder embedding.Embedder) *Index {
	return &Index{
		pool:     pool,
		embedder: embedder,
		logger:   logger_i.NewLogger("VectorIndex"),
	}
}

var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS ` + config.VectorTableName + ` (
		id BIGSERIAL PRIMARY KEY,
		document_id UUID NOT NULL,
		project_id TEXT NOT NULL,
		chunk_index INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(768) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (document_id, chunk_index)
	)`,
	`CREATE TABLE IF NOT EXISTS ` + config.ChunkTableName + ` (
		id BIGSERIAL PRIMARY KEY,
		document_id UUID NOT NULL,
		project_id TEXT NOT NULL,
		chunk_index INT NOT NULL,
		content TEXT NOT NULL,
		content_preview TEXT NOT NULL,
		token_count INT NOT NULL,
		chunk_method TEXT NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (document_id, chunk_index)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_vectors_embedding ON ` + config.VectorTableName +
		` USING hnsw (embedding vector_cosine_ops)`,
	`CREATE INDEX IF NOT EXISTS idx_vectors_project ON ` + config.VectorTableName + ` (project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_chunks_document ON ` + config.ChunkTableName + ` (document_id)`,
}

func (x *Index) EnsureSchema(ctx context.Context) error {
	lease, err := x.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	for _, stmt := range schemaStatements {
		if _, err := lease.Conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("vector schema: %w", err)
		}
	}
	return nil
}

// AddChunks embeds and persists a document's chunks. Every batch is embedded
// before the first row is written, so an embedding failure leaves the store
// untouched. The writes themselves run in one transaction.
func (x *Index) AddChunks(ctx context.Context, doc docModel.Document, chunks []docModel.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += config.EmbeddingBatchSize {
		end := start + config.EmbeddingBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			batch = append(batch, c.Content)
		}
		batchVectors, err := x.embedder.BatchEmbedding(ctx, batch)
		if err != nil {
			return 0, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(batchVectors) != len(batch) {
			return 0, fmt.Errorf("embedding batch %d-%d: got %d vectors for %d chunks", start, end, len(batchVectors), len(batch))
		}
		vectors = append(vectors, batchVectors...)
	}

	lease, err := x.pool.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer lease.Release()

	tx, err := lease.Conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, chunk := range chunks {
		_, err = tx.Exec(ctx,
			`INSERT INTO `+config.VectorTableName+` (document_id, project_id, chunk_index, content, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (document_id, chunk_index)
			 DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata`,
			doc.Id, doc.ProjectId, chunk.Index, chunk.Content, pgvector.NewVector(vectors[i]), chunk.Metadata)
		if err != nil {
			return 0, fmt.Errorf("upserting vector %d: %w", chunk.Index, err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO `+config.ChunkTableName+` (document_id, project_id, chunk_index, content, content_preview, token_count, chunk_method, metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (document_id, chunk_index)
			 DO UPDATE SET content = EXCLUDED.content, content_preview = EXCLUDED.content_preview,
			               token_count = EXCLUDED.token_count, chunk_method = EXCLUDED.chunk_method, metadata = EXCLUDED.metadata`,
			doc.Id, doc.ProjectId, chunk.Index, chunk.Content, preview(chunk.Content), estimateTokens(chunk.Content), chunk.Method, chunk.Metadata)
		if err != nil {
			return 0, fmt.Errorf("upserting chunk record %d: %w", chunk.Index, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	x.logger.Info("Chunks indexed", "documentId", doc.Id, "chunks", len(chunks))
	return len(chunks), nil
}

// DeleteForDocument purges every vector and chunk record of one document.
// The project scope guards against deleting rows of an unrelated tenant
// when a document id leaks across projects.
func (x *Index) DeleteForDocument(ctx context.Context, documentId string, projectId string) error {
	lease, err := x.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	if _, err := lease.Conn.Exec(ctx, `DELETE FROM `+config.VectorTableName+` WHERE document_id = $1 AND project_id = $2`, documentId, projectId); err != nil {
		return fmt.Errorf("deleting vectors: %w", err)
	}
	if _, err := lease.Conn.Exec(ctx, `DELETE FROM `+config.ChunkTableName+` WHERE document_id = $1 AND project_id = $2`, documentId, projectId); err != nil {
		return fmt.Errorf("deleting chunk records: %w", err)
	}
	return nil
}

func (x *Index) GetDocumentChunks(ctx context.Context, documentId string) ([]docModel.Chunk, error) {
	lease, err := x.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	rows, err := lease.Conn.Query(ctx,
		`SELECT chunk_index, content, chunk_method, metadata FROM `+config.ChunkTableName+
			` WHERE document_id = $1 ORDER BY chunk_index`, documentId)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []docModel.Chunk
	for rows.Next() {
		var c docModel.Chunk
		if err := rows.Scan(&c.Index, &c.Content, &c.Method, &c.Metadata); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Stats summarizes one project's index occupancy.
type Stats struct {
	ProjectId     string `json:"project_id"`
	DocumentCount int    `json:"document_count"`
	ChunkCount    int    `json:"chunk_count"`
}

func (x *Index) ProjectStats(ctx context.Context, projectId string) (Stats, error) {
	lease, err := x.pool.Acquire(ctx)
	if err != nil {
		return Stats{}, err
	}
	defer lease.Release()

	stats := Stats{ProjectId: projectId}
	err = lease.Conn.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT document_id) FROM `+config.VectorTableName+` WHERE project_id = $1`,
		projectId).Scan(&stats.ChunkCount, &stats.DocumentCount)
	if err != nil {
		return Stats{}, fmt.Errorf("project stats: %w", err)
	}
	return stats, nil
}

func preview(content string) string {
	if len(content) <= config.ChunkPreviewSize {
		return content
	}
	return content[:config.ChunkPreviewSize]
}

// estimateTokens is the usual rough chars/4 heuristic, floored at 1.
func estimateTokens(content string) int {
	if n := len(content) / 4; n > 1 {
		return n
	}
	return 1
}
