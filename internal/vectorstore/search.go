package vectorstore

import (
	"context"
	"fmt"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/pgvector/pgvector-go"
)

// SearchResult is one similarity match. Similarity is 1 minus cosine
// distance, so 1.0 is identical and 0.0 unrelated.
type SearchResult struct {
	DocumentId string         `json:"document_id"`
	Filename   string         `json:"filename"`
	ChunkIndex int            `json:"chunk_index"`
	Content    string         `json:"content"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SearchFilters narrows a query beyond the mandatory project scope.
type SearchFilters struct {
	DocumentIds   []string
	MinSimilarity float64
}

func (x *Index) Search(ctx context.Context, projectId string, query string, k int) ([]SearchResult, error) {
	return x.SearchWithFilters(ctx, projectId, query, k, SearchFilters{})
}

func (x *Index) SearchWithFilters(ctx context.Context, projectId string, query string, k int, filters SearchFilters) ([]SearchResult, error) {
	if k <= 0 {
		k = config.DefaultSearchK
	}

	queryVector, err := x.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	sql := `SELECT v.document_id, COALESCE(d.filename, ''), v.chunk_index, v.content, v.metadata,
	               1 - (v.embedding <=> $1) AS similarity
	        FROM ` + config.VectorTableName + ` v
	        LEFT JOIN documents d ON d.id = v.document_id
	        WHERE v.project_id = $2`
	args := []any{pgvector.NewVector(queryVector), projectId}

	if len(filters.DocumentIds) > 0 {
		args = append(args, filters.DocumentIds)
		sql += fmt.Sprintf(" AND v.document_id = ANY($%d)", len(args))
	}
	if filters.MinSimilarity > 0 {
		args = append(args, filters.MinSimilarity)
		sql += fmt.Sprintf(" AND 1 - (v.embedding <=> $1) >= $%d", len(args))
	}

	args = append(args, k)
	sql += fmt.Sprintf(" ORDER BY v.embedding <=> $1 LIMIT $%d", len(args))

	lease, err := x.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	rows, err := lease.Conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.DocumentId, &r.Filename, &r.ChunkIndex, &r.Content, &r.Metadata, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	x.logger.Debug("Similarity search complete", "projectId", projectId, "k", k, "matches", len(results))
	return results, nil
}
