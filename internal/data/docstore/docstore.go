package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/data/pgpool"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ConnSource hands out pooled database connections.
type ConnSource interface {
	Acquire(ctx context.Context) (*pgpool.Lease, error)
}

// Store owns the document records and the processing audit trail.
type Store struct {
	pool   ConnSource
	logger *logger_i.Logger
}

func NewStore(pool ConnSource) *Store {
	return &Store{pool: pool, logger: logger_i.NewLogger("DocStore")}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		project_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		storage_uri TEXT NOT NULL,
		file_type TEXT NOT NULL,
		file_size BIGINT NOT NULL,
		uploaded_by TEXT NOT NULL DEFAULT 'unknown',
		status TEXT NOT NULL,
		processing_method TEXT,
		page_count INT NOT NULL DEFAULT 0,
		retry_count INT NOT NULL DEFAULT 0,
		error_message TEXT,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		processed_at TIMESTAMPTZ,
		deleted_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_documents_active
		ON documents (project_id, storage_uri) WHERE status <> 'archived' AND deleted_at IS NULL`,
	`CREATE TABLE IF NOT EXISTS processing_logs (
		id BIGSERIAL PRIMARY KEY,
		document_id UUID NOT NULL,
		project_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		error_details TEXT,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_logs_document ON processing_logs (document_id)`,
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	for _, stmt := range schemaStatements {
		if _, err := lease.Conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("document schema: %w", err)
		}
	}
	return nil
}

const documentColumns = `id, project_id, filename, storage_uri, file_type, file_size, uploaded_by,
	status, COALESCE(processing_method, ''), page_count, retry_count, COALESCE(error_message, ''),
	metadata, created_at, processed_at, deleted_at, updated_at`

func scanDocument(row pgx.Row) (*docModel.Document, error) {
	var d docModel.Document
	err := row.Scan(&d.Id, &d.ProjectId, &d.Filename, &d.StorageURI, &d.FileType, &d.FileSize,
		&d.UploadedBy, &d.Status, &d.ProcessingMethod, &d.PageCount, &d.RetryCount,
		&d.ErrorMessage, &d.Metadata, &d.CreatedAt, &d.ProcessedAt, &d.DeletedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetActiveByStorageURI finds the one non-archived, non-deleted record for a
// storage location. Returns nil without error when none exists.
func (s *Store) GetActiveByStorageURI(ctx context.Context, projectId string, storageURI string) (*docModel.Document, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	row := lease.Conn.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents
		 WHERE project_id = $1 AND storage_uri = $2 AND status <> 'archived' AND deleted_at IS NULL
		 ORDER BY created_at DESC LIMIT 1`, projectId, storageURI)

	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up document: %w", err)
	}
	return doc, nil
}

func (s *Store) GetById(ctx context.Context, documentId string) (*docModel.Document, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	row := lease.Conn.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, documentId)
	doc, err := scanDocument(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document: %w", err)
	}
	return doc, nil
}

// Insert creates a new document record in processing state and returns its id.
func (s *Store) Insert(ctx context.Context, doc docModel.Document) (string, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer lease.Release()

	id := uuid.NewString()
	if doc.Metadata == nil {
		doc.Metadata = map[string]any{}
	}
	_, err = lease.Conn.Exec(ctx,
		`INSERT INTO documents (id, project_id, filename, storage_uri, file_type, file_size, uploaded_by, status, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, doc.ProjectId, doc.Filename, doc.StorageURI, doc.FileType, doc.FileSize,
		doc.UploadedBy, docModel.StatusProcessing, doc.Metadata)
	if err != nil {
		return "", fmt.Errorf("inserting document: %w", err)
	}

	s.logger.Info("Document record created", "documentId", id, "filename", doc.Filename)
	return id, nil
}

// Archive retires a superseded version. The record stays queryable for
// history; only the active-record index drops it.
func (s *Store) Archive(ctx context.Context, documentId string) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	_, err = lease.Conn.Exec(ctx,
		`UPDATE documents SET status = 'archived', updated_at = now(),
		        metadata = metadata || jsonb_build_object('superseded_at', now())
		 WHERE id = $1`, documentId)
	if err != nil {
		return fmt.Errorf("archiving document: %w", err)
	}
	return nil
}

// ResetForReprocessing puts a failed or stuck record back into processing
// and bumps its retry counter.
func (s *Store) ResetForReprocessing(ctx context.Context, documentId string) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	_, err = lease.Conn.Exec(ctx,
		`UPDATE documents SET status = 'processing', retry_count = retry_count + 1,
		        error_message = NULL, updated_at = now()
		 WHERE id = $1`, documentId)
	if err != nil {
		return fmt.Errorf("resetting document: %w", err)
	}
	return nil
}

// StatusUpdate carries the optional fields of a status transition. Zero
// values leave the stored column untouched; Metadata is merged, not
// replaced.
type StatusUpdate struct {
	Status           docModel.DocumentStatus
	ProcessingMethod string
	PageCount        int
	ErrorMessage     string
	Metadata         map[string]any
}

// UpdateStatus is the single write path for status transitions. Terminal
// states also stamp processed_at.
func (s *Store) UpdateStatus(ctx context.Context, documentId string, upd StatusUpdate) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	if upd.Metadata == nil {
		upd.Metadata = map[string]any{}
	}
	_, err = lease.Conn.Exec(ctx,
		`UPDATE documents SET
		        status = $2,
		        processing_method = COALESCE(NULLIF($3, ''), processing_method),
		        page_count = CASE WHEN $4 > 0 THEN $4 ELSE page_count END,
		        error_message = NULLIF($5, ''),
		        metadata = metadata || $6,
		        processed_at = CASE WHEN $2 IN ('completed', 'failed') THEN now() ELSE processed_at END,
		        updated_at = now()
		 WHERE id = $1`,
		documentId, upd.Status, upd.ProcessingMethod, upd.PageCount, upd.ErrorMessage, upd.Metadata)
	if err != nil {
		return fmt.Errorf("updating document status: %w", err)
	}
	return nil
}

// AppendLog writes one stage-trail row. The trail is append-only.
func (s *Store) AppendLog(ctx context.Context, entry docModel.ProcessingLogEntry) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}
	_, err = lease.Conn.Exec(ctx,
		`INSERT INTO processing_logs (document_id, project_id, stage, status, duration_ms, error_details, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.DocumentId, entry.ProjectId, entry.Stage, entry.Status, entry.DurationMs,
		entry.ErrorDetails, entry.Metadata)
	if err != nil {
		return fmt.Errorf("appending processing log: %w", err)
	}
	return nil
}

// ListLogs returns a document's stage trail, oldest first.
func (s *Store) ListLogs(ctx context.Context, documentId string) ([]docModel.ProcessingLogEntry, error) {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer lease.Release()

	rows, err := lease.Conn.Query(ctx,
		`SELECT document_id, project_id, stage, status, duration_ms, COALESCE(error_details, ''), metadata, created_at
		 FROM processing_logs WHERE document_id = $1 ORDER BY created_at`, documentId)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var entries []docModel.ProcessingLogEntry
	for rows.Next() {
		var e docModel.ProcessingLogEntry
		if err := rows.Scan(&e.DocumentId, &e.ProjectId, &e.Stage, &e.Status, &e.DurationMs,
			&e.ErrorDetails, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// IsStuck reports whether a processing record has been held longer than the
// stale threshold and should be reclaimed.
func IsStuck(doc *docModel.Document, now time.Time, staleAfter time.Duration) bool {
	return doc.Status == docModel.StatusProcessing && now.Sub(doc.UpdatedAt) > staleAfter
}
