package api

import (
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
)

type JobExternalStatus string

const (
	JobStatusError JobExternalStatus = "Error"
)

type JobResponse struct {
	Id        string            `json:"id" example:"job_cz109"`
	Result    Result            `json:"result"`
	Error     *JobOutgoingError `json:"error,omitempty"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
}

type JobOutgoingError struct {
	Code    int    `json:"code" example:"400"`
	Message string `json:"message" example:"Job not found"`
	Retry   bool   `json:"can_retry" example:"false"`
}

// IngestResult is the externally visible outcome of one ingestion job.
type IngestResult struct {
	Status           string `json:"status"`
	DocumentId       string `json:"document_id,omitempty"`
	Filename         string `json:"filename,omitempty"`
	ChunksCount      int    `json:"chunks_count,omitempty"`
	ProcessingMethod string `json:"processing_method,omitempty"`
	ProcessingTimeMs int64  `json:"processing_time_ms,omitempty"`
	IsUpdate         bool   `json:"is_update,omitempty"`
	Warning          string `json:"warning,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

type Result struct {
	Status string        `json:"status"`
	Ingest *IngestResult `json:"ingest_result,omitempty"`
}

type InitJobResponse struct {
	Id        string `json:"id"`
	StatusURL string `json:"status_url"`
}

// requests---------------------

// TriggerRequest mirrors an object-finalized storage notification. Name
// must match documents/{project_id}/{filename}.
type TriggerRequest struct {
	Bucket   string            `json:"bucket" validate:"required"`
	Name     string            `json:"name" validate:"required"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type SearchRequest struct {
	ProjectId     string   `json:"project_id" validate:"required"`
	Query         string   `json:"query" validate:"required"`
	K             int      `json:"k,omitempty"`
	DocumentIds   []string `json:"document_ids,omitempty"`
	MinSimilarity float64  `json:"min_similarity,omitempty"`
}

type SearchMatch struct {
	DocumentId string         `json:"document_id"`
	Filename   string         `json:"filename"`
	ChunkIndex int            `json:"chunk_index"`
	Content    string         `json:"content"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type SearchResponse struct {
	ProjectId string        `json:"project_id"`
	Query     string        `json:"query"`
	Matches   []SearchMatch `json:"matches"`
}

// DocumentResponse pairs a document record with its stage trail.
type DocumentResponse struct {
	Document *docModel.Document            `json:"document"`
	Logs     []docModel.ProcessingLogEntry `json:"processing_logs,omitempty"`
}

type DocumentChunksResponse struct {
	DocumentId string           `json:"document_id"`
	Chunks     []docModel.Chunk `json:"chunks"`
}
