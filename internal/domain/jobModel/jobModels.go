package jobModel

import (
	"context"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
)

type JobStatus string
type InternalStatus string

const (
	JobStatusQueued   JobStatus = "QUEUED"
	JobStatusRunning  JobStatus = "RUNNING"
	JobStatusComplete JobStatus = "COMPLETE"
	JobStatusSkipped  JobStatus = "SKIPPED"
	JobStatusError    JobStatus = "Error"

	IngestInit       InternalStatus = "Init"
	IngestExtracting InternalStatus = "Extracting"
	IngestChunking   InternalStatus = "Chunking"
	IngestEmbedding  InternalStatus = "Embedding"
	IngestFinalizing InternalStatus = "Finalizing"
	Error            InternalStatus = "Error"
	Complete         InternalStatus = "Complete"
)

// Job is one ingestion invocation as tracked by the job store. The
// authoritative document lifecycle lives in the documents table; the job
// record only exposes invocation progress to the status endpoint.
type Job struct {
	Id          string                `json:"id"`
	TraceId     string                `json:"trace_id"`
	Trigger     docModel.TriggerEvent `json:"trigger"`
	Outcome     *docModel.Outcome     `json:"outcome,omitempty"`
	Error       JobError              `json:"error,omitempty"`
	CreatedTime time.Time             `json:"created_time"`
	EndTime     time.Time             `json:"end_time,omitempty"`
	Status      JobStatus             `json:"status"`
	CurrentStep InternalStatus        `json:"current_step"`
}

type JobError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Retry   bool   `json:"retry"`
}

type JobStore interface {
	GetJob(ctx context.Context, jobId string) (Job, bool)
	SaveJob(ctx context.Context, job Job) error
	DeleteJob(ctx context.Context, jobID string)
}
