package docModel

import "time"

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
	StatusArchived   DocumentStatus = "archived"
)

// Document is one uploaded file's processing record. At most one active
// (non-archived, non-deleted) record exists per (project_id, storage_uri);
// superseded versions are archived, never overwritten in place.
type Document struct {
	Id               string         `json:"id"`
	ProjectId        string         `json:"project_id"`
	Filename         string         `json:"filename"`
	StorageURI       string         `json:"storage_uri"`
	FileType         string         `json:"file_type"`
	FileSize         int64          `json:"file_size"`
	UploadedBy       string         `json:"uploaded_by"`
	Status           DocumentStatus `json:"status"`
	ProcessingMethod string         `json:"processing_method,omitempty"`
	PageCount        int            `json:"page_count,omitempty"`
	RetryCount       int            `json:"retry_count"`
	ErrorMessage     string         `json:"error_message,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	ProcessedAt      *time.Time     `json:"processed_at,omitempty"`
	DeletedAt        *time.Time     `json:"deleted_at,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Chunk is one retrievable unit of a document's extracted text.
type Chunk struct {
	Index    int            `json:"chunk_index"`
	Content  string         `json:"content"`
	Method   string         `json:"chunk_method"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Section struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
	Page    int    `json:"page"`
}

type Table struct {
	Content     string `json:"content"`
	Description string `json:"description"`
	Page        int    `json:"page"`
}

type Image struct {
	Description string `json:"description"`
	Page        int    `json:"page"`
}

// NormalizedDocument is the standardized output of every extraction backend.
type NormalizedDocument struct {
	Text             string         `json:"text"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Sections         []Section      `json:"sections,omitempty"`
	Tables           []Table        `json:"tables,omitempty"`
	Images           []Image        `json:"images,omitempty"`
	PageCount        int            `json:"page_count"`
	ProcessingMethod string         `json:"processing_method"`
}

// Warning returns the partial-result annotation, if any (e.g. truncation).
func (d *NormalizedDocument) Warning() string {
	if d.Metadata == nil {
		return ""
	}
	if w, ok := d.Metadata["warning"].(string); ok {
		return w
	}
	return ""
}

type Stage string

const (
	StageExtraction Stage = "extraction"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StagePipeline   Stage = "pipeline"
)

type StageStatus string

const (
	StageStarted   StageStatus = "started"
	StageCompleted StageStatus = "completed"
	StageWarning   StageStatus = "warning"
	StageFailed    StageStatus = "failed"
)

// ProcessingLogEntry is one row of the append-only stage audit trail.
type ProcessingLogEntry struct {
	DocumentId   string         `json:"document_id"`
	ProjectId    string         `json:"project_id"`
	Stage        Stage          `json:"stage"`
	Status       StageStatus    `json:"status"`
	DurationMs   int64          `json:"duration_ms,omitempty"`
	ErrorDetails string         `json:"error_details,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// StatusNotification is the fire-and-forget outbound message published after
// every document status write. Consumers must be idempotent.
type StatusNotification struct {
	DocumentId string         `json:"document_id"`
	ProjectId  string         `json:"project_id"`
	Status     string         `json:"status"`
	Timestamp  time.Time      `json:"timestamp"`
	Error      string         `json:"error,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TriggerEvent is the inbound object-finalized notification.
// ObjectPath must match documents/{project_id}/{filename}.
type TriggerEvent struct {
	Bucket     string            `json:"bucket"`
	ObjectPath string            `json:"name"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (t TriggerEvent) UploadedBy() string {
	if v, ok := t.Metadata["uploaded_by"]; ok && v != "" {
		return v
	}
	if v, ok := t.Metadata["uploader"]; ok && v != "" {
		return v
	}
	return "unknown"
}

type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// Outcome is the terminal result of one pipeline invocation.
type Outcome struct {
	Status           OutcomeStatus `json:"status"`
	DocumentId       string        `json:"document_id,omitempty"`
	Filename         string        `json:"filename,omitempty"`
	ChunkCount       int           `json:"chunks_count,omitempty"`
	ProcessingMethod string        `json:"processing_method,omitempty"`
	ProcessingTimeMs int64         `json:"processing_time_ms,omitempty"`
	IsUpdate         bool          `json:"is_update,omitempty"`
	Warning          string        `json:"warning,omitempty"`
	Reason           string        `json:"reason,omitempty"`
}
