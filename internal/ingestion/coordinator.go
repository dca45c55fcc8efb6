package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/chunking"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/data/docstore"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/metrics"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/notify"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/storage"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

// ErrAlreadyProcessing is the benign skip: another invocation holds the
// document and has not gone stale yet. Callers must not treat it as a
// pipeline failure.
var ErrAlreadyProcessing = errors.New("document is already being processed")

type documentStore interface {
	GetActiveByStorageURI(ctx context.Context, projectId string, storageURI string) (*docModel.Document, error)
	GetById(ctx context.Context, documentId string) (*docModel.Document, error)
	Insert(ctx context.Context, doc docModel.Document) (string, error)
	Archive(ctx context.Context, documentId string) error
	ResetForReprocessing(ctx context.Context, documentId string) error
	UpdateStatus(ctx context.Context, documentId string, upd docstore.StatusUpdate) error
	AppendLog(ctx context.Context, entry docModel.ProcessingLogEntry) error
}

type vectorIndex interface {
	AddChunks(ctx context.Context, doc docModel.Document, chunks []docModel.Chunk) (int, error)
	DeleteForDocument(ctx context.Context, documentId string, projectId string) error
}

type extractor interface {
	Extract(ctx context.Context, filename string, mimeType string, data []byte) (*docModel.NormalizedDocument, error)
}

type chunker interface {
	ChunkText(ctx context.Context, text string, method chunking.Method, metadata map[string]any) ([]docModel.Chunk, error)
}

// Coordinator drives one document through download, dedupe, extraction,
// chunking, embedding and finalization. It owns every status transition;
// nothing else writes document state while a job runs.
type Coordinator struct {
	docs      documentStore
	index     vectorIndex
	extractor extractor
	chunker   chunker
	blobs     storage.BlobReader
	notifier  notify.Notifier
	logger    *logger_i.Logger
	now       func() time.Time
}

type Deps struct {
	Docs      documentStore
	Index     vectorIndex
	Extractor extractor
	Chunker   chunker
	Blobs     storage.BlobReader
	Notifier  notify.Notifier
}

func NewCoordinator(deps Deps) *Coordinator {
	return &Coordinator{
		docs:      deps.Docs,
		index:     deps.Index,
		extractor: deps.Extractor,
		chunker:   deps.Chunker,
		blobs:     deps.Blobs,
		notifier:  deps.Notifier,
		logger:    logger_i.NewLogger("IngestionCoordinator"),
		now:       time.Now,
	}
}

// Process runs the full pipeline for one trigger event.
func (c *Coordinator) Process(ctx context.Context, trigger docModel.TriggerEvent) (docModel.Outcome, error) {
	started := c.now()

	locator, err := storage.ParseTrigger(trigger)
	if err != nil {
		return docModel.Outcome{Status: docModel.OutcomeFailed, Reason: err.Error()}, err
	}
	log := c.logger.With("projectId", locator.ProjectId, "filename", locator.Filename)

	data, err := c.blobs.Download(ctx, locator.URI())
	if err != nil {
		return docModel.Outcome{Status: docModel.OutcomeFailed, Filename: locator.Filename, Reason: "download failed"}, err
	}

	doc, skip, err := c.resolveDocument(ctx, locator, trigger, int64(len(data)))
	if errors.Is(err, ErrAlreadyProcessing) {
		return docModel.Outcome{Status: docModel.OutcomeSkipped, Filename: locator.Filename, Reason: err.Error()}, err
	}
	if err != nil {
		return docModel.Outcome{Status: docModel.OutcomeFailed, Filename: locator.Filename, Reason: err.Error()}, err
	}
	if skip != nil {
		log.Info("Skipping document", "reason", skip.Reason)
		return *skip, nil
	}

	if int64(len(data)) > config.MaxFileSize {
		err := fmt.Errorf("file size %d exceeds limit of %d MB", len(data), config.MaxFileSizeMB)
		return c.fail(ctx, doc, docModel.StagePipeline, started, err)
	}

	// extraction
	stageStart := c.now()
	c.logStage(ctx, doc, docModel.StageExtraction, docModel.StageStarted, 0, "", nil)
	extracted, err := c.extractor.Extract(ctx, doc.Filename, doc.FileType, data)
	if err != nil {
		c.logStage(ctx, doc, docModel.StageExtraction, docModel.StageFailed, c.sinceMs(stageStart), err.Error(), nil)
		return c.fail(ctx, doc, docModel.StageExtraction, started, err)
	}
	warning := extracted.Warning()
	extractionStatus := docModel.StageCompleted
	if warning != "" {
		extractionStatus = docModel.StageWarning
	}
	c.logStage(ctx, doc, docModel.StageExtraction, extractionStatus, c.sinceMs(stageStart), warning, map[string]any{
		"method":     extracted.ProcessingMethod,
		"page_count": extracted.PageCount,
		"chars":      len(extracted.Text),
	})
	doc.ProcessingMethod = extracted.ProcessingMethod
	doc.PageCount = extracted.PageCount

	// chunking
	stageStart = c.now()
	c.logStage(ctx, doc, docModel.StageChunking, docModel.StageStarted, 0, "", nil)
	chunks, err := c.chunker.ChunkText(ctx, extracted.Text, chunkingMethod(trigger), map[string]any{
		"filename":   doc.Filename,
		"project_id": doc.ProjectId,
	})
	if err != nil {
		c.logStage(ctx, doc, docModel.StageChunking, docModel.StageFailed, c.sinceMs(stageStart), err.Error(), nil)
		return c.fail(ctx, doc, docModel.StageChunking, started, err)
	}
	c.logStage(ctx, doc, docModel.StageChunking, docModel.StageCompleted, c.sinceMs(stageStart), "", map[string]any{
		"chunks_count": len(chunks),
	})

	// embedding and persistence
	stageStart = c.now()
	c.logStage(ctx, doc, docModel.StageEmbedding, docModel.StageStarted, 0, "", nil)
	count, err := c.index.AddChunks(ctx, *doc, chunks)
	if err != nil {
		c.logStage(ctx, doc, docModel.StageEmbedding, docModel.StageFailed, c.sinceMs(stageStart), err.Error(), nil)
		return c.fail(ctx, doc, docModel.StageEmbedding, started, err)
	}
	c.logStage(ctx, doc, docModel.StageEmbedding, docModel.StageCompleted, c.sinceMs(stageStart), "", map[string]any{
		"chunks_count": count,
	})

	// finalize
	elapsed := c.sinceMs(started)
	finalMeta := map[string]any{
		"chunks_count":       count,
		"processing_time_ms": elapsed,
	}
	if warning != "" {
		finalMeta["warning"] = warning
	}
	err = c.docs.UpdateStatus(ctx, doc.Id, docstore.StatusUpdate{
		Status:           docModel.StatusCompleted,
		ProcessingMethod: doc.ProcessingMethod,
		PageCount:        doc.PageCount,
		Metadata:         finalMeta,
	})
	if err != nil {
		return c.fail(ctx, doc, docModel.StagePipeline, started, err)
	}
	c.logStage(ctx, doc, docModel.StagePipeline, docModel.StageCompleted, elapsed, "", finalMeta)
	c.notifier.DocumentStatus(ctx, docModel.StatusNotification{
		DocumentId: doc.Id,
		ProjectId:  doc.ProjectId,
		Status:     string(docModel.StatusCompleted),
		Timestamp:  c.now(),
		Metadata:   finalMeta,
	})

	log.Info("Document ingested", "documentId", doc.Id, "chunks", count, "durationMs", elapsed)
	return docModel.Outcome{
		Status:           docModel.OutcomeSuccess,
		DocumentId:       doc.Id,
		Filename:         doc.Filename,
		ChunkCount:       count,
		ProcessingMethod: doc.ProcessingMethod,
		ProcessingTimeMs: elapsed,
		IsUpdate:         doc.RetryCount > 0 || doc.Metadata["previous_version_id"] != nil,
		Warning:          warning,
	}, nil
}

// resolveDocument applies the dedupe and versioning policy against the
// active record for this storage location. It returns either the record to
// process, or a skip outcome, or ErrAlreadyProcessing.
func (c *Coordinator) resolveDocument(ctx context.Context, locator storage.Locator, trigger docModel.TriggerEvent, size int64) (*docModel.Document, *docModel.Outcome, error) {
	existing, err := c.docs.GetActiveByStorageURI(ctx, locator.ProjectId, locator.URI())
	if err != nil {
		return nil, nil, err
	}

	newDoc := docModel.Document{
		ProjectId:  locator.ProjectId,
		Filename:   locator.Filename,
		StorageURI: locator.URI(),
		FileType:   storage.MimeTypeOf(locator.Filename),
		FileSize:   size,
		UploadedBy: trigger.UploadedBy(),
		Status:     docModel.StatusProcessing,
	}

	if existing == nil {
		id, err := c.docs.Insert(ctx, newDoc)
		if err != nil {
			return nil, nil, err
		}
		newDoc.Id = id
		return &newDoc, nil, nil
	}

	switch existing.Status {
	case docModel.StatusCompleted:
		if existing.FileSize == size {
			return nil, &docModel.Outcome{
				Status:     docModel.OutcomeSkipped,
				DocumentId: existing.Id,
				Filename:   existing.Filename,
				Reason:     "already processed, content unchanged",
			}, nil
		}
		// Content changed: retire the old version and start a fresh record.
		if err := c.docs.Archive(ctx, existing.Id); err != nil {
			return nil, nil, err
		}
		if err := c.index.DeleteForDocument(ctx, existing.Id, existing.ProjectId); err != nil {
			return nil, nil, err
		}
		newDoc.Metadata = map[string]any{"previous_version_id": existing.Id}
		id, err := c.docs.Insert(ctx, newDoc)
		if err != nil {
			return nil, nil, err
		}
		newDoc.Id = id
		return &newDoc, nil, nil

	case docModel.StatusProcessing:
		if !docstore.IsStuck(existing, c.now(), config.StuckProcessingTimeout) {
			return nil, nil, ErrAlreadyProcessing
		}
		c.logger.Warn("Reclaiming stuck document", "documentId", existing.Id, "heldSince", existing.UpdatedAt)
		return c.reclaim(ctx, existing, size)

	default:
		// failed, pending or anything unexpected: purge and retry
		return c.reclaim(ctx, existing, size)
	}
}

// reclaim purges any partial vectors and puts the existing record back into
// processing with a bumped retry counter.
func (c *Coordinator) reclaim(ctx context.Context, existing *docModel.Document, size int64) (*docModel.Document, *docModel.Outcome, error) {
	if err := c.index.DeleteForDocument(ctx, existing.Id, existing.ProjectId); err != nil {
		return nil, nil, err
	}
	if err := c.docs.ResetForReprocessing(ctx, existing.Id); err != nil {
		return nil, nil, err
	}
	doc := *existing
	doc.Status = docModel.StatusProcessing
	doc.FileSize = size
	doc.RetryCount++
	return &doc, nil, nil
}

func (c *Coordinator) fail(ctx context.Context, doc *docModel.Document, stage docModel.Stage, started time.Time, cause error) (docModel.Outcome, error) {
	elapsed := c.sinceMs(started)

	if err := c.docs.UpdateStatus(ctx, doc.Id, docstore.StatusUpdate{
		Status:       docModel.StatusFailed,
		ErrorMessage: cause.Error(),
	}); err != nil {
		c.logger.Error("Failed recording failure state", "documentId", doc.Id, "error", err)
	}
	c.logStage(ctx, doc, docModel.StagePipeline, docModel.StageFailed, elapsed, cause.Error(), map[string]any{
		"failed_stage": string(stage),
	})
	c.notifier.DocumentStatus(ctx, docModel.StatusNotification{
		DocumentId: doc.Id,
		ProjectId:  doc.ProjectId,
		Status:     string(docModel.StatusFailed),
		Timestamp:  c.now(),
		Error:      cause.Error(),
	})

	return docModel.Outcome{
		Status:           docModel.OutcomeFailed,
		DocumentId:       doc.Id,
		Filename:         doc.Filename,
		ProcessingTimeMs: elapsed,
		Reason:           cause.Error(),
	}, cause
}

func (c *Coordinator) logStage(ctx context.Context, doc *docModel.Document, stage docModel.Stage, status docModel.StageStatus, durationMs int64, details string, metadata map[string]any) {
	if status != docModel.StageStarted {
		metrics.CaptureStageMetrics(string(stage), time.Duration(durationMs)*time.Millisecond)
	}
	entry := docModel.ProcessingLogEntry{
		DocumentId:   doc.Id,
		ProjectId:    doc.ProjectId,
		Stage:        stage,
		Status:       status,
		DurationMs:   durationMs,
		ErrorDetails: details,
		Metadata:     metadata,
	}
	if err := c.docs.AppendLog(ctx, entry); err != nil {
		c.logger.Warn("Failed appending processing log", "documentId", doc.Id, "stage", stage, "error", err)
	}
}

func (c *Coordinator) sinceMs(t time.Time) int64 {
	return c.now().Sub(t).Milliseconds()
}

func chunkingMethod(trigger docModel.TriggerEvent) chunking.Method {
	if m, ok := trigger.Metadata["chunking_method"]; ok && m != "" {
		return chunking.Method(m)
	}
	return chunking.MethodRecursive
}
