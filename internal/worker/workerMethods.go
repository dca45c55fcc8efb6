package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	jobmodel "github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/jobModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/ingestion"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/metrics"
)

// executeJob drives one queued trigger through the pipeline under the
// per-document processing budget.
func executeJob(currentJob jobmodel.Job) {
	start := time.Now()

	ctxTrace := context.WithValue(context.Background(), config.TRACE_ID_KEY, currentJob.TraceId)
	ctx, cancel := context.WithTimeout(ctxTrace, config.DocumentProcessingTimeout)
	defer cancel()

	logger.Debug("Processing job", "jobId", currentJob.Id, "traceId", currentJob.TraceId)

	currentJob.Status = jobmodel.JobStatusRunning
	currentJob.CurrentStep = jobmodel.IngestInit
	saveJobState(ctx, currentJob)

	outcome, err := _processor.Process(ctx, currentJob.Trigger)
	currentJob.Outcome = &outcome
	currentJob.EndTime = time.Now()

	switch {
	case errors.Is(err, ingestion.ErrAlreadyProcessing):
		currentJob.Status = jobmodel.JobStatusSkipped
		currentJob.CurrentStep = jobmodel.Complete
	case err != nil:
		currentJob.Status = jobmodel.JobStatusError
		currentJob.CurrentStep = jobmodel.Error
		currentJob.Error = jobmodel.JobError{Message: err.Error(), Retry: true}
		logger.Error("Job failed", "jobId", currentJob.Id, "error", err)
	case outcome.Status == docModel.OutcomeSkipped:
		currentJob.Status = jobmodel.JobStatusSkipped
		currentJob.CurrentStep = jobmodel.Complete
	default:
		currentJob.Status = jobmodel.JobStatusComplete
		currentJob.CurrentStep = jobmodel.Complete
	}
	saveJobState(ctx, currentJob)

	metrics.CountDocumentOutcome(string(outcome.Status))
	metrics.CaptureJobMetrics(string(currentJob.Status), time.Since(start))
}

func removeWorker(reason string) {
	workerWaitGroup.Done()
	atomic.AddInt64(&currentWorkerCount, -1)
	logger.Info("Removed worker", "reason", reason, "workerCount", currentWorkerCount)
	metrics.DecrementActiveWorkerCount()
}

func saveJobState(ctx context.Context, currentJob jobmodel.Job) {
	if err := _jobService.JobStore.SaveJob(ctx, currentJob); err != nil {
		logger.Error("Failed to update job state", "err", err)
	}
}
