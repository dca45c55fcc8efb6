package handlers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/jobModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/job"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/metrics"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

var (
	handlerInstance *JobHandler //private singleton
	once            sync.Once
	logJH           *logger_i.Logger
)

type JobHandler struct {
	service *job.Service
}

func InitJobHandler(jobService *job.Service) {
	once.Do(func() {
		handlerInstance = &JobHandler{service: jobService}

		logJH = logger_i.NewLogger("JobHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logJH.Info("Starting job handler")
	})
}

type newJobData struct {
	id      string
	traceId string
	trigger docModel.TriggerEvent
}

func CreateNewJob(newJob newJobData) {
	logJH.Info("Queueing ingestion job", "jobId", newJob.id, "traceId", newJob.traceId)
	handlerInstance.pushToJobChannel(newJob)
}

func GetJobStatus(id string, traceId string) (result jobModel.Job, isFound bool) {
	ctxC := context.WithValue(context.Background(), config.TRACE_ID_KEY, traceId)
	if handlerInstance != nil {
		return handlerInstance.service.JobStore.GetJob(ctxC, id)
	}
	return result, false
}

// private methods
func (h *JobHandler) pushToJobChannel(newJob newJobData) {
	_job := jobModel.Job{
		Id:          newJob.id,
		TraceId:     newJob.traceId,
		Trigger:     newJob.trigger,
		CreatedTime: time.Now(),
		Status:      jobModel.JobStatusQueued,
		CurrentStep: jobModel.IngestInit,
	}

	//metrics
	metrics.IncrementJobsInQueue()

	h.service.JobChannel <- _job //blocking send to prevent the system from being overwhelmed
	logJH.Info("Created new job", "jobId", _job.Id)

	// Ingestion jobs are long-running external-call pipelines, so every
	// enqueue signals the dispatcher; idle workers retire on their own.
	atomic.AddInt64(&h.service.RequestCount, 1)
	metrics.StartDispatcherSignalCount()
	h.service.DispatcherChannel <- true
}
