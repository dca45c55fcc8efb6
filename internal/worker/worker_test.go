package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/jobModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/ingestion"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/job"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

// MockProcessor tracks the jobs handed to it
type MockProcessor struct {
	ProcessedCount int32
	ProcessFn      func(ctx context.Context, trigger docModel.TriggerEvent) (docModel.Outcome, error)
}

func (m *MockProcessor) Process(ctx context.Context, trigger docModel.TriggerEvent) (docModel.Outcome, error) {
	atomic.AddInt32(&m.ProcessedCount, 1)
	if m.ProcessFn != nil {
		return m.ProcessFn(ctx, trigger)
	}
	return docModel.Outcome{Status: docModel.OutcomeSuccess}, nil
}

type MockJobStore struct {
	mu    sync.Mutex
	saved []jobModel.Job
}

func (m *MockJobStore) GetJob(ctx context.Context, jobId string) (jobModel.Job, bool) {
	panic("not used")
}

func (m *MockJobStore) DeleteJob(ctx context.Context, jobID string) {
	panic("not used")
}

func (m *MockJobStore) SaveJob(ctx context.Context, j jobModel.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, j)
	return nil
}

func (m *MockJobStore) lastSaved() (jobModel.Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.saved) == 0 {
		return jobModel.Job{}, false
	}
	return m.saved[len(m.saved)-1], true
}

func TestWorkerPool_Flow(t *testing.T) {
	jobStore := &MockJobStore{}
	jobSvc := &job.Service{
		JobChannel:        make(chan jobModel.Job, 10),
		DispatcherChannel: make(chan bool, 10),
		JobStore:          jobStore,
	}
	mockProcessor := &MockProcessor{}
	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}

	InitServices(jobSvc, mockProcessor)
	InitWorkerPool(stopChan, wg)

	// Reset global state for test
	atomic.StoreInt64(&currentWorkerCount, 0)

	t.Run("Dispatcher creates worker on signal", func(t *testing.T) {
		jobSvc.DispatcherChannel <- true

		time.Sleep(50 * time.Millisecond)

		count := atomic.LoadInt64(&currentWorkerCount)
		if count < 1 {
			t.Errorf("Expected at least 1 worker, got %d", count)
		}
	})

	t.Run("Worker processes a job", func(t *testing.T) {
		testJob := jobModel.Job{Id: "test-1", Trigger: docModel.TriggerEvent{Bucket: "b", ObjectPath: "documents/p/f.pdf"}}
		jobSvc.JobChannel <- testJob

		time.Sleep(50 * time.Millisecond)

		processed := atomic.LoadInt32(&mockProcessor.ProcessedCount)
		if processed != 1 {
			t.Errorf("Expected 1 job processed, got %d", processed)
		}
		last, ok := jobStore.lastSaved()
		if !ok || last.Status != jobModel.JobStatusComplete {
			t.Errorf("final job state = %+v", last)
		}
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Success
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestExecuteJob_BenignSkip(t *testing.T) {
	jobStore := &MockJobStore{}
	jobSvc := &job.Service{JobStore: jobStore}
	logger = logger_i.NewLogger("TestWorkerPool")
	InitServices(jobSvc, &MockProcessor{
		ProcessFn: func(_ context.Context, _ docModel.TriggerEvent) (docModel.Outcome, error) {
			return docModel.Outcome{Status: docModel.OutcomeSkipped}, ingestion.ErrAlreadyProcessing
		},
	})

	executeJob(jobModel.Job{Id: "job-1"})

	last, ok := jobStore.lastSaved()
	if !ok || last.Status != jobModel.JobStatusSkipped {
		t.Errorf("benign skip should end SKIPPED, got %+v", last)
	}
	if last.Error.Message != "" {
		t.Errorf("benign skip must not record a job error: %+v", last.Error)
	}
}

func TestExecuteJob_PipelineFailure(t *testing.T) {
	jobStore := &MockJobStore{}
	jobSvc := &job.Service{JobStore: jobStore}
	logger = logger_i.NewLogger("TestWorkerPool")
	InitServices(jobSvc, &MockProcessor{
		ProcessFn: func(_ context.Context, _ docModel.TriggerEvent) (docModel.Outcome, error) {
			return docModel.Outcome{Status: docModel.OutcomeFailed}, errors.New("extraction exploded")
		},
	})

	executeJob(jobModel.Job{Id: "job-2"})

	last, ok := jobStore.lastSaved()
	if !ok || last.Status != jobModel.JobStatusError {
		t.Errorf("failure should end Error, got %+v", last)
	}
	if last.Error.Message != "extraction exploded" || !last.Error.Retry {
		t.Errorf("unexpected job error: %+v", last.Error)
	}
	if last.Outcome == nil || last.Outcome.Status != docModel.OutcomeFailed {
		t.Errorf("outcome not attached: %+v", last.Outcome)
	}
}

func TestWorker_IdleTimeout(t *testing.T) {
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, 0)
	defer atomic.StoreInt64(&minWorkerCount, config.MinWorkerCount)
	logger = logger_i.NewLogger("TestWorkerPool")
	jobSvc := &job.Service{
		JobChannel: make(chan jobModel.Job),
	}
	InitServices(jobSvc, &MockProcessor{})

	wg := &sync.WaitGroup{}
	stopChan := make(chan bool)
	workerWaitGroup = wg
	stopWorkerChannel = stopChan

	createWorker()
	time.Sleep(config.IdleWorkerTimeout)

	time.Sleep(100 * time.Millisecond)
	count := atomic.LoadInt64(&currentWorkerCount)
	if count != 0 {
		t.Errorf("Worker should have timed out and retired, but count is %d", count)
	}
}

func TestWorker_IdleTimeoutRespectsFloor(t *testing.T) {
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, 1)
	defer atomic.StoreInt64(&minWorkerCount, config.MinWorkerCount)
	logger = logger_i.NewLogger("TestWorkerPool")
	jobSvc := &job.Service{
		JobChannel: make(chan jobModel.Job),
	}
	InitServices(jobSvc, &MockProcessor{})

	wg := &sync.WaitGroup{}
	stopChan := make(chan bool)
	workerWaitGroup = wg
	stopWorkerChannel = stopChan

	createWorker()
	time.Sleep(config.IdleWorkerTimeout + 100*time.Millisecond)

	if count := atomic.LoadInt64(&currentWorkerCount); count != 1 {
		t.Errorf("Worker at the floor must not retire, but count is %d", count)
	}

	close(stopChan)
	wg.Wait()
}
