package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/chunking"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/data/docstore"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/storage"
)

type fakeDocs struct {
	existing      *docModel.Document
	inserted      []docModel.Document
	archived      []string
	resets        []string
	statusUpdates []docstore.StatusUpdate
	logs          []docModel.ProcessingLogEntry
}

func (f *fakeDocs) GetActiveByStorageURI(_ context.Context, _ string, _ string) (*docModel.Document, error) {
	return f.existing, nil
}

func (f *fakeDocs) GetById(_ context.Context, _ string) (*docModel.Document, error) {
	return f.existing, nil
}

func (f *fakeDocs) Insert(_ context.Context, doc docModel.Document) (string, error) {
	f.inserted = append(f.inserted, doc)
	return "new-doc-id", nil
}

func (f *fakeDocs) Archive(_ context.Context, id string) error {
	f.archived = append(f.archived, id)
	return nil
}

func (f *fakeDocs) ResetForReprocessing(_ context.Context, id string) error {
	f.resets = append(f.resets, id)
	return nil
}

func (f *fakeDocs) UpdateStatus(_ context.Context, _ string, upd docstore.StatusUpdate) error {
	f.statusUpdates = append(f.statusUpdates, upd)
	return nil
}

func (f *fakeDocs) AppendLog(_ context.Context, entry docModel.ProcessingLogEntry) error {
	f.logs = append(f.logs, entry)
	return nil
}

type fakeIndex struct {
	added           int
	deleted         []string
	deletedProjects []string
	AddChunksFn     func(ctx context.Context, doc docModel.Document, chunks []docModel.Chunk) (int, error)
}

func (f *fakeIndex) AddChunks(ctx context.Context, doc docModel.Document, chunks []docModel.Chunk) (int, error) {
	if f.AddChunksFn != nil {
		return f.AddChunksFn(ctx, doc, chunks)
	}
	f.added += len(chunks)
	return len(chunks), nil
}

func (f *fakeIndex) DeleteForDocument(_ context.Context, id string, projectId string) error {
	f.deleted = append(f.deleted, id)
	f.deletedProjects = append(f.deletedProjects, projectId)
	return nil
}

type fakeExtractor struct {
	ExtractFn func(ctx context.Context, filename string, mimeType string, data []byte) (*docModel.NormalizedDocument, error)
}

func (f *fakeExtractor) Extract(ctx context.Context, filename string, mimeType string, data []byte) (*docModel.NormalizedDocument, error) {
	return f.ExtractFn(ctx, filename, mimeType, data)
}

type fakeChunker struct{}

func (f *fakeChunker) ChunkText(_ context.Context, text string, _ chunking.Method, _ map[string]any) ([]docModel.Chunk, error) {
	return []docModel.Chunk{
		{Index: 0, Content: text, Method: "recursive"},
		{Index: 1, Content: text, Method: "recursive"},
	}, nil
}

type fakeBlobs struct {
	data []byte
	err  error
}

func (f *fakeBlobs) Download(_ context.Context, _ string) ([]byte, error) {
	return f.data, f.err
}

type fakeNotifier struct {
	notifications []docModel.StatusNotification
}

func (f *fakeNotifier) DocumentStatus(_ context.Context, n docModel.StatusNotification) {
	f.notifications = append(f.notifications, n)
}

type harness struct {
	docs      *fakeDocs
	index     *fakeIndex
	extractor *fakeExtractor
	blobs     *fakeBlobs
	notifier  *fakeNotifier
	coord     *Coordinator
}

func newHarness(existing *docModel.Document, blobData []byte) *harness {
	h := &harness{
		docs:  &fakeDocs{existing: existing},
		index: &fakeIndex{},
		extractor: &fakeExtractor{
			ExtractFn: func(_ context.Context, _ string, _ string, _ []byte) (*docModel.NormalizedDocument, error) {
				return &docModel.NormalizedDocument{
					Text:             "extracted content",
					PageCount:        3,
					ProcessingMethod: "pdftext",
					Metadata:         map[string]any{},
				}, nil
			},
		},
		blobs:    &fakeBlobs{data: blobData},
		notifier: &fakeNotifier{},
	}
	h.coord = NewCoordinator(Deps{
		Docs:      h.docs,
		Index:     h.index,
		Extractor: h.extractor,
		Chunker:   &fakeChunker{},
		Blobs:     h.blobs,
		Notifier:  h.notifier,
	})
	return h
}

func trigger() docModel.TriggerEvent {
	return docModel.TriggerEvent{
		Bucket:     "my-bucket",
		ObjectPath: "documents/proj-1/paper.pdf",
		Metadata:   map[string]string{"uploaded_by": "alice"},
	}
}

func completedDoc(size int64) *docModel.Document {
	return &docModel.Document{
		Id:         "old-doc-id",
		ProjectId:  "proj-1",
		Filename:   "paper.pdf",
		StorageURI: "gs://my-bucket/documents/proj-1/paper.pdf",
		FileSize:   size,
		Status:     docModel.StatusCompleted,
		UpdatedAt:  time.Now(),
	}
}

func TestProcessNewDocument(t *testing.T) {
	h := newHarness(nil, []byte("pdf bytes"))

	outcome, err := h.coord.Process(context.Background(), trigger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != docModel.OutcomeSuccess || outcome.ChunkCount != 2 {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if len(h.docs.inserted) != 1 {
		t.Fatalf("%d inserts, want 1", len(h.docs.inserted))
	}
	ins := h.docs.inserted[0]
	if ins.UploadedBy != "alice" || ins.FileSize != int64(len("pdf bytes")) {
		t.Errorf("unexpected insert: %+v", ins)
	}

	final := h.docs.statusUpdates[len(h.docs.statusUpdates)-1]
	if final.Status != docModel.StatusCompleted {
		t.Errorf("final status = %v", final.Status)
	}
	if final.Metadata["chunks_count"] != 2 {
		t.Errorf("final metadata missing chunk count: %v", final.Metadata)
	}

	if len(h.notifier.notifications) != 1 || h.notifier.notifications[0].Status != "completed" {
		t.Errorf("unexpected notifications: %+v", h.notifier.notifications)
	}
}

func TestProcessLogsEveryStage(t *testing.T) {
	h := newHarness(nil, []byte("pdf bytes"))

	if _, err := h.coord.Process(context.Background(), trigger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []struct {
		stage  docModel.Stage
		status docModel.StageStatus
	}{
		{docModel.StageExtraction, docModel.StageStarted},
		{docModel.StageExtraction, docModel.StageCompleted},
		{docModel.StageChunking, docModel.StageStarted},
		{docModel.StageChunking, docModel.StageCompleted},
		{docModel.StageEmbedding, docModel.StageStarted},
		{docModel.StageEmbedding, docModel.StageCompleted},
		{docModel.StagePipeline, docModel.StageCompleted},
	}
	if len(h.docs.logs) != len(wantOrder) {
		t.Fatalf("%d log entries, want %d: %+v", len(h.docs.logs), len(wantOrder), h.docs.logs)
	}
	for i, want := range wantOrder {
		if h.docs.logs[i].Stage != want.stage || h.docs.logs[i].Status != want.status {
			t.Errorf("log %d = %s/%s, want %s/%s", i, h.docs.logs[i].Stage, h.docs.logs[i].Status, want.stage, want.status)
		}
	}
}

func TestProcessSkipsUnchangedDocument(t *testing.T) {
	h := newHarness(completedDoc(int64(len("pdf bytes"))), []byte("pdf bytes"))

	outcome, err := h.coord.Process(context.Background(), trigger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != docModel.OutcomeSkipped {
		t.Errorf("outcome = %v, want skipped", outcome.Status)
	}
	if len(h.docs.inserted) != 0 || len(h.index.deleted) != 0 {
		t.Error("skip must not touch records or vectors")
	}
}

func TestProcessVersionsChangedDocument(t *testing.T) {
	h := newHarness(completedDoc(5), []byte("pdf bytes of a different length"))

	outcome, err := h.coord.Process(context.Background(), trigger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != docModel.OutcomeSuccess || !outcome.IsUpdate {
		t.Errorf("unexpected outcome: %+v", outcome)
	}
	if len(h.docs.archived) != 1 || h.docs.archived[0] != "old-doc-id" {
		t.Errorf("archived = %v", h.docs.archived)
	}
	if len(h.index.deleted) != 1 || h.index.deleted[0] != "old-doc-id" {
		t.Errorf("old vectors not purged: %v", h.index.deleted)
	}
	if h.index.deletedProjects[0] != "proj-1" {
		t.Errorf("vector purge not scoped to the document's project: %v", h.index.deletedProjects)
	}
	if len(h.docs.inserted) != 1 {
		t.Fatalf("%d inserts, want 1", len(h.docs.inserted))
	}
	if h.docs.inserted[0].Metadata["previous_version_id"] != "old-doc-id" {
		t.Errorf("new version missing lineage: %v", h.docs.inserted[0].Metadata)
	}
}

func TestProcessRetriesFailedDocument(t *testing.T) {
	existing := completedDoc(5)
	existing.Status = docModel.StatusFailed
	h := newHarness(existing, []byte("pdf bytes"))

	outcome, err := h.coord.Process(context.Background(), trigger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != docModel.OutcomeSuccess {
		t.Errorf("outcome = %v", outcome.Status)
	}
	if len(h.index.deleted) != 1 {
		t.Error("partial vectors must be purged before retry")
	}
	if h.index.deletedProjects[0] != "proj-1" {
		t.Errorf("vector purge not scoped to the document's project: %v", h.index.deletedProjects)
	}
	if len(h.docs.resets) != 1 || h.docs.resets[0] != "old-doc-id" {
		t.Errorf("resets = %v", h.docs.resets)
	}
	if len(h.docs.inserted) != 0 {
		t.Error("retry must reuse the existing record")
	}
}

func TestProcessBenignSkipWhileFreshlyProcessing(t *testing.T) {
	existing := completedDoc(5)
	existing.Status = docModel.StatusProcessing
	existing.UpdatedAt = time.Now().Add(-time.Minute)
	h := newHarness(existing, []byte("pdf bytes"))

	outcome, err := h.coord.Process(context.Background(), trigger())
	if !errors.Is(err, ErrAlreadyProcessing) {
		t.Fatalf("err = %v, want ErrAlreadyProcessing", err)
	}
	if outcome.Status != docModel.OutcomeSkipped {
		t.Errorf("outcome = %v, want skipped", outcome.Status)
	}
	if len(h.docs.resets) != 0 || len(h.index.deleted) != 0 {
		t.Error("fresh processing record must be left alone")
	}
}

func TestProcessReclaimsStuckDocument(t *testing.T) {
	existing := completedDoc(5)
	existing.Status = docModel.StatusProcessing
	existing.UpdatedAt = time.Now().Add(-config.StuckProcessingTimeout - time.Minute)
	h := newHarness(existing, []byte("pdf bytes"))

	outcome, err := h.coord.Process(context.Background(), trigger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome.Status != docModel.OutcomeSuccess {
		t.Errorf("outcome = %v", outcome.Status)
	}
	if len(h.docs.resets) != 1 {
		t.Error("stuck record must be reset for retry")
	}
}

func TestProcessExtractionFailure(t *testing.T) {
	h := newHarness(nil, []byte("pdf bytes"))
	h.extractor.ExtractFn = func(_ context.Context, _ string, _ string, _ []byte) (*docModel.NormalizedDocument, error) {
		return nil, errors.New("all backends failed")
	}

	outcome, err := h.coord.Process(context.Background(), trigger())
	if err == nil {
		t.Fatal("expected error")
	}
	if outcome.Status != docModel.OutcomeFailed {
		t.Errorf("outcome = %v, want failed", outcome.Status)
	}

	final := h.docs.statusUpdates[len(h.docs.statusUpdates)-1]
	if final.Status != docModel.StatusFailed || final.ErrorMessage == "" {
		t.Errorf("failure not recorded: %+v", final)
	}

	last := h.docs.logs[len(h.docs.logs)-1]
	if last.Stage != docModel.StagePipeline || last.Status != docModel.StageFailed {
		t.Errorf("missing pipeline failure log: %+v", last)
	}
	if last.Metadata["failed_stage"] != "extraction" {
		t.Errorf("failed stage = %v", last.Metadata["failed_stage"])
	}

	if len(h.notifier.notifications) != 1 || h.notifier.notifications[0].Status != "failed" {
		t.Errorf("unexpected notifications: %+v", h.notifier.notifications)
	}
}

func TestProcessOversizedFile(t *testing.T) {
	h := newHarness(nil, make([]byte, config.MaxFileSize+1))

	outcome, err := h.coord.Process(context.Background(), trigger())
	if err == nil {
		t.Fatal("expected error")
	}
	if outcome.Status != docModel.OutcomeFailed {
		t.Errorf("outcome = %v, want failed", outcome.Status)
	}
	if !strings.Contains(err.Error(), "exceeds limit") {
		t.Errorf("err = %v", err)
	}
}

func TestProcessInvalidObjectPath(t *testing.T) {
	h := newHarness(nil, []byte("pdf bytes"))

	outcome, err := h.coord.Process(context.Background(), docModel.TriggerEvent{
		Bucket:     "my-bucket",
		ObjectPath: "uploads/paper.pdf",
	})
	if !errors.Is(err, storage.ErrInvalidObjectPath) {
		t.Fatalf("err = %v, want ErrInvalidObjectPath", err)
	}
	if outcome.Status != docModel.OutcomeFailed {
		t.Errorf("outcome = %v", outcome.Status)
	}
	if len(h.docs.inserted) != 0 || len(h.docs.logs) != 0 {
		t.Error("invalid trigger must not touch the store")
	}
}

func TestProcessTruncationWarningPropagates(t *testing.T) {
	h := newHarness(nil, []byte("pdf bytes"))
	h.extractor.ExtractFn = func(_ context.Context, _ string, _ string, _ []byte) (*docModel.NormalizedDocument, error) {
		return &docModel.NormalizedDocument{
			Text:             "partial content",
			PageCount:        1500,
			ProcessingMethod: "pdftext",
			Metadata:         map[string]any{"warning": "document truncated to first 1000 of 1500 pages"},
		}, nil
	}

	outcome, err := h.coord.Process(context.Background(), trigger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(outcome.Warning, "truncated") {
		t.Errorf("warning not propagated: %+v", outcome)
	}

	var sawWarning bool
	for _, entry := range h.docs.logs {
		if entry.Stage == docModel.StageExtraction && entry.Status == docModel.StageWarning {
			sawWarning = true
		}
	}
	if !sawWarning {
		t.Error("extraction warning not logged")
	}
}
