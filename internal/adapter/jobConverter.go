package adapter

import (
	"fmt"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/api"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/jobModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/vectorstore"
)

func ToInitJobResponse(id string) api.InitJobResponse {
	return api.InitJobResponse{
		Id:        id,
		StatusURL: fmt.Sprintf("status/%s", id),
	}
}

func ToAPIResponse(job jobModel.Job) api.JobResponse {
	var errorPtr *api.JobOutgoingError
	if job.Error.Message != "" || job.Error.Code != 0 {
		errorPtr = &api.JobOutgoingError{
			Code:    job.Error.Code,
			Message: job.Error.Message,
			Retry:   job.Error.Retry,
		}
	}

	result := api.Result{
		Status: string(job.Status),
		Ingest: toIngestResult(job),
	}

	return api.JobResponse{
		Id:        job.Id,
		StartTime: job.CreatedTime,
		EndTime:   job.EndTime,
		Error:     errorPtr,
		Result:    result,
	}
}

func toIngestResult(job jobModel.Job) *api.IngestResult {
	if job.Outcome == nil {
		return nil
	}
	return &api.IngestResult{
		Status:           string(job.Outcome.Status),
		DocumentId:       job.Outcome.DocumentId,
		Filename:         job.Outcome.Filename,
		ChunksCount:      job.Outcome.ChunkCount,
		ProcessingMethod: job.Outcome.ProcessingMethod,
		ProcessingTimeMs: job.Outcome.ProcessingTimeMs,
		IsUpdate:         job.Outcome.IsUpdate,
		Warning:          job.Outcome.Warning,
		Reason:           job.Outcome.Reason,
	}
}

func ToSearchResponse(projectId string, query string, results []vectorstore.SearchResult) api.SearchResponse {
	matches := make([]api.SearchMatch, 0, len(results))
	for _, r := range results {
		matches = append(matches, api.SearchMatch{
			DocumentId: r.DocumentId,
			Filename:   r.Filename,
			ChunkIndex: r.ChunkIndex,
			Content:    r.Content,
			Similarity: r.Similarity,
			Metadata:   r.Metadata,
		})
	}
	return api.SearchResponse{
		ProjectId: projectId,
		Query:     query,
		Matches:   matches,
	}
}

func BadRequest(id string, errorMessage string, code int) api.JobResponse {
	return api.JobResponse{
		Id:        id,
		StartTime: time.Time{},
		EndTime:   time.Time{},
		Result: api.Result{
			Status: string(api.JobStatusError),
		},
		Error: &api.JobOutgoingError{
			Code:    code,
			Message: errorMessage,
			Retry:   false,
		},
	}
}
