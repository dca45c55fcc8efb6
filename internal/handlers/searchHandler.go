package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/adapter"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/adapter/utils"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/api"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/vectorstore"
)

// Searcher is the read side of the vector index the HTTP surface consumes.
type Searcher interface {
	SearchWithFilters(ctx context.Context, projectId string, query string, k int, filters vectorstore.SearchFilters) ([]vectorstore.SearchResult, error)
	GetDocumentChunks(ctx context.Context, documentId string) ([]docModel.Chunk, error)
	ProjectStats(ctx context.Context, projectId string) (vectorstore.Stats, error)
}

// DocumentReader serves the document detail endpoint.
type DocumentReader interface {
	GetById(ctx context.Context, documentId string) (*docModel.Document, error)
	ListLogs(ctx context.Context, documentId string) ([]docModel.ProcessingLogEntry, error)
}

var (
	_searcher  Searcher
	_documents DocumentReader
)

func InitSearchHandler(searcher Searcher, documents DocumentReader) {
	_searcher = searcher
	_documents = documents
}

// SearchHandler runs a project-scoped similarity query.
func SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	var requestData api.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}
	defer r.Body.Close()

	if requestData.ProjectId == "" || requestData.Query == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "", "project_id and query are required")
		return
	}

	results, err := _searcher.SearchWithFilters(r.Context(), requestData.ProjectId, requestData.Query, requestData.K, vectorstore.SearchFilters{
		DocumentIds:   requestData.DocumentIds,
		MinSimilarity: requestData.MinSimilarity,
	})
	if err != nil {
		logRH.Error("Search failed", "projectId", requestData.ProjectId, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "", "Search failed")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(requestData.ProjectId, requestData.Query, results))
}

// GetDocumentHandler returns one document record with its stage trail.
func GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	doc, err := _documents.GetById(r.Context(), id)
	if err != nil {
		logRH.Error("Document lookup failed", "documentId", id, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, id, "Lookup failed")
		return
	}
	if doc == nil {
		WriteErrorResponse(w, http.StatusNotFound, id, "Document not found")
		return
	}

	logs, err := _documents.ListLogs(r.Context(), id)
	if err != nil {
		logRH.Warn("Could not load processing logs", "documentId", id, "error", err)
	}

	writeJsonResponse(w, http.StatusOK, api.DocumentResponse{Document: doc, Logs: logs})
}

// GetDocumentChunksHandler lists the stored chunk records of one document.
func GetDocumentChunksHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	chunks, err := _searcher.GetDocumentChunks(r.Context(), id)
	if err != nil {
		logRH.Error("Chunk listing failed", "documentId", id, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, id, "Lookup failed")
		return
	}

	writeJsonResponse(w, http.StatusOK, api.DocumentChunksResponse{DocumentId: id, Chunks: chunks})
}

// GetProjectStatsHandler reports index occupancy for one project.
func GetProjectStatsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	id := utils.GetChiURLParam(r, "id")
	stats, err := _searcher.ProjectStats(r.Context(), id)
	if err != nil {
		logRH.Error("Project stats failed", "projectId", id, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, id, "Lookup failed")
		return
	}

	writeJsonResponse(w, http.StatusOK, stats)
}
