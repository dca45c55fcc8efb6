package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/adapter"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/adapter/utils"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/api"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/storage"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

var logRH *logger_i.Logger

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// TriggerHandler accepts an object-finalized notification and queues the
// ingestion pipeline for it. Responds 202 with the job id; the pipeline
// itself runs on the worker pool.
func TriggerHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", "remoteAddr", request.RemoteAddr)
		return
	}

	var requestData api.TriggerRequest
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logRH.Error("Couldn't close the trigger handler reader", "error", err)
		}
	}(request.Body)

	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil {
		logRH.Warn("Bad trigger request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "", "Bad Request")
		return
	}

	trigger := docModel.TriggerEvent{
		Bucket:     requestData.Bucket,
		ObjectPath: requestData.Name,
		Metadata:   requestData.Metadata,
	}
	if _, err := storage.ParseTrigger(trigger); err != nil {
		logRH.Warn("Rejecting trigger", "error", err, "objectPath", requestData.Name)
		WriteErrorResponse(w, http.StatusBadRequest, "", err.Error())
		return
	}

	newJob := newJobData{
		id:      utils.GetNewUUID(),
		traceId: request.Context().Value(config.TRACE_ID_KEY).(string),
		trigger: trigger,
	}
	CreateNewJob(newJob)
	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitJobResponse(newJob.id))
}

func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}
	idString := utils.GetChiURLParam(r, "id")
	result, isFound := validateId(idString, r.Context().Value(config.TRACE_ID_KEY).(string))

	logRH.Debug("Get Status Request", "URL path", r.URL.Path)
	if !isFound {
		WriteErrorResponse(w, http.StatusNotFound, idString, "Job not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToAPIResponse(result))
}
