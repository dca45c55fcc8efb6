package customHttpClient

import (
	"net/http"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
)

var customTransport = &http.Transport{
	MaxIdleConns:        config.MaxIdleConns,
	MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
	IdleConnTimeout:     config.IdleConnTimeout,
}

// Client returns an http client with pooled connections for the embedding
// and extraction providers.
func Client() *http.Client {
	return &http.Client{Transport: customTransport}
}
