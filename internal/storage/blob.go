package storage

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
	"github.com/viant/afs"
)

// ErrInvalidObjectPath rejects triggers whose object path does not match
// documents/{project_id}/{filename}. Nothing is processed for these.
var ErrInvalidObjectPath = errors.New("object path must match documents/{project_id}/{filename}")

// Locator is the stable identity key of an uploaded object.
type Locator struct {
	Scheme    string
	Bucket    string
	ProjectId string
	Filename  string
}

func (l Locator) URI() string {
	return fmt.Sprintf("%s://%s/%s/%s/%s", l.Scheme, l.Bucket, config.DocumentsPrefix, l.ProjectId, l.Filename)
}

// ParseTrigger validates the inbound object-finalized event and extracts the
// tenant and filename from its path.
func ParseTrigger(event docModel.TriggerEvent) (Locator, error) {
	if event.Bucket == "" {
		return Locator{}, fmt.Errorf("%w: empty bucket", ErrInvalidObjectPath)
	}
	parts := strings.Split(event.ObjectPath, "/")
	if len(parts) != 3 || parts[0] != config.DocumentsPrefix || parts[1] == "" || parts[2] == "" {
		return Locator{}, fmt.Errorf("%w: %q", ErrInvalidObjectPath, event.ObjectPath)
	}
	return Locator{
		Scheme:    config.StorageScheme,
		Bucket:    event.Bucket,
		ProjectId: parts[1],
		Filename:  parts[2],
	}, nil
}

// MimeTypeOf resolves the MIME type from the filename extension.
func MimeTypeOf(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".odt":
		return "application/vnd.oasis.opendocument.text"
	case ".rtf":
		return "application/rtf"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".txt":
		return "text/plain"
	case ".md":
		return "text/markdown"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// BlobReader is the blob-storage read capability the pipeline consumes.
type BlobReader interface {
	Download(ctx context.Context, uri string) ([]byte, error)
}

type afsReader struct {
	fs     afs.Service
	logger *logger_i.Logger
}

// NewReader returns a reader backed by the abstract file storage service, so
// the same code path serves gs://, s3:// and file:// locators.
func NewReader() BlobReader {
	return &afsReader{
		fs:     afs.New(),
		logger: logger_i.NewLogger("BlobReader"),
	}
}

func (r *afsReader) Download(ctx context.Context, uri string) ([]byte, error) {
	r.logger.Debug("Downloading object", "uri", uri)
	data, err := r.fs.DownloadWithURL(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", uri, err)
	}
	return data, nil
}
