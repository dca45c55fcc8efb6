package notify

import (
	"context"
	"encoding/json"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/data/redisStore"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

// Notifier broadcasts document status transitions. Publishing is best
// effort: a delivery failure never fails the pipeline.
type Notifier interface {
	DocumentStatus(ctx context.Context, notification docModel.StatusNotification)
}

type RedisNotifier struct {
	store   *redisStore.Store
	channel string
	logger  *logger_i.Logger
}

func NewRedisNotifier(store *redisStore.Store, channel string) *RedisNotifier {
	return &RedisNotifier{
		store:   store,
		channel: channel,
		logger:  logger_i.NewLogger("Notifier"),
	}
}

func (n *RedisNotifier) DocumentStatus(ctx context.Context, notification docModel.StatusNotification) {
	payload, err := json.Marshal(notification)
	if err != nil {
		n.logger.Warn("Dropping unmarshalable notification", "documentId", notification.DocumentId, "error", err)
		return
	}
	if err := n.store.Publish(ctx, n.channel, payload); err != nil {
		n.logger.Warn("Failed publishing status notification", "documentId", notification.DocumentId, "error", err)
		return
	}
	n.logger.Debug("Status notification published", "documentId", notification.DocumentId, "status", notification.Status)
}

// NoopNotifier stands in when redis is unavailable.
type NoopNotifier struct{}

func (NoopNotifier) DocumentStatus(_ context.Context, _ docModel.StatusNotification) {}
