package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/data/redisStore"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/docModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestDocumentStatusPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisStore.NewTestStore(client)

	notifier := NewRedisNotifier(store, "document-status")

	sub := client.Subscribe(context.Background(), "document-status")
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribing: %v", err)
	}

	notifier.DocumentStatus(context.Background(), docModel.StatusNotification{
		DocumentId: "doc-1",
		ProjectId:  "proj-1",
		Status:     "completed",
		Timestamp:  time.Now(),
	})

	select {
	case msg := <-sub.Channel():
		var got docModel.StatusNotification
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatalf("unmarshalling payload: %v", err)
		}
		if got.DocumentId != "doc-1" || got.Status != "completed" {
			t.Errorf("unexpected notification: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestDocumentStatusSwallowsPublishFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := redisStore.NewTestStore(client)
	notifier := NewRedisNotifier(store, "document-status")

	mr.Close()

	// must not panic or block
	notifier.DocumentStatus(context.Background(), docModel.StatusNotification{DocumentId: "doc-1"})
}
