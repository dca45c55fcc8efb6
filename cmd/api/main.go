package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/chunking"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/config"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/data/docstore"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/data/pgpool"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/data/redisStore"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/data/store"
	jobmodel "github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/domain/jobModel"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/embedding"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/embedding/googleEmbedding"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/embedding/openaiEmbedding"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/extraction"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/handlers"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/ingestion"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/job"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/notify"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/server"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/storage"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/vectorstore"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/internal/worker"
	"github.com/OZShubham/document-ingestion-pgvector-pipeline/pkg/logger_i"
)

var (
	listenAddr        string
	requestCount      int64
	stopWorkerChannel chan bool
	workerWaitGroup   sync.WaitGroup
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	//init buffered job channel
	jobChannel := make(chan jobmodel.Job, config.BufferLimit)
	dispatcherChannel := make(chan bool, 1)
	stopWorkerChannel = make(chan bool, 1)

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//init job service and job store
	var jobStore jobmodel.JobStore
	if redisJobStore := store.GetRedisJobStore(serviceContext); redisJobStore != nil {
		jobStore = redisJobStore
	} else {
		logger.Error("Redis job store is offline, falling back to in-memory")
		jobStore = store.InitInMemoryJobStore()
	}
	logger.Info("Starting job service")
	service := job.InitJobService(job.ServiceConfig{
		JobChannel:        jobChannel,
		RequestCount:      requestCount,
		DispatcherChannel: dispatcherChannel,
		JobStore:          jobStore,
	})

	//postgres pool bound to the service context
	poolManager := pgpool.NewManager(pgpool.PgxFactory(config.PostgresDSN()))
	pool, err := poolManager.Get(serviceContext)
	if err != nil {
		logger.Error("Could not connect to postgres. Shutting down.", "error", err)
		return
	}
	defer poolManager.Close()

	embedder := buildEmbedder(serviceContext, logger)
	if embedder == nil {
		logger.Error("Embedding provider failed to initialize. Shutting down.")
		return
	}

	documentStore := docstore.NewStore(pool)
	vectorIndex := vectorstore.NewIndex(pool, embedder)
	if err := documentStore.EnsureSchema(serviceContext); err != nil {
		logger.Error("Document schema init failed. Shutting down.", "error", err)
		return
	}
	if err := vectorIndex.EnsureSchema(serviceContext); err != nil {
		logger.Error("Vector schema init failed. Shutting down.", "error", err)
		return
	}

	var notifier notify.Notifier = notify.NoopNotifier{}
	if rs := redisStore.GetRedisStore(serviceContext, config.RedisJobStore); rs != nil {
		notifier = notify.NewRedisNotifier(rs, config.NotifyChannel)
	}

	coordinator := ingestion.NewCoordinator(ingestion.Deps{
		Docs:      documentStore,
		Index:     vectorIndex,
		Extractor: extraction.NewService(buildGeminiBackend(serviceContext, logger)),
		Chunker:   chunking.NewFactory(embedder),
		Blobs:     storage.NewReader(),
		Notifier:  notifier,
	})

	handlers.InitJobHandler(service)
	handlers.InitSearchHandler(vectorIndex, documentStore)

	//init worker pool
	worker.InitServices(service, coordinator)
	worker.InitWorkerPool(stopWorkerChannel, &workerWaitGroup)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		WorkerStop:       stopWorkerChannel,
		Group:            &workerWaitGroup,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

func buildEmbedder(ctx context.Context, logger *logger_i.Logger) embedding.Embedder {
	switch config.EmbeddingProvider() {
	case "openai":
		e, err := openaiEmbedding.NewOpenAIEmbedder(config.OpenAIAPIKey(), config.OpenAIEmbeddingModel)
		if err != nil {
			logger.Error("OpenAI embedder init failed", "error", err)
			return nil
		}
		return e
	default:
		e, err := googleEmbedding.NewGoogleEmbedder(ctx, config.GoogleEmbeddingModel, config.GoogleAPIKey())
		if err != nil {
			logger.Error("Google embedder init failed", "error", err)
			return nil
		}
		return e
	}
}

// buildGeminiBackend returns nil when no API key is configured; extraction
// then runs on the local backends only.
func buildGeminiBackend(ctx context.Context, logger *logger_i.Logger) extraction.Backend {
	apikey := config.GoogleAPIKey()
	if apikey == "" {
		logger.Warn("GOOGLE_API_KEY not set, premium extraction disabled")
		return nil
	}
	backend, err := extraction.NewGeminiBackend(ctx, config.GeminiModelName, apikey)
	if err != nil {
		logger.Warn("Gemini extraction init failed, continuing without it", "error", err)
		return nil
	}
	return backend
}
