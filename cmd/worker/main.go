package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/docpipeline/internal/config"
	"github.com/nikhilbhutani/docpipeline/internal/database"
	"github.com/nikhilbhutani/docpipeline/internal/document"
	"github.com/nikhilbhutani/docpipeline/internal/extraction"
	"github.com/nikhilbhutani/docpipeline/internal/idempotency"
	"github.com/nikhilbhutani/docpipeline/internal/llm"
	"github.com/nikhilbhutani/docpipeline/internal/ocr"
	"github.com/nikhilbhutani/docpipeline/internal/queue"
	"github.com/nikhilbhutani/docpipeline/internal/queue/workers"
	"github.com/nikhilbhutani/docpipeline/internal/resilience"
	"github.com/nikhilbhutani/docpipeline/internal/storage"
	"github.com/nikhilbhutani/docpipeline/internal/summarize"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateWorker(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer rdb.Close()

	var guard idempotency.Guard
	switch cfg.Idempotency.Backend {
	case "memory":
		mg := idempotency.NewMemoryGuard(cfg.Idempotency.TTL)
		defer mg.Close()
		guard = mg
	default:
		guard = idempotency.NewRedisGuard(rdb, cfg.Idempotency.TTL)
	}

	envelopes := resilience.NewRegistry(cfg.Resilience)
	blobs := storage.NewSupabaseStorage(cfg.Storage.SupabaseURL, cfg.Storage.SupabaseKey)
	recordStore := document.NewPgStore(db)
	queueClient := queue.NewClient(cfg.Redis, cfg.Pipeline)
	defer queueClient.Close()

	engine := ocr.NewTesseractEngine(cfg.Extraction.TesseractPath, cfg.Extraction.Language)
	if !engine.IsAvailable() {
		slog.Warn("tesseract binary not found, OCR pages will fail", "path", cfg.Extraction.TesseractPath)
	}
	extractor := extraction.NewService(cfg.Extraction, engine, envelopes)

	var provider llm.Provider
	if cfg.Summarizer.Configured() {
		provider, err = llm.NewProvider(cfg.Summarizer)
		if err != nil {
			slog.Error("failed to build summarizer provider", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("summarizer not configured, summaries will fail with a reason")
	}
	summarizer := summarize.NewService(cfg.Summarizer, provider, envelopes)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			// Concurrency bounds in-flight messages per worker process,
			// which is the backpressure against the broker.
			Concurrency: cfg.Pipeline.Concurrency,
			Queues: map[string]int{
				queue.QueueExtraction:    4,
				queue.QueueSummarization: 3,
				queue.QueueResults:       3,
			},
		},
	)

	registry := queue.NewHandlersRegistry()

	extractionWorker := workers.NewExtractionWorker(guard, blobs, extractor, recordStore, queueClient, envelopes)
	summarizationWorker := workers.NewSummarizationWorker(guard, summarizer, recordStore, queueClient)
	resultWorker := workers.NewResultWorker(guard, recordStore)

	registry.Register(queue.TypeDocumentCreated, asynq.HandlerFunc(extractionWorker.ProcessTask))
	registry.Register(queue.TypeExtractionCompleted, asynq.HandlerFunc(summarizationWorker.ProcessTask))
	registry.Register(queue.TypeSummaryResult, asynq.HandlerFunc(resultWorker.ProcessTask))

	slog.Info("starting pipeline worker", "concurrency", cfg.Pipeline.Concurrency)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
