package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/sales-ledger/internal/config"
	"github.com/dvloznov/sales-ledger/internal/ingest"
	"github.com/dvloznov/sales-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/sales-ledger/internal/logger"
	"github.com/dvloznov/sales-ledger/internal/store"
	storeBQ "github.com/dvloznov/sales-ledger/internal/store/bigquery"
	"github.com/dvloznov/sales-ledger/internal/store/memory"
)

func main() {
	var (
		configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML config file (or set CONFIG_FILE env)")
	)
	flag.Parse()

	// Initialize logger
	log := logger.New()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A standalone worker needs a durable backend; an in-memory store would
	// not be visible to the API process.
	var txStore store.TransactionStore
	switch cfg.Storage.Backend {
	case "bigquery":
		bqStore, err := storeBQ.NewStore(ctx, cfg.Storage.BigQuery.Project, cfg.Storage.BigQuery.Dataset, cfg.Storage.BigQuery.Table)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery store")
		}
		defer bqStore.Close()
		txStore = bqStore
	default:
		log.Warn().Msg("Using in-memory store - ingested transactions are only visible to this process")
		txStore = memory.NewStore()
	}

	pipeline := ingest.NewPipeline(txStore, cfg.Pipeline.FlushSize, log)

	// Initialize job store and queue
	// In production, this would be replaced with Cloud Tasks or Pub/Sub
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, cfg.Jobs.Workers, jobStore)

	log.Info().Msg("Starting worker service")

	removeLocal := cfg.Storage.UploadBucket == ""
	handler := ingest.JobHandler(pipeline, removeLocal, log)

	// Start consuming jobs
	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")

	// Cancel context to stop workers
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	// Close the queue
	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Worker service exited")
}
