package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/sales-ledger/internal/config"
	"github.com/dvloznov/sales-ledger/internal/ingest"
	"github.com/dvloznov/sales-ledger/internal/logger"
	"github.com/dvloznov/sales-ledger/internal/store"
	storeBQ "github.com/dvloznov/sales-ledger/internal/store/bigquery"
	"github.com/dvloznov/sales-ledger/internal/store/memory"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	source := flag.String("source", "", "Batch CSV to ingest: a local path or a gs:// URI")
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "Path to YAML config file (or set CONFIG_FILE env)")
	flag.Parse()

	if *source == "" {
		log.Fatal().Msg("Error: --source is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

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
		log.Warn().Msg("Using in-memory store - ingested transactions are discarded on exit")
		txStore = memory.NewStore()
	}

	pipeline := ingest.NewPipeline(txStore, cfg.Pipeline.FlushSize, log)

	log.Info().Str("source", *source).Msg("Starting ingestion")

	result, err := pipeline.IngestSource(ctx, *source)
	if err != nil {
		if result != nil {
			log.Error().Int("processed", result.Processed).Int("accepted", result.Accepted).Msg("Ingestion aborted after a partial run")
		}
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingestion completed: %d accepted, %d rejected, %d duplicates (%d rows processed)\n",
		result.Accepted, len(result.Rejected), len(result.Duplicates), result.Processed)
	for _, re := range result.Rejected {
		fmt.Printf("  row %d: %s %s\n", re.Row, re.Field, re.Reason)
	}
}
