package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dvloznov/sales-ledger/internal/api/handlers"
	"github.com/dvloznov/sales-ledger/internal/api/middleware"
	"github.com/dvloznov/sales-ledger/internal/config"
	"github.com/dvloznov/sales-ledger/internal/ingest"
	"github.com/dvloznov/sales-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/sales-ledger/internal/logger"
	"github.com/dvloznov/sales-ledger/internal/report"
	"github.com/dvloznov/sales-ledger/internal/store"
	storeBQ "github.com/dvloznov/sales-ledger/internal/store/bigquery"
	"github.com/dvloznov/sales-ledger/internal/store/memory"
)

func main() {
	// Parse command-line flags
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

	ctx := context.Background()

	// Initialize the transaction store
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
		log.Warn().Msg("Using in-memory store - transactions are lost on restart")
		txStore = memory.NewStore()
	}

	if cfg.Storage.UploadBucket == "" {
		log.Warn().Msg("No upload bucket configured - async batches are staged to local temp files")
	}

	pipeline := ingest.NewPipeline(txStore, cfg.Pipeline.FlushSize, log)
	engine := report.NewEngine(txStore)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.Jobs.QueueSize, cfg.Jobs.Workers, jobStore)

	// Start workers in background to process ingest jobs
	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	removeLocal := cfg.Storage.UploadBucket == ""
	jobHandler := ingest.JobHandler(pipeline, removeLocal, log)

	log.Info().Int("workers", cfg.Jobs.Workers).Msg("Starting job workers")
	if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	// Initialize handlers
	transactionsHandler := handlers.NewTransactionsHandler(txStore, pipeline, jobQueue, cfg.Storage.UploadBucket, log)
	reportsHandler := handlers.NewReportsHandler(engine, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Transactions endpoints
	mux.HandleFunc("/api/transactions/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			transactionsHandler.Upload(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract transaction ID from path
			id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
			if id == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
				return
			}
			transactionsHandler.Get(w, r, id)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Reports endpoints
	mux.HandleFunc("/api/reports/customer-summary/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			id := strings.TrimPrefix(r.URL.Path, "/api/reports/customer-summary/")
			if id == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Customer ID is required")
				return
			}
			reportsHandler.CustomerSummary(w, r, id)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/reports/product-summary/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			id := strings.TrimPrefix(r.URL.Path, "/api/reports/product-summary/")
			if id == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Product ID is required")
				return
			}
			reportsHandler.ProductSummary(w, r, id)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobsHandler.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Extract job ID from path
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			jobsHandler.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(mux),
			),
		),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("backend", cfg.Storage.Backend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Cancel worker context
	cancelWorker()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	if err := jobQueue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close job queue")
	}

	log.Info().Msg("Server exited")
}
