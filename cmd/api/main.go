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

	"github.com/BordignonMD/anti-fraud/internal/api/handlers"
	"github.com/BordignonMD/anti-fraud/internal/api/middleware"
	"github.com/BordignonMD/anti-fraud/internal/config"
	"github.com/BordignonMD/anti-fraud/internal/engine"
	"github.com/BordignonMD/anti-fraud/internal/importer"
	"github.com/BordignonMD/anti-fraud/internal/jobs"
	"github.com/BordignonMD/anti-fraud/internal/jobs/inmemory"
	"github.com/BordignonMD/anti-fraud/internal/logger"
	"github.com/BordignonMD/anti-fraud/internal/store/memory"
	"github.com/BordignonMD/anti-fraud/internal/store/postgres"
)

func main() {
	// Initialize logger
	log := logger.New()

	// Load configuration (.env + environment)
	cfg := config.Load(log)

	// Parse command-line flags
	port := flag.String("port", cfg.Port, "HTTP server port")
	flag.Parse()

	ctx := context.Background()

	// Initialize the transaction store
	var store engine.Store
	if cfg.DatabaseURL != "" {
		pgStore, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer pgStore.Close()
		store = pgStore
		log.Info().Msg("Using Postgres transaction store")
	} else {
		store = memory.NewStore()
		log.Warn().Msg("DATABASE_URL not set - using in-memory store, records are lost on restart")
	}

	// Wire the decision engine and the importer
	svc := engine.NewService(store, cfg.Engine())
	imp := importer.New(svc, log)

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	// Create job handler for processing import jobs
	jobHandler := func(ctx context.Context, job *jobs.ImportJob) error {
		log.Info().
			Str("job_id", job.JobID).
			Str("source", job.Source).
			Msg("Processing import job")

		summary, err := imp.ImportSource(ctx, job.Source)
		if err != nil {
			log.Error().
				Err(err).
				Str("job_id", job.JobID).
				Str("source", job.Source).
				Msg("Import failed")
			return err
		}

		job.Rows = summary.Rows
		job.Imported = summary.Imported
		job.Skipped = summary.Skipped

		log.Info().
			Str("job_id", job.JobID).
			Int("imported", summary.Imported).
			Int("skipped", summary.Skipped).
			Msg("Import completed")

		return nil
	}

	// Start job consumer in background
	go func() {
		log.Info().Msg("Starting import worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Import worker stopped with error")
		}
	}()

	// Initialize handlers
	transactionsHandler := handlers.NewTransactionsHandler(svc, store, jobQueue, log)
	jobsHandler := handlers.NewJobsHandler(jobStore, log)

	// Create router
	mux := http.NewServeMux()

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			transactionsHandler.Analyze(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/import", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			transactionsHandler.Import(w, r)
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
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", *port).Msg("Starting API server")
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
