package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/BordignonMD/anti-fraud/internal/config"
	"github.com/BordignonMD/anti-fraud/internal/engine"
	"github.com/BordignonMD/anti-fraud/internal/importer"
	"github.com/BordignonMD/anti-fraud/internal/logger"
	"github.com/BordignonMD/anti-fraud/internal/store/postgres"
)

func main() {
	// Initialize structured logger
	log := logger.New()

	// Parse CLI flags
	source := flag.String("source", "", "CSV file to import (local path or gs://bucket/file.csv)")
	flag.Parse()

	if *source == "" {
		log.Fatal().Msg("Error: --source is required")
	}

	cfg := config.Load(log)
	if cfg.DatabaseURL == "" {
		log.Fatal().Msg("Error: DATABASE_URL is required for imports")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	ctx = logger.WithContext(ctx, log)

	store, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer store.Close()

	svc := engine.NewService(store, cfg.Engine())
	imp := importer.New(svc, log)

	log.Info().Str("source", *source).Msg("Starting import")

	summary, err := imp.ImportSource(ctx, *source)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	fmt.Printf("Import completed: %d rows, %d imported, %d skipped.\n",
		summary.Rows, summary.Imported, summary.Skipped)
}
