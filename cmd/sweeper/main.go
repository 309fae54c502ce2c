package main

import (
	"fmt"
	"os"

	"chainlog/internal/config"
	"chainlog/internal/database"
	"chainlog/internal/logger"
	"chainlog/internal/services"
)

// The sweeper is meant to run on a schedule (cron or similar). Each run
// moves up to one batch of expired entries per tenant into the archive
// and exits; repeated runs drain the backlog.
func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Sweeper error: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	archiveService := services.NewArchiveService(dbManager.DB(), cfg.SweeperBatchSize)

	total, err := archiveService.SweepAll()
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	logger.Get().Infow("Sweep completed", "archived_total", total)
	return nil
}
