// Command backfill-values asks the valuation oracle for items that have no estimate yet.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shinyyama/barter-backend/internal/ai"
	"github.com/shinyyama/barter-backend/internal/config"
	"github.com/shinyyama/barter-backend/internal/db"
	"github.com/shinyyama/barter-backend/internal/logger"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/shinyyama/barter-backend/internal/service"
	"github.com/sirupsen/logrus"
)

func main() {
	limit := flag.Int("limit", 100, "maximum number of items to value (0 = all)")
	flag.Parse()
	if err := run(*limit); err != nil {
		logrus.Fatalf("backfill failed: %v", err)
	}
}

func run(limit int) error {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	log := logger.New(cfg.LogLevel)

	gdb, err := db.Connect(cfg, log)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	client, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}
	gcs, err := ai.NewStorageClient(ctx, cfg.CredentialsFile)
	if err != nil {
		return fmt.Errorf("storage client: %w", err)
	}
	defer gcs.Close()

	images := ai.NewImageLoader(gcs, &http.Client{Timeout: 15 * time.Second}, cfg.ImageMaxBytes)
	valuer := ai.NewGeminiValuer(client.Models, cfg.GeminiModel, images, log)
	valuation, err := service.NewValuationService(valuer, service.ValuationConfig{
		Default:   cfg.ValuationDefault,
		Timeout:   cfg.ValuationTimeout,
		CacheSize: cfg.ValuationCacheSize,
	}, log)
	if err != nil {
		return err
	}
	items := service.NewItemService(repository.NewItemRepository(gdb), repository.NewUserRepository(gdb), valuation, log)

	start := time.Now()
	n, err := items.BackfillValues(ctx, limit)
	log.WithFields(logrus.Fields{"updated": n, "elapsed": time.Since(start).String()}).Info("backfill complete")
	return err
}
