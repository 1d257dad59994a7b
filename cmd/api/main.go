package main

import (
	"context"
	"errors"
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
	appmw "github.com/shinyyama/barter-backend/internal/middleware"
	"github.com/shinyyama/barter-backend/internal/server"
	"github.com/shinyyama/barter-backend/internal/service"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config load error: %v", err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(cfg, log)
	if err != nil {
		log.Fatalf("db connect error: %v", err)
	}
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, conn, log); err != nil {
			log.Fatalf("migrate error: %v", err)
		}
	}

	auth := appmw.NewDevAuthMiddleware()
	if cfg.FirebaseProjectID != "" {
		auth, err = appmw.NewAuthMiddleware(ctx, cfg.FirebaseProjectID, cfg.CredentialsFile)
		if err != nil {
			log.Fatalf("failed to init firebase auth: %v", err)
		}
	} else {
		log.Warnf("FIREBASE_PROJECT_ID is not set; trusting %s header", appmw.DevUserHeader)
	}

	srv, err := server.New(server.Deps{
		DB:     conn,
		Config: cfg,
		Log:    log,
		Auth:   auth,
		Valuer: newValuer(ctx, cfg, log),
	})
	if err != nil {
		log.Fatalf("server init error: %v", err)
	}

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "git_sha": cfg.GitSHA}).Info("starting server")
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server stopped: %v", err)
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("shutdown")
		}
	}
}

// newValuer returns nil when Gemini is not configured, so every estimate falls back to the default.
func newValuer(ctx context.Context, cfg *config.Config, log *logrus.Logger) service.Valuer {
	if cfg.GeminiAPIKey == "" {
		log.Warn("GEMINI_API_KEY is not set; items get the default valuation")
		return nil
	}
	client, err := ai.NewGeminiClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		log.WithError(err).Error("gemini client init failed; items get the default valuation")
		return nil
	}
	gcs, err := ai.NewStorageClient(ctx, cfg.CredentialsFile)
	if err != nil {
		log.WithError(err).Warn("storage client init failed; gs:// images are skipped")
		gcs = nil
	}
	images := ai.NewImageLoader(gcs, &http.Client{Timeout: 15 * time.Second}, cfg.ImageMaxBytes)
	return ai.NewGeminiValuer(client.Models, cfg.GeminiModel, images, log.WithField("component", "gemini"))
}
