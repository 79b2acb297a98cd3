// Command api serves the capture API backed by Postgres and MinIO. Reconcile
// requests are queued on Redis for the worker.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CaptureVault/internal/api"
	"github.com/dharsanguruparan/CaptureVault/internal/capture"
	"github.com/dharsanguruparan/CaptureVault/internal/config"
	"github.com/dharsanguruparan/CaptureVault/internal/database"
	"github.com/dharsanguruparan/CaptureVault/internal/logging"
	"github.com/dharsanguruparan/CaptureVault/internal/metadata"
	"github.com/dharsanguruparan/CaptureVault/internal/queue"
	"github.com/dharsanguruparan/CaptureVault/internal/repository"
	"github.com/dharsanguruparan/CaptureVault/internal/s3storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	store, err := s3storage.New(cfg)
	if err != nil {
		logger.Fatal("init storage", zap.Error(err))
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Fatal("ensure bucket", zap.Error(err))
	}

	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	svc := capture.NewService(
		repository.NewCaptureRepository(pool),
		store,
		metadata.NewRegistry(store.Bucket()),
		logger,
	)
	srv := api.New(cfg, svc, logger, api.Options{Reconciler: queue.NewClient(client)})
	if err := srv.Run(ctx); err != nil {
		logger.Error("api stopped", zap.Error(err))
		os.Exit(1)
	}
}
