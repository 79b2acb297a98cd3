// Command server runs the capture API without external services: records live
// in memory, media files on local disk served below /media/, and reconcile
// requests run on an in-process worker pool.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/CaptureVault/internal/api"
	"github.com/dharsanguruparan/CaptureVault/internal/capture"
	"github.com/dharsanguruparan/CaptureVault/internal/config"
	"github.com/dharsanguruparan/CaptureVault/internal/logging"
	"github.com/dharsanguruparan/CaptureVault/internal/metadata"
	"github.com/dharsanguruparan/CaptureVault/internal/objectstore"
	"github.com/dharsanguruparan/CaptureVault/internal/processing"
	"github.com/dharsanguruparan/CaptureVault/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger, err := logging.New(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	disk, err := objectstore.NewDisk(cfg.MediaDir, cfg.PublicURL)
	if err != nil {
		logger.Fatal("init media dir", zap.Error(err))
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := capture.NewService(storage.NewMemoryStore(), disk, metadata.NewRegistry(""), logger)
	pool := processing.New(svc, cfg.ProcessingPool, logger)
	pool.Start(ctx)
	srv := api.New(cfg, svc, logger, api.Options{
		Reconciler: pool,
		Media:      http.FileServer(http.Dir(disk.Root())),
	})
	logger.Info("media stored on disk", zap.String("dir", disk.Root()))
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
