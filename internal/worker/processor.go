package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/CaptureVault/internal/capture"
	"github.com/dharsanguruparan/CaptureVault/internal/metadata"
	"github.com/dharsanguruparan/CaptureVault/internal/model"
	"github.com/dharsanguruparan/CaptureVault/internal/queue"
	"github.com/dharsanguruparan/CaptureVault/internal/storage"
)

// Refresher rewrites a media capture's derived metadata from its stored file.
// *capture.Service satisfies it.
type Refresher interface {
	RefreshMedia(ctx context.Context, id string) (*model.Capture, error)
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	captures Refresher
	logger   *zap.Logger
}

// NewProcessor constructs a worker processor.
func NewProcessor(captures Refresher, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{captures: captures, logger: logger}
}

// Handler registers the job handlers.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ReconcileCaptureTask, p.handleReconcile)
	return mux
}

func (p *Processor) handleReconcile(ctx context.Context, task *asynq.Task) error {
	var payload queue.ReconcilePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	log := p.logger.With(zap.String("capture_id", payload.CaptureID))
	c, err := p.captures.RefreshMedia(ctx, payload.CaptureID)
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, capture.ErrNoMedia),
		metadata.IsValidationError(err):
		// Deleted, never uploaded, or stored metadata the schema rejects;
		// retrying will not help.
		log.Info("reconcile skipped", zap.Error(err))
		return fmt.Errorf("reconcile %s: %v: %w", payload.CaptureID, err, asynq.SkipRetry)
	case err != nil:
		log.Warn("reconcile failed", zap.Error(err))
		return fmt.Errorf("reconcile %s: %w", payload.CaptureID, err)
	}
	log.Info("capture reconciled", zap.Any("file_size", c.Metadata["file_size"]))
	return nil
}
