// Package processing runs capture reconciliation on a goroutine pool inside
// the current process. The dev server uses it where the deployed API uses
// the Redis queue.
package processing

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

// ErrQueueFull is returned by EnqueueReconcile when the buffer is full.
var ErrQueueFull = errors.New("reconcile queue full")

// Refresher rewrites a media capture's derived metadata from its stored file.
type Refresher interface {
	RefreshMedia(ctx context.Context, id string) (*model.Capture, error)
}

// Pool consumes capture ids and reconciles them.
type Pool struct {
	captures Refresher
	logger   *zap.Logger
	queue    chan string
	workers  int
	wg       sync.WaitGroup
}

// New builds a Pool with queue capacity tied to worker count.
func New(captures Refresher, workers int, logger *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		captures: captures,
		logger:   logger,
		queue:    make(chan string, workers*4),
		workers:  workers,
	}
}

// Start launches the workers. They exit when ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
}

// Wait blocks until every worker has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// EnqueueReconcile queues a capture without blocking.
func (p *Pool) EnqueueReconcile(ctx context.Context, captureID string) error {
	select {
	case p.queue <- captureID:
		return nil
	default:
		p.logger.Warn("reconcile queue full", zap.String("capture_id", captureID))
		return ErrQueueFull
	}
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-p.queue:
			p.process(ctx, id)
		}
	}
}

func (p *Pool) process(ctx context.Context, id string) {
	if _, err := p.captures.RefreshMedia(ctx, id); err != nil {
		p.logger.Warn("reconcile failed", zap.String("capture_id", id), zap.Error(err))
		return
	}
	p.logger.Debug("capture reconciled", zap.String("capture_id", id))
}
