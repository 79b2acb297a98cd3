package processing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharsanguruparan/CaptureVault/internal/model"
)

type recordingRefresher struct {
	mu   sync.Mutex
	ids  []string
	done chan struct{}
	err  error
}

func (r *recordingRefresher) RefreshMedia(ctx context.Context, id string) (*model.Capture, error) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &model.Capture{ID: id}, nil
}

func TestPool_ProcessesQueuedIDs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &recordingRefresher{done: make(chan struct{}, 2)}
	p := New(r, 2, nil)
	p.Start(ctx)

	require.NoError(t, p.EnqueueReconcile(ctx, "a"))
	require.NoError(t, p.EnqueueReconcile(ctx, "b"))
	for i := 0; i < 2; i++ {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatal("reconcile not processed")
		}
	}
	cancel()
	p.Wait()
	assert.ElementsMatch(t, []string{"a", "b"}, r.ids)
}

func TestPool_FailuresDoNotStopWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &recordingRefresher{done: make(chan struct{}, 2), err: errors.New("stat failed")}
	p := New(r, 1, nil)
	p.Start(ctx)

	require.NoError(t, p.EnqueueReconcile(ctx, "a"))
	require.NoError(t, p.EnqueueReconcile(ctx, "b"))
	for i := 0; i < 2; i++ {
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
			t.Fatal("reconcile not processed")
		}
	}
}

func TestPool_QueueFull(t *testing.T) {
	p := New(&recordingRefresher{}, 1, nil)
	// Not started: the buffer of four fills up.
	for i := 0; i < 4; i++ {
		require.NoError(t, p.EnqueueReconcile(context.Background(), "id"))
	}
	assert.ErrorIs(t, p.EnqueueReconcile(context.Background(), "id"), ErrQueueFull)
}
