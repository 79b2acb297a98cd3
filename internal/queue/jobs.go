package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// ReconcileCaptureTask re-reads a capture's stored media file and rewrites
	// the derived metadata from it.
	ReconcileCaptureTask = "capture:reconcile"
)

// ReconcilePayload is serialized into the task payload.
type ReconcilePayload struct {
	CaptureID string `json:"capture_id"`
}

// NewReconcileTask builds the task for a capture.
func NewReconcileTask(captureID string) (*asynq.Task, error) {
	data, err := json.Marshal(ReconcilePayload{CaptureID: captureID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(ReconcileCaptureTask, data, asynq.MaxRetry(5)), nil
}

// Client enqueues capture jobs on Redis.
type Client struct {
	client *asynq.Client
}

// NewClient wraps an asynq client.
func NewClient(client *asynq.Client) *Client {
	return &Client{client: client}
}

// EnqueueReconcile schedules a reconcile job. Jobs for one capture share a
// task id while pending, so repeated requests collapse into one.
func (c *Client) EnqueueReconcile(ctx context.Context, captureID string) error {
	task, err := NewReconcileTask(captureID)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.TaskID("reconcile:"+captureID))
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue reconcile task: %w", err)
	}
	return nil
}
