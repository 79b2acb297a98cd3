package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReconcileTask(t *testing.T) {
	task, err := NewReconcileTask("cap-1")
	require.NoError(t, err)
	assert.Equal(t, ReconcileCaptureTask, task.Type())

	var payload ReconcilePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "cap-1", payload.CaptureID)
	assert.JSONEq(t, `{"capture_id":"cap-1"}`, string(task.Payload()))
}
