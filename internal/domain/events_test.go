package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyKeys_Deterministic(t *testing.T) {
	taskID := uuid.New().String()

	t.Run("same inputs same key", func(t *testing.T) {
		a := PhaseCompletedIdempotencyKey(taskID, PhaseAnalysis)
		b := PhaseCompletedIdempotencyKey(taskID, PhaseAnalysis)
		assert.Equal(t, a, b)
		assert.Len(t, a, 64, "sha256 hex digest")
	})

	t.Run("different phase different key", func(t *testing.T) {
		a := PhaseCompletedIdempotencyKey(taskID, PhaseAnalysis)
		b := PhaseCompletedIdempotencyKey(taskID, PhaseInference)
		assert.NotEqual(t, a, b)
	})

	t.Run("different scope different key", func(t *testing.T) {
		a := RefinementCycleIdempotencyKey(taskID, "unit-0", 1)
		b := RefinementCycleIdempotencyKey(taskID, "unit-1", 1)
		c := RefinementCycleIdempotencyKey(taskID, "unit-0", 2)
		assert.NotEqual(t, a, b)
		assert.NotEqual(t, a, c)
	})

	t.Run("different task different key", func(t *testing.T) {
		a := ExchangeIdempotencyKey(taskID, 1)
		b := ExchangeIdempotencyKey(uuid.New().String(), 1)
		assert.NotEqual(t, a, b)
	})
}

func TestNewEventEnvelope(t *testing.T) {
	taskID := uuid.New().String()
	occurred := time.Date(2026, 5, 2, 11, 30, 0, 0, time.UTC)
	payload, err := json.Marshal(PhaseCompletedPayload{
		Phase:        PhaseAnalysis,
		Progress:     0.2,
		DurationMs:   1250,
		WarningCount: 0,
	})
	require.NoError(t, err)

	env := NewEventEnvelope(
		EventTypePhaseCompleted,
		"tenant-1", taskID, "wf-1", "run-1",
		occurred, payload, "ines-worker", nil,
	)
	env.IdempotencyKey = PhaseCompletedIdempotencyKey(taskID, PhaseAnalysis)

	require.NoError(t, env.Validate())
	assert.Equal(t, EventTypePhaseCompleted, env.EventType)
	assert.Equal(t, "tenant-1", env.TenantID)
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, occurred, env.OccurredAt)

	var decoded PhaseCompletedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &decoded))
	assert.Equal(t, PhaseAnalysis, decoded.Phase)
	assert.InDelta(t, 0.2, decoded.Progress, 1e-9)
}

func TestEventEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EventEnvelope)
		wantErr bool
	}{
		{name: "valid", mutate: func(*EventEnvelope) {}},
		{
			name:    "missing idempotency key",
			mutate:  func(e *EventEnvelope) { e.IdempotencyKey = "" },
			wantErr: true,
		},
		{
			name:    "missing producer",
			mutate:  func(e *EventEnvelope) { e.Producer = "" },
			wantErr: true,
		},
		{
			name:    "missing payload",
			mutate:  func(e *EventEnvelope) { e.Payload = nil },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			taskID := uuid.New().String()
			env := NewEventEnvelope(
				EventTypeRefinementCycle,
				"tenant-1", taskID, "wf-1", "run-1",
				time.Now(), json.RawMessage(`{"cycle_index":1,"score":7.5}`), "ines-worker", nil,
			)
			env.IdempotencyKey = RefinementCycleIdempotencyKey(taskID, "polish", 1)
			tt.mutate(&env)

			err := env.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
