package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvelope(id, key, eventType string) Envelope {
	return Envelope{
		ID:             id,
		Type:           eventType,
		Source:         "stage-activity",
		Version:        "1.0.0",
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		IdempotencyKey: key,
		TenantID:       "tenant-1",
		TaskID:         "task-1",
		Payload:        json.RawMessage(`{"phase":"analysis"}`),
	}
}

func TestMemoryEventSinkAppendsInOrder(t *testing.T) {
	sink := NewMemoryEventSink()
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, testEnvelope("a", "key-a", "PhaseCompleted")))
	require.NoError(t, sink.Append(ctx, testEnvelope("b", "key-b", "RefinementCycleCompleted")))

	got := sink.Events()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMemoryEventSinkDropsDuplicateIdempotencyKeys(t *testing.T) {
	sink := NewMemoryEventSink()
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, testEnvelope("a", "same-key", "PhaseCompleted")))
	require.NoError(t, sink.Append(ctx, testEnvelope("b", "same-key", "PhaseCompleted")))

	got := sink.Events()
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID, "first emission wins, retry is a no-op")
}

func TestMemoryEventSinkOfTypeFilters(t *testing.T) {
	sink := NewMemoryEventSink()
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, testEnvelope("a", "key-a", "PhaseCompleted")))
	require.NoError(t, sink.Append(ctx, testEnvelope("b", "key-b", "StoryExported")))
	require.NoError(t, sink.Append(ctx, testEnvelope("c", "key-c", "PhaseCompleted")))

	phases := sink.OfType("PhaseCompleted")
	require.Len(t, phases, 2)
	assert.Equal(t, "a", phases[0].ID)
	assert.Equal(t, "c", phases[1].ID)
	assert.Empty(t, sink.OfType("ThresholdNotMet"))
}

func TestMemoryEventSinkReset(t *testing.T) {
	sink := NewMemoryEventSink()
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, testEnvelope("a", "key-a", "PhaseCompleted")))
	sink.Reset()

	assert.Empty(t, sink.Events())
	require.NoError(t, sink.Append(ctx, testEnvelope("b", "key-a", "PhaseCompleted")))
	assert.Len(t, sink.Events(), 1, "reset clears dedup state too")
}
