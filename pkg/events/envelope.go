// Package events defines the envelope that every pipeline event rides
// in and the sink interface events are written through. Payloads stay
// opaque JSON; the envelope carries the metadata consumers route and
// deduplicate on.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Envelope is the wire shape for one emitted event. Activities retried
// by Temporal re-emit the same envelope with the same idempotency key,
// so consumers collapse duplicates by key rather than relying on
// exactly-once delivery.
type Envelope struct {
	// ID uniquely identifies the event. Emitters here set it to the
	// idempotency key so replays produce byte-identical envelopes.
	ID string `json:"id"`

	// Type routes the event, e.g. "PhaseCompleted" or
	// "RefinementCycleCompleted".
	Type string `json:"type"`

	// Source names the emitting component ("stage-activity",
	// "export-activity").
	Source string `json:"source"`

	// Version is the payload schema version, semver-formatted.
	Version string `json:"version"`

	// Timestamp is the emission wall-clock time.
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey is derived deterministically from the task and the
	// event's position in the pipeline (phase name, cycle index, scope).
	IdempotencyKey string `json:"idempotency_key"`

	// TenantID scopes the event for multi-tenant consumers.
	TenantID string `json:"tenant_id"`

	// TaskID names the pipeline task; every event in this system is
	// task-scoped.
	TaskID string `json:"task_id"`

	// WorkflowID and RunID correlate the event with the Temporal
	// execution that produced it.
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`

	// ArtifactRefs lists blob-store keys written during the work the
	// event reports, so projections can fetch bodies without
	// re-deriving keys.
	ArtifactRefs []string `json:"artifact_refs,omitempty"`

	// Payload is the typed event body, schema keyed by Type+Version.
	Payload json.RawMessage `json:"payload"`
}

// EventSink receives envelopes for downstream delivery. Implementations
// must treat a duplicate idempotency key as a no-op and should return
// promptly; emission is best-effort and callers never fail their
// primary operation over a sink error.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards every envelope. It is the production default
// until a projection consumer exists, and the quiet choice for tests.
type NoOpEventSink struct{}

// Append implements EventSink.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error { return nil }

// NewNoOpEventSink returns a sink that drops everything.
func NewNoOpEventSink() EventSink { return &NoOpEventSink{} }
