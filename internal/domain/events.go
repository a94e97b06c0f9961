package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// EventType represents the type of event emitted by the pipeline.
// Typed constants enable exhaustive switch statements in projections.
type EventType string

const (
	// EventTypePhaseCompleted is emitted once per completed pipeline phase
	// with the cumulative progress fraction.
	EventTypePhaseCompleted EventType = "PhaseCompleted"

	// EventTypeRefinementCycle is emitted once per refinement engine cycle
	// with the cycle index, score, and feedback size.
	EventTypeRefinementCycle EventType = "RefinementCycleCompleted"

	// EventTypeExchangeCompleted is emitted once per collaboration exchange.
	EventTypeExchangeCompleted EventType = "CollaborationExchangeCompleted"

	// EventTypeThresholdNotMet is emitted when a refinement run exhausts its
	// cycle budget below the quality threshold. An annotation, not a failure.
	EventTypeThresholdNotMet EventType = "ThresholdNotMet"

	// EventTypeStoryExported is emitted when the final artifact's exports
	// have been rendered and stored.
	EventTypeStoryExported EventType = "StoryExported"
)

// EventEnvelope wraps all events with consistent metadata for projection
// processing: workflow context, idempotency, sequencing, and artifact
// references.
type EventEnvelope struct {
	// IdempotencyKey ensures events are processed exactly once across
	// retries. Generated deterministically from task context and content.
	IdempotencyKey string `json:"idempotency_key" validate:"required"`

	// EventType identifies the event for routing and processing.
	EventType EventType `json:"event_type" validate:"required"`

	// Version enables event schema evolution. Starts at 1.
	Version int `json:"version" validate:"required,min=1"`

	// OccurredAt records when the event occurred. Workflow-adjacent code
	// must pass workflow-safe time.
	OccurredAt time.Time `json:"occurred_at" validate:"required"`

	// TenantID identifies the tenant for multi-tenant filtering.
	TenantID string `json:"tenant_id" validate:"required"`

	// TaskID identifies the pipeline task that produced the event.
	TaskID string `json:"task_id" validate:"required"`

	// WorkflowID identifies the workflow execution, when present.
	WorkflowID string `json:"workflow_id,omitempty"`

	// RunID identifies the specific workflow run, when present.
	RunID string `json:"run_id,omitempty"`

	// Sequence enables ordered processing. 0 until true sequencing is needed.
	Sequence int `json:"sequence" validate:"min=0"`

	// ArtifactRefs lists related blob store keys.
	ArtifactRefs []string `json:"artifact_refs,omitempty"`

	// Payload contains the event-specific data as JSON.
	Payload json.RawMessage `json:"payload" validate:"required"`

	// Producer identifies the emitting component.
	Producer string `json:"producer" validate:"required"`
}

// Validate checks if the envelope meets all requirements.
func (e *EventEnvelope) Validate() error { return validate.Struct(e) }

// PhaseCompletedPayload is the data for PhaseCompleted events.
type PhaseCompletedPayload struct {
	// Phase names the completed phase.
	Phase PhaseKind `json:"phase" validate:"required"`

	// Progress is the cumulative fraction after the phase.
	Progress float64 `json:"progress" validate:"min=0,max=1"`

	// DurationMs is the phase wall time in milliseconds.
	DurationMs int64 `json:"duration_ms" validate:"min=0"`

	// WarningCount is the number of warnings the phase raised.
	WarningCount int `json:"warning_count" validate:"min=0"`
}

// Validate checks if the payload meets all requirements.
func (p *PhaseCompletedPayload) Validate() error { return validate.Struct(p) }

// RefinementCyclePayload is the data for RefinementCycleCompleted events.
type RefinementCyclePayload struct {
	// CycleIndex is the 0-based cycle position within the run.
	CycleIndex int `json:"cycle_index" validate:"min=0"`

	// Score is the critic score of this cycle's content.
	Score float64 `json:"score" validate:"min=0,max=10"`

	// FeedbackCount is the number of issues carried to the next cycle.
	FeedbackCount int `json:"feedback_count" validate:"min=0"`

	// Accepted reports whether this cycle's content ended the run.
	Accepted bool `json:"accepted"`
}

// Validate checks if the payload meets all requirements.
func (p *RefinementCyclePayload) Validate() error { return validate.Struct(p) }

// ExchangeCompletedPayload is the data for CollaborationExchangeCompleted events.
type ExchangeCompletedPayload struct {
	// CycleIndex is the 0-based exchange position.
	CycleIndex int `json:"cycle_index" validate:"min=0"`

	// Participants names the two agents, lead first.
	Participants []string `json:"participants" validate:"required,len=2"`

	// FeedbackCount is the number of issues the lead raised this exchange.
	FeedbackCount int `json:"feedback_count" validate:"min=0"`
}

// Validate checks if the payload meets all requirements.
func (p *ExchangeCompletedPayload) Validate() error { return validate.Struct(p) }

// ThresholdNotMetPayload is the data for ThresholdNotMet events.
type ThresholdNotMetPayload struct {
	// CyclesUsed is the number of attempts the run made.
	CyclesUsed int `json:"cycles_used" validate:"min=1"`

	// FinalScore is the best the run achieved.
	FinalScore float64 `json:"final_score" validate:"min=0,max=10"`

	// Threshold is the quality threshold that was not reached.
	Threshold float64 `json:"threshold" validate:"min=0,max=10"`
}

// Validate checks if the payload meets all requirements.
func (p *ThresholdNotMetPayload) Validate() error { return validate.Struct(p) }

// StoryExportedPayload is the data for StoryExported events.
type StoryExportedPayload struct {
	// Formats lists the rendered formats.
	Formats []ExportFormat `json:"formats" validate:"required,min=1"`

	// WordCount is the finished story's word count.
	WordCount int `json:"word_count" validate:"min=0"`
}

// Validate checks if the payload meets all requirements.
func (p *StoryExportedPayload) Validate() error { return validate.Struct(p) }

// NewEventEnvelope creates an envelope with required fields populated. The
// caller sets the idempotency key afterward; occurredAt must come from a
// workflow-safe clock when emitted near workflow code.
func NewEventEnvelope(eventType EventType, tenantID, taskID, workflowID, runID string, occurredAt time.Time, payload json.RawMessage, producer string, artifactRefs []string) EventEnvelope {
	return EventEnvelope{
		EventType:    eventType,
		Version:      1,
		OccurredAt:   occurredAt,
		TenantID:     tenantID,
		TaskID:       taskID,
		WorkflowID:   workflowID,
		RunID:        runID,
		Sequence:     0,
		ArtifactRefs: artifactRefs,
		Payload:      payload,
		Producer:     producer,
	}
}

// GenerateIdempotencyKey creates a deterministic key for event deduplication.
// Retries and replays of the same logical event produce identical keys.
func GenerateIdempotencyKey(taskID, eventSuffix string) string {
	hasher := sha256.New()
	hasher.Write([]byte(taskID + eventSuffix))
	return hex.EncodeToString(hasher.Sum(nil))
}

// PhaseCompletedIdempotencyKey keys phase events: H(task_id || ":phase:" || name).
func PhaseCompletedIdempotencyKey(taskID string, phase PhaseKind) string {
	return GenerateIdempotencyKey(taskID, fmt.Sprintf(":phase:%s", phase))
}

// RefinementCycleIdempotencyKey keys cycle events:
// H(task_id || ":" || scope || ":cycle:" || index). Scope distinguishes the
// per-unit runs from the final polish run.
func RefinementCycleIdempotencyKey(taskID, scope string, index int) string {
	return GenerateIdempotencyKey(taskID, fmt.Sprintf(":%s:cycle:%d", scope, index))
}

// ExchangeIdempotencyKey keys exchange events: H(task_id || ":exchange:" || index).
func ExchangeIdempotencyKey(taskID string, index int) string {
	return GenerateIdempotencyKey(taskID, fmt.Sprintf(":exchange:%d", index))
}

// StoryExportedIdempotencyKey keys export events: H(task_id || ":export:1").
func StoryExportedIdempotencyKey(taskID string) string {
	return GenerateIdempotencyKey(taskID, ":export:1")
}
