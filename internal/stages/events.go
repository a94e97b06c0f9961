package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/pkg/activity"
	"github.com/jatlaoui/ines/pkg/events"
)

// Producer names for event attribution. Phase and refinement events come
// from the stage activities; export events from the export activity.
const (
	producerStage  = "stage-activity"
	producerExport = "export-activity"
)

// EventEmitter handles domain event emission for the pipeline activities.
// It bridges between domain event creation and the base activity event
// infrastructure, marshaling typed payloads into envelopes with
// deterministic idempotency keys so retried activities emit duplicates
// that downstream consumers can collapse.
//
// All event emission is best-effort. Failures are logged without
// affecting the core activity operation.
type EventEmitter struct{ base activity.BaseActivities }

// NewEventEmitter creates an EventEmitter over the base activity
// infrastructure.
func NewEventEmitter(base activity.BaseActivities) *EventEmitter {
	return &EventEmitter{base: base}
}

// EmitPhaseCompleted emits one PhaseCompleted event for a finalized stage.
// Artifact refs produced during the phase ride along so projections can
// fetch full content without re-deriving blob keys.
func (e *EventEmitter) EmitPhaseCompleted(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	tenantID, taskID string,
	stage domain.StageResult,
	artifactRefs []string,
) {
	duration := stage.CompletedAt.Sub(stage.StartedAt)
	if duration < 0 {
		duration = 0
	}

	payload := domain.PhaseCompletedPayload{
		Phase:        stage.Phase,
		Progress:     stage.Progress,
		DurationMs:   duration.Milliseconds(),
		WarningCount: len(stage.Warnings),
	}
	e.emit(ctx, wfCtx, tenantID, taskID,
		domain.EventTypePhaseCompleted,
		domain.PhaseCompletedIdempotencyKey(taskID, stage.Phase),
		producerStage, artifactRefs, &payload)
}

// EmitUnitCycles emits one RefinementCycleCompleted event per recorded
// unit refinement cycle. The scope embedded in the idempotency key keeps
// cycles of different units distinct.
func (e *EventEmitter) EmitUnitCycles(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	tenantID, taskID string,
	cycles []domain.UnitCycleTrace,
) {
	for _, c := range cycles {
		payload := domain.RefinementCyclePayload{
			CycleIndex:    c.CycleIndex,
			Score:         c.Score,
			FeedbackCount: c.FeedbackCount,
			Accepted:      c.Accepted,
		}
		scope := fmt.Sprintf("unit-%d", c.UnitIndex)
		e.emit(ctx, wfCtx, tenantID, taskID,
			domain.EventTypeRefinementCycle,
			domain.RefinementCycleIdempotencyKey(taskID, scope, c.CycleIndex),
			producerStage, nil, &payload)
	}
}

// EmitPolishCycles emits one RefinementCycleCompleted event per polish
// cycle under the "polish" scope. The last cycle is the one whose content
// the run kept.
func (e *EventEmitter) EmitPolishCycles(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	tenantID, taskID string,
	cycles []domain.PolishCycle,
) {
	for i, c := range cycles {
		payload := domain.RefinementCyclePayload{
			CycleIndex: i,
			Score:      c.ScoreAfter,
			Accepted:   i == len(cycles)-1,
		}
		e.emit(ctx, wfCtx, tenantID, taskID,
			domain.EventTypeRefinementCycle,
			domain.RefinementCycleIdempotencyKey(taskID, "polish", i),
			producerStage, nil, &payload)
	}
}

// EmitExchanges emits one CollaborationExchangeCompleted event per
// exchange cycle of a coordinator run.
func (e *EventEmitter) EmitExchanges(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	tenantID, taskID string,
	record domain.CollaborationRecord,
) {
	for _, c := range record.FeedbackCycles {
		payload := domain.ExchangeCompletedPayload{
			CycleIndex:    c.CycleIndex,
			Participants:  record.Participants,
			FeedbackCount: len(c.Feedback),
		}
		e.emit(ctx, wfCtx, tenantID, taskID,
			domain.EventTypeExchangeCompleted,
			domain.ExchangeIdempotencyKey(taskID, c.CycleIndex),
			producerStage, nil, &payload)
	}
}

// EmitThresholdNotMet emits a ThresholdNotMet event for a refinement run
// that exhausted its cycle budget below the quality threshold. Scope
// distinguishes the per-unit runs from the final polish run.
func (e *EventEmitter) EmitThresholdNotMet(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	tenantID, taskID, scope string,
	cyclesUsed int,
	finalScore, threshold float64,
) {
	payload := domain.ThresholdNotMetPayload{
		CyclesUsed: cyclesUsed,
		FinalScore: finalScore,
		Threshold:  threshold,
	}
	e.emit(ctx, wfCtx, tenantID, taskID,
		domain.EventTypeThresholdNotMet,
		domain.GenerateIdempotencyKey(taskID, fmt.Sprintf(":%s:threshold", scope)),
		producerStage, nil, &payload)
}

// EmitStoryExported emits the single StoryExported event for a task once
// all requested renderings are stored. The stored blob keys ride in the
// envelope's artifact refs.
func (e *EventEmitter) EmitStoryExported(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	tenantID, taskID string,
	formats []domain.ExportFormat,
	wordCount int,
	artifactRefs []string,
) {
	payload := domain.StoryExportedPayload{
		Formats:   formats,
		WordCount: wordCount,
	}
	e.emit(ctx, wfCtx, tenantID, taskID,
		domain.EventTypeStoryExported,
		domain.StoryExportedIdempotencyKey(taskID),
		producerExport, artifactRefs, &payload)
}

// emit marshals the payload, wraps it in a domain envelope, and hands the
// converted envelope to the base activity infrastructure.
func (e *EventEmitter) emit(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	tenantID, taskID string,
	eventType domain.EventType,
	idempotencyKey, producer string,
	artifactRefs []string,
	payload any,
) {
	raw, err := json.Marshal(payload)
	if err != nil {
		activity.SafeLogError(ctx, fmt.Sprintf("Failed to marshal %s payload", eventType),
			"task_id", taskID,
			"error", err)
		return
	}

	domainEvent := domain.NewEventEnvelope(
		eventType, tenantID, taskID,
		wfCtx.WorkflowID, wfCtx.RunID,
		time.Now(), raw, producer, artifactRefs)
	domainEvent.IdempotencyKey = idempotencyKey

	e.base.EmitEventSafe(ctx, convertDomainEventToEnvelope(domainEvent), string(eventType))
}

// convertDomainEventToEnvelope converts domain.EventEnvelope to
// pkg/events.Envelope. This bridges the domain event system with the base
// activity infrastructure.
func convertDomainEventToEnvelope(domainEvent domain.EventEnvelope) events.Envelope {
	return events.Envelope{
		ID:             domainEvent.IdempotencyKey, // Deterministic IDs collapse replays.
		Type:           string(domainEvent.EventType),
		Source:         domainEvent.Producer,
		Version:        fmt.Sprintf("%d.0.0", domainEvent.Version),
		Timestamp:      domainEvent.OccurredAt,
		IdempotencyKey: domainEvent.IdempotencyKey,
		TenantID:       domainEvent.TenantID,
		TaskID:         domainEvent.TaskID,
		WorkflowID:     domainEvent.WorkflowID,
		RunID:          domainEvent.RunID,
		ArtifactRefs:   domainEvent.ArtifactRefs,
		Payload:        domainEvent.Payload,
	}
}
