// Package activity carries the shared plumbing every stage activity
// needs: workflow-identity extraction, loggers and heartbeats that stay
// safe outside a real activity context, and best-effort event emission.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/jatlaoui/ines/pkg/events"
)

// testWorkflowID is the fixed fallback workflow ID used when no activity
// context is present, keeping idempotency keys deterministic under test.
const testWorkflowID = "00000000-0000-0000-0000-000000000000"

// WorkflowContext identifies the workflow execution an activity runs
// under. It exists purely for event correlation; tenant and request
// identity travel in the domain inputs instead.
type WorkflowContext struct {
	WorkflowID string
	RunID      string
	ActivityID string
}

// BaseActivities is embedded by every activity set. It holds the event
// sink and exposes the safe helpers as methods so activity code never
// touches the sink directly.
type BaseActivities struct {
	eventSink events.EventSink
}

// NewBaseActivities wires the sink in. A nil sink disables emission,
// which is the normal arrangement for unit tests.
func NewBaseActivities(sink events.EventSink) BaseActivities {
	return BaseActivities{eventSink: sink}
}

// GetWorkflowContext reads execution identifiers from the activity
// context. activity.GetInfo panics outside a worker, so a recover
// fallback substitutes stable test identifiers instead of crashing
// callers that run activities as plain functions.
func (b *BaseActivities) GetWorkflowContext(ctx context.Context) (wfCtx WorkflowContext) {
	defer func() {
		if recover() != nil {
			wfCtx = WorkflowContext{
				WorkflowID: testWorkflowID,
				RunID:      "test-run-" + uuid.NewString()[:8],
				ActivityID: "test-activity",
			}
		}
	}()

	info := activity.GetInfo(ctx)
	return WorkflowContext{
		WorkflowID: info.WorkflowExecution.ID,
		RunID:      info.WorkflowExecution.RunID,
		ActivityID: info.ActivityID,
	}
}

// EmitEventSafe appends an envelope to the sink without ever failing
// the business call: one retry after a short pause, then the failure is
// logged and dropped. Events here feed observability, not correctness,
// so losing one is preferable to failing a completed phase.
func (b *BaseActivities) EmitEventSafe(ctx context.Context, envelope events.Envelope, description string) {
	if b.eventSink == nil {
		return
	}

	const retryDelay = 200 * time.Millisecond

	err := b.eventSink.Append(ctx, envelope)
	if err != nil {
		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			SafeLogError(ctx, "Event emission cancelled: "+description,
				"event_type", envelope.Type)
			return
		}
		err = b.eventSink.Append(ctx, envelope)
	}

	if err != nil {
		SafeLogError(ctx, "Dropping event after retry: "+description,
			"event_type", envelope.Type,
			"error", err)
		return
	}
	SafeLog(ctx, "Event emitted: "+description,
		"event_type", envelope.Type,
		"idempotency_key", envelope.IdempotencyKey)
}

// RecordHeartbeat forwards to the package-level helper so embedders get
// it as a method.
func (b *BaseActivities) RecordHeartbeat(ctx context.Context, details ...any) {
	RecordHeartbeat(ctx, details...)
}

// SafeLog logs at INFO through the activity logger, swallowing the
// panic that GetLogger raises outside an activity context.
func SafeLog(ctx context.Context, msg string, keyvals ...any) {
	defer swallowNonActivityPanic()
	activity.GetLogger(ctx).Info(msg, keyvals...)
}

// SafeLogError is SafeLog at ERROR level.
func SafeLogError(ctx context.Context, msg string, keyvals ...any) {
	defer swallowNonActivityPanic()
	activity.GetLogger(ctx).Error(msg, keyvals...)
}

// RecordHeartbeat reports liveness for long activities. Outside an
// activity context the call is a no-op.
func RecordHeartbeat(ctx context.Context, details ...any) {
	defer swallowNonActivityPanic()
	activity.RecordHeartbeat(ctx, details...)
}

func swallowNonActivityPanic() {
	_ = recover()
}
