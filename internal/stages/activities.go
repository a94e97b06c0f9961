// Package stages implements the Temporal activities for the story
// pipeline. Each pipeline phase runs as one activity wrapping the
// corresponding orchestrator call, plus export and archive activities for
// the finishing steps.
//
// The package integrates with the broader pipeline system by:
//   - Executing phase logic within Temporal workflow contexts
//   - Classifying failures into retryable and non-retryable errors
//   - Storing story bodies and renderings in blob storage
//   - Emitting domain events for observability and projections
//
// Activity inputs and outputs are the domain contracts, so workflow
// history stays readable and replayable.
package stages

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"

	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/export"
	"github.com/jatlaoui/ines/internal/pipeline"
	"github.com/jatlaoui/ines/internal/store"
	"github.com/jatlaoui/ines/pkg/activity"
)

// Activities provides the pipeline phases as Temporal activities. It wires
// the phase orchestrator to blob storage, the archive, and event emission.
type Activities struct {
	activity.BaseActivities

	orchestrator *pipeline.Orchestrator
	renderer     *export.Renderer
	archive      *store.ArchiveStore
	artifacts    store.ArtifactStore
	events       *EventEmitter
}

// NewActivities creates the activity set with its dependencies.
func NewActivities(
	base activity.BaseActivities,
	orchestrator *pipeline.Orchestrator,
	renderer *export.Renderer,
	archive *store.ArchiveStore,
	artifacts store.ArtifactStore,
) *Activities {
	return &Activities{
		BaseActivities: base,
		orchestrator:   orchestrator,
		renderer:       renderer,
		archive:        archive,
		artifacts:      artifacts,
		events:         NewEventEmitter(base),
	}
}

// AnalyzeTranscript runs the analysis phase: structured transcript
// analysis, profile loading, and style resolution. The analysis envelope
// is stored as a blob for projections; the canonical copy rides the
// activity output.
func (a *Activities) AnalyzeTranscript(
	ctx context.Context,
	in domain.AnalyzeTranscriptInput,
) (*domain.AnalyzeTranscriptOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(string(domain.FailureValidation), err, "invalid analysis input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting transcript analysis",
		"task_id", in.TaskID,
		"workflow_id", wfCtx.WorkflowID,
		"transcript_chars", len(in.Transcript))

	startTime := time.Now()
	out, err := a.orchestrator.AnalyzeTranscript(ctx, in)
	if err != nil {
		return nil, classify("transcript analysis", err)
	}

	ref, err := a.storeJSON(ctx, in.TaskID, domain.ArtifactAnalysis, "analysis.json", out.Analysis)
	if err != nil {
		return nil, retryable(string(domain.FailureProvider), err, "store analysis blob")
	}

	a.events.EmitPhaseCompleted(ctx, wfCtx, in.TenantID, in.TaskID, out.Stage, []string{ref.Key})

	activity.SafeLog(ctx, "Transcript analysis completed",
		"task_id", in.TaskID,
		"effective_style", out.EffectiveStyle,
		"profile_loaded", out.Profile != nil,
		"latency_ms", time.Since(startTime).Milliseconds())
	return &out, nil
}

// InferContext runs the inference phase. Collaborator failures degrade
// inside the orchestrator to an empty enrichment with a stage warning, so
// an error here means the phase itself could not run.
func (a *Activities) InferContext(
	ctx context.Context,
	in domain.InferContextInput,
) (*domain.InferContextOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(string(domain.FailureValidation), err, "invalid inference input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting context inference",
		"task_id", in.TaskID,
		"workflow_id", wfCtx.WorkflowID)

	startTime := time.Now()
	out, err := a.orchestrator.InferContext(ctx, in)
	if err != nil {
		return nil, classify("context inference", err)
	}

	a.events.EmitPhaseCompleted(ctx, wfCtx, in.TenantID, in.TaskID, out.Stage, nil)

	activity.SafeLog(ctx, "Context inference completed",
		"task_id", in.TaskID,
		"degraded", out.Degraded,
		"enrichment_empty", out.Enrichment.IsEmpty(),
		"latency_ms", time.Since(startTime).Milliseconds())
	return &out, nil
}

// BuildBlueprint runs the blueprint phase: the two-agent collaboration,
// the critic review, and the routed refinements. The finished blueprint is
// stored as a blob; exchange events carry the collaboration trace.
func (a *Activities) BuildBlueprint(
	ctx context.Context,
	in domain.BuildBlueprintInput,
) (*domain.BuildBlueprintOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(string(domain.FailureValidation), err, "invalid blueprint input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting blueprint construction",
		"task_id", in.TaskID,
		"workflow_id", wfCtx.WorkflowID,
		"target_length", in.TargetLength)

	startTime := time.Now()
	out, err := a.orchestrator.BuildBlueprint(ctx, in)
	if err != nil {
		return nil, classify("blueprint construction", err)
	}

	ref, err := a.storeJSON(ctx, in.TaskID, domain.ArtifactBlueprint, "blueprint.json", out.Blueprint)
	if err != nil {
		return nil, retryable(string(domain.FailureProvider), err, "store blueprint blob")
	}

	a.events.EmitExchanges(ctx, wfCtx, in.TenantID, in.TaskID, out.Collaboration)
	a.events.EmitPhaseCompleted(ctx, wfCtx, in.TenantID, in.TaskID, out.Stage, []string{ref.Key})

	activity.SafeLog(ctx, "Blueprint construction completed",
		"task_id", in.TaskID,
		"degraded", out.Degraded,
		"review_score", out.Review.OverallScore,
		"refinements", len(out.Refinements),
		"latency_ms", time.Since(startTime).Milliseconds())
	return &out, nil
}

// ComposeUnits runs the composition phase: every unit written and refined
// through its bounded cycle budget, then the cross-unit consistency check.
// Unit bodies are stored as blobs; cycle events carry the refinement
// trace, and units that exhausted their budget below the threshold emit
// ThresholdNotMet.
func (a *Activities) ComposeUnits(
	ctx context.Context,
	in domain.ComposeUnitsInput,
) (*domain.ComposeUnitsOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(string(domain.FailureValidation), err, "invalid composition input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting unit composition",
		"task_id", in.TaskID,
		"workflow_id", wfCtx.WorkflowID,
		"target_length", in.TargetLength)

	startTime := time.Now()
	out, err := a.orchestrator.ComposeUnits(ctx, in)
	if err != nil {
		return nil, classify("unit composition", err)
	}

	refs := make([]string, 0, len(out.Draft.Units))
	for _, unit := range out.Draft.Units {
		a.RecordHeartbeat(ctx, fmt.Sprintf("storing unit %d", unit.Index))
		name := fmt.Sprintf("%03d.txt", unit.Index)
		ref, err := a.artifacts.Put(ctx, unit.Body, domain.ArtifactUnit,
			domain.ArtifactKey(in.TaskID, domain.ArtifactUnit, name))
		if err != nil {
			return nil, retryable(string(domain.FailureProvider), err, "store unit blob")
		}
		refs = append(refs, ref.Key)
	}

	a.events.EmitUnitCycles(ctx, wfCtx, in.TenantID, in.TaskID, out.Cycles)
	a.emitUnitThresholds(ctx, wfCtx, in, out)
	a.events.EmitPhaseCompleted(ctx, wfCtx, in.TenantID, in.TaskID, out.Stage, refs)

	activity.SafeLog(ctx, "Unit composition completed",
		"task_id", in.TaskID,
		"units", len(out.Draft.Units),
		"cycles", len(out.Cycles),
		"consistency_warnings", len(out.ConsistencyWarnings),
		"latency_ms", time.Since(startTime).Milliseconds())
	return &out, nil
}

// emitUnitThresholds emits ThresholdNotMet for every unit whose final
// score stayed under the quality threshold after its cycle budget.
func (a *Activities) emitUnitThresholds(
	ctx context.Context,
	wfCtx activity.WorkflowContext,
	in domain.ComposeUnitsInput,
	out domain.ComposeUnitsOutput,
) {
	for i, score := range out.UnitScores {
		if score >= in.Policy.QualityThreshold {
			continue
		}
		used := 0
		for _, c := range out.Cycles {
			if c.UnitIndex == i {
				used++
			}
		}
		a.events.EmitThresholdNotMet(ctx, wfCtx, in.TenantID, in.TaskID,
			fmt.Sprintf("unit-%d", i), used, score, in.Policy.QualityThreshold)
	}
}

// PolishStory runs the final refinement phase and assembles the finished
// artifact. The combined story text is stored as a blob; polish cycle
// events carry the score trajectory.
func (a *Activities) PolishStory(
	ctx context.Context,
	in domain.PolishStoryInput,
) (*domain.PolishStoryOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(string(domain.FailureValidation), err, "invalid polish input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting story polish",
		"task_id", in.TaskID,
		"workflow_id", wfCtx.WorkflowID,
		"units", len(in.Draft.Units))

	startTime := time.Now()
	out, err := a.orchestrator.PolishStory(ctx, in)
	if err != nil {
		return nil, classify("story polish", err)
	}

	a.RecordHeartbeat(ctx, "storing final story")
	bodies := make([]string, len(out.Artifact.Units))
	for i, unit := range out.Artifact.Units {
		bodies[i] = unit.Body
	}
	ref, err := a.artifacts.Put(ctx, strings.Join(bodies, "\n\n"), domain.ArtifactStory,
		domain.ArtifactKey(in.TaskID, domain.ArtifactStory, "final.txt"))
	if err != nil {
		return nil, retryable(string(domain.FailureProvider), err, "store story blob")
	}

	a.events.EmitPolishCycles(ctx, wfCtx, in.TenantID, in.TaskID, out.Cycles)
	if !out.ThresholdMet {
		a.events.EmitThresholdNotMet(ctx, wfCtx, in.TenantID, in.TaskID,
			"polish", len(out.Cycles), out.FinalScore, in.Policy.QualityThreshold)
	}
	a.events.EmitPhaseCompleted(ctx, wfCtx, in.TenantID, in.TaskID, out.Stage, []string{ref.Key})

	activity.SafeLog(ctx, "Story polish completed",
		"task_id", in.TaskID,
		"baseline_score", out.BaselineScore,
		"final_score", out.FinalScore,
		"threshold_met", out.ThresholdMet,
		"latency_ms", time.Since(startTime).Milliseconds())
	return &out, nil
}

// ExportStory renders the finished artifact in each requested format and
// stores the renderings. An empty format list means every known format.
// Rendering is deterministic, so render failures are permanent; storage
// failures retry.
func (a *Activities) ExportStory(
	ctx context.Context,
	in domain.ExportStoryInput,
) (*domain.ExportStoryOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(string(domain.FailureValidation), err, "invalid export input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	formats := in.Formats
	if len(formats) == 0 {
		formats = domain.KnownExportFormats()
	}
	activity.SafeLog(ctx, "Starting story export",
		"task_id", in.TaskID,
		"workflow_id", wfCtx.WorkflowID,
		"formats", len(formats))

	startTime := time.Now()
	refs := make(map[domain.ExportFormat]domain.ArtifactRef, len(formats))
	keys := make([]string, 0, len(formats))
	for _, format := range formats {
		a.RecordHeartbeat(ctx, fmt.Sprintf("rendering %s", format))

		rendered, err := a.renderer.Render(format, in)
		if err != nil {
			return nil, nonRetryable(string(domain.FailureExport), err, fmt.Sprintf("render %s export", format))
		}

		key := domain.ArtifactKey(in.TaskID, domain.ArtifactExport, "story"+export.Extension(format))
		ref, err := a.artifacts.Put(ctx, string(rendered), domain.ArtifactExport, key)
		if err != nil {
			return nil, retryable(string(domain.FailureExport), err, "store export blob")
		}
		refs[format] = ref
		keys = append(keys, ref.Key)
	}

	a.events.EmitStoryExported(ctx, wfCtx, in.TenantID, in.TaskID,
		formats, in.Artifact.WordCount, keys)

	activity.SafeLog(ctx, "Story export completed",
		"task_id", in.TaskID,
		"formats", len(refs),
		"latency_ms", time.Since(startTime).Milliseconds())
	return &domain.ExportStoryOutput{Refs: refs}, nil
}

// ArchiveTask persists the finalized task record with its stage trace. For
// completed tasks it also stores the artifact JSON as a blob and registers
// the artifact and export refs for retrieval; failed tasks keep only the
// record.
func (a *Activities) ArchiveTask(
	ctx context.Context,
	in domain.ArchiveTaskInput,
) (*domain.ArchiveTaskOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable(string(domain.FailureValidation), err, "invalid archive input")
	}

	wfCtx := a.GetWorkflowContext(ctx)
	activity.SafeLog(ctx, "Starting task archive",
		"task_id", in.Record.TaskID,
		"workflow_id", wfCtx.WorkflowID,
		"status", in.Record.Status)

	startTime := time.Now()
	if err := a.archive.SaveTask(ctx, in.Record); err != nil {
		return nil, retryable(string(domain.FailureArchive), err, "save task record")
	}

	// Failed tasks archive the record alone; there is no artifact to keep.
	if in.Record.Status == domain.TaskCompleted {
		artifactRef, err := a.storeJSON(ctx, in.Record.TaskID, domain.ArtifactStory, "artifact.json", in.Artifact)
		if err != nil {
			return nil, retryable(string(domain.FailureArchive), err, "store artifact blob")
		}
		if err := a.archive.SaveArtifact(ctx, in.Record.TaskID, artifactRef); err != nil {
			return nil, retryable(string(domain.FailureArchive), err, "register artifact ref")
		}
	}

	for _, format := range domain.KnownExportFormats() {
		ref, ok := in.ExportRefs[format]
		if !ok {
			continue
		}
		if err := a.archive.SaveArtifact(ctx, in.Record.TaskID, ref); err != nil {
			return nil, retryable(string(domain.FailureArchive), err, "register export ref")
		}
	}

	activity.SafeLog(ctx, "Task archive completed",
		"task_id", in.Record.TaskID,
		"exports", len(in.ExportRefs),
		"latency_ms", time.Since(startTime).Milliseconds())
	return &domain.ArchiveTaskOutput{TaskID: in.Record.TaskID, ArchivedAt: time.Now()}, nil
}

// storeJSON marshals v and stores it under the task's artifact key.
func (a *Activities) storeJSON(
	ctx context.Context,
	taskID string,
	kind domain.ArtifactKind,
	name string,
	v any,
) (domain.ArtifactRef, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("encode %s: %w", name, err)
	}
	return a.artifacts.Put(ctx, string(data), kind, domain.ArtifactKey(taskID, kind, name))
}

// classify maps an orchestrator failure onto Temporal retry semantics
// through the domain taxonomy. The taxonomy kind becomes the application
// error type, so workflow retry policies can name the fatal kinds.
// Provider failures are transient and retry; every other kind is
// permanent for this task. Context cancellation passes through so the
// server sees a cancellation, not a failure.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	kind := domain.ClassifyFailure(err)
	msg := op + " failed"
	if domain.IsFatal(err) {
		return nonRetryable(string(kind), err, msg)
	}
	return retryable(string(kind), err, msg)
}

// nonRetryable wraps an error as a Temporal non-retryable application error.
// Used for permanent failures where retry would not help.
func nonRetryable(errType string, cause error, msg string) error {
	return temporal.NewNonRetryableApplicationError(msg, errType, cause)
}

// retryable wraps an error as a Temporal retryable application error.
// Used for transient failures that may succeed on retry with backoff.
func retryable(errType string, cause error, msg string) error {
	return temporal.NewApplicationError(msg, errType, cause)
}
