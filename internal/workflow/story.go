package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/pipeline"
	"github.com/jatlaoui/ines/internal/stages"
)

// StoryPipelineWorkflow turns one transcript into an exported, archived
// story: five phase activities strictly in order, then export and archive.
// Each activity is durable; a worker crash resumes at the last completed
// phase instead of regenerating earlier ones.
//
// A zero-value policy takes the defaults before validation, so callers may
// omit it entirely. Phase failures finalize the task record, archive it
// best-effort, and fail the workflow with the phase's failure kind as the
// application error type. Inference is the exception: its failure degrades
// to an empty enrichment with a warning and the pipeline continues.
func StoryPipelineWorkflow(
	ctx workflow.Context,
	req domain.StoryRequest,
) (domain.PipelineResult, error) {
	// Version gate enables safe evolution and backward compatibility.
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "story-pipeline.v", workflow.DefaultVersion, currentVersion)

	if req.Policy == (domain.PipelinePolicy{}) {
		req.Policy = domain.DefaultPipelinePolicy()
	}

	// Validate request early to fail fast on invalid input.
	if err := req.Validate(); err != nil {
		return domain.PipelineResult{}, temporal.NewNonRetryableApplicationError(
			"invalid story request",
			string(domain.FailureValidation),
			err,
		)
	}

	logger := workflow.GetLogger(ctx)
	logger.Info("story pipeline started",
		"task_id", req.TaskID,
		"tenant_id", req.TenantID,
		"target_length", req.TargetLength)

	record := domain.MakeTaskRecord(req, workflow.Now(ctx).UTC())
	ctx = workflow.WithActivityOptions(ctx, phaseOptions())

	// Activity methods are referenced for their registered names only; the
	// receiver is never invoked on the workflow side.
	var acts *stages.Activities

	var analyzed domain.AnalyzeTranscriptOutput
	err := workflow.ExecuteActivity(ctx, acts.AnalyzeTranscript, domain.AnalyzeTranscriptInput{
		TaskID:        req.TaskID,
		TenantID:      req.TenantID,
		Transcript:    req.Transcript,
		CulturalFocus: req.CulturalFocus,
		Style:         req.Style,
		UserID:        req.UserID,
	}).Get(ctx, &analyzed)
	if err != nil {
		return failPipeline(ctx, record, domain.PhaseAnalysis, err)
	}
	record.AppendStage(analyzed.Stage)
	style := analyzed.EffectiveStyle
	logPhase(ctx, record, domain.PhaseAnalysis)

	var inferred domain.InferContextOutput
	err = workflow.ExecuteActivity(ctx, acts.InferContext, domain.InferContextInput{
		TaskID:     req.TaskID,
		TenantID:   req.TenantID,
		Transcript: req.Transcript,
		Analysis:   analyzed.Analysis,
	}).Get(ctx, &inferred)
	if err != nil {
		if temporal.IsCanceledError(err) {
			return domain.PipelineResult{}, err
		}
		// Inference never fails the run: substitute an empty enrichment
		// and record the degradation as a stage warning.
		logger.Warn("context inference unavailable, continuing without enrichment",
			"task_id", req.TaskID, "error", err)
		inferred = degradedInference(ctx, err)
	}
	record.AppendStage(inferred.Stage)
	enrichment := pipeline.EnrichmentWithProfile(inferred.Enrichment, analyzed.Profile)
	logPhase(ctx, record, domain.PhaseInference)

	var structured domain.BuildBlueprintOutput
	err = workflow.ExecuteActivity(ctx, acts.BuildBlueprint, domain.BuildBlueprintInput{
		TaskID:       req.TaskID,
		TenantID:     req.TenantID,
		Transcript:   req.Transcript,
		Analysis:     analyzed.Analysis,
		Enrichment:   enrichment,
		Style:        style,
		TargetLength: req.TargetLength,
		Policy:       req.Policy,
	}).Get(ctx, &structured)
	if err != nil {
		return failPipeline(ctx, record, domain.PhaseStructuring, err)
	}
	record.AppendStage(structured.Stage)
	logPhase(ctx, record, domain.PhaseStructuring)

	var composed domain.ComposeUnitsOutput
	err = workflow.ExecuteActivity(ctx, acts.ComposeUnits, domain.ComposeUnitsInput{
		TaskID:        req.TaskID,
		TenantID:      req.TenantID,
		Blueprint:     structured.Blueprint,
		Enrichment:    enrichment,
		TargetLength:  req.TargetLength,
		Style:         style,
		CulturalFocus: req.CulturalFocus,
		Policy:        req.Policy,
	}).Get(ctx, &composed)
	if err != nil {
		return failPipeline(ctx, record, domain.PhaseGeneration, err)
	}
	record.AppendStage(composed.Stage)
	logPhase(ctx, record, domain.PhaseGeneration)

	var polished domain.PolishStoryOutput
	err = workflow.ExecuteActivity(ctx, acts.PolishStory, domain.PolishStoryInput{
		TaskID:     req.TaskID,
		TenantID:   req.TenantID,
		Draft:      composed.Draft,
		Enrichment: enrichment,
		Style:      style,
		Policy:     req.Policy,
	}).Get(ctx, &polished)
	if err != nil {
		return failPipeline(ctx, record, domain.PhaseRefinement, err)
	}
	record.AppendStage(polished.Stage)
	logPhase(ctx, record, domain.PhaseRefinement)

	record.Status = domain.TaskCompleted
	record.UpdatedAt = workflow.Now(ctx).UTC()

	finishCtx := workflow.WithActivityOptions(ctx, finishOptions())

	var exported domain.ExportStoryOutput
	err = workflow.ExecuteActivity(finishCtx, acts.ExportStory, domain.ExportStoryInput{
		TaskID:   req.TaskID,
		TenantID: req.TenantID,
		Request:  req,
		Artifact: polished.Artifact,
		Stages:   record.Stages,
	}).Get(finishCtx, &exported)
	if err != nil {
		return failPipeline(ctx, record, domain.PhaseExport, err)
	}

	var archived domain.ArchiveTaskOutput
	err = workflow.ExecuteActivity(finishCtx, acts.ArchiveTask, domain.ArchiveTaskInput{
		Record:     record,
		Artifact:   polished.Artifact,
		ExportRefs: exported.Refs,
	}).Get(finishCtx, &archived)
	if err != nil {
		if temporal.IsCanceledError(err) {
			return domain.PipelineResult{}, err
		}
		logger.Error("task archive failed",
			"task_id", req.TaskID, "error", err)
		return domain.PipelineResult{}, temporal.NewNonRetryableApplicationError(
			"archive step failed",
			string(failureKindOf(err)),
			err,
		)
	}

	result := domain.PipelineResult{
		TaskID:      req.TaskID,
		Artifact:    polished.Artifact,
		Stages:      record.Stages,
		ExportRefs:  exported.Refs,
		Warnings:    collectWarnings(record.Stages),
		CompletedAt: workflow.Now(ctx).UTC(),
	}

	logger.Info("story pipeline completed",
		"task_id", req.TaskID,
		"final_score", polished.FinalScore,
		"threshold_met", polished.ThresholdMet,
		"word_count", polished.Artifact.WordCount,
		"exports", len(exported.Refs))
	return result, nil
}

// phaseOptions configures the five phase activities. Phases run multi-turn
// LLM conversations, so the start-to-close window is generous; retries stop
// immediately on the fatal failure kinds.
func phaseOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: fatalKinds(),
		},
	}
}

// finishOptions configures the export and archive activities, which only
// render and write and need a fraction of a phase's window.
func finishOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: fatalKinds(),
		},
	}
}

// fatalKinds lists the failure kinds no retry can fix. Activities tag their
// application errors with taxonomy kinds, so the retry policy stops on these
// immediately instead of burning attempts.
func fatalKinds() []string {
	return []string{
		string(domain.FailureValidation),
		string(domain.FailureAnalysis),
		string(domain.FailureGeneration),
		string(domain.FailureCollaboration),
		string(domain.FailureNotFound),
	}
}

// degradedInference fabricates the inference output for a run whose
// inference activity failed outright: empty enrichment, a degradation flag,
// and the cause preserved as a stage warning.
func degradedInference(ctx workflow.Context, cause error) domain.InferContextOutput {
	now := workflow.Now(ctx).UTC()
	return domain.InferContextOutput{
		Degraded: true,
		Stage: domain.StageResult{
			Phase:       domain.PhaseInference,
			Outputs:     map[string]any{"degraded": true},
			Progress:    domain.PhaseInference.ProgressAfter(),
			StartedAt:   now,
			CompletedAt: now,
			Warnings:    []string{"context inference unavailable: " + cause.Error()},
		},
	}
}

// failPipeline finalizes the record for a failed phase, archives it
// best-effort so the task stays queryable, and converts the activity error
// into the workflow's terminal error. Cancellation passes through untouched.
func failPipeline(
	ctx workflow.Context,
	record domain.TaskRecord,
	phase domain.PhaseKind,
	err error,
) (domain.PipelineResult, error) {
	if temporal.IsCanceledError(err) {
		return domain.PipelineResult{}, err
	}

	kind := failureKindOf(err)
	record.Status = domain.TaskFailed
	record.FailurePhase = phase
	record.FailureKind = kind
	record.UpdatedAt = workflow.Now(ctx).UTC()

	logger := workflow.GetLogger(ctx)
	logger.Error("story pipeline failed",
		"task_id", record.TaskID,
		"phase", phase,
		"failure_kind", kind,
		"error", err)

	var acts *stages.Activities
	archiveCtx := workflow.WithActivityOptions(ctx, finishOptions())
	var archived domain.ArchiveTaskOutput
	if archiveErr := workflow.ExecuteActivity(archiveCtx, acts.ArchiveTask, domain.ArchiveTaskInput{
		Record: record,
	}).Get(archiveCtx, &archived); archiveErr != nil {
		logger.Error("failed-task archive did not complete",
			"task_id", record.TaskID, "error", archiveErr)
	}

	return domain.PipelineResult{}, temporal.NewNonRetryableApplicationError(
		fmt.Sprintf("%s phase failed", phase),
		string(kind),
		err,
	)
}

// failureKindOf recovers the taxonomy kind an activity stamped on its
// application error. Errors that never reached the classification helpers,
// such as timeouts, count as transient provider failures.
func failureKindOf(err error) domain.FailureKind {
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		return domain.FailureProvider
	}
	switch kind := domain.FailureKind(appErr.Type()); kind {
	case domain.FailureValidation, domain.FailureAnalysis, domain.FailureGeneration,
		domain.FailureCollaboration, domain.FailureNotFound,
		domain.FailureExport, domain.FailureArchive, domain.FailureProvider:
		return kind
	default:
		return domain.FailureProvider
	}
}

// collectWarnings flattens the stage warnings in phase order.
func collectWarnings(stages []domain.StageResult) []string {
	var warnings []string
	for _, stage := range stages {
		warnings = append(warnings, stage.Warnings...)
	}
	return warnings
}

// logPhase emits one progress line per completed phase.
func logPhase(ctx workflow.Context, record domain.TaskRecord, phase domain.PhaseKind) {
	workflow.GetLogger(ctx).Info("phase completed",
		"task_id", record.TaskID,
		"phase", phase,
		"progress", record.Progress())
}
