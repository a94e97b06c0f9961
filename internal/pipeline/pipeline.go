// Package pipeline implements the five-phase story orchestrator: transcript
// analysis, context inference, collaborative structuring, unit composition,
// and whole-story refinement. The orchestrator composes the refine engine,
// the collab coordinator, and the analysis collaborators over one LLM
// client; each phase is exposed as its own method so activity wrappers can
// run phases independently with the same semantics as an in-process run.
//
// Phase failure semantics are uneven on purpose: analysis, structuring,
// generation, and refinement failures abort the task, while inference
// failures degrade to an empty enrichment and the pipeline continues.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jatlaoui/ines/internal/analysis"
	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/llm"
	"github.com/jatlaoui/ines/internal/store"
)

// Construction errors.
var (
	errNilNarrative   = errors.New("narrative analyzer is required")
	errNilInferrer    = errors.New("inference analyzer is required")
	errNilClient      = errors.New("llm client is required")
	errWrongNarrative = errors.New("narrative analyzer must have kind narrative")
	errWrongInferrer  = errors.New("inference analyzer must have kind historical")
)

// Deps carries the orchestrator's collaborators. Narrative and Inferrer are
// required and kind-checked; Profiles is optional, a nil store simply skips
// profile loading.
type Deps struct {
	// Narrative runs the phase-1 base analysis.
	Narrative analysis.Analyzer

	// Inferrer runs the phase-2 historical placement.
	Inferrer analysis.Analyzer

	// Client backs every creator, critic, and collaboration agent.
	Client llm.Client

	// Profiles loads stored user style profiles. Optional.
	Profiles store.ProfileStore

	// DefaultStyle is the narrative style used when a request names none
	// and the profile has no preference. Optional.
	DefaultStyle string

	// Logger receives orchestration logs. Defaults to slog.Default.
	Logger *slog.Logger

	// Now supplies stage timestamps. Defaults to time.Now. Activity
	// wrappers leave it nil; tests pin it for deterministic traces.
	Now func() time.Time
}

// Orchestrator drives a story request through the five phases. Stateless
// across requests and safe for concurrent use; all per-request state lives
// in the values flowing through the phase methods.
type Orchestrator struct {
	narrative    analysis.Analyzer
	inferrer     analysis.Analyzer
	client       llm.Client
	profiles     store.ProfileStore
	defaultStyle string
	logger       *slog.Logger
	now          func() time.Time
}

// NewOrchestrator builds an orchestrator, enforcing analyzer kinds so a
// miswired dependency graph fails at startup rather than mid-pipeline.
func NewOrchestrator(deps Deps) (*Orchestrator, error) {
	if deps.Narrative == nil {
		return nil, errNilNarrative
	}
	if deps.Narrative.Kind() != domain.AnalyzerNarrative {
		return nil, errWrongNarrative
	}
	if deps.Inferrer == nil {
		return nil, errNilInferrer
	}
	if deps.Inferrer.Kind() != domain.AnalyzerHistorical {
		return nil, errWrongInferrer
	}
	if deps.Client == nil {
		return nil, errNilClient
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Orchestrator{
		narrative:    deps.Narrative,
		inferrer:     deps.Inferrer,
		client:       deps.Client,
		profiles:     deps.Profiles,
		defaultStyle: deps.DefaultStyle,
		logger:       logger,
		now:          now,
	}, nil
}

// Run executes the full pipeline in-process: all five phases in order,
// stage results appended to the task record as they finish. On failure the
// record carries the failing phase and classified kind, and the returned
// error is a PhaseError wrapping the cause.
//
// The durable execution path runs the same phase methods through activities
// instead; Run exists for tests and for single-process deployments.
func (o *Orchestrator) Run(ctx context.Context, req domain.StoryRequest) (domain.StoryArtifact, domain.TaskRecord, error) {
	if err := req.Validate(); err != nil {
		return domain.StoryArtifact{}, domain.TaskRecord{}, err
	}

	record := domain.MakeTaskRecord(req, o.now())
	o.logger.InfoContext(ctx, "pipeline started",
		"task_id", req.TaskID, "tenant_id", req.TenantID, "target_length", req.TargetLength)

	analyzed, err := o.AnalyzeTranscript(ctx, domain.AnalyzeTranscriptInput{
		TaskID:        req.TaskID,
		TenantID:      req.TenantID,
		Transcript:    req.Transcript,
		CulturalFocus: req.CulturalFocus,
		Style:         req.Style,
		UserID:        req.UserID,
	})
	if err != nil {
		return o.fail(ctx, record, domain.PhaseAnalysis, err)
	}
	record.AppendStage(analyzed.Stage)

	style := analyzed.EffectiveStyle

	inferred, err := o.InferContext(ctx, domain.InferContextInput{
		TaskID:     req.TaskID,
		TenantID:   req.TenantID,
		Transcript: req.Transcript,
		Analysis:   analyzed.Analysis,
	})
	if err != nil {
		return o.fail(ctx, record, domain.PhaseInference, err)
	}
	record.AppendStage(inferred.Stage)
	enrichment := EnrichmentWithProfile(inferred.Enrichment, analyzed.Profile)

	structured, err := o.BuildBlueprint(ctx, domain.BuildBlueprintInput{
		TaskID:       req.TaskID,
		TenantID:     req.TenantID,
		Transcript:   req.Transcript,
		Analysis:     analyzed.Analysis,
		Enrichment:   enrichment,
		Style:        style,
		TargetLength: req.TargetLength,
		Policy:       req.Policy,
	})
	if err != nil {
		return o.fail(ctx, record, domain.PhaseStructuring, err)
	}
	record.AppendStage(structured.Stage)

	composed, err := o.ComposeUnits(ctx, domain.ComposeUnitsInput{
		TaskID:        req.TaskID,
		TenantID:      req.TenantID,
		Blueprint:     structured.Blueprint,
		Enrichment:    enrichment,
		TargetLength:  req.TargetLength,
		Style:         style,
		CulturalFocus: req.CulturalFocus,
		Policy:        req.Policy,
	})
	if err != nil {
		return o.fail(ctx, record, domain.PhaseGeneration, err)
	}
	record.AppendStage(composed.Stage)

	polished, err := o.PolishStory(ctx, domain.PolishStoryInput{
		TaskID:     req.TaskID,
		TenantID:   req.TenantID,
		Draft:      composed.Draft,
		Enrichment: enrichment,
		Style:      style,
		Policy:     req.Policy,
	})
	if err != nil {
		return o.fail(ctx, record, domain.PhaseRefinement, err)
	}
	record.AppendStage(polished.Stage)

	record.Status = domain.TaskCompleted
	record.UpdatedAt = o.now()
	o.logger.InfoContext(ctx, "pipeline completed",
		"task_id", req.TaskID, "final_score", polished.FinalScore,
		"threshold_met", polished.ThresholdMet, "word_count", polished.Artifact.WordCount)

	return polished.Artifact, record, nil
}

// fail finalizes a failed record and wraps the cause in a PhaseError.
func (o *Orchestrator) fail(ctx context.Context, record domain.TaskRecord, phase domain.PhaseKind, err error) (domain.StoryArtifact, domain.TaskRecord, error) {
	kind := domain.ClassifyFailure(err)
	record.Status = domain.TaskFailed
	record.FailurePhase = phase
	record.FailureKind = kind
	record.UpdatedAt = o.now()

	o.logger.ErrorContext(ctx, "pipeline failed",
		"task_id", record.TaskID, "phase", phase, "failure_kind", kind, "error", err)
	return domain.StoryArtifact{}, record, domain.NewPhaseError(phase, kind, err)
}

// beginStage opens a stage trace for the phase; Progress is fixed by the
// phase position, not by how the phase went.
func (o *Orchestrator) beginStage(phase domain.PhaseKind) domain.StageResult {
	return domain.StageResult{
		Phase:     phase,
		Progress:  phase.ProgressAfter(),
		StartedAt: o.now(),
	}
}

// EffectiveStyle resolves the style for downstream phases: an explicit
// request style always wins, an empty one falls back to the profile's
// preference when a profile exists.
func EffectiveStyle(requested string, profile *domain.StyleProfile) string {
	if requested != "" || profile == nil {
		return requested
	}
	return profile.PreferredStyle
}

// EnrichmentWithProfile folds the profile's cultural notes into the
// enrichment so later prompts see them alongside the inferred context. The
// input enrichment is not mutated.
func EnrichmentWithProfile(enr domain.ContextEnrichment, profile *domain.StyleProfile) domain.ContextEnrichment {
	if profile == nil || len(profile.CulturalNotes) == 0 {
		return enr
	}
	out := enr
	out.Notes = make([]string, 0, len(enr.Notes)+len(profile.CulturalNotes))
	out.Notes = append(out.Notes, enr.Notes...)
	out.Notes = append(out.Notes, profile.CulturalNotes...)
	return out
}
