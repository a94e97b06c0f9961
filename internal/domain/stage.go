package domain

import "time"

// PhaseKind names one stage of the five-phase pipeline. Execution order is
// fixed and strictly sequential; each phase's output is a direct input to
// the next.
type PhaseKind string

const (
	// PhaseAnalysis is phase 1: analyzer collaborators inspect the transcript.
	PhaseAnalysis PhaseKind = "analysis"

	// PhaseInference is phase 2: contextual inference over the analysis.
	PhaseInference PhaseKind = "inference"

	// PhaseStructuring is phase 3: collaborative blueprint building.
	PhaseStructuring PhaseKind = "structuring"

	// PhaseGeneration is phase 4: per-unit generation and revision.
	PhaseGeneration PhaseKind = "generation"

	// PhaseRefinement is phase 5: whole-story focus-cycle refinement.
	PhaseRefinement PhaseKind = "refinement"
)

// PhaseExport labels the post-pipeline export step in failure records. It is
// not part of PhaseSequence and contributes no progress.
const PhaseExport PhaseKind = "export"

// PhaseProgressStep is the progress fraction one completed phase contributes.
// Five phases at 0.2 each reach 1.0; progress is purely observational and
// never gates execution.
const PhaseProgressStep = 0.2

// PhaseSequence returns the phases in their fixed execution order.
func PhaseSequence() []PhaseKind {
	return []PhaseKind{
		PhaseAnalysis,
		PhaseInference,
		PhaseStructuring,
		PhaseGeneration,
		PhaseRefinement,
	}
}

// Position returns the phase's 1-based position in the pipeline, or 0 for an
// unknown phase.
func (p PhaseKind) Position() int {
	for i, phase := range PhaseSequence() {
		if phase == p {
			return i + 1
		}
	}
	return 0
}

// ProgressAfter returns the cumulative progress fraction once this phase has
// completed. Monotonically increasing along the pipeline.
func (p PhaseKind) ProgressAfter() float64 {
	return float64(p.Position()) * PhaseProgressStep
}

// Valid reports whether the phase is one of the five pipeline phases.
func (p PhaseKind) Valid() bool { return p.Position() > 0 }

// StageResult traces one orchestrator phase: its summary outputs, the
// progress fraction after it completed, and any warnings it raised. Created
// at phase start, finalized at phase end, appended to the task record.
type StageResult struct {
	// Phase names the pipeline phase.
	Phase PhaseKind `json:"phase" validate:"required,oneof=analysis inference structuring generation refinement"`

	// Outputs holds JSON-safe summary values of the phase result, keyed by
	// name. Large payloads live in the blob store; this map is the trace.
	Outputs map[string]any `json:"outputs,omitempty"`

	// Progress is the cumulative fraction after this phase, in [0,1].
	Progress float64 `json:"progress" validate:"min=0,max=1"`

	// StartedAt records when the phase began.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt records when the phase finished.
	CompletedAt time.Time `json:"completed_at"`

	// Warnings lists non-fatal findings, including degradations.
	Warnings []string `json:"warnings,omitempty"`
}

// Validate checks if the stage result meets all requirements.
func (s *StageResult) Validate() error { return validate.Struct(s) }

// TaskStatus is the lifecycle state of a pipeline task record.
type TaskStatus string

const (
	// TaskRunning marks a request still moving through phases.
	TaskRunning TaskStatus = "running"

	// TaskCompleted marks a request that produced a final artifact.
	TaskCompleted TaskStatus = "completed"

	// TaskFailed marks a request that aborted with a phase error.
	TaskFailed TaskStatus = "failed"
)

// TaskRecord is the running account of one end-to-end request. The
// orchestrator owns it exclusively for the request's lifetime; it is
// archived after export and then discarded from memory.
type TaskRecord struct {
	// TaskID identifies the request.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// TenantID identifies the tenant.
	TenantID string `json:"tenant_id" validate:"required,min=1"`

	// Request is the originating story request.
	Request StoryRequest `json:"request"`

	// Stages holds one finalized StageResult per completed phase, in order.
	Stages []StageResult `json:"stages,omitempty" validate:"dive"`

	// Status is the task lifecycle state.
	Status TaskStatus `json:"status" validate:"required,oneof=running completed failed"`

	// FailurePhase names the phase that aborted a failed task.
	FailurePhase PhaseKind `json:"failure_phase,omitempty"`

	// FailureKind classifies a failed task per the error taxonomy.
	FailureKind FailureKind `json:"failure_kind,omitempty"`

	// CreatedAt records when the task started.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt records the last stage append or status change.
	UpdatedAt time.Time `json:"updated_at"`
}

// MakeTaskRecord starts a running task record for the request.
func MakeTaskRecord(req StoryRequest, createdAt time.Time) TaskRecord {
	return TaskRecord{
		TaskID:    req.TaskID,
		TenantID:  req.TenantID,
		Request:   req,
		Status:    TaskRunning,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// Validate checks if the record meets all requirements.
func (t *TaskRecord) Validate() error { return validate.Struct(t) }

// AppendStage adds a finalized stage result and bumps UpdatedAt.
func (t *TaskRecord) AppendStage(stage StageResult) {
	t.Stages = append(t.Stages, stage)
	if stage.CompletedAt.After(t.UpdatedAt) {
		t.UpdatedAt = stage.CompletedAt
	}
}

// Progress returns the cumulative progress of the most recent stage, or 0
// when no stage has completed.
func (t TaskRecord) Progress() float64 {
	if len(t.Stages) == 0 {
		return 0
	}
	return t.Stages[len(t.Stages)-1].Progress
}

// PipelineResult is the workflow's final answer: the artifact, the full
// stage trace, and where the exports were stored.
type PipelineResult struct {
	// TaskID identifies the request.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// Artifact is the finished story.
	Artifact StoryArtifact `json:"artifact"`

	// Stages is the full phase trace of the run.
	Stages []StageResult `json:"stages,omitempty" validate:"dive"`

	// ExportRefs locates the rendered exports in the blob store, by format.
	ExportRefs map[ExportFormat]ArtifactRef `json:"export_refs,omitempty"`

	// Warnings aggregates non-fatal annotations across all phases.
	Warnings []string `json:"warnings,omitempty"`

	// CompletedAt records when the pipeline finished.
	CompletedAt time.Time `json:"completed_at"`
}

// Validate checks if the result meets all requirements.
func (r *PipelineResult) Validate() error { return validate.Struct(r) }
