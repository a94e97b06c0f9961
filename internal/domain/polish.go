package domain

// PolishFocus names the fixed per-cycle focus of the final whole-story
// refinement. Focus is assigned by cycle position, never by score.
type PolishFocus string

const (
	// FocusStructure is cycle 1: pacing, ordering, transitions.
	FocusStructure PolishFocus = "structure"

	// FocusContent is cycle 2: detail, depth, completeness.
	FocusContent PolishFocus = "content"

	// FocusStyle is cycle 3: language, rhythm, register.
	FocusStyle PolishFocus = "style"
)

// PolishSequence returns the fixed positional focus order of the final
// refinement phase.
func PolishSequence() []PolishFocus {
	return []PolishFocus{FocusStructure, FocusContent, FocusStyle}
}

// PolishCycle records one focus cycle of the final refinement: the scores
// before and after, and the improvement that gates continuation.
type PolishCycle struct {
	// CycleIndex is the 1-based cycle position.
	CycleIndex int `json:"cycle_index" validate:"min=1"`

	// Focus is the positional focus of this cycle.
	Focus PolishFocus `json:"focus" validate:"required,oneof=structure content style"`

	// ScoreBefore is the critic score entering the cycle.
	ScoreBefore float64 `json:"score_before" validate:"min=0,max=10"`

	// ScoreAfter is the critic score of the cycle's output.
	ScoreAfter float64 `json:"score_after" validate:"min=0,max=10"`

	// Improvement is ScoreAfter minus ScoreBefore. A cycle improving by less
	// than the policy delta stops the loop.
	Improvement float64 `json:"improvement"`
}

// PolishStoryInput is the contract for the final refinement phase.
type PolishStoryInput struct {
	// TaskID links the call to its pipeline task.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// TenantID identifies the tenant for event attribution.
	TenantID string `json:"tenant_id" validate:"required,min=1"`

	// Draft is the assembled story to polish.
	Draft StoryDraft `json:"draft"`

	// Enrichment supplies register details for the style cycle.
	Enrichment ContextEnrichment `json:"enrichment"`

	// Style optionally names the desired narrative style.
	Style string `json:"style,omitempty"`

	// Policy carries the threshold, cycle cap, and improvement delta.
	Policy PipelinePolicy `json:"policy"`
}

// Validate checks if the input meets all requirements.
func (i *PolishStoryInput) Validate() error {
	if err := i.Draft.Validate(); err != nil {
		return err
	}
	return validate.Struct(i)
}

// PolishStoryOutput carries the finished artifact plus the cycle-by-cycle
// refinement account.
type PolishStoryOutput struct {
	// Artifact is the finished story with metrics and annotations.
	Artifact StoryArtifact `json:"artifact"`

	// BaselineScore is the critic score of the draft before any cycle.
	BaselineScore float64 `json:"baseline_score" validate:"min=0,max=10"`

	// Cycles records every focus cycle that ran, in order.
	Cycles []PolishCycle `json:"cycles,omitempty" validate:"dive"`

	// FinalScore is the critic score of the finished story.
	FinalScore float64 `json:"final_score" validate:"min=0,max=10"`

	// ThresholdMet reports whether FinalScore reached the quality threshold.
	ThresholdMet bool `json:"threshold_met"`

	// Stage traces this phase for the task record.
	Stage StageResult `json:"stage"`
}

// Validate checks if the output meets all requirements.
func (o *PolishStoryOutput) Validate() error {
	if err := o.Artifact.Validate(); err != nil {
		return err
	}
	return validate.Struct(o)
}
