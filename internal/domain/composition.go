package domain

// ComposeUnitsInput is the contract for the generation phase: write every
// content unit against the blueprint, independently and in order.
type ComposeUnitsInput struct {
	// TaskID links the call to its pipeline task.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// TenantID identifies the tenant for event attribution.
	TenantID string `json:"tenant_id" validate:"required,min=1"`

	// Blueprint is the structure the units are written against.
	Blueprint StoryBlueprint `json:"blueprint"`

	// Enrichment supplies period and register details for the prose.
	Enrichment ContextEnrichment `json:"enrichment"`

	// TargetLength resolves the unit count through the fixed lookup table.
	TargetLength TargetLength `json:"target_length" validate:"required"`

	// Style optionally names the desired narrative style.
	Style string `json:"style,omitempty"`

	// CulturalFocus optionally names the tradition to foreground in the
	// per-unit cultural enhancement pass.
	CulturalFocus string `json:"cultural_focus,omitempty"`

	// Policy carries the per-unit revision budget and quality threshold.
	Policy PipelinePolicy `json:"policy"`
}

// Validate checks if the input meets all requirements.
func (i *ComposeUnitsInput) Validate() error {
	if err := i.Blueprint.Validate(); err != nil {
		return err
	}
	return validate.Struct(i)
}

// UnitCycleTrace records one refinement cycle of one unit's write-critique
// loop, so events and diagnostics can replay how each unit converged.
type UnitCycleTrace struct {
	// UnitIndex is the 0-based position of the unit in the draft.
	UnitIndex int `json:"unit_index" validate:"min=0"`

	// CycleIndex is the 0-based cycle position within the unit's run.
	CycleIndex int `json:"cycle_index" validate:"min=0"`

	// Score is the critique score of the cycle's content.
	Score float64 `json:"score" validate:"min=0,max=10"`

	// FeedbackCount is the number of issues carried into the next cycle.
	FeedbackCount int `json:"feedback_count" validate:"min=0"`

	// Accepted reports whether this cycle's content ended the unit's run.
	Accepted bool `json:"accepted"`
}

// ComposeUnitsOutput carries the assembled draft plus the per-unit scores
// and the cross-unit consistency findings. Consistency violations are
// reported, never auto-corrected.
type ComposeUnitsOutput struct {
	// Draft is the assembled story draft, units in original order.
	Draft StoryDraft `json:"draft"`

	// UnitScores holds each unit's final critique score, indexed like
	// Draft.Units.
	UnitScores []float64 `json:"unit_scores,omitempty"`

	// Cycles traces every refinement cycle of every unit, in unit order.
	Cycles []UnitCycleTrace `json:"cycles,omitempty"`

	// ConsistencyWarnings lists cross-unit violations found after assembly.
	ConsistencyWarnings []string `json:"consistency_warnings,omitempty"`

	// Enhancements lists the cultural enhancements applied per unit.
	Enhancements []string `json:"enhancements,omitempty"`

	// Stage traces this phase for the task record.
	Stage StageResult `json:"stage"`
}

// Validate checks if the output meets all requirements.
func (o *ComposeUnitsOutput) Validate() error {
	if err := o.Draft.Validate(); err != nil {
		return err
	}
	return validate.Struct(o)
}
