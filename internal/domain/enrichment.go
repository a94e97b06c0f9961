package domain

// ContextEnrichment is the inference phase's addition to the base analysis:
// inferred historical placement and register. An empty enrichment is an
// acceptable, if low-quality, result; the phase degrades instead of failing.
type ContextEnrichment struct {
	// Era is the inferred historical era.
	Era string `json:"era,omitempty"`

	// Setting refines where and when the story takes place.
	Setting string `json:"setting,omitempty"`

	// Register is the inferred linguistic register for the prose.
	Register string `json:"register,omitempty"`

	// CulturalMarkers lists period-appropriate details to weave in.
	CulturalMarkers []string `json:"cultural_markers,omitempty"`

	// Notes carries free-form inference notes for later prompts.
	Notes []string `json:"notes,omitempty"`

	// Confidence rates the inference in [0,1].
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`
}

// IsEmpty reports whether the enrichment adds nothing to the analysis.
func (e ContextEnrichment) IsEmpty() bool {
	return e.Era == "" && e.Setting == "" && e.Register == "" &&
		len(e.CulturalMarkers) == 0 && len(e.Notes) == 0
}

// InferContextInput is the contract for the inference phase.
type InferContextInput struct {
	// TaskID links the call to its pipeline task.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// TenantID identifies the tenant for event attribution.
	TenantID string `json:"tenant_id" validate:"required,min=1"`

	// Transcript is the raw source text.
	Transcript string `json:"transcript" validate:"required,min=20"`

	// Analysis is the phase-1 result the inference builds on.
	Analysis AnalysisEnvelope `json:"analysis"`
}

// Validate checks if the input meets all requirements.
func (i *InferContextInput) Validate() error {
	if err := i.Analysis.Validate(); err != nil {
		return err
	}
	return validate.Struct(i)
}

// InferContextOutput carries the enrichment. Degraded marks runs where
// inference failed and an empty enrichment was substituted.
type InferContextOutput struct {
	// Enrichment is the inferred context, possibly empty.
	Enrichment ContextEnrichment `json:"enrichment"`

	// Degraded is true when the inference collaborator failed and the
	// pipeline continued with an empty enrichment.
	Degraded bool `json:"degraded"`

	// Stage traces this phase for the task record.
	Stage StageResult `json:"stage"`
}

// Validate checks if the output meets all requirements.
func (o *InferContextOutput) Validate() error { return validate.Struct(o) }
