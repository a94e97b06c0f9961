package domain

// RefinementOutcome is the result of one refinement engine invocation.
// Created once per run and immutable once returned: re-reading it later
// yields identical values.
type RefinementOutcome struct {
	// FinalContent is the accepted artifact, either the first cycle that met
	// the quality threshold or the last cycle when the budget ran out.
	FinalContent ContentUnit `json:"final_content"`

	// FinalScore is the critic score of FinalContent.
	FinalScore float64 `json:"final_score" validate:"min=0,max=10"`

	// FinalCritique is the full report behind FinalScore.
	FinalCritique CritiqueReport `json:"final_critique"`

	// CyclesUsed is the 1-based number of creator/critic round trips made.
	CyclesUsed int `json:"cycles_used" validate:"min=1"`

	// ThresholdMet reports whether FinalScore reached the quality threshold.
	// False with CyclesUsed == maxCycles+1 is the observable
	// threshold-never-met outcome: a warning annotation, never an error.
	ThresholdMet bool `json:"threshold_met"`
}

// Validate checks if the outcome meets all requirements.
func (o *RefinementOutcome) Validate() error { return validate.Struct(o) }

// Clone returns a deep copy of the outcome.
func (o RefinementOutcome) Clone() RefinementOutcome {
	out := o
	out.FinalContent = o.FinalContent.Clone()
	out.FinalCritique = o.FinalCritique.Clone()
	return out
}

// BudgetExhausted reports whether the run spent its full cycle budget without
// meeting the threshold, given the engine's configured maxCycles.
func (o RefinementOutcome) BudgetExhausted(maxCycles int) bool {
	return o.CyclesUsed == maxCycles+1 && !o.ThresholdMet
}
