package domain

// Score bounds for critique reports. The refinement engine never clamps;
// critic implementations must return scores inside this range.
const (
	// MinScore is the lowest legal critique score.
	MinScore = 0.0

	// MaxScore is the highest legal critique score.
	MaxScore = 10.0
)

// ClampScore forces a raw score into the legal [MinScore, MaxScore] range.
// Critic implementations use this before returning a report; the engine
// itself only compares scores against a threshold.
func ClampScore(v float64) float64 {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

// CritiqueReport is a critic's verdict on a content artifact: an overall
// score plus structured issue and strength lists. How the score and issues
// are computed is the critic's business; consumers only rely on the shape.
type CritiqueReport struct {
	// OverallScore rates the artifact on the 0-10 scale.
	OverallScore float64 `json:"overall_score" validate:"min=0,max=10"`

	// Issues lists the problems found, in the critic's priority order.
	// Carried forward as feedback to the next generation attempt.
	Issues []string `json:"issues,omitempty"`

	// Strengths lists what the critic found working well.
	Strengths []string `json:"strengths,omitempty"`
}

// Validate checks if the report meets all requirements.
func (r *CritiqueReport) Validate() error { return validate.Struct(r) }

// Clone returns a deep copy of the report.
func (r CritiqueReport) Clone() CritiqueReport {
	out := r
	out.Issues = cloneStringSlice(r.Issues)
	out.Strengths = cloneStringSlice(r.Strengths)
	return out
}
