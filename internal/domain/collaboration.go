package domain

// ExchangeCycle records one round of a collaboration: the feedback produced
// on the partner's output and the revision the partner made with it.
type ExchangeCycle struct {
	// CycleIndex is the 0-based exchange position.
	CycleIndex int `json:"cycle_index" validate:"min=0"`

	// Feedback the lead produced on the partner's current output.
	Feedback Feedback `json:"feedback"`

	// RevisedOutput is the partner's output after applying the feedback.
	RevisedOutput string `json:"revised_output"`
}

// CollaborationRecord is the complete account of a coordinator run: every
// exchange cycle's feedback and revised output plus the final pair of
// outputs. Built incrementally during the run; read-only after the
// coordinator returns.
type CollaborationRecord struct {
	// Participants names the two agents, lead first.
	Participants []string `json:"participants" validate:"required,len=2"`

	// FeedbackCycles holds one entry per exchange, in order.
	FeedbackCycles []ExchangeCycle `json:"feedback_cycles"`

	// Revisions counts the partner revisions made across all exchanges.
	Revisions int `json:"revisions" validate:"min=0"`

	// FinalLead is the lead participant's final output.
	FinalLead string `json:"final_lead"`

	// FinalPartner is the partner participant's final output.
	FinalPartner string `json:"final_partner"`
}

// Validate checks if the record meets all requirements.
func (r *CollaborationRecord) Validate() error { return validate.Struct(r) }

// Clone returns a deep copy of the record.
func (r CollaborationRecord) Clone() CollaborationRecord {
	out := r
	out.Participants = cloneStringSlice(r.Participants)
	if r.FeedbackCycles != nil {
		out.FeedbackCycles = make([]ExchangeCycle, len(r.FeedbackCycles))
		for i, c := range r.FeedbackCycles {
			cc := c
			cc.Feedback = c.Feedback.Clone()
			out.FeedbackCycles[i] = cc
		}
	}
	return out
}
