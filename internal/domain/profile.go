package domain

import "time"

// StyleProfile holds a user's stored storytelling preferences. Profile data
// is advisory, not correctness-critical: stale reads are acceptable and
// writes are last-writer-wins.
type StyleProfile struct {
	// UserID identifies the profile owner.
	UserID string `json:"user_id" validate:"required,min=1"`

	// PreferredStyle names the user's default narrative style.
	PreferredStyle string `json:"preferred_style,omitempty"`

	// PreferredLength is the user's default target length.
	PreferredLength TargetLength `json:"preferred_length,omitempty"`

	// CulturalNotes carries standing cultural context for this user's
	// stories, e.g. region or family traditions.
	CulturalNotes []string `json:"cultural_notes,omitempty"`

	// UpdatedAt records the last write.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the profile meets all requirements. PreferredLength is
// optional but must be a table entry when set.
func (p *StyleProfile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return err
	}
	if p.PreferredLength != "" && !p.PreferredLength.Valid() {
		return ErrUnknownTargetLength
	}
	return nil
}

// Clone returns a deep copy of the profile.
func (p StyleProfile) Clone() StyleProfile {
	out := p
	out.CulturalNotes = cloneStringSlice(p.CulturalNotes)
	return out
}
