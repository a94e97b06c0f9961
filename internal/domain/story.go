// Package domain provides core types and business logic for the story
// generation pipeline. It defines story requests, refinement outcomes,
// collaboration records, analysis envelopes, and the task record that traces
// one end-to-end generation request. The types are designed to support
// reproducible, auditable multi-phase generation with bounded refinement.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TargetLength selects how long the generated story should be.
// Values are the Arabic length names used throughout the product surface;
// typed constants prevent typos from silently resolving to a default.
type TargetLength string

const (
	// LengthShort produces a single-unit story.
	LengthShort TargetLength = "قصيرة"

	// LengthMedium produces a three-unit story.
	LengthMedium TargetLength = "متوسطة"

	// LengthLong produces a five-unit story.
	LengthLong TargetLength = "طويلة"

	// LengthEpic produces an eight-unit story.
	LengthEpic TargetLength = "ملحمية"
)

// unitCountByLength is the fixed lookup table from desired length to unit
// (chapter) count. Unknown lengths are an error, never a silent default.
var unitCountByLength = map[TargetLength]int{
	LengthShort:  1,
	LengthMedium: 3,
	LengthLong:   5,
	LengthEpic:   8,
}

// UnitCount resolves the number of content units for this length through the
// fixed lookup table. Returns ErrUnknownTargetLength for values outside the
// table.
func (l TargetLength) UnitCount() (int, error) {
	n, ok := unitCountByLength[l]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTargetLength, string(l))
	}
	return n, nil
}

// Valid reports whether the length is one of the known table entries.
func (l TargetLength) Valid() bool {
	_, ok := unitCountByLength[l]
	return ok
}

// KnownTargetLengths returns the supported lengths in ascending unit-count order.
func KnownTargetLengths() []TargetLength {
	return []TargetLength{LengthShort, LengthMedium, LengthLong, LengthEpic}
}

// Default pipeline policy values. These replace the placeholder constants of
// earlier prototypes with documented, configurable parameters.
const (
	defaultQualityThreshold = 8.0
	defaultPolishCycles     = 3
	defaultImprovementDelta = 0.1
	defaultExchangeCount    = 2
	defaultUnitReviseCycles = 1
)

// PipelinePolicy holds the tunable knobs of one generation request: the
// critic score that ends refinement, cycle budgets, the diminishing-returns
// delta for final polish, and the fixed collaboration exchange count.
type PipelinePolicy struct {
	// QualityThreshold is the minimum critic score (0-10 scale) that ends a
	// refinement loop successfully. Comparison is inclusive (>=).
	QualityThreshold float64 `json:"quality_threshold" validate:"min=0,max=10"`

	// UnitReviseCycles is the refinement budget applied to each content unit
	// during generation. Zero means a single unrevised attempt per unit.
	UnitReviseCycles int `json:"unit_revise_cycles" validate:"min=0"`

	// PolishCycles caps the focus cycles of the final whole-story refinement.
	PolishCycles int `json:"polish_cycles" validate:"min=1,max=3"`

	// ImprovementDelta is the diminishing-returns cutoff for final polish:
	// a cycle improving the critic score by less than this stops the loop.
	ImprovementDelta float64 `json:"improvement_delta" validate:"min=0"`

	// ExchangeCount fixes how many exchange cycles a collaboration runs.
	// It is a fixed count, never threshold-driven.
	ExchangeCount int `json:"exchange_count" validate:"min=1"`
}

// DefaultPipelinePolicy returns the standard policy:
//   - QualityThreshold: 8.0 (accept on the first cycle scoring at least 8)
//   - UnitReviseCycles: 1 (one critique-driven revision per unit)
//   - PolishCycles: 3 (structure, content, style)
//   - ImprovementDelta: 0.1
//   - ExchangeCount: 2
func DefaultPipelinePolicy() PipelinePolicy {
	return PipelinePolicy{
		QualityThreshold: defaultQualityThreshold,
		UnitReviseCycles: defaultUnitReviseCycles,
		PolishCycles:     defaultPolishCycles,
		ImprovementDelta: defaultImprovementDelta,
		ExchangeCount:    defaultExchangeCount,
	}
}

// Validate checks if the policy meets all requirements.
func (p *PipelinePolicy) Validate() error { return validate.Struct(p) }

// StoryRequest initiates one end-to-end story generation. It carries the raw
// transcript, the desired shape of the output, and the policy governing the
// refinement loops. The request is the primary input to the pipeline workflow.
type StoryRequest struct {
	// TaskID uniquely identifies this request using UUID format.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// TenantID identifies the tenant for multi-tenant isolation.
	TenantID string `json:"tenant_id" validate:"required,min=1"`

	// Transcript is the raw oral/narrative transcript to transform.
	Transcript string `json:"transcript" validate:"required,min=20"`

	// TargetLength selects the unit count through the fixed lookup table.
	TargetLength TargetLength `json:"target_length" validate:"required,oneof=قصيرة متوسطة طويلة ملحمية"`

	// Style optionally names the desired narrative style.
	Style string `json:"style,omitempty"`

	// CulturalFocus optionally names a cultural tradition to foreground.
	CulturalFocus string `json:"cultural_focus,omitempty"`

	// UserID optionally links the request to a stored style profile.
	UserID string `json:"user_id,omitempty"`

	// Preferences carries optional free-form user preferences.
	// Use WithPreference to modify; the map is cloned, never shared.
	Preferences map[string]string `json:"preferences,omitempty"`

	// Policy governs thresholds and cycle budgets for this request.
	Policy PipelinePolicy `json:"policy"`

	// RequestedAt records when this request was created.
	RequestedAt time.Time `json:"requested_at" validate:"required"`
}

// NewStoryRequest creates a story request with a generated ID, the current
// time, and the default policy.
//
// WARNING: Do not call this function inside workflow code as it uses
// nondeterministic operations (uuid.New and time.Now). Use MakeStoryRequest
// with workflow-provided values instead.
func NewStoryRequest(tenantID, transcript string, length TargetLength) (*StoryRequest, error) {
	req := &StoryRequest{
		TaskID:       uuid.New().String(),
		TenantID:     tenantID,
		Transcript:   transcript,
		TargetLength: length,
		Policy:       DefaultPipelinePolicy(),
		RequestedAt:  time.Now(),
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// MakeStoryRequest creates a story request from caller-provided ID and
// timestamp. Safe inside workflow code: it generates no nondeterministic
// values. Use workflow.Now(ctx) for the timestamp and a pre-generated UUID
// for the ID.
func MakeStoryRequest(taskID string, requestedAt time.Time, tenantID, transcript string, length TargetLength, policy PipelinePolicy) (*StoryRequest, error) {
	req := &StoryRequest{
		TaskID:       taskID,
		TenantID:     tenantID,
		Transcript:   transcript,
		TargetLength: length,
		Policy:       policy,
		RequestedAt:  requestedAt,
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// Validate checks if the request meets all requirements, including the
// nested policy and the length lookup table membership.
func (r *StoryRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return nil
}

// WithPreference returns a copy of the request with the preference added.
// The original request is never mutated; preferences are cloned.
func (r *StoryRequest) WithPreference(key, value string) *StoryRequest {
	prefs := cloneStringMap(r.Preferences)
	if prefs == nil {
		prefs = make(map[string]string)
	}
	prefs[key] = value

	reqCopy := *r
	reqCopy.Preferences = prefs
	return &reqCopy
}

// StoryDraft is the assembled but not yet polished story: the ordered units
// produced by the generation phase, before whole-story refinement.
type StoryDraft struct {
	// TaskID links the draft to its originating request.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// Title is the working title from the blueprint.
	Title string `json:"title"`

	// Units are the content units in original generation order.
	Units []ContentUnit `json:"units" validate:"required,min=1,dive"`
}

// Validate checks if the draft meets all requirements.
func (d *StoryDraft) Validate() error { return validate.Struct(d) }

// WordCount totals the word counts of all units.
func (d StoryDraft) WordCount() int {
	total := 0
	for _, u := range d.Units {
		total += u.WordCount
	}
	return total
}

// Combined joins all unit bodies into one text, preserving unit order.
// Used when the whole story is critiqued or refined as a single artifact.
func (d StoryDraft) Combined() string {
	parts := make([]string, 0, len(d.Units))
	for _, u := range d.Units {
		parts = append(parts, u.Body)
	}
	return strings.Join(parts, "\n\n")
}

// Clone returns a deep copy of the draft.
func (d StoryDraft) Clone() StoryDraft {
	out := d
	out.Units = make([]ContentUnit, len(d.Units))
	for i, u := range d.Units {
		out.Units[i] = u.Clone()
	}
	return out
}

// StoryArtifact is the final assembled output of one pipeline run: the
// polished units plus the metrics and annotations accumulated across phases.
type StoryArtifact struct {
	// TaskID links the artifact to its originating request.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// Title of the finished story.
	Title string `json:"title" validate:"required"`

	// Units are the polished content units in original order.
	Units []ContentUnit `json:"units" validate:"required,min=1,dive"`

	// WordCount totals the words across all units.
	WordCount int `json:"word_count" validate:"min=0"`

	// QualityMetrics holds per-phase quality scores (0-10 scale).
	QualityMetrics map[string]float64 `json:"quality_metrics,omitempty"`

	// AuthenticityMetrics holds cultural/historical authenticity scores.
	AuthenticityMetrics map[string]float64 `json:"authenticity_metrics,omitempty"`

	// Enhancements lists the creative enhancements applied along the way.
	Enhancements []string `json:"enhancements,omitempty"`

	// FinalScores holds the closing scores of the refinement phase.
	FinalScores map[string]float64 `json:"final_scores,omitempty"`

	// Warnings carries non-fatal annotations, including the
	// threshold-never-met flag when refinement exhausted its budget.
	Warnings []string `json:"warnings,omitempty"`

	// CompletedAt records when the pipeline finished this artifact.
	CompletedAt time.Time `json:"completed_at"`
}

// Validate checks if the artifact meets all requirements.
func (a *StoryArtifact) Validate() error { return validate.Struct(a) }

// Clone returns a deep copy of the artifact.
func (a StoryArtifact) Clone() StoryArtifact {
	out := a
	out.Units = make([]ContentUnit, len(a.Units))
	for i, u := range a.Units {
		out.Units[i] = u.Clone()
	}
	out.QualityMetrics = cloneFloatMap(a.QualityMetrics)
	out.AuthenticityMetrics = cloneFloatMap(a.AuthenticityMetrics)
	out.FinalScores = cloneFloatMap(a.FinalScores)
	out.Enhancements = cloneStringSlice(a.Enhancements)
	out.Warnings = cloneStringSlice(a.Warnings)
	return out
}
