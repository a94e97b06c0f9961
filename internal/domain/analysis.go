package domain

import (
	"errors"
	"fmt"
)

// AnalyzerKind identifies which specialized analyzer produced an analysis.
// Callers pattern-match on the kind instead of probing dynamic maps.
type AnalyzerKind string

const (
	// AnalyzerNarrative inspects narrative structure: characters, themes,
	// tone, and key events.
	AnalyzerNarrative AnalyzerKind = "narrative"

	// AnalyzerCultural inspects cultural signals: traditions, dialect,
	// values, and symbols.
	AnalyzerCultural AnalyzerKind = "cultural"

	// AnalyzerHistorical places the transcript in a historical era.
	AnalyzerHistorical AnalyzerKind = "historical"
)

// Envelope construction errors.
var (
	// ErrNoAnalysisPayload indicates an envelope missing its typed payload.
	ErrNoAnalysisPayload = errors.New("analysis envelope has no payload")

	// ErrAmbiguousAnalysisPayload indicates an envelope with more than one
	// typed payload set.
	ErrAmbiguousAnalysisPayload = errors.New("analysis envelope has multiple payloads")

	// ErrPayloadKindMismatch indicates a payload that does not match the
	// declared analyzer kind.
	ErrPayloadKindMismatch = errors.New("analysis payload does not match kind")
)

// NarrativeAnalysis is the narrative analyzer's structured result.
type NarrativeAnalysis struct {
	// Characters lists the named characters found in the transcript.
	Characters []string `json:"characters,omitempty"`

	// Themes lists the narrative themes detected.
	Themes []string `json:"themes,omitempty"`

	// Tone describes the overall emotional register.
	Tone string `json:"tone,omitempty"`

	// KeyEvents lists the pivotal moments in transcript order.
	KeyEvents []string `json:"key_events,omitempty"`

	// Setting describes where the narrative takes place.
	Setting string `json:"setting,omitempty"`
}

// CulturalAnalysis is the cultural analyzer's structured result.
type CulturalAnalysis struct {
	// Traditions lists cultural practices referenced in the transcript.
	Traditions []string `json:"traditions,omitempty"`

	// Dialect names the dialect or register of the source speech.
	Dialect string `json:"dialect,omitempty"`

	// Values lists the cultural values the transcript expresses.
	Values []string `json:"values,omitempty"`

	// Symbols lists culturally loaded objects, places, or phrases.
	Symbols []string `json:"symbols,omitempty"`
}

// HistoricalAnalysis is the historical analyzer's structured result.
type HistoricalAnalysis struct {
	// Era is the broad historical era, e.g. pre-independence.
	Era string `json:"era,omitempty"`

	// Period narrows the era to an approximate span.
	Period string `json:"period,omitempty"`

	// Markers lists the textual clues supporting the placement.
	Markers []string `json:"markers,omitempty"`
}

// AnalysisEnvelope is the common result shape of every analyzer: a
// discriminated union with exactly one typed payload matching Kind, plus the
// confidence score and recommendations shared by all analyzers. Confidence
// carries no enforced meaning beyond "higher is more trustworthy"; the
// orchestrator never thresholds on it automatically.
type AnalysisEnvelope struct {
	// Kind identifies the analyzer and selects which payload is set.
	Kind AnalyzerKind `json:"kind" validate:"required,oneof=narrative cultural historical"`

	// Confidence rates how trustworthy the analysis is, in [0,1].
	Confidence float64 `json:"confidence" validate:"min=0,max=1"`

	// Recommendations lists the analyzer's suggested follow-up actions.
	Recommendations []string `json:"recommendations,omitempty"`

	// Narrative is set when Kind is AnalyzerNarrative.
	Narrative *NarrativeAnalysis `json:"narrative,omitempty"`

	// Cultural is set when Kind is AnalyzerCultural.
	Cultural *CulturalAnalysis `json:"cultural,omitempty"`

	// Historical is set when Kind is AnalyzerHistorical.
	Historical *HistoricalAnalysis `json:"historical,omitempty"`
}

// NewNarrativeEnvelope wraps a narrative analysis in a validated envelope.
func NewNarrativeEnvelope(confidence float64, recommendations []string, payload NarrativeAnalysis) (AnalysisEnvelope, error) {
	env := AnalysisEnvelope{
		Kind:            AnalyzerNarrative,
		Confidence:      confidence,
		Recommendations: cloneStringSlice(recommendations),
		Narrative:       &payload,
	}
	if err := env.Validate(); err != nil {
		return AnalysisEnvelope{}, err
	}
	return env, nil
}

// NewCulturalEnvelope wraps a cultural analysis in a validated envelope.
func NewCulturalEnvelope(confidence float64, recommendations []string, payload CulturalAnalysis) (AnalysisEnvelope, error) {
	env := AnalysisEnvelope{
		Kind:            AnalyzerCultural,
		Confidence:      confidence,
		Recommendations: cloneStringSlice(recommendations),
		Cultural:        &payload,
	}
	if err := env.Validate(); err != nil {
		return AnalysisEnvelope{}, err
	}
	return env, nil
}

// NewHistoricalEnvelope wraps a historical analysis in a validated envelope.
func NewHistoricalEnvelope(confidence float64, recommendations []string, payload HistoricalAnalysis) (AnalysisEnvelope, error) {
	env := AnalysisEnvelope{
		Kind:            AnalyzerHistorical,
		Confidence:      confidence,
		Recommendations: cloneStringSlice(recommendations),
		Historical:      &payload,
	}
	if err := env.Validate(); err != nil {
		return AnalysisEnvelope{}, err
	}
	return env, nil
}

// Validate checks struct constraints plus the union invariant: exactly one
// payload set, and it must match the declared kind.
func (e *AnalysisEnvelope) Validate() error {
	if err := validate.Struct(e); err != nil {
		return err
	}

	set := 0
	if e.Narrative != nil {
		set++
	}
	if e.Cultural != nil {
		set++
	}
	if e.Historical != nil {
		set++
	}
	switch {
	case set == 0:
		return fmt.Errorf("%w: kind %q", ErrNoAnalysisPayload, e.Kind)
	case set > 1:
		return fmt.Errorf("%w: kind %q", ErrAmbiguousAnalysisPayload, e.Kind)
	}

	matches := (e.Kind == AnalyzerNarrative && e.Narrative != nil) ||
		(e.Kind == AnalyzerCultural && e.Cultural != nil) ||
		(e.Kind == AnalyzerHistorical && e.Historical != nil)
	if !matches {
		return fmt.Errorf("%w: kind %q", ErrPayloadKindMismatch, e.Kind)
	}
	return nil
}

// AnalyzeTranscriptInput is the contract for the analysis phase.
type AnalyzeTranscriptInput struct {
	// TaskID links the call to its pipeline task.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// TenantID identifies the tenant for event attribution.
	TenantID string `json:"tenant_id" validate:"required,min=1"`

	// Transcript is the raw text to analyze.
	Transcript string `json:"transcript" validate:"required,min=20"`

	// CulturalFocus optionally steers the analyzer toward a tradition.
	CulturalFocus string `json:"cultural_focus,omitempty"`

	// Style is the style the request asked for, empty when it named none.
	Style string `json:"style,omitempty"`

	// UserID optionally selects the stored style profile to load.
	UserID string `json:"user_id,omitempty"`
}

// Validate checks if the input meets all requirements.
func (i *AnalyzeTranscriptInput) Validate() error { return validate.Struct(i) }

// AnalyzeTranscriptOutput carries the base analysis every later phase
// consumes, plus the optional style profile loaded alongside it.
type AnalyzeTranscriptOutput struct {
	// Analysis is the structured base analysis of the transcript.
	Analysis AnalysisEnvelope `json:"analysis"`

	// Profile is the user's stored style profile; nil when none exists.
	// A missing profile degrades to defaults, it is never an error.
	Profile *StyleProfile `json:"profile,omitempty"`

	// EffectiveStyle is the style every later phase writes in: the
	// requested style, else the profile preference, else the configured
	// default. Later phases use this value as recorded, never re-resolve.
	EffectiveStyle string `json:"effective_style,omitempty"`

	// Stage traces this phase for the task record.
	Stage StageResult `json:"stage"`
}

// Validate checks if the output meets all requirements.
func (o *AnalyzeTranscriptOutput) Validate() error {
	if err := o.Analysis.Validate(); err != nil {
		return err
	}
	return validate.Struct(o)
}
