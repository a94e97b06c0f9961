package domain

// CharacterSketch outlines one character in the story blueprint.
type CharacterSketch struct {
	// Name of the character.
	Name string `json:"name" validate:"required"`

	// Role in the story, e.g. protagonist, narrator.
	Role string `json:"role,omitempty"`

	// Arc sketches how the character changes.
	Arc string `json:"arc,omitempty"`
}

// StoryBlueprint is the structuring phase's output: the agreed shape of the
// story that the generation phase writes units against.
type StoryBlueprint struct {
	// Title is the working title.
	Title string `json:"title" validate:"required"`

	// Premise states the story in one or two sentences.
	Premise string `json:"premise" validate:"required"`

	// Themes lists the themes the story develops.
	Themes []string `json:"themes,omitempty"`

	// Characters sketches the cast.
	Characters []CharacterSketch `json:"characters,omitempty" validate:"dive"`

	// Outline is the narrative outline the units follow, in order.
	Outline string `json:"outline" validate:"required"`
}

// Validate checks if the blueprint meets all requirements.
func (b *StoryBlueprint) Validate() error { return validate.Struct(b) }

// DeficiencyCategory is the closed set of deficiency kinds a critical review
// can flag on a blueprint. Review recommendations are routed to targeted
// refinement actions through this enum and a fixed dispatch table, never
// through free-text matching at the call site.
type DeficiencyCategory string

const (
	// DeficiencyCharacterDepth flags flat or underdeveloped characters.
	DeficiencyCharacterDepth DeficiencyCategory = "character_depth"

	// DeficiencyPlotCoherence flags gaps or contradictions in the plot.
	DeficiencyPlotCoherence DeficiencyCategory = "plot_coherence"

	// DeficiencyCulturalElements flags missing or shallow cultural texture.
	DeficiencyCulturalElements DeficiencyCategory = "cultural_elements"
)

// KnownDeficiencyCategories returns the closed category set in routing order.
func KnownDeficiencyCategories() []DeficiencyCategory {
	return []DeficiencyCategory{
		DeficiencyCharacterDepth,
		DeficiencyPlotCoherence,
		DeficiencyCulturalElements,
	}
}

// Valid reports whether the category is part of the closed set.
func (c DeficiencyCategory) Valid() bool {
	switch c {
	case DeficiencyCharacterDepth, DeficiencyPlotCoherence, DeficiencyCulturalElements:
		return true
	default:
		return false
	}
}

// RoutedRefinement records the dispatch of one review recommendation to its
// targeted refinement action and whether the action was applied.
type RoutedRefinement struct {
	// Category the recommendation was routed to.
	Category DeficiencyCategory `json:"category" validate:"required"`

	// Recommendation is the review text that triggered the routing.
	Recommendation string `json:"recommendation" validate:"required"`

	// Applied reports whether the targeted action ran and was merged.
	Applied bool `json:"applied"`

	// Note explains the outcome of the action.
	Note string `json:"note,omitempty"`
}

// BuildBlueprintInput is the contract for the collaborative structuring phase.
type BuildBlueprintInput struct {
	// TaskID links the call to its pipeline task.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// TenantID identifies the tenant for event attribution.
	TenantID string `json:"tenant_id" validate:"required,min=1"`

	// Transcript is the raw source text.
	Transcript string `json:"transcript" validate:"required,min=20"`

	// Analysis is the phase-1 base analysis.
	Analysis AnalysisEnvelope `json:"analysis"`

	// Enrichment is the phase-2 inferred context, possibly empty.
	Enrichment ContextEnrichment `json:"enrichment"`

	// Style optionally names the desired narrative style.
	Style string `json:"style,omitempty"`

	// TargetLength shapes the outline's granularity.
	TargetLength TargetLength `json:"target_length" validate:"required"`

	// Policy carries the exchange count for the collaboration.
	Policy PipelinePolicy `json:"policy"`
}

// Validate checks if the input meets all requirements.
func (i *BuildBlueprintInput) Validate() error {
	if err := i.Analysis.Validate(); err != nil {
		return err
	}
	return validate.Struct(i)
}

// BuildBlueprintOutput carries the blueprint plus the full collaboration and
// review trail behind it.
type BuildBlueprintOutput struct {
	// Blueprint is the agreed story structure.
	Blueprint StoryBlueprint `json:"blueprint"`

	// Collaboration records every exchange of the coordinator run.
	Collaboration CollaborationRecord `json:"collaboration"`

	// Review is the critical review of the collaborated blueprint.
	Review CritiqueReport `json:"review"`

	// Refinements records how review recommendations were routed.
	Refinements []RoutedRefinement `json:"refinements,omitempty"`

	// Degraded is true when collaboration failed and a single-creator
	// fallback produced the blueprint instead.
	Degraded bool `json:"degraded"`

	// Stage traces this phase for the task record.
	Stage StageResult `json:"stage"`
}

// Validate checks if the output meets all requirements.
func (o *BuildBlueprintOutput) Validate() error {
	if err := o.Blueprint.Validate(); err != nil {
		return err
	}
	return validate.Struct(o)
}
