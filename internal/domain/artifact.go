package domain

import "fmt"

// ArtifactKind represents the type of content stored in the blob store.
// Typed constants prevent typos that could bypass validation.
type ArtifactKind string

const (
	// ArtifactStory is a full assembled story body.
	ArtifactStory ArtifactKind = "story"

	// ArtifactUnit is a single content unit body.
	ArtifactUnit ArtifactKind = "unit"

	// ArtifactBlueprint is a serialized story blueprint.
	ArtifactBlueprint ArtifactKind = "blueprint"

	// ArtifactAnalysis is a serialized analysis envelope.
	ArtifactAnalysis ArtifactKind = "analysis"

	// ArtifactExport is a rendered export (JSON, Markdown, or HTML).
	ArtifactExport ArtifactKind = "export"
)

// ArtifactRef references content stored in the blob store. Large text lives
// externally; the pipeline passes these lightweight references through
// events, traces, and the archive.
type ArtifactRef struct {
	// Key is the unique storage key, e.g. "tasks/<id>/units/3.txt".
	Key string `json:"key" validate:"required"`

	// Size is the stored content size in bytes.
	Size int64 `json:"size" validate:"min=0"`

	// Kind categorizes the stored content.
	Kind ArtifactKind `json:"kind" validate:"required,oneof=story unit blueprint analysis export"`
}

// Validate checks if the reference meets all requirements.
func (a *ArtifactRef) Validate() error { return validate.Struct(a) }

// ArtifactKey builds the canonical storage key for a task-scoped artifact.
func ArtifactKey(taskID string, kind ArtifactKind, name string) string {
	return fmt.Sprintf("tasks/%s/%s/%s", taskID, kind, name)
}
