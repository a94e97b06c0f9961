package domain

import "time"

// ExportFormat names a supported rendering of the final artifact.
type ExportFormat string

const (
	// ExportJSON is the structural dump of the artifact and phase traces.
	ExportJSON ExportFormat = "json"

	// ExportMarkdown is the fixed-section human-readable report.
	ExportMarkdown ExportFormat = "markdown"

	// ExportHTML is the Markdown report rendered to HTML.
	ExportHTML ExportFormat = "html"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportJSON, ExportMarkdown, ExportHTML:
		return true
	default:
		return false
	}
}

// KnownExportFormats returns the supported formats in rendering order.
func KnownExportFormats() []ExportFormat {
	return []ExportFormat{ExportJSON, ExportMarkdown, ExportHTML}
}

// ExportStoryInput is the contract for the export step: render the artifact
// in each requested format and store the renderings as blobs.
type ExportStoryInput struct {
	// TaskID links the call to its pipeline task.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// TenantID identifies the tenant for event attribution.
	TenantID string `json:"tenant_id" validate:"required,min=1"`

	// Request is the originating story request, echoed into the metadata
	// section of the exports.
	Request StoryRequest `json:"request"`

	// Artifact is the finished story to render.
	Artifact StoryArtifact `json:"artifact"`

	// Stages is the phase trace rendered into the transformation section.
	Stages []StageResult `json:"stages,omitempty" validate:"dive"`

	// Formats selects which renderings to produce. Empty means all.
	Formats []ExportFormat `json:"formats,omitempty"`
}

// Validate checks if the input meets all requirements.
func (i *ExportStoryInput) Validate() error {
	if err := i.Artifact.Validate(); err != nil {
		return err
	}
	for _, f := range i.Formats {
		if !f.Valid() {
			return ErrUnknownExportFormat
		}
	}
	return validate.Struct(i)
}

// ExportStoryOutput locates the stored renderings by format.
type ExportStoryOutput struct {
	// Refs points at the stored rendering per format.
	Refs map[ExportFormat]ArtifactRef `json:"refs" validate:"required,min=1"`
}

// Validate checks if the output meets all requirements.
func (o *ExportStoryOutput) Validate() error { return validate.Struct(o) }

// ArchiveTaskInput is the contract for the archive step: persist the task
// record, artifact, and export references for later retrieval. Failed tasks
// are archived too, for the record alone.
type ArchiveTaskInput struct {
	// Record is the finalized task record with its full stage trace.
	Record TaskRecord `json:"record"`

	// Artifact is the finished story. Empty for failed tasks.
	Artifact StoryArtifact `json:"artifact"`

	// ExportRefs locates the stored exports, by format.
	ExportRefs map[ExportFormat]ArtifactRef `json:"export_refs,omitempty"`
}

// Validate checks if the input meets all requirements. The artifact is only
// required once the record reports completion.
func (i *ArchiveTaskInput) Validate() error {
	if err := i.Record.Validate(); err != nil {
		return err
	}
	if i.Record.Status == TaskCompleted {
		return i.Artifact.Validate()
	}
	return nil
}

// ArchiveTaskOutput confirms the archive write.
type ArchiveTaskOutput struct {
	// TaskID identifies the archived task.
	TaskID string `json:"task_id" validate:"required,uuid"`

	// ArchivedAt records when the archive write completed.
	ArchivedAt time.Time `json:"archived_at"`
}

// Validate checks if the output meets all requirements.
func (o *ArchiveTaskOutput) Validate() error { return validate.Struct(o) }
