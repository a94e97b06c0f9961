package domain

import (
	"errors"
	"fmt"
)

// Common errors returned by domain operations.
var (
	// ErrInvalidRequest indicates that a story request contains invalid data.
	ErrInvalidRequest = errors.New("invalid story request")

	// ErrUnknownTargetLength indicates a length outside the fixed lookup table.
	ErrUnknownTargetLength = errors.New("unknown target length")

	// ErrUnknownExportFormat indicates an export format outside the supported set.
	ErrUnknownExportFormat = errors.New("unknown export format")

	// ErrNotFound indicates that a requested task, stage, or artifact does not
	// exist in a store. Lookups surface this distinctly; they never return an
	// empty result for a missing key.
	ErrNotFound = errors.New("not found")
)

// FailureKind tags the error taxonomy for propagation across process
// boundaries. Activity errors carry one of these as the application error
// type so callers can react without parsing messages.
type FailureKind string

const (
	// FailureValidation marks invalid inputs. Never retried.
	FailureValidation FailureKind = "Validation"

	// FailureAnalysis marks a phase-1 analyzer failure. Fatal to the request.
	FailureAnalysis FailureKind = "Analysis"

	// FailureGeneration marks a creator that produced no usable content or
	// content that failed required parsing. Fatal to the refinement run.
	FailureGeneration FailureKind = "Generation"

	// FailureCollaboration marks a failed participant in a collaboration run.
	FailureCollaboration FailureKind = "Collaboration"

	// FailureNotFound marks a missing task, stage, or artifact lookup.
	FailureNotFound FailureKind = "NotFound"

	// FailureExport marks a failed artifact export.
	FailureExport FailureKind = "Export"

	// FailureArchive marks a failed archive write.
	FailureArchive FailureKind = "Archive"

	// FailureProvider marks a transient backend failure eligible for retry.
	FailureProvider FailureKind = "Provider"
)

// GenerationError reports a creator that returned no usable content or
// content that failed required parsing. Fatal to the current refinement
// invocation; the engine does not retry it.
type GenerationError struct {
	// Reason describes what was unusable about the creator output.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// NewGenerationError creates a generation error with the given reason.
func NewGenerationError(reason string, cause error) *GenerationError {
	return &GenerationError{Reason: reason, Cause: cause}
}

func (e *GenerationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("generation failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("generation failed: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *GenerationError) Unwrap() error { return e.Cause }

// CollaborationError reports that a participant in a collaboration run
// failed. The whole collaboration fails with it; there is no partial-result
// recovery.
type CollaborationError struct {
	// Participant names the agent whose call failed.
	Participant string

	// Cause is the participant's underlying error.
	Cause error
}

// NewCollaborationError creates a collaboration error for the named participant.
func NewCollaborationError(participant string, cause error) *CollaborationError {
	return &CollaborationError{Participant: participant, Cause: cause}
}

func (e *CollaborationError) Error() string {
	return fmt.Sprintf("collaboration failed: participant %q: %v", e.Participant, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *CollaborationError) Unwrap() error { return e.Cause }

// AnalysisError reports a phase-1 analyzer failure. Always fatal to the
// request: no meaningful downstream phase can proceed without a base analysis.
type AnalysisError struct {
	// Reason describes the analyzer failure.
	Reason string

	// Cause is the underlying error, if any.
	Cause error
}

// NewAnalysisError creates an analysis error with the given reason.
func NewAnalysisError(reason string, cause error) *AnalysisError {
	return &AnalysisError{Reason: reason, Cause: cause}
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("analysis failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("analysis failed: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As chains.
func (e *AnalysisError) Unwrap() error { return e.Cause }

// NotFoundError reports a missing task, stage, or artifact with enough
// context to name what was looked up. errors.Is(err, ErrNotFound) matches.
type NotFoundError struct {
	// Kind names what was looked up, e.g. "task", "stage", "artifact".
	Kind string

	// Key is the identifier that was not found.
	Key string
}

// NewNotFoundError creates a not-found error for the given kind and key.
func NewNotFoundError(kind, key string) *NotFoundError {
	return &NotFoundError{Kind: kind, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Key)
}

// Is matches the ErrNotFound sentinel so callers can test with errors.Is
// without knowing the concrete type.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PhaseError attaches phase-identifying context to a failure propagating out
// of the orchestrator. The final response of a request is always either a
// completed artifact or a PhaseError carrying the phase name and taxonomy
// kind, never a bare message.
type PhaseError struct {
	// Phase names the pipeline phase that failed.
	Phase PhaseKind

	// Kind classifies the failure per the error taxonomy.
	Kind FailureKind

	// Err is the underlying failure.
	Err error
}

// NewPhaseError wraps err with phase context and its taxonomy kind.
func NewPhaseError(phase PhaseKind, kind FailureKind, err error) *PhaseError {
	return &PhaseError{Phase: phase, Kind: kind, Err: err}
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("phase %s: %s: %v", e.Phase, e.Kind, e.Err)
}

// Unwrap returns the underlying failure for errors.Is/As chains.
func (e *PhaseError) Unwrap() error { return e.Err }

// ClassifyFailure maps an error to its taxonomy kind. Unknown errors are
// classified as provider failures, the retryable default for transient
// backend conditions.
func ClassifyFailure(err error) FailureKind {
	var phaseErr *PhaseError
	if errors.As(err, &phaseErr) {
		return phaseErr.Kind
	}

	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return FailureGeneration
	}

	var collabErr *CollaborationError
	if errors.As(err, &collabErr) {
		return FailureCollaboration
	}

	var analysisErr *AnalysisError
	if errors.As(err, &analysisErr) {
		return FailureAnalysis
	}

	if errors.Is(err, ErrNotFound) {
		return FailureNotFound
	}

	if errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrUnknownTargetLength) {
		return FailureValidation
	}

	return FailureProvider
}

// IsFatal reports whether the error belongs to the non-retryable part of the
// taxonomy. Transient provider failures are the only retryable kind.
func IsFatal(err error) bool {
	switch ClassifyFailure(err) {
	case FailureValidation, FailureAnalysis, FailureGeneration,
		FailureCollaboration, FailureNotFound:
		return true
	default:
		return false
	}
}
