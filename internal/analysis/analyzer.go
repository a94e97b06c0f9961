// Package analysis provides the analyzer collaborators of the pipeline's
// first phase and its deep-dive passes. An analyzer inspects transcript text
// for one concern (narrative structure, cultural signals, historical
// placement) and returns the common discriminated envelope; callers switch
// on the envelope kind. Analyzer failures surface as domain.AnalysisError.
package analysis

import (
	"context"
	"errors"

	"github.com/jatlaoui/ines/internal/domain"
)

// Request validation errors.
var (
	errMissingTaskID = errors.New("analysis request requires a task id")
	errMissingTenant = errors.New("analysis request requires a tenant id")
	errMissingText   = errors.New("analysis request requires transcript text")
)

// Request carries the text to analyze plus steering context. Context entries
// are advisory hints folded into the prompt; analyzers never require them.
type Request struct {
	// TaskID links the call to its pipeline task.
	TaskID string

	// TenantID attributes the backing LLM calls.
	TenantID string

	// Text is the transcript or excerpt to analyze.
	Text string

	// Focus optionally names a cultural tradition to foreground.
	Focus string

	// Context carries additional named hints, e.g. prior phase findings.
	Context map[string]string
}

// Validate checks the request fields the analyzers depend on.
func (r *Request) Validate() error {
	if r.TaskID == "" {
		return errMissingTaskID
	}
	if r.TenantID == "" {
		return errMissingTenant
	}
	if r.Text == "" {
		return errMissingText
	}
	return nil
}

// Analyzer inspects text for one concern and reports the structured result.
// Implementations are stateless and safe for concurrent use.
type Analyzer interface {
	// Kind identifies which payload the returned envelopes carry.
	Kind() domain.AnalyzerKind

	// Analyze inspects the request text. Failures are domain.AnalysisError.
	Analyze(ctx context.Context, req Request) (domain.AnalysisEnvelope, error)
}
