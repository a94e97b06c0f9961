package domain

import "strings"

// ContentUnit is the artifact under refinement: an opaque text payload plus
// named metadata. Units are replaced, never mutated in place, on every
// refinement cycle, so a rejected cycle's output can be compared against its
// predecessor.
type ContentUnit struct {
	// ID uniquely identifies this unit.
	ID string `json:"id" validate:"required"`

	// Index is the unit's position in the assembled story, starting at 0.
	Index int `json:"index" validate:"min=0"`

	// Title optionally names the unit (chapter title).
	Title string `json:"title,omitempty"`

	// Body is the unit's text payload.
	Body string `json:"body"`

	// Metadata carries named annotations such as source references.
	Metadata map[string]string `json:"metadata,omitempty"`

	// WordCount is the number of whitespace-separated words in Body.
	WordCount int `json:"word_count" validate:"min=0"`
}

// MakeContentUnit builds a unit with its word count computed from the body.
// The metadata map is cloned to prevent aliasing.
func MakeContentUnit(id string, index int, title, body string, metadata map[string]string) ContentUnit {
	return ContentUnit{
		ID:        id,
		Index:     index,
		Title:     title,
		Body:      body,
		Metadata:  cloneStringMap(metadata),
		WordCount: CountWords(body),
	}
}

// IsEmpty reports whether the unit has no usable content.
func (u ContentUnit) IsEmpty() bool { return strings.TrimSpace(u.Body) == "" }

// Clone returns a deep copy of the unit.
func (u ContentUnit) Clone() ContentUnit {
	out := u
	out.Metadata = cloneStringMap(u.Metadata)
	return out
}

// CountWords counts whitespace-separated words. Works for Arabic and Latin
// script alike since both separate words with spaces.
func CountWords(s string) int { return len(strings.Fields(s)) }

// GenerationResult is a creator's output: the candidate content plus
// generation metadata. An empty content body is a generation failure at the
// refinement engine boundary.
type GenerationResult struct {
	// Content is the candidate artifact.
	Content ContentUnit `json:"content"`

	// Model names the model that produced the content, when known.
	Model string `json:"model,omitempty"`

	// PromptTokens counts the input tokens consumed.
	PromptTokens int64 `json:"prompt_tokens" validate:"min=0"`

	// CompletionTokens counts the output tokens produced.
	CompletionTokens int64 `json:"completion_tokens" validate:"min=0"`

	// TraceID correlates the result with backend request logs.
	TraceID string `json:"trace_id,omitempty"`
}

// Feedback is the ordered sequence of issue strings surfaced by the most
// recent critique. Empty when no critique has yet run or when the critique
// found no issues. It is passed opaquely into the next creator invocation;
// the refinement engine never inspects its elements.
type Feedback []string

// IsEmpty reports whether there is no feedback to carry forward.
func (f Feedback) IsEmpty() bool { return len(f) == 0 }

// Clone returns a copy of the feedback to prevent aliasing.
func (f Feedback) Clone() Feedback {
	if f == nil {
		return nil
	}
	out := make(Feedback, len(f))
	copy(out, f)
	return out
}
