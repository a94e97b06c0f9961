package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"generation error", NewGenerationError("empty content", nil), FailureGeneration},
		{"wrapped generation error", fmt.Errorf("phase: %w", NewGenerationError("parse failed", errors.New("bad json"))), FailureGeneration},
		{"collaboration error", NewCollaborationError("structure_architect", errors.New("timeout")), FailureCollaboration},
		{"analysis error", NewAnalysisError("analyzer unavailable", nil), FailureAnalysis},
		{"not found error", NewNotFoundError("task", "abc"), FailureNotFound},
		{"invalid request sentinel", fmt.Errorf("%w: bad field", ErrInvalidRequest), FailureValidation},
		{"unknown length sentinel", fmt.Errorf("%w: %q", ErrUnknownTargetLength, "huge"), FailureValidation},
		{"phase error wins over cause", NewPhaseError(PhaseAnalysis, FailureAnalysis, errors.New("boom")), FailureAnalysis},
		{"unknown error defaults to provider", errors.New("connection reset"), FailureProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyFailure(tt.err))
		})
	}
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(NewGenerationError("empty content", nil)))
	assert.True(t, IsFatal(NewAnalysisError("no analyzer", nil)))
	assert.True(t, IsFatal(NewNotFoundError("stage", "analysis")))
	assert.False(t, IsFatal(errors.New("dial tcp: connection refused")))
}

func TestNotFoundError_MatchesSentinel(t *testing.T) {
	err := fmt.Errorf("loading profile: %w", NewNotFoundError("profile", "user-9"))

	assert.ErrorIs(t, err, ErrNotFound)

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "profile", nf.Kind)
	assert.Equal(t, "user-9", nf.Key)
}

func TestPhaseError_CarriesContext(t *testing.T) {
	cause := NewGenerationError("empty content", nil)
	err := NewPhaseError(PhaseGeneration, FailureGeneration, cause)

	assert.Contains(t, err.Error(), "generation")
	assert.Contains(t, err.Error(), "Generation")

	var genErr *GenerationError
	assert.ErrorAs(t, err, &genErr, "unwrapping should reach the cause")
}
