package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalysisEnvelope_ExactlyOnePayload(t *testing.T) {
	narrative := &NarrativeAnalysis{Characters: []string{"سالم"}, Tone: "nostalgic"}
	cultural := &CulturalAnalysis{Traditions: []string{"wedding songs"}}

	tests := []struct {
		name    string
		env     AnalysisEnvelope
		wantErr error
	}{
		{
			name: "valid narrative envelope",
			env:  AnalysisEnvelope{Kind: AnalyzerNarrative, Confidence: 0.8, Narrative: narrative},
		},
		{
			name:    "missing payload",
			env:     AnalysisEnvelope{Kind: AnalyzerNarrative, Confidence: 0.8},
			wantErr: ErrNoAnalysisPayload,
		},
		{
			name: "two payloads set",
			env: AnalysisEnvelope{
				Kind: AnalyzerNarrative, Confidence: 0.8,
				Narrative: narrative, Cultural: cultural,
			},
			wantErr: ErrAmbiguousAnalysisPayload,
		},
		{
			name:    "payload kind mismatch",
			env:     AnalysisEnvelope{Kind: AnalyzerCultural, Confidence: 0.8, Narrative: narrative},
			wantErr: ErrPayloadKindMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAnalysisEnvelope_Constructors(t *testing.T) {
	env, err := NewNarrativeEnvelope(0.9, []string{"deepen the grandfather's arc"}, NarrativeAnalysis{
		Characters: []string{"الجد", "الحفيد"},
		Themes:     []string{"memory"},
	})
	require.NoError(t, err)
	assert.Equal(t, AnalyzerNarrative, env.Kind)
	require.NotNil(t, env.Narrative)
	assert.Len(t, env.Narrative.Characters, 2)

	_, err = NewCulturalEnvelope(1.5, nil, CulturalAnalysis{})
	assert.Error(t, err, "confidence above 1 should fail validation")
}

func TestAnalysisEnvelope_KindSwitch(t *testing.T) {
	env, err := NewHistoricalEnvelope(0.7, nil, HistoricalAnalysis{Era: "pre-independence", Markers: []string{"kerosene lamps"}})
	require.NoError(t, err)

	// Consumers dispatch on Kind; the matching payload must be the only one set.
	switch env.Kind {
	case AnalyzerHistorical:
		require.NotNil(t, env.Historical)
		assert.Nil(t, env.Narrative)
		assert.Nil(t, env.Cultural)
		assert.Equal(t, "pre-independence", env.Historical.Era)
	default:
		t.Fatalf("unexpected kind %q", env.Kind)
	}
}
