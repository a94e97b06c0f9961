package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatlaoui/ines/internal/analysis"
	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/llm/providers"
	"github.com/jatlaoui/ines/internal/store"
)

const (
	testTaskID = "11111111-2222-3333-4444-555555555555"
	testTenant = "tenant-a"
)

// stubAnalyzer satisfies analysis.Analyzer with a fixed envelope or error,
// keeping analyzer traffic out of the scripted LLM client.
type stubAnalyzer struct {
	kind  domain.AnalyzerKind
	env   domain.AnalysisEnvelope
	err   error
	calls int
}

func (a *stubAnalyzer) Kind() domain.AnalyzerKind { return a.kind }

func (a *stubAnalyzer) Analyze(_ context.Context, _ analysis.Request) (domain.AnalysisEnvelope, error) {
	a.calls++
	if a.err != nil {
		return domain.AnalysisEnvelope{}, a.err
	}
	return a.env, nil
}

func narrativeStub(t *testing.T) *stubAnalyzer {
	t.Helper()
	env, err := domain.NewNarrativeEnvelope(0.9, []string{"إبراز صوت الجد"}, domain.NarrativeAnalysis{
		Characters: []string{"سالم", "ياسين"},
		Themes:     []string{"الصبر"},
		Tone:       "حنين",
		Setting:    "قرية صحراوية",
	})
	require.NoError(t, err)
	return &stubAnalyzer{kind: domain.AnalyzerNarrative, env: env}
}

func historicalStub(t *testing.T) *stubAnalyzer {
	t.Helper()
	env, err := domain.NewHistoricalEnvelope(0.8, nil, domain.HistoricalAnalysis{
		Era:     "ما قبل الاستقلال",
		Period:  "الثلاثينيات",
		Markers: []string{"قافلة الملح"},
	})
	require.NoError(t, err)
	return &stubAnalyzer{kind: domain.AnalyzerHistorical, env: env}
}

func newTestOrchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()
	if deps.Narrative == nil {
		deps.Narrative = narrativeStub(t)
	}
	if deps.Inferrer == nil {
		deps.Inferrer = historicalStub(t)
	}
	if deps.Client == nil {
		deps.Client = providers.NewMockAdapter()
	}
	o, err := NewOrchestrator(deps)
	require.NoError(t, err)
	return o
}

func testRequest() domain.StoryRequest {
	return domain.StoryRequest{
		TaskID:       testTaskID,
		TenantID:     testTenant,
		Transcript:   "حدثني جدي عن ليالي الحصاد في القرية وعن قافلة الملح التي كانت تعبر كل خريف",
		TargetLength: domain.LengthShort,
		Policy:       domain.DefaultPipelinePolicy(),
		RequestedAt:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func critiqueJSON(t *testing.T, score float64, issues ...string) string {
	t.Helper()
	return mustJSON(t, critiqueWire{OverallScore: score, Issues: issues})
}

func blueprintJSON(t *testing.T) string {
	t.Helper()
	return mustJSON(t, testBlueprint())
}

func TestNewOrchestratorValidatesDeps(t *testing.T) {
	narrative := narrativeStub(t)
	historical := historicalStub(t)
	client := providers.NewMockAdapter()

	tests := []struct {
		name    string
		deps    Deps
		wantErr error
	}{
		{
			name:    "nil narrative",
			deps:    Deps{Inferrer: historical, Client: client},
			wantErr: errNilNarrative,
		},
		{
			name:    "narrative with wrong kind",
			deps:    Deps{Narrative: historical, Inferrer: historical, Client: client},
			wantErr: errWrongNarrative,
		},
		{
			name:    "nil inferrer",
			deps:    Deps{Narrative: narrative, Client: client},
			wantErr: errNilInferrer,
		},
		{
			name:    "inferrer with wrong kind",
			deps:    Deps{Narrative: narrative, Inferrer: narrative, Client: client},
			wantErr: errWrongInferrer,
		},
		{
			name:    "nil client",
			deps:    Deps{Narrative: narrative, Inferrer: historical},
			wantErr: errNilClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewOrchestrator(tt.deps)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, o)
		})
	}
}

// A short-length request must travel all five phases and come out as a
// single-unit artifact: the length table maps قصيرة to exactly one unit.
func TestRunShortLengthProducesSingleUnit(t *testing.T) {
	client := providers.NewMockAdapter(
		// Phase 2: register inference.
		providers.MockResult{Content: `{"register": "فصحى مبسطة بنكهة محلية", "notes": ["تجنب المفردات الحديثة"]}`},
		// Phase 3: opening drafts, then two exchanges.
		providers.MockResult{Content: "وثيقة الفكرة: قصة جد وحفيده عبر الصحراء"},
		providers.MockResult{Content: blueprintJSON(t)},
		providers.MockResult{Content: `{"issues": ["إبراز دور الحفيد"]}`},
		providers.MockResult{Content: blueprintJSON(t)},
		providers.MockResult{Content: "وثيقة الفكرة بعد الدمج الأول"},
		providers.MockResult{Content: `{"issues": []}`},
		providers.MockResult{Content: blueprintJSON(t)},
		providers.MockResult{Content: "وثيقة الفكرة النهائية"},
		// Phase 3: critical review, clean enough to route nothing.
		providers.MockResult{Content: critiqueJSON(t, 8.5)},
		// Phase 4: one unit drafted, enhanced, and accepted first try.
		providers.MockResult{Content: `{"title": "بئر العائلة", "body": "خرج سالم وحفيده ياسين قبل الفجر تتبعهما أدعية الجدة"}`},
		providers.MockResult{Content: `{"body": "خرج سالم وحفيده ياسين قبل الفجر تتبعهما أدعية الجدة ومثل قديم عن الصبر", "note": "أضيف مثل شعبي عن الصبر"}`},
		providers.MockResult{Content: critiqueJSON(t, 9.0)},
		// Phase 5: baseline already meets the threshold.
		providers.MockResult{Content: critiqueJSON(t, 9.1)},
	)
	o := newTestOrchestrator(t, Deps{Client: client})

	artifact, record, err := o.Run(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.TaskCompleted, record.Status)
	require.Len(t, record.Stages, 5)
	for i, phase := range domain.PhaseSequence() {
		assert.Equal(t, phase, record.Stages[i].Phase)
	}
	assert.InDelta(t, 1.0, record.Progress(), 1e-9)

	require.Len(t, artifact.Units, 1)
	assert.Equal(t, "بئر العائلة", artifact.Units[0].Title)
	assert.Positive(t, artifact.WordCount)
	assert.InDelta(t, 9.1, artifact.QualityMetrics["final"], 1e-9)
	assert.InDelta(t, 9.1, artifact.QualityMetrics["baseline"], 1e-9)
	assert.Contains(t, artifact.Enhancements, "الوحدة 1: أضيف مثل شعبي عن الصبر")
	assert.Empty(t, artifact.Warnings)

	assert.Equal(t, 14, client.Calls())
}

func TestRunFailsWhenAnalysisFails(t *testing.T) {
	narrative := narrativeStub(t)
	narrative.err = domain.NewAnalysisError("analyzer unavailable", errors.New("boom"))
	o := newTestOrchestrator(t, Deps{Narrative: narrative})

	artifact, record, err := o.Run(context.Background(), testRequest())
	require.Error(t, err)

	var phaseErr *domain.PhaseError
	require.ErrorAs(t, err, &phaseErr)
	assert.Equal(t, domain.PhaseAnalysis, phaseErr.Phase)
	assert.Equal(t, domain.FailureAnalysis, phaseErr.Kind)

	assert.Equal(t, domain.TaskFailed, record.Status)
	assert.Equal(t, domain.PhaseAnalysis, record.FailurePhase)
	assert.Equal(t, domain.FailureAnalysis, record.FailureKind)
	assert.Empty(t, record.Stages)
	assert.Empty(t, artifact.Units)
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	o := newTestOrchestrator(t, Deps{})

	req := testRequest()
	req.TargetLength = "رواية"

	_, _, err := o.Run(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestAnalyzeTranscriptLoadsProfile(t *testing.T) {
	profiles := store.NewMemoryProfileStore()
	require.NoError(t, profiles.Set(context.Background(), domain.StyleProfile{
		UserID:         "user-7",
		PreferredStyle: "واقعي اجتماعي",
		CulturalNotes:  []string{"عائلة من الجنوب التونسي"},
		UpdatedAt:      time.Now(),
	}))
	o := newTestOrchestrator(t, Deps{Profiles: profiles})

	out, err := o.AnalyzeTranscript(context.Background(), domain.AnalyzeTranscriptInput{
		TaskID:     testTaskID,
		TenantID:   testTenant,
		Transcript: "حدثني جدي عن ليالي الحصاد في القرية وعن قافلة الملح",
		UserID:     "user-7",
	})
	require.NoError(t, err)

	require.NotNil(t, out.Profile)
	assert.Equal(t, "واقعي اجتماعي", out.Profile.PreferredStyle)
	assert.Equal(t, "واقعي اجتماعي", out.EffectiveStyle,
		"profile preference should win when the request names no style")
	assert.Equal(t, domain.PhaseAnalysis, out.Stage.Phase)
	assert.Equal(t, true, out.Stage.Outputs["profile_loaded"])
}

func TestAnalyzeTranscriptStyleResolutionOrder(t *testing.T) {
	profiles := store.NewMemoryProfileStore()
	require.NoError(t, profiles.Set(context.Background(), domain.StyleProfile{
		UserID:         "user-7",
		PreferredStyle: "واقعي اجتماعي",
		UpdatedAt:      time.Now(),
	}))
	o := newTestOrchestrator(t, Deps{Profiles: profiles, DefaultStyle: "تراثي"})

	in := domain.AnalyzeTranscriptInput{
		TaskID:     testTaskID,
		TenantID:   testTenant,
		Transcript: "حدثني جدي عن ليالي الحصاد في القرية وعن قافلة الملح",
		Style:      "شعري",
		UserID:     "user-7",
	}
	out, err := o.AnalyzeTranscript(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "شعري", out.EffectiveStyle, "an explicit request style always wins")

	in.Style = ""
	in.UserID = ""
	out, err = o.AnalyzeTranscript(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "تراثي", out.EffectiveStyle,
		"no request style and no profile should fall back to the configured default")
}

func TestAnalyzeTranscriptMissingProfileIsNotAnError(t *testing.T) {
	o := newTestOrchestrator(t, Deps{Profiles: store.NewMemoryProfileStore()})

	out, err := o.AnalyzeTranscript(context.Background(), domain.AnalyzeTranscriptInput{
		TaskID:     testTaskID,
		TenantID:   testTenant,
		Transcript: "حدثني جدي عن ليالي الحصاد في القرية وعن قافلة الملح",
		UserID:     "user-unknown",
	})
	require.NoError(t, err)

	assert.Nil(t, out.Profile)
	assert.Empty(t, out.Stage.Warnings)
}

func TestInferContextDegradesOnAnalyzerFailure(t *testing.T) {
	historical := historicalStub(t)
	historical.err = domain.NewAnalysisError("inference timeout", errors.New("deadline"))
	client := providers.NewMockAdapter()
	o := newTestOrchestrator(t, Deps{Inferrer: historical, Client: client})

	out, err := o.InferContext(context.Background(), domain.InferContextInput{
		TaskID:     testTaskID,
		TenantID:   testTenant,
		Transcript: "حدثني جدي عن ليالي الحصاد في القرية وعن قافلة الملح",
		Analysis:   narrativeStub(t).env,
	})
	require.NoError(t, err)

	assert.True(t, out.Degraded)
	assert.True(t, out.Enrichment.IsEmpty())
	require.Len(t, out.Stage.Warnings, 1)
	assert.Contains(t, out.Stage.Warnings[0], "context inference unavailable")
	assert.Equal(t, 0, client.Calls())
}

func TestInferContextMapsPlacementAndRegister(t *testing.T) {
	client := providers.NewMockAdapter(
		providers.MockResult{Content: `{"register": "فصحى تراثية", "notes": ["استعمال أمثال قديمة"]}`},
	)
	o := newTestOrchestrator(t, Deps{Client: client})

	out, err := o.InferContext(context.Background(), domain.InferContextInput{
		TaskID:     testTaskID,
		TenantID:   testTenant,
		Transcript: "حدثني جدي عن ليالي الحصاد في القرية وعن قافلة الملح",
		Analysis:   narrativeStub(t).env,
	})
	require.NoError(t, err)

	assert.False(t, out.Degraded)
	assert.Equal(t, "ما قبل الاستقلال", out.Enrichment.Era)
	assert.Equal(t, "قرية صحراوية", out.Enrichment.Setting)
	assert.Equal(t, "فصحى تراثية", out.Enrichment.Register)
	assert.Equal(t, []string{"قافلة الملح"}, out.Enrichment.CulturalMarkers)
	assert.Contains(t, out.Enrichment.Notes, "استعمال أمثال قديمة")
	assert.InDelta(t, 0.8, out.Enrichment.Confidence, 1e-9)
}

func TestInferContextRegisterFailureOnlyWarns(t *testing.T) {
	client := providers.NewMockAdapter(
		providers.MockResult{Err: errors.New("provider overloaded")},
	)
	o := newTestOrchestrator(t, Deps{Client: client})

	out, err := o.InferContext(context.Background(), domain.InferContextInput{
		TaskID:     testTaskID,
		TenantID:   testTenant,
		Transcript: "حدثني جدي عن ليالي الحصاد في القرية وعن قافلة الملح",
		Analysis:   narrativeStub(t).env,
	})
	require.NoError(t, err)

	assert.False(t, out.Degraded)
	assert.Empty(t, out.Enrichment.Register)
	assert.Equal(t, "ما قبل الاستقلال", out.Enrichment.Era)
	require.Len(t, out.Stage.Warnings, 1)
	assert.Contains(t, out.Stage.Warnings[0], "register inference unavailable")
}
