package refine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatlaoui/ines/internal/domain"
)

// scriptedCreator returns one pre-set body per call and records the feedback
// it was handed, so tests can assert what flows between cycles.
type scriptedCreator struct {
	bodies       []string
	calls        int
	feedbackSeen []domain.Feedback
}

func (c *scriptedCreator) Create(_ context.Context, a Assignment, fb domain.Feedback) (domain.GenerationResult, error) {
	idx := c.calls
	c.calls++
	c.feedbackSeen = append(c.feedbackSeen, fb.Clone())
	if idx >= len(c.bodies) {
		return domain.GenerationResult{}, fmt.Errorf("unscripted creator call %d", idx)
	}
	return domain.GenerationResult{
		Content: domain.MakeContentUnit(a.Scope, idx, "", c.bodies[idx], nil),
	}, nil
}

type failingCreator struct{ err error }

func (c *failingCreator) Create(context.Context, Assignment, domain.Feedback) (domain.GenerationResult, error) {
	return domain.GenerationResult{}, c.err
}

// scriptedCritic returns one pre-set score per call, with optional issue
// lists aligned by index.
type scriptedCritic struct {
	scores []float64
	issues [][]string
	calls  int
}

func (c *scriptedCritic) Critique(_ context.Context, _ domain.ContentUnit) (domain.CritiqueReport, error) {
	idx := c.calls
	c.calls++
	if idx >= len(c.scores) {
		return domain.CritiqueReport{}, fmt.Errorf("unscripted critic call %d", idx)
	}
	report := domain.CritiqueReport{OverallScore: c.scores[idx]}
	if idx < len(c.issues) {
		report.Issues = c.issues[idx]
	}
	return report, nil
}

type failingCritic struct{ err error }

func (c *failingCritic) Critique(context.Context, domain.ContentUnit) (domain.CritiqueReport, error) {
	return domain.CritiqueReport{}, c.err
}

func testAssignment() Assignment {
	return Assignment{
		TaskID: "11111111-2222-3333-4444-555555555555",
		Scope:  "unit-0",
		Brief:  "اكتب فصلاً عن سوق المدينة العتيقة",
	}
}

func TestNewEngine(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "defaults valid", cfg: DefaultConfig()},
		{name: "zero cycles valid", cfg: Config{QualityThreshold: 5.0, MaxCycles: 0}},
		{name: "threshold above range", cfg: Config{QualityThreshold: 10.5, MaxCycles: 1}, wantErr: errThresholdOutOfRange},
		{name: "threshold below range", cfg: Config{QualityThreshold: -0.1, MaxCycles: 1}, wantErr: errThresholdOutOfRange},
		{name: "negative cycles", cfg: Config{QualityThreshold: 8.0, MaxCycles: -1}, wantErr: errMaxCyclesNegative},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, err := NewEngine(tt.cfg, nil, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, engine)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, engine)
		})
	}
}

func TestEngine_Run_MeetsThresholdOnFinalCycle(t *testing.T) {
	engine, err := NewEngine(Config{QualityThreshold: 8.0, MaxCycles: 2}, nil, nil)
	require.NoError(t, err)

	creator := &scriptedCreator{bodies: []string{
		"مسودة أولى قصيرة",
		"مسودة ثانية أفضل قليلاً",
		"النسخة الثالثة المكتملة للفصل",
	}}
	critic := &scriptedCritic{scores: []float64{5.0, 7.5, 9.0}}

	outcome, err := engine.Run(context.Background(), testAssignment(), creator, critic)
	require.NoError(t, err)

	assert.Equal(t, 3, outcome.CyclesUsed)
	assert.InDelta(t, 9.0, outcome.FinalScore, 1e-9)
	assert.True(t, outcome.ThresholdMet)
	assert.Equal(t, "النسخة الثالثة المكتملة للفصل", outcome.FinalContent.Body)
	assert.Equal(t, 3, creator.calls)
	assert.Equal(t, 3, critic.calls)
}

func TestEngine_Run_BudgetExhaustedBelowThreshold(t *testing.T) {
	engine, err := NewEngine(Config{QualityThreshold: 8.0, MaxCycles: 1}, nil, nil)
	require.NoError(t, err)

	creator := &scriptedCreator{bodies: []string{"مسودة أولى", "مسودة ثانية محسنة"}}
	critic := &scriptedCritic{scores: []float64{5.0, 7.0}}

	outcome, err := engine.Run(context.Background(), testAssignment(), creator, critic)
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.CyclesUsed)
	assert.InDelta(t, 7.0, outcome.FinalScore, 1e-9)
	assert.False(t, outcome.ThresholdMet)
	assert.Equal(t, "مسودة ثانية محسنة", outcome.FinalContent.Body, "budget exhaustion returns the last cycle's content")
	assert.True(t, outcome.BudgetExhausted(1))
}

func TestEngine_Run_EmptyContentIsFatal(t *testing.T) {
	engine, err := NewEngine(DefaultConfig(), nil, nil)
	require.NoError(t, err)

	creator := &scriptedCreator{bodies: []string{"   \n\t  "}}
	critic := &scriptedCritic{scores: []float64{9.9}}

	_, err = engine.Run(context.Background(), testAssignment(), creator, critic)

	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Contains(t, genErr.Reason, "empty content")
	assert.Equal(t, 0, critic.calls, "critic must not see unusable content")
	assert.Equal(t, 1, creator.calls, "no retry after a generation failure")
}

func TestEngine_Run_FeedbackFlow(t *testing.T) {
	engine, err := NewEngine(Config{QualityThreshold: 8.0, MaxCycles: 2}, nil, nil)
	require.NoError(t, err)

	creator := &scriptedCreator{bodies: []string{"مسودة", "مسودة منقحة", "مسودة نهائية"}}
	critic := &scriptedCritic{
		scores: []float64{4.0, 6.0, 8.5},
		issues: [][]string{
			{"الشخصيات مسطحة", "الحبكة متسرعة"},
			{"الحوار يحتاج عمقاً"},
		},
	}

	outcome, err := engine.Run(context.Background(), testAssignment(), creator, critic)
	require.NoError(t, err)
	require.Equal(t, 3, creator.calls)

	assert.Nil(t, creator.feedbackSeen[0], "opening cycle carries no feedback")
	assert.Equal(t, domain.Feedback{"الشخصيات مسطحة", "الحبكة متسرعة"}, creator.feedbackSeen[1])
	assert.Equal(t, domain.Feedback{"الحوار يحتاج عمقاً"}, creator.feedbackSeen[2])
	assert.True(t, outcome.ThresholdMet)
}

func TestEngine_Run_ThresholdIsInclusive(t *testing.T) {
	engine, err := NewEngine(Config{QualityThreshold: 8.0, MaxCycles: 2}, nil, nil)
	require.NoError(t, err)

	creator := &scriptedCreator{bodies: []string{"مسودة ممتازة من المحاولة الأولى"}}
	critic := &scriptedCritic{scores: []float64{8.0}}

	outcome, err := engine.Run(context.Background(), testAssignment(), creator, critic)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.CyclesUsed, "a score equal to the threshold stops the run")
	assert.True(t, outcome.ThresholdMet)
	assert.Equal(t, 1, creator.calls)
}

func TestEngine_Run_SingleAttempt(t *testing.T) {
	engine, err := NewEngine(Config{QualityThreshold: 8.0, MaxCycles: 0}, nil, nil)
	require.NoError(t, err)

	creator := &scriptedCreator{bodies: []string{"محاولة وحيدة"}}
	critic := &scriptedCritic{scores: []float64{4.0}}

	outcome, err := engine.Run(context.Background(), testAssignment(), creator, critic)
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.CyclesUsed)
	assert.False(t, outcome.ThresholdMet)
	assert.Equal(t, "محاولة وحيدة", outcome.FinalContent.Body)
	assert.InDelta(t, 4.0, outcome.FinalScore, 1e-9)
}

func TestEngine_Run_ObserverSeesEveryCycle(t *testing.T) {
	type observation struct {
		cycle int
		score float64
	}
	var seen []observation

	observer := func(cycle int, score float64, _ domain.Feedback) {
		seen = append(seen, observation{cycle: cycle, score: score})
	}
	engine, err := NewEngine(Config{QualityThreshold: 8.0, MaxCycles: 2}, observer, nil)
	require.NoError(t, err)

	creator := &scriptedCreator{bodies: []string{"أ", "ب", "ج"}}
	critic := &scriptedCritic{scores: []float64{5.0, 7.5, 9.0}}

	_, err = engine.Run(context.Background(), testAssignment(), creator, critic)
	require.NoError(t, err)

	assert.Equal(t, []observation{{0, 5.0}, {1, 7.5}, {2, 9.0}}, seen)
}

func TestEngine_Run_CreatorErrorWrapped(t *testing.T) {
	engine, err := NewEngine(DefaultConfig(), nil, nil)
	require.NoError(t, err)

	cause := errors.New("provider unavailable")
	_, err = engine.Run(context.Background(), testAssignment(), &failingCreator{err: cause}, &scriptedCritic{scores: []float64{9.0}})

	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, cause)
}

func TestEngine_Run_CriticErrorIsFatal(t *testing.T) {
	engine, err := NewEngine(DefaultConfig(), nil, nil)
	require.NoError(t, err)

	cause := errors.New("malformed critique response")
	creator := &scriptedCreator{bodies: []string{"مسودة"}}

	_, err = engine.Run(context.Background(), testAssignment(), creator, &failingCritic{err: cause})

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "cycle 0")
	var genErr *domain.GenerationError
	assert.False(t, errors.As(err, &genErr), "critic failures are not generation failures")
}

func TestEngine_Run_ContextCancelled(t *testing.T) {
	engine, err := NewEngine(DefaultConfig(), nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	creator := &scriptedCreator{bodies: []string{"مسودة"}}
	_, err = engine.Run(ctx, testAssignment(), creator, &scriptedCritic{scores: []float64{9.0}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, creator.calls)
}

func TestEngine_Run_InvalidInputs(t *testing.T) {
	engine, err := NewEngine(DefaultConfig(), nil, nil)
	require.NoError(t, err)

	creator := &scriptedCreator{bodies: []string{"مسودة"}}
	critic := &scriptedCritic{scores: []float64{9.0}}

	t.Run("nil creator", func(t *testing.T) {
		_, err := engine.Run(context.Background(), testAssignment(), nil, critic)
		assert.ErrorIs(t, err, errNilCreator)
	})

	t.Run("nil critic", func(t *testing.T) {
		_, err := engine.Run(context.Background(), testAssignment(), creator, nil)
		assert.ErrorIs(t, err, errNilCritic)
	})

	t.Run("blank brief", func(t *testing.T) {
		a := testAssignment()
		a.Brief = "   "
		_, err := engine.Run(context.Background(), a, creator, critic)
		assert.ErrorIs(t, err, errMissingBrief)
	})
}

func TestEngine_Run_Reusable(t *testing.T) {
	engine, err := NewEngine(Config{QualityThreshold: 8.0, MaxCycles: 1}, nil, nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		creator := &scriptedCreator{bodies: []string{"مسودة جيدة جداً"}}
		critic := &scriptedCritic{scores: []float64{8.5}}

		outcome, err := engine.Run(context.Background(), testAssignment(), creator, critic)
		require.NoError(t, err)
		assert.Equal(t, 1, outcome.CyclesUsed)
		assert.True(t, outcome.ThresholdMet)
	}
}
