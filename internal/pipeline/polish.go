package pipeline

import (
	"context"
	"fmt"

	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/refine"
)

// PolishStory runs phase 5: the assembled draft goes through up to
// PolishCycles whole-story rewrite cycles, each with its positional focus
// (structure, then content, then style). Two stop rules apply after every
// cycle: the quality threshold, and the diminishing-returns cutoff when a
// cycle improves the score by less than the policy delta. A cycle that
// regresses the score is discarded; the predecessor content stands and the
// loop stops.
func (o *Orchestrator) PolishStory(ctx context.Context, in domain.PolishStoryInput) (domain.PolishStoryOutput, error) {
	if err := in.Validate(); err != nil {
		return domain.PolishStoryOutput{}, err
	}

	stage := o.beginStage(domain.PhaseRefinement)
	critic := newStoryCritic(o.client, in.TaskID, in.TenantID)

	baseline, err := critic.Critique(ctx, domain.MakeContentUnit(
		in.TaskID+"-baseline", 0, in.Draft.Title, in.Draft.Combined(), nil))
	if err != nil {
		return domain.PolishStoryOutput{}, fmt.Errorf("baseline critique: %w", err)
	}

	bodies := make([]string, len(in.Draft.Units))
	for i, unit := range in.Draft.Units {
		bodies[i] = unit.Body
	}

	score := baseline.OverallScore
	issues := domain.Feedback(baseline.Issues)
	sequence := domain.PolishSequence()
	var cycles []domain.PolishCycle

	for k := 1; k <= in.Policy.PolishCycles && score < in.Policy.QualityThreshold; k++ {
		focus := sequence[k-1]

		outcome, polished, err := o.polishCycle(ctx, in, k, focus, bodies, issues)
		if err != nil {
			return domain.PolishStoryOutput{}, err
		}

		improvement := outcome.FinalScore - score
		cycles = append(cycles, domain.PolishCycle{
			CycleIndex:  k,
			Focus:       focus,
			ScoreBefore: score,
			ScoreAfter:  outcome.FinalScore,
			Improvement: improvement,
		})

		if improvement < 0 {
			stage.Warnings = append(stage.Warnings, fmt.Sprintf(
				"polish cycle %d (%s) regressed the score from %.2f to %.2f, keeping predecessor",
				k, focus, score, outcome.FinalScore))
			break
		}

		bodies = polished
		score = outcome.FinalScore
		issues = domain.Feedback(outcome.FinalCritique.Issues)

		if improvement < in.Policy.ImprovementDelta {
			o.logger.InfoContext(ctx, "polish stopped on diminishing returns",
				"task_id", in.TaskID, "cycle", k, "improvement", improvement,
				"delta", in.Policy.ImprovementDelta)
			break
		}
	}

	thresholdMet := score >= in.Policy.QualityThreshold
	artifact := o.assembleArtifact(in, bodies, baseline.OverallScore, score, cycles, thresholdMet)
	if !thresholdMet {
		stage.Warnings = append(stage.Warnings, fmt.Sprintf(
			"quality threshold %.1f never met, final score %.2f", in.Policy.QualityThreshold, score))
	}

	stage.CompletedAt = o.now()
	stage.Outputs = map[string]any{
		"baseline_score": baseline.OverallScore,
		"final_score":    score,
		"cycles":         len(cycles),
		"threshold_met":  thresholdMet,
	}

	o.logger.InfoContext(ctx, "story polished",
		"task_id", in.TaskID, "baseline", baseline.OverallScore, "final_score", score,
		"cycles", len(cycles), "threshold_met", thresholdMet)

	return domain.PolishStoryOutput{
		Artifact:      artifact,
		BaselineScore: baseline.OverallScore,
		Cycles:        cycles,
		FinalScore:    score,
		ThresholdMet:  thresholdMet,
		Stage:         stage,
	}, nil
}

// polishCycle runs one focus cycle as a single-attempt engine run and
// returns the outcome plus the rewritten unit bodies.
func (o *Orchestrator) polishCycle(ctx context.Context, in domain.PolishStoryInput, k int, focus domain.PolishFocus, bodies []string, issues domain.Feedback) (domain.RefinementOutcome, []string, error) {
	engine, err := refine.NewEngine(refine.Config{
		QualityThreshold: in.Policy.QualityThreshold,
		MaxCycles:        0,
	}, nil, o.logger)
	if err != nil {
		return domain.RefinementOutcome{}, nil, err
	}

	creator := &polishCreator{
		client:   o.client,
		taskID:   in.TaskID,
		tenantID: in.TenantID,
		focus:    focus,
		units:    bodies,
		issues:   issues,
		style:    in.Style,
		register: in.Enrichment.Register,
	}
	critic := newStoryCritic(o.client, in.TaskID, in.TenantID)

	outcome, err := engine.Run(ctx, refine.Assignment{
		TaskID: in.TaskID,
		Scope:  fmt.Sprintf("polish-%d", k),
		Brief:  "تنقيح القصة الكاملة بتركيز " + string(focus),
	}, creator, critic)
	if err != nil {
		return domain.RefinementOutcome{}, nil, err
	}
	return outcome, creator.last, nil
}

// assembleArtifact rebuilds the story with the polished bodies while
// keeping each unit's identity, title, and metadata from the draft.
func (o *Orchestrator) assembleArtifact(in domain.PolishStoryInput, bodies []string, baseline, final float64, cycles []domain.PolishCycle, thresholdMet bool) domain.StoryArtifact {
	units := make([]domain.ContentUnit, len(in.Draft.Units))
	var enhancements []string
	for i, unit := range in.Draft.Units {
		units[i] = domain.MakeContentUnit(unit.ID, unit.Index, unit.Title, bodies[i], unit.Metadata)
		if note := unit.Metadata["cultural_enhancement"]; note != "" {
			enhancements = append(enhancements, fmt.Sprintf("الوحدة %d: %s", i+1, note))
		}
	}

	artifact := domain.StoryArtifact{
		TaskID: in.TaskID,
		Title:  in.Draft.Title,
		Units:  units,
		QualityMetrics: map[string]float64{
			"baseline": baseline,
			"final":    final,
		},
		FinalScores:  map[string]float64{"overall": final},
		Enhancements: enhancements,
		CompletedAt:  o.now(),
	}
	for _, unit := range units {
		artifact.WordCount += unit.WordCount
	}
	for _, cycle := range cycles {
		artifact.FinalScores[string(cycle.Focus)] = cycle.ScoreAfter
	}
	if in.Enrichment.Confidence > 0 {
		artifact.AuthenticityMetrics = map[string]float64{
			"context_confidence": in.Enrichment.Confidence,
		}
	}
	if !thresholdMet {
		artifact.Warnings = append(artifact.Warnings, fmt.Sprintf(
			"quality threshold %.1f never met, final score %.2f", in.Policy.QualityThreshold, final))
	}
	return artifact
}
