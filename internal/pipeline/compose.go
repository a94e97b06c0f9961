package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/refine"
)

// shortUnitFraction flags units shorter than this fraction of the mean
// unit length in the consistency pass.
const shortUnitFraction = 0.25

// ComposeUnits runs phase 4: one refinement loop per content unit against
// the blueprint, cultural enhancement woven into each draft, then
// deterministic cross-unit consistency checks over the assembled draft.
// Consistency violations are reported as warnings, never corrected: the
// draft that met its per-unit quality bar is what moves forward.
func (o *Orchestrator) ComposeUnits(ctx context.Context, in domain.ComposeUnitsInput) (domain.ComposeUnitsOutput, error) {
	if err := in.Validate(); err != nil {
		return domain.ComposeUnitsOutput{}, err
	}

	stage := o.beginStage(domain.PhaseGeneration)

	count, err := in.TargetLength.UnitCount()
	if err != nil {
		return domain.ComposeUnitsOutput{}, err
	}

	units := make([]domain.ContentUnit, 0, count)
	scores := make([]float64, 0, count)
	var cycles []domain.UnitCycleTrace
	var enhancements []string

	for i := 0; i < count; i++ {
		outcome, err := o.composeUnit(ctx, in, i, count, &cycles)
		if err != nil {
			return domain.ComposeUnitsOutput{}, err
		}
		if len(cycles) > 0 {
			cycles[len(cycles)-1].Accepted = true
		}
		if outcome.BudgetExhausted(in.Policy.UnitReviseCycles) {
			stage.Warnings = append(stage.Warnings,
				fmt.Sprintf("unit %d below quality threshold after %d cycles (score %.2f)",
					i, outcome.CyclesUsed, outcome.FinalScore))
		}
		if note := outcome.FinalContent.Metadata["cultural_enhancement"]; note != "" {
			enhancements = append(enhancements, fmt.Sprintf("الوحدة %d: %s", i+1, note))
		}

		units = append(units, outcome.FinalContent)
		scores = append(scores, outcome.FinalScore)
	}

	draft := domain.StoryDraft{
		TaskID: in.TaskID,
		Title:  in.Blueprint.Title,
		Units:  units,
	}
	consistency := checkConsistency(in.Blueprint, draft)

	stage.CompletedAt = o.now()
	stage.Outputs = map[string]any{
		"units":                count,
		"word_count":           draft.WordCount(),
		"consistency_warnings": len(consistency),
		"enhancements":         len(enhancements),
	}

	o.logger.InfoContext(ctx, "units composed",
		"task_id", in.TaskID, "units", count, "word_count", draft.WordCount(),
		"consistency_warnings", len(consistency))

	return domain.ComposeUnitsOutput{
		Draft:               draft,
		UnitScores:          scores,
		Cycles:              cycles,
		ConsistencyWarnings: consistency,
		Enhancements:        enhancements,
		Stage:               stage,
	}, nil
}

// composeUnit runs the per-unit refinement loop: draft, critique against
// the blueprint, revise within the policy budget.
func (o *Orchestrator) composeUnit(ctx context.Context, in domain.ComposeUnitsInput, index, count int, cycles *[]domain.UnitCycleTrace) (domain.RefinementOutcome, error) {
	observer := func(cycle int, score float64, feedback domain.Feedback) {
		*cycles = append(*cycles, domain.UnitCycleTrace{
			UnitIndex:     index,
			CycleIndex:    cycle,
			Score:         score,
			FeedbackCount: len(feedback),
		})
	}

	engine, err := refine.NewEngine(refine.Config{
		QualityThreshold: in.Policy.QualityThreshold,
		MaxCycles:        in.Policy.UnitReviseCycles,
	}, observer, o.logger)
	if err != nil {
		return domain.RefinementOutcome{}, err
	}

	creator := &unitCreator{
		client:     o.client,
		logger:     o.logger,
		taskID:     in.TaskID,
		tenantID:   in.TenantID,
		blueprint:  in.Blueprint,
		enrichment: in.Enrichment,
		style:      in.Style,
		tradition:  in.CulturalFocus,
		index:      index,
		count:      count,
	}
	critic := newUnitCritic(o.client, in.TaskID, in.TenantID, in.Blueprint)

	return engine.Run(ctx, refine.Assignment{
		TaskID: in.TaskID,
		Scope:  fmt.Sprintf("unit-%d", index),
		Brief:  fmt.Sprintf("كتابة الوحدة %d من %d وفق مخطط القصة", index+1, count),
	}, creator, critic)
}

// checkConsistency runs the deterministic cross-unit checks: blueprint
// characters that never appear in any unit, and units far shorter than
// their siblings. Pure text checks, no LLM involved.
func checkConsistency(bp domain.StoryBlueprint, draft domain.StoryDraft) []string {
	var warnings []string

	for _, character := range bp.Characters {
		if character.Name == "" {
			continue
		}
		found := false
		for _, unit := range draft.Units {
			if strings.Contains(unit.Body, character.Name) {
				found = true
				break
			}
		}
		if !found {
			warnings = append(warnings,
				fmt.Sprintf("character %q absent from all units", character.Name))
		}
	}

	if len(draft.Units) > 1 {
		mean := float64(draft.WordCount()) / float64(len(draft.Units))
		for i, unit := range draft.Units {
			if float64(unit.WordCount) < mean*shortUnitFraction {
				warnings = append(warnings,
					fmt.Sprintf("unit %d is far shorter than its siblings (%d words, mean %.0f)",
						i, unit.WordCount, mean))
			}
		}
	}
	return warnings
}
