package pipeline

import (
	"context"
	"fmt"

	"github.com/jatlaoui/ines/internal/collab"
	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

// BuildBlueprint runs phase 3: the idea generator and structure architect
// collaborate on the story blueprint, a critical review inspects the
// result, and every review recommendation is routed to its targeted
// refinement. Routing has no score gate: even a high-scoring blueprint gets
// every recommendation applied.
//
// Collaboration failure degrades to a single-creator fallback blueprint;
// review failure aborts the phase.
func (o *Orchestrator) BuildBlueprint(ctx context.Context, in domain.BuildBlueprintInput) (domain.BuildBlueprintOutput, error) {
	if err := in.Validate(); err != nil {
		return domain.BuildBlueprintOutput{}, err
	}

	stage := o.beginStage(domain.PhaseStructuring)
	brief := structuringBrief(in.Transcript, in.Analysis, in.Enrichment, in.Style, in.TargetLength)
	hints := blueprintHints(in)

	record, bp, degraded, err := o.collaborate(ctx, in, brief, hints, &stage)
	if err != nil {
		return domain.BuildBlueprintOutput{}, err
	}

	review, err := o.reviewBlueprint(ctx, in, bp)
	if err != nil {
		return domain.BuildBlueprintOutput{}, err
	}

	bp, refinements := o.routeReview(ctx, in, bp, review, &stage)

	stage.CompletedAt = o.now()
	stage.Outputs = map[string]any{
		"title":        bp.Title,
		"characters":   len(bp.Characters),
		"review_score": review.OverallScore,
		"refinements":  len(refinements),
		"exchanges":    len(record.FeedbackCycles),
		"degraded":     degraded,
	}

	o.logger.InfoContext(ctx, "blueprint built",
		"task_id", in.TaskID, "title", bp.Title, "review_score", review.OverallScore,
		"refinements", len(refinements), "degraded", degraded)

	return domain.BuildBlueprintOutput{
		Blueprint:     bp,
		Collaboration: record,
		Review:        review,
		Refinements:   refinements,
		Degraded:      degraded,
		Stage:         stage,
	}, nil
}

// blueprintHints collects the steering context shared by both participants.
func blueprintHints(in domain.BuildBlueprintInput) map[string]string {
	hints := make(map[string]string)
	if in.Style != "" {
		hints["الأسلوب"] = in.Style
	}
	if in.Enrichment.Era != "" {
		hints["الحقبة"] = in.Enrichment.Era
	}
	if in.Enrichment.Register != "" {
		hints["السجل اللغوي"] = in.Enrichment.Register
	}
	return hints
}

// collaborate runs the lead-partner exchange and parses the agreed
// blueprint. Collaboration failure falls back to a single creator with the
// same brief; when the fallback also fails, the original collaboration
// error is what surfaces.
func (o *Orchestrator) collaborate(ctx context.Context, in domain.BuildBlueprintInput, brief string, hints map[string]string, stage *domain.StageResult) (domain.CollaborationRecord, domain.StoryBlueprint, bool, error) {
	coordinator, err := collab.NewCoordinator(
		collab.Config{ExchangeCount: in.Policy.ExchangeCount}, nil, o.logger)
	if err != nil {
		return domain.CollaborationRecord{}, domain.StoryBlueprint{}, false, err
	}

	lead := &ideaLead{client: o.client, taskID: in.TaskID, tenantID: in.TenantID, context: hints}
	partner := &structurePartner{client: o.client, taskID: in.TaskID, tenantID: in.TenantID, context: hints}

	record, collabErr := coordinator.Run(ctx, collab.Assignment{
		TaskID:  in.TaskID,
		Brief:   brief,
		Context: hints,
	}, lead, partner)
	if collabErr == nil {
		bp, parseErr := parseBlueprint(record.FinalPartner)
		if parseErr != nil {
			return domain.CollaborationRecord{}, domain.StoryBlueprint{}, false,
				domain.NewGenerationError("agreed blueprint is malformed", parseErr)
		}
		return record, bp, false, nil
	}
	if ctx.Err() != nil {
		return domain.CollaborationRecord{}, domain.StoryBlueprint{}, false, collabErr
	}

	o.logger.WarnContext(ctx, "collaboration failed, falling back to single author",
		"task_id", in.TaskID, "error", collabErr)

	bp, fbErr := o.fallbackBlueprint(ctx, in, brief)
	if fbErr != nil {
		o.logger.ErrorContext(ctx, "fallback blueprint failed",
			"task_id", in.TaskID, "error", fbErr)
		return domain.CollaborationRecord{}, domain.StoryBlueprint{}, false, collabErr
	}

	stage.Warnings = append(stage.Warnings,
		"collaboration failed, blueprint produced by single-author fallback: "+collabErr.Error())
	return domain.CollaborationRecord{}, bp, true, nil
}

// fallbackBlueprint asks one creator for the whole blueprint in a single
// call, bypassing the exchange protocol.
func (o *Orchestrator) fallbackBlueprint(ctx context.Context, in domain.BuildBlueprintInput, brief string) (domain.StoryBlueprint, error) {
	system, user := blueprintFallbackPrompt(brief)
	resp, err := complete(ctx, o.client, transport.OpGeneration, in.TaskID, in.TenantID,
		system, user, ":blueprint:fallback", generationTemperature, generationMaxTokens)
	if err != nil {
		return domain.StoryBlueprint{}, err
	}
	return parseBlueprint(resp.Content)
}

// reviewBlueprint runs the critical review of the agreed blueprint.
func (o *Orchestrator) reviewBlueprint(ctx context.Context, in domain.BuildBlueprintInput, bp domain.StoryBlueprint) (domain.CritiqueReport, error) {
	system, user := blueprintReviewPrompt(bp)
	resp, err := complete(ctx, o.client, transport.OpCritique, in.TaskID, in.TenantID,
		system, user, ":blueprint:review", critiqueTemperature, critiqueMaxTokens)
	if err != nil {
		return domain.CritiqueReport{}, err
	}
	return parseCritique(resp.Content)
}

// routeReview dispatches every review recommendation to its deficiency
// category's refinement action. An action failure marks the refinement
// unapplied and the phase continues; an unroutable recommendation becomes a
// stage warning. Refinements apply sequentially, each on the blueprint the
// previous one produced.
func (o *Orchestrator) routeReview(ctx context.Context, in domain.BuildBlueprintInput, bp domain.StoryBlueprint, review domain.CritiqueReport, stage *domain.StageResult) (domain.StoryBlueprint, []domain.RoutedRefinement) {
	if len(review.Issues) == 0 {
		return bp, nil
	}

	refinements := make([]domain.RoutedRefinement, 0, len(review.Issues))
	for i, rec := range review.Issues {
		category, ok := ClassifyDeficiency(rec)
		if !ok {
			stage.Warnings = append(stage.Warnings, "unrouted recommendation: "+rec)
			continue
		}

		revised, err := applyRefinement(ctx, o.client, in.TaskID, in.TenantID, category, bp, rec, i)
		if err != nil {
			o.logger.WarnContext(ctx, "blueprint refinement failed",
				"task_id", in.TaskID, "category", category, "error", err)
			stage.Warnings = append(stage.Warnings,
				fmt.Sprintf("refinement %s not applied: %s", category, err))
			refinements = append(refinements, domain.RoutedRefinement{
				Category:       category,
				Recommendation: rec,
				Applied:        false,
				Note:           err.Error(),
			})
			continue
		}

		bp = revised
		refinements = append(refinements, domain.RoutedRefinement{
			Category:       category,
			Recommendation: rec,
			Applied:        true,
		})
	}
	return bp, refinements
}
