package pipeline

import (
	"context"

	"github.com/jatlaoui/ines/internal/analysis"
	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

// InferContext runs phase 2: historical placement of the transcript plus
// the linguistic register the prose should adopt. This is the one phase
// that never aborts the task: an inference failure degrades to an empty
// enrichment with a stage warning, and a register failure keeps the
// placement but leaves the register unset.
func (o *Orchestrator) InferContext(ctx context.Context, in domain.InferContextInput) (domain.InferContextOutput, error) {
	if err := in.Validate(); err != nil {
		return domain.InferContextOutput{}, err
	}

	stage := o.beginStage(domain.PhaseInference)

	env, err := o.inferrer.Analyze(ctx, analysis.Request{
		TaskID:   in.TaskID,
		TenantID: in.TenantID,
		Text:     in.Transcript,
		Context: map[string]string{
			"التحليل الأساسي": analysisDigest(in.Analysis),
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.InferContextOutput{}, ctx.Err()
		}
		o.logger.WarnContext(ctx, "context inference degraded",
			"task_id", in.TaskID, "error", err)

		stage.CompletedAt = o.now()
		stage.Warnings = append(stage.Warnings, "context inference unavailable: "+err.Error())
		stage.Outputs = map[string]any{"degraded": true}
		return domain.InferContextOutput{
			Enrichment: domain.ContextEnrichment{},
			Degraded:   true,
			Stage:      stage,
		}, nil
	}

	enrichment := mapEnrichment(env, in.Analysis)
	o.inferRegister(ctx, in, &enrichment, &stage)

	stage.CompletedAt = o.now()
	stage.Outputs = map[string]any{
		"era":        enrichment.Era,
		"register":   enrichment.Register,
		"markers":    len(enrichment.CulturalMarkers),
		"confidence": enrichment.Confidence,
		"degraded":   false,
	}

	o.logger.InfoContext(ctx, "context inferred",
		"task_id", in.TaskID, "era", enrichment.Era,
		"register", enrichment.Register, "confidence", enrichment.Confidence)

	return domain.InferContextOutput{
		Enrichment: enrichment,
		Degraded:   false,
		Stage:      stage,
	}, nil
}

// mapEnrichment projects a historical envelope onto the enrichment shape.
// The narrative setting from phase 1 wins over the bare period span because
// it carries place as well as time.
func mapEnrichment(env domain.AnalysisEnvelope, base domain.AnalysisEnvelope) domain.ContextEnrichment {
	enr := domain.ContextEnrichment{
		Confidence: env.Confidence,
		Notes:      append([]string(nil), env.Recommendations...),
	}
	if env.Historical != nil {
		enr.Era = env.Historical.Era
		enr.Setting = env.Historical.Period
		enr.CulturalMarkers = append([]string(nil), env.Historical.Markers...)
		if env.Historical.Period != "" {
			enr.Notes = append(enr.Notes, "الفترة الزمنية: "+env.Historical.Period)
		}
	}
	if base.Narrative != nil && base.Narrative.Setting != "" {
		enr.Setting = base.Narrative.Setting
	}
	return enr
}

// inferRegister asks for the linguistic register matching the placement.
// Best-effort: failure leaves the register empty and warns on the stage.
func (o *Orchestrator) inferRegister(ctx context.Context, in domain.InferContextInput, enr *domain.ContextEnrichment, stage *domain.StageResult) {
	system, user := registerPrompt(enr.Era, enr.CulturalMarkers)
	resp, err := complete(ctx, o.client, transport.OpAnalysis, in.TaskID, in.TenantID,
		system, user, ":infer:register", critiqueTemperature, critiqueMaxTokens)
	if err == nil {
		var wire registerWire
		err = decodeWire(resp.Content, &wire)
		if err == nil {
			enr.Register = wire.Register
			enr.Notes = append(enr.Notes, wire.Notes...)
			return
		}
	}

	o.logger.WarnContext(ctx, "register inference skipped",
		"task_id", in.TaskID, "error", err)
	stage.Warnings = append(stage.Warnings, "register inference unavailable: "+err.Error())
}
