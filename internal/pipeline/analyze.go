package pipeline

import (
	"context"
	"errors"

	"github.com/jatlaoui/ines/internal/analysis"
	"github.com/jatlaoui/ines/internal/domain"
)

// AnalyzeTranscript runs phase 1: the narrative base analysis every later
// phase consumes, the advisory style profile load, and the style
// resolution (request, then profile, then configured default). Analyzer
// failure aborts the task; a missing or unreadable profile only warns.
func (o *Orchestrator) AnalyzeTranscript(ctx context.Context, in domain.AnalyzeTranscriptInput) (domain.AnalyzeTranscriptOutput, error) {
	if err := in.Validate(); err != nil {
		return domain.AnalyzeTranscriptOutput{}, err
	}

	stage := o.beginStage(domain.PhaseAnalysis)

	env, err := o.narrative.Analyze(ctx, analysis.Request{
		TaskID:   in.TaskID,
		TenantID: in.TenantID,
		Text:     in.Transcript,
		Focus:    in.CulturalFocus,
	})
	if err != nil {
		return domain.AnalyzeTranscriptOutput{}, err
	}

	profile := o.loadProfile(ctx, in.UserID, &stage)

	style := EffectiveStyle(in.Style, profile)
	if style == "" {
		style = o.defaultStyle
	}

	stage.CompletedAt = o.now()
	stage.Outputs = map[string]any{
		"confidence":      env.Confidence,
		"recommendations": len(env.Recommendations),
		"profile_loaded":  profile != nil,
		"style":           style,
	}
	if env.Narrative != nil {
		stage.Outputs["characters"] = len(env.Narrative.Characters)
		stage.Outputs["themes"] = len(env.Narrative.Themes)
	}

	o.logger.InfoContext(ctx, "transcript analyzed",
		"task_id", in.TaskID, "confidence", env.Confidence, "profile_loaded", profile != nil)

	return domain.AnalyzeTranscriptOutput{
		Analysis:       env,
		Profile:        profile,
		EffectiveStyle: style,
		Stage:          stage,
	}, nil
}

// loadProfile fetches the user's style profile when both a store and a user
// id are present. Absence is normal; store failures warn on the stage and
// the pipeline proceeds with defaults.
func (o *Orchestrator) loadProfile(ctx context.Context, userID string, stage *domain.StageResult) *domain.StyleProfile {
	if o.profiles == nil || userID == "" {
		return nil
	}

	profile, err := o.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			o.logger.WarnContext(ctx, "profile load failed",
				"user_id", userID, "error", err)
			stage.Warnings = append(stage.Warnings, "style profile unavailable: "+err.Error())
		}
		return nil
	}
	return &profile
}
