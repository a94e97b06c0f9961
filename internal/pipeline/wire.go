package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jatlaoui/ines/internal/domain"
)

// Wire shapes for the agents' JSON replies. Field names are the contract
// between the prompt builders and these parsers; prompt wording is not.

// critiqueWire is the reply shape of every critique prompt.
type critiqueWire struct {
	OverallScore float64  `json:"overall_score"`
	Issues       []string `json:"issues"`
	Strengths    []string `json:"strengths"`
}

// unitWire is the reply shape of unit draft and revision prompts.
type unitWire struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// enhanceWire is the reply shape of the cultural enhancement prompt.
type enhanceWire struct {
	Body string `json:"body"`
	Note string `json:"note"`
}

// blueprintWire is the reply shape of every blueprint-producing prompt:
// the partner's structure drafts, the targeted refinement actions, and the
// degraded single-author fallback.
type blueprintWire struct {
	Title      string                   `json:"title"`
	Premise    string                   `json:"premise"`
	Themes     []string                 `json:"themes"`
	Characters []domain.CharacterSketch `json:"characters"`
	Outline    string                   `json:"outline"`
}

// issuesWire is the reply shape of the lead's review prompt.
type issuesWire struct {
	Issues []string `json:"issues"`
}

// polishWire is the reply shape of polish cycles: the full story with unit
// boundaries preserved.
type polishWire struct {
	Units []string `json:"units"`
}

// registerWire is the reply shape of the register inference prompt.
type registerWire struct {
	Register string   `json:"register"`
	Notes    []string `json:"notes"`
}

// trailingCommaRe fixes the trailing commas some models emit before a
// closing brace or bracket.
var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// repairJSON strips markdown fences and trailing commas so that mildly
// malformed model output still parses. Anything beyond that is a real
// failure the caller surfaces.
func repairJSON(content string) string {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	return trailingCommaRe.ReplaceAllString(trimmed, "$1")
}

// decodeWire unmarshals content into out, retrying once after repair.
func decodeWire(content string, out any) error {
	if err := json.Unmarshal([]byte(content), out); err == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(repairJSON(content)), out); err != nil {
		return fmt.Errorf("reply is not valid JSON: %w", err)
	}
	return nil
}

// parseCritique decodes a critique reply and clamps the score into the
// legal range, as critic implementations must.
func parseCritique(content string) (domain.CritiqueReport, error) {
	var wire critiqueWire
	if err := decodeWire(content, &wire); err != nil {
		return domain.CritiqueReport{}, fmt.Errorf("critique %w", err)
	}
	return domain.CritiqueReport{
		OverallScore: domain.ClampScore(wire.OverallScore),
		Issues:       wire.Issues,
		Strengths:    wire.Strengths,
	}, nil
}

// parseBlueprint decodes a blueprint reply and validates the result.
func parseBlueprint(content string) (domain.StoryBlueprint, error) {
	var wire blueprintWire
	if err := decodeWire(content, &wire); err != nil {
		return domain.StoryBlueprint{}, fmt.Errorf("blueprint %w", err)
	}
	bp := domain.StoryBlueprint{
		Title:      strings.TrimSpace(wire.Title),
		Premise:    strings.TrimSpace(wire.Premise),
		Themes:     wire.Themes,
		Characters: wire.Characters,
		Outline:    strings.TrimSpace(wire.Outline),
	}
	if err := bp.Validate(); err != nil {
		return domain.StoryBlueprint{}, fmt.Errorf("blueprint incomplete: %w", err)
	}
	return bp, nil
}

// parseUnit decodes a unit draft or revision reply.
func parseUnit(content string) (unitWire, error) {
	var wire unitWire
	if err := decodeWire(content, &wire); err != nil {
		return unitWire{}, fmt.Errorf("unit %w", err)
	}
	wire.Title = strings.TrimSpace(wire.Title)
	wire.Body = strings.TrimSpace(wire.Body)
	return wire, nil
}

// parsePolish decodes a polish reply and enforces that the story kept its
// unit boundaries: the reply must carry exactly wantUnits non-empty bodies.
func parsePolish(content string, wantUnits int) ([]string, error) {
	var wire polishWire
	if err := decodeWire(content, &wire); err != nil {
		return nil, fmt.Errorf("polish %w", err)
	}
	if len(wire.Units) != wantUnits {
		return nil, fmt.Errorf("polish reply lost unit boundaries: got %d units, want %d", len(wire.Units), wantUnits)
	}
	units := make([]string, len(wire.Units))
	for i, body := range wire.Units {
		body = strings.TrimSpace(body)
		if body == "" {
			return nil, fmt.Errorf("polish reply unit %d is empty", i)
		}
		units[i] = body
	}
	return units, nil
}
