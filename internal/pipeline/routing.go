package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/llm"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

// deficiencyKeywords maps each deficiency category to the substrings that
// route a review recommendation to it. Matching is substring-based over the
// lowercased recommendation, so Arabic stems cover their inflections
// (e.g. "شخصي" matches "شخصية" and "الشخصيات").
var deficiencyKeywords = []struct {
	category domain.DeficiencyCategory
	keywords []string
}{
	{domain.DeficiencyCharacterDepth, []string{
		"شخصي", "أبعاد", "تعميق", "دوافع", "character", "depth", "motivation",
	}},
	{domain.DeficiencyPlotCoherence, []string{
		"حبك", "تسلسل", "تناقض", "ثغر", "إيقاع", "plot", "coheren", "pacing",
	}},
	{domain.DeficiencyCulturalElements, []string{
		"ثقاف", "تراث", "عادات", "تقاليد", "أصال", "cultural", "tradition", "authentic",
	}},
}

// ClassifyDeficiency routes a review recommendation to a deficiency
// category by keyword. Categories are checked in a fixed order, so a
// recommendation touching several concerns routes deterministically to the
// first match. Returns false when no category claims the recommendation.
func ClassifyDeficiency(recommendation string) (domain.DeficiencyCategory, bool) {
	lowered := strings.ToLower(recommendation)
	for _, entry := range deficiencyKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lowered, kw) {
				return entry.category, true
			}
		}
	}
	return "", false
}

// refinementPrompt builds the targeted rewrite prompt for one category.
func refinementPrompt(category domain.DeficiencyCategory, bp domain.StoryBlueprint, recommendation string) (system, user string, err error) {
	switch category {
	case domain.DeficiencyCharacterDepth:
		system, user = deepenCharactersPrompt(bp, recommendation)
	case domain.DeficiencyPlotCoherence:
		system, user = tightenPlotPrompt(bp, recommendation)
	case domain.DeficiencyCulturalElements:
		system, user = weaveCulturePrompt(bp, recommendation)
	default:
		return "", "", fmt.Errorf("no refinement action for category %q", category)
	}
	return system, user, nil
}

// applyRefinement runs the targeted rewrite for one routed recommendation
// and returns the revised blueprint. seq disambiguates the idempotency key
// when one review produces several recommendations in the same category.
func applyRefinement(ctx context.Context, client llm.Client, taskID, tenantID string, category domain.DeficiencyCategory, bp domain.StoryBlueprint, recommendation string, seq int) (domain.StoryBlueprint, error) {
	system, user, err := refinementPrompt(category, bp, recommendation)
	if err != nil {
		return domain.StoryBlueprint{}, err
	}

	resp, err := complete(ctx, client, transport.OpGeneration, taskID, tenantID,
		system, user, fmt.Sprintf(":blueprint:refine:%s:%d", category, seq),
		generationTemperature, generationMaxTokens)
	if err != nil {
		return domain.StoryBlueprint{}, err
	}
	return parseBlueprint(resp.Content)
}
