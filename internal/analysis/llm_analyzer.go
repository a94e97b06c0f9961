package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/llm"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

// Configuration validation errors.
var (
	errUnknownAnalyzerKind = errors.New("analyzer kind must be narrative, cultural, or historical")
	errNilClient           = errors.New("llm client must not be nil")
)

// Sampling policy for analysis calls: low temperature, structured output.
const (
	analysisTemperature = 0.2
	analysisMaxTokens   = 1024
)

// trailingCommaRe fixes the trailing commas some models emit before a
// closing brace or bracket.
var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

// LLMAnalyzer asks an LLM to perform one kind of analysis and parses the
// JSON reply into the discriminated envelope. Analyses for the same task and
// kind share an idempotency key, so the client's response cache absorbs
// activity retries.
type LLMAnalyzer struct {
	kind   domain.AnalyzerKind
	client llm.Client
	logger *slog.Logger
}

// NewLLMAnalyzer creates an analyzer for the given kind.
func NewLLMAnalyzer(kind domain.AnalyzerKind, client llm.Client, logger *slog.Logger) (*LLMAnalyzer, error) {
	switch kind {
	case domain.AnalyzerNarrative, domain.AnalyzerCultural, domain.AnalyzerHistorical:
	default:
		return nil, fmt.Errorf("%w, got %q", errUnknownAnalyzerKind, string(kind))
	}
	if client == nil {
		return nil, errNilClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &LLMAnalyzer{
		kind:   kind,
		client: client,
		logger: logger.With("component", "analysis", "analyzer", string(kind)),
	}, nil
}

// Kind identifies which payload this analyzer's envelopes carry.
func (a *LLMAnalyzer) Kind() domain.AnalyzerKind { return a.kind }

// Analyze sends the analysis prompt and parses the structured reply.
func (a *LLMAnalyzer) Analyze(ctx context.Context, req Request) (domain.AnalysisEnvelope, error) {
	if err := req.Validate(); err != nil {
		return domain.AnalysisEnvelope{}, fmt.Errorf("invalid analysis request: %w", err)
	}

	var system, user string
	switch a.kind {
	case domain.AnalyzerCultural:
		system, user = culturalPrompt(req)
	case domain.AnalyzerHistorical:
		system, user = historicalPrompt(req)
	default:
		system, user = narrativePrompt(req)
	}

	resp, err := a.client.Complete(ctx, &transport.Request{
		Operation:      transport.OpAnalysis,
		TenantID:       req.TenantID,
		System:         system,
		Prompt:         user,
		MaxTokens:      analysisMaxTokens,
		Temperature:    analysisTemperature,
		ResponseJSON:   true,
		IdempotencyKey: domain.GenerateIdempotencyKey(req.TaskID, "analysis:"+string(a.kind)),
		TraceID:        req.TaskID,
	})
	if err != nil {
		return domain.AnalysisEnvelope{}, domain.NewAnalysisError(
			fmt.Sprintf("%s analyzer call failed", a.kind), err)
	}

	envelope, err := a.parseEnvelope(resp.Content)
	if err != nil {
		return domain.AnalysisEnvelope{}, err
	}

	a.logger.DebugContext(ctx, "analysis completed",
		"task_id", req.TaskID,
		"confidence", envelope.Confidence,
		"recommendations", len(envelope.Recommendations),
	)
	return envelope, nil
}

// analysisWire is the reply shape shared by all analyzer prompts.
type analysisWire struct {
	Analysis        json.RawMessage `json:"analysis"`
	ConfidenceScore float64         `json:"confidence_score"`
	Recommendations []string        `json:"recommendations"`
}

func (a *LLMAnalyzer) parseEnvelope(content string) (domain.AnalysisEnvelope, error) {
	var wire analysisWire
	if err := json.Unmarshal([]byte(repairJSON(content)), &wire); err != nil {
		return domain.AnalysisEnvelope{}, domain.NewAnalysisError(
			fmt.Sprintf("unparseable %s analyzer response", a.kind), err)
	}
	if len(wire.Analysis) == 0 {
		return domain.AnalysisEnvelope{}, domain.NewAnalysisError(
			fmt.Sprintf("%s analyzer response missing analysis payload", a.kind), nil)
	}

	confidence := clampConfidence(wire.ConfidenceScore)

	var (
		envelope domain.AnalysisEnvelope
		err      error
	)
	switch a.kind {
	case domain.AnalyzerCultural:
		var payload domain.CulturalAnalysis
		if err := json.Unmarshal(wire.Analysis, &payload); err != nil {
			return domain.AnalysisEnvelope{}, domain.NewAnalysisError("unparseable cultural payload", err)
		}
		envelope, err = domain.NewCulturalEnvelope(confidence, wire.Recommendations, payload)
	case domain.AnalyzerHistorical:
		var payload domain.HistoricalAnalysis
		if err := json.Unmarshal(wire.Analysis, &payload); err != nil {
			return domain.AnalysisEnvelope{}, domain.NewAnalysisError("unparseable historical payload", err)
		}
		envelope, err = domain.NewHistoricalEnvelope(confidence, wire.Recommendations, payload)
	default:
		var payload domain.NarrativeAnalysis
		if err := json.Unmarshal(wire.Analysis, &payload); err != nil {
			return domain.AnalysisEnvelope{}, domain.NewAnalysisError("unparseable narrative payload", err)
		}
		envelope, err = domain.NewNarrativeEnvelope(confidence, wire.Recommendations, payload)
	}
	if err != nil {
		return domain.AnalysisEnvelope{}, domain.NewAnalysisError(
			fmt.Sprintf("invalid %s analysis envelope", a.kind), err)
	}
	return envelope, nil
}

// repairJSON applies minimal transport-level fixes: markdown code fences and
// trailing commas. Anything deeper is a parse failure, not a repair target.
func repairJSON(content string) string {
	repaired := strings.TrimSpace(content)
	repaired = strings.TrimPrefix(repaired, "```json")
	repaired = strings.TrimPrefix(repaired, "```")
	repaired = strings.TrimSuffix(repaired, "```")
	repaired = trailingCommaRe.ReplaceAllString(repaired, `$1`)
	return strings.TrimSpace(repaired)
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
