package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jatlaoui/ines/internal/collab"
	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/llm"
	"github.com/jatlaoui/ines/internal/llm/transport"
	"github.com/jatlaoui/ines/internal/refine"
)

// Sampling policy per agent role. Creative calls run hot, critique calls
// run cold and structured.
const (
	generationTemperature = 0.9
	critiqueTemperature   = 0.2

	generationMaxTokens = 4096
	critiqueMaxTokens   = 1024
)

// Collaboration participant names, recorded in collaboration records and
// named in CollaborationError.
const (
	ideaLeadName         = "idea-generator"
	structurePartnerName = "structure-architect"
)

// complete is the shared agent call path: tenant attribution, deterministic
// idempotency key per logical call, and the task id as trace id. The key
// makes activity retries land on the client's response cache instead of
// re-sampling.
func complete(ctx context.Context, client llm.Client, op transport.OperationType, taskID, tenantID, system, user, keySuffix string, temperature float64, maxTokens int64) (*transport.Response, error) {
	return client.Complete(ctx, &transport.Request{
		Operation:      op,
		TenantID:       tenantID,
		System:         system,
		Prompt:         user,
		MaxTokens:      maxTokens,
		Temperature:    temperature,
		ResponseJSON:   true,
		IdempotencyKey: domain.GenerateIdempotencyKey(taskID, keySuffix),
		TraceID:        taskID,
	})
}

// completeText is complete for agents whose reply is free prose, not JSON.
func completeText(ctx context.Context, client llm.Client, op transport.OperationType, taskID, tenantID, system, user, keySuffix string, temperature float64, maxTokens int64) (string, error) {
	resp, err := client.Complete(ctx, &transport.Request{
		Operation:      op,
		TenantID:       tenantID,
		System:         system,
		Prompt:         user,
		MaxTokens:      maxTokens,
		Temperature:    temperature,
		IdempotencyKey: domain.GenerateIdempotencyKey(taskID, keySuffix),
		TraceID:        taskID,
	})
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", fmt.Errorf("empty completion")
	}
	return out, nil
}

// llmCritic implements refine.Critic over the LLM client. The prompt varies
// with the critique target: units are judged against the blueprint, the
// assembled story on its own.
type llmCritic struct {
	client    llm.Client
	taskID    string
	tenantID  string
	blueprint *domain.StoryBlueprint
}

// newUnitCritic builds a critic that judges units against the blueprint.
func newUnitCritic(client llm.Client, taskID, tenantID string, bp domain.StoryBlueprint) *llmCritic {
	return &llmCritic{client: client, taskID: taskID, tenantID: tenantID, blueprint: &bp}
}

// newStoryCritic builds a critic for the assembled story.
func newStoryCritic(client llm.Client, taskID, tenantID string) *llmCritic {
	return &llmCritic{client: client, taskID: taskID, tenantID: tenantID}
}

// Critique implements refine.Critic. The idempotency key hashes the content
// body, so re-critiquing identical content during a retry is a cache hit.
func (c *llmCritic) Critique(ctx context.Context, content domain.ContentUnit) (domain.CritiqueReport, error) {
	var system, user string
	if c.blueprint != nil {
		system, user = unitCritiquePrompt(content.Body, *c.blueprint)
	} else {
		system, user = storyCritiquePrompt(content.Body)
	}

	resp, err := complete(ctx, c.client, transport.OpCritique, c.taskID, c.tenantID,
		system, user, ":critique:"+content.Body, critiqueTemperature, critiqueMaxTokens)
	if err != nil {
		return domain.CritiqueReport{}, err
	}
	return parseCritique(resp.Content)
}

// unitCreator implements refine.Creator for one content unit: draft or
// revise against the blueprint, then weave cultural texture in before the
// critic sees the result. Enhancement is best-effort; a failed enhancement
// keeps the plain draft and records the skip in the unit metadata.
type unitCreator struct {
	client     llm.Client
	logger     *slog.Logger
	taskID     string
	tenantID   string
	blueprint  domain.StoryBlueprint
	enrichment domain.ContextEnrichment
	style      string
	tradition  string
	index      int
	count      int
	attempt    int
}

// Create implements refine.Creator.
func (c *unitCreator) Create(ctx context.Context, assignment refine.Assignment, feedback domain.Feedback) (domain.GenerationResult, error) {
	c.attempt++

	system, user := unitDraftPrompt(c.blueprint, c.enrichment, c.style, c.index, c.count, feedback)
	resp, err := complete(ctx, c.client, transport.OpGeneration, c.taskID, c.tenantID,
		system, user, fmt.Sprintf(":%s:create:%d", assignment.Scope, c.attempt),
		generationTemperature, generationMaxTokens)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	wire, err := parseUnit(resp.Content)
	if err != nil {
		return domain.GenerationResult{}, err
	}
	title := wire.Title
	if title == "" {
		title = fmt.Sprintf("الفصل %d", c.index+1)
	}

	metadata := map[string]string{}
	body := wire.Body
	if body != "" {
		enhanced, note, enhErr := c.enhance(ctx, assignment.Scope, body)
		switch {
		case enhErr != nil:
			c.logger.WarnContext(ctx, "cultural enhancement skipped",
				"task_id", c.taskID, "scope", assignment.Scope, "error", enhErr)
			metadata["enhancement_skipped"] = enhErr.Error()
		case note != "":
			body = enhanced
			metadata["cultural_enhancement"] = note
		default:
			body = enhanced
		}
	}

	unit := domain.MakeContentUnit(
		fmt.Sprintf("%s-a%d", assignment.Scope, c.attempt), c.index, title, body, metadata)
	return domain.GenerationResult{
		Content:          unit,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TraceID:          c.taskID,
	}, nil
}

// enhance runs the cultural enhancement pass over a drafted body.
func (c *unitCreator) enhance(ctx context.Context, scope, body string) (enhanced, note string, err error) {
	system, user := enhancePrompt(body, c.tradition, c.enrichment.CulturalMarkers)
	resp, err := complete(ctx, c.client, transport.OpGeneration, c.taskID, c.tenantID,
		system, user, fmt.Sprintf(":%s:enhance:%d", scope, c.attempt),
		generationTemperature, generationMaxTokens)
	if err != nil {
		return "", "", err
	}

	var wire enhanceWire
	if err := decodeWire(resp.Content, &wire); err != nil {
		return "", "", fmt.Errorf("enhancement %w", err)
	}
	if strings.TrimSpace(wire.Body) == "" {
		return "", "", fmt.Errorf("enhancement returned empty body")
	}
	return strings.TrimSpace(wire.Body), strings.TrimSpace(wire.Note), nil
}

// polishCreator implements refine.Creator for one polish cycle: it rewrites
// the whole story under the cycle's focus, preserving unit boundaries. The
// parsed per-unit bodies are kept for the orchestrator to adopt if the cycle
// improves the score.
type polishCreator struct {
	client   llm.Client
	taskID   string
	tenantID string
	focus    domain.PolishFocus
	units    []string
	issues   domain.Feedback
	style    string
	register string

	last []string
}

// Create implements refine.Creator. The engine runs it as a single attempt
// per cycle, so feedback is always nil; the previous cycle's critique issues
// arrive through the issues field instead.
func (c *polishCreator) Create(ctx context.Context, assignment refine.Assignment, _ domain.Feedback) (domain.GenerationResult, error) {
	system, user := polishPrompt(c.focus, c.units, c.issues, c.style, c.register)
	resp, err := complete(ctx, c.client, transport.OpGeneration, c.taskID, c.tenantID,
		system, user, ":"+assignment.Scope+":create", generationTemperature, generationMaxTokens)
	if err != nil {
		return domain.GenerationResult{}, err
	}

	units, err := parsePolish(resp.Content, len(c.units))
	if err != nil {
		return domain.GenerationResult{}, err
	}
	c.last = units

	unit := domain.MakeContentUnit(assignment.Scope, 0, "", strings.Join(units, "\n\n"), nil)
	return domain.GenerationResult{
		Content:          unit,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TraceID:          c.taskID,
	}, nil
}

// ideaLead implements collab.Lead: it opens with an idea document, reviews
// the partner's blueprint against it, and keeps its document consistent
// with the revised blueprint.
type ideaLead struct {
	client   llm.Client
	taskID   string
	tenantID string
	context  map[string]string

	reviews      int
	incorporates int
}

// Name implements collab.Lead.
func (l *ideaLead) Name() string { return ideaLeadName }

// Draft implements collab.Lead.
func (l *ideaLead) Draft(ctx context.Context, assignment collab.Assignment) (string, error) {
	system, user := ideaDraftPrompt(assignment.Brief, l.context)
	return completeText(ctx, l.client, transport.OpGeneration, l.taskID, l.tenantID,
		system, user, ":collab:lead:draft", generationTemperature, generationMaxTokens)
}

// Review implements collab.Lead.
func (l *ideaLead) Review(ctx context.Context, own, partner string) (domain.Feedback, error) {
	l.reviews++
	system, user := leadReviewPrompt(own, partner)
	resp, err := complete(ctx, l.client, transport.OpCritique, l.taskID, l.tenantID,
		system, user, fmt.Sprintf(":collab:lead:review:%d", l.reviews),
		critiqueTemperature, critiqueMaxTokens)
	if err != nil {
		return nil, err
	}

	var wire issuesWire
	if err := decodeWire(resp.Content, &wire); err != nil {
		return nil, fmt.Errorf("review %w", err)
	}
	return domain.Feedback(wire.Issues), nil
}

// Incorporate implements collab.Lead.
func (l *ideaLead) Incorporate(ctx context.Context, own, partnerRevised string) (string, error) {
	l.incorporates++
	system, user := leadIncorporatePrompt(own, partnerRevised)
	return completeText(ctx, l.client, transport.OpGeneration, l.taskID, l.tenantID,
		system, user, fmt.Sprintf(":collab:lead:incorporate:%d", l.incorporates),
		generationTemperature, generationMaxTokens)
}

// structurePartner implements collab.Partner: its output is always blueprint
// JSON, parse-checked before it leaves the agent so a malformed blueprint
// fails the collaboration naming the partner.
type structurePartner struct {
	client   llm.Client
	taskID   string
	tenantID string
	context  map[string]string

	revisions int
}

// Name implements collab.Partner.
func (p *structurePartner) Name() string { return structurePartnerName }

// Draft implements collab.Partner.
func (p *structurePartner) Draft(ctx context.Context, assignment collab.Assignment, leadDraft string) (string, error) {
	system, user := structureDraftPrompt(assignment.Brief, leadDraft, p.context)
	resp, err := complete(ctx, p.client, transport.OpGeneration, p.taskID, p.tenantID,
		system, user, ":collab:partner:draft", generationTemperature, generationMaxTokens)
	if err != nil {
		return "", err
	}
	if _, err := parseBlueprint(resp.Content); err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Revise implements collab.Partner.
func (p *structurePartner) Revise(ctx context.Context, own string, feedback domain.Feedback) (string, error) {
	p.revisions++
	system, user := partnerRevisePrompt(own, feedback)
	resp, err := complete(ctx, p.client, transport.OpGeneration, p.taskID, p.tenantID,
		system, user, fmt.Sprintf(":collab:partner:revise:%d", p.revisions),
		generationTemperature, generationMaxTokens)
	if err != nil {
		return "", err
	}
	if _, err := parseBlueprint(resp.Content); err != nil {
		return "", err
	}
	return resp.Content, nil
}
