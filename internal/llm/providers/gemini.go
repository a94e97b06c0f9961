package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	llmerrors "github.com/jatlaoui/ines/internal/llm/errors"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

const geminiProviderName = "gemini"

// GeminiAdapter serves requests through the official genai SDK.
type GeminiAdapter struct {
	cli *genai.Client
}

// NewGeminiAdapter creates an adapter authenticated with the given key.
func NewGeminiAdapter(ctx context.Context, apiKey string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiAdapter{cli: cli}, nil
}

// Name implements transport.Adapter.
func (a *GeminiAdapter) Name() string { return geminiProviderName }

// Complete implements transport.Adapter. The system turn is folded into the
// prompt text; Gemini JSON mode is requested through the response MIME type.
func (a *GeminiAdapter) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	full := req.Prompt
	if req.System != "" {
		full = req.System + "\n\n" + req.Prompt
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: int32(req.MaxTokens),
	}
	if req.ResponseJSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := a.cli.Models.GenerateContent(ctx, req.Model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		cfg,
	)
	if err != nil {
		return nil, &llmerrors.ProviderError{
			Provider: geminiProviderName,
			Message:  err.Error(),
			Type:     llmerrors.ErrorTypeProvider,
			Cause:    err,
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, &llmerrors.ProviderError{
			Provider: geminiProviderName,
			Message:  "no candidates in completion",
			Type:     llmerrors.ErrorTypeProvider,
			Cause:    llmerrors.ErrEmptyCompletion,
		}
	}

	candidate := resp.Candidates[0]
	content := candidate.Content.Parts[0].Text
	if strings.TrimSpace(content) == "" {
		return nil, &llmerrors.ProviderError{
			Provider: geminiProviderName,
			Message:  "blank candidate text",
			Type:     llmerrors.ErrorTypeProvider,
			Cause:    llmerrors.ErrEmptyCompletion,
		}
	}

	out := &transport.Response{
		Content:      content,
		FinishReason: string(candidate.FinishReason),
		Model:        req.Model,
	}
	if resp.UsageMetadata != nil {
		out.Usage = transport.Usage{
			PromptTokens:     int64(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int64(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}
