package providers

import (
	"context"
	"errors"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	llmerrors "github.com/jatlaoui/ines/internal/llm/errors"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

const openaiProviderName = "openai"

// jsonOnlyInstruction is appended to the system turn when the request asks
// for JSON output.
const jsonOnlyInstruction = "Respond with a single valid JSON object and nothing else."

// OpenAIAdapter serves requests through the official openai-go SDK's chat
// completions API.
type OpenAIAdapter struct {
	opts []option.RequestOption
}

// NewOpenAIAdapter creates an adapter authenticated with the given key.
// baseURL overrides the API endpoint when non-empty, for proxies and
// compatible backends.
func NewOpenAIAdapter(apiKey, baseURL string) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIAdapter{opts: opts}, nil
}

// Name implements transport.Adapter.
func (a *OpenAIAdapter) Name() string { return openaiProviderName }

// Complete implements transport.Adapter.
func (a *OpenAIAdapter) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	client := openai.NewClient(a.opts...)

	system := req.System
	if req.ResponseJSON {
		system = strings.TrimSpace(system + "\n" + jsonOnlyInstruction)
	}

	var msgs []openai.ChatCompletionMessageParamUnion
	if system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	msgs = append(msgs, openai.UserMessage(req.Prompt))

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    msgs,
		MaxTokens:   openai.Int(req.MaxTokens),
		Temperature: openai.Float(req.Temperature),
	})
	if err != nil {
		return nil, a.classify(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, &llmerrors.ProviderError{
			Provider: openaiProviderName,
			Message:  "empty choices in completion",
			Type:     llmerrors.ErrorTypeProvider,
			Cause:    llmerrors.ErrEmptyCompletion,
		}
	}

	choice := resp.Choices[0]
	return &transport.Response{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
		Usage: transport.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// classify maps SDK errors into the provider error taxonomy.
func (a *OpenAIAdapter) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &llmerrors.ProviderError{
			Provider:   openaiProviderName,
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Message,
			Type:       llmerrors.ClassifyStatus(apiErr.StatusCode),
			Cause:      err,
		}
	}
	return &llmerrors.ProviderError{
		Provider: openaiProviderName,
		Message:  err.Error(),
		Type:     llmerrors.ErrorTypeNetwork,
		Cause:    err,
	}
}
