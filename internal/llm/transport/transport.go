// Package transport defines the normalized request/response contract between
// the LLM client and its provider adapters, plus the middleware pipeline that
// cross-cutting concerns compose onto.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	errMissingProvider = errors.New("provider is required")
	errMissingModel    = errors.New("model is required")
	errMissingPrompt   = errors.New("prompt is required")
	errBadMaxTokens    = errors.New("max tokens must be > 0")
	errBadTemperature  = errors.New("temperature must be within [0, 2]")
)

// OperationType differentiates the pipeline's request kinds. It namespaces
// cache keys, keys rate limit buckets, and labels logs and metrics.
type OperationType string

const (
	// OpGeneration produces story content: drafts, revisions, enhancements.
	OpGeneration OperationType = "generation"

	// OpCritique produces structured critique reports and reviews.
	OpCritique OperationType = "critique"

	// OpAnalysis produces transcript analysis and context inference payloads.
	OpAnalysis OperationType = "analysis"
)

// Request is a normalized completion request across all providers.
type Request struct {
	// Operation affects routing, caching, rate limiting, and metrics.
	Operation OperationType `json:"operation"`

	// Provider identifies which backend serves the request.
	Provider string `json:"provider"`

	// Model is the exact model identifier.
	Model string `json:"model"`

	// TenantID scopes caching and logging per tenant.
	TenantID string `json:"tenant_id"`

	// System carries the system instruction, empty for none.
	System string `json:"system,omitempty"`

	// Prompt is the user-turn content.
	Prompt string `json:"prompt"`

	// MaxTokens bounds the completion length.
	MaxTokens int64 `json:"max_tokens"`

	// Temperature controls sampling, [0, 2].
	Temperature float64 `json:"temperature"`

	// ResponseJSON asks the provider for a single JSON object completion.
	ResponseJSON bool `json:"response_json,omitempty"`

	// Timeout bounds this request; zero means the caller's context governs.
	Timeout time.Duration `json:"timeout"`

	// IdempotencyKey enables response caching when set. Requests without a
	// key are never cached.
	IdempotencyKey string `json:"idempotency_key,omitempty"`

	// TraceID correlates the request across logs and provider records.
	TraceID string `json:"trace_id,omitempty"`

	// Metadata carries free-form annotations into logs.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks the request is complete enough to route.
func (r *Request) Validate() error {
	if r.Provider == "" {
		return errMissingProvider
	}
	if r.Model == "" {
		return errMissingModel
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return errMissingPrompt
	}
	if r.MaxTokens <= 0 {
		return errBadMaxTokens
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return errBadTemperature
	}
	return nil
}

// Usage normalizes token accounting and timing across providers.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Response is a normalized completion result from any provider.
type Response struct {
	// Content is the completion text, or the JSON object text when the
	// request asked for JSON.
	Content string `json:"content"`

	// FinishReason reports why the completion stopped, provider-normalized.
	FinishReason string `json:"finish_reason,omitempty"`

	// Model echoes the model that actually served the request.
	Model string `json:"model,omitempty"`

	// Usage tracks resource consumption.
	Usage Usage `json:"usage"`

	// CacheHit marks responses served from the cache middleware.
	CacheHit bool `json:"cache_hit,omitempty"`
}

// Handler processes requests through the composable middleware pipeline.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms a Handler into an enhanced Handler.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler. Middleware
// executes in the order provided, first middleware outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Adapter is one provider backend. Implementations own their SDK transport
// and must normalize results and errors.
type Adapter interface {
	// Name returns the provider name the router keys on.
	Name() string

	// Complete executes the request against the provider.
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Router selects the adapter serving a provider.
type Router interface {
	Pick(provider, model string) (Adapter, error)
}

// NewAdapterHandler creates the core handler that dispatches to provider
// adapters, applying the per-request timeout around the provider call.
func NewAdapterHandler(router Router) Handler {
	return &adapterHandler{router: router}
}

type adapterHandler struct {
	router Router
}

func (h *adapterHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	adapter, err := h.router.Pick(req.Provider, req.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to select provider: %w", err)
	}

	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := adapter.Complete(reqCtx, req)
	if err != nil {
		return nil, err
	}
	resp.Usage.LatencyMs = time.Since(start).Milliseconds()
	return resp, nil
}
