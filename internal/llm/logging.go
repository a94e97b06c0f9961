// Package llm provides a unified, resilient client for the LLM providers
// behind the story pipeline. Requests flow through a middleware chain of
// logging, caching, retry, and rate limiting before reaching a provider
// adapter.
package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	llmerrors "github.com/jatlaoui/ines/internal/llm/errors"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

// Metrics collects observability data for LLM operations with tag-based
// dimensionality.
type Metrics interface {
	IncrementCounter(name string, tags map[string]string, value float64)
	RecordHistogram(name string, tags map[string]string, value float64)
}

// NoOpMetrics satisfies Metrics without collecting anything.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a metrics collector that discards all data.
func NewNoOpMetrics() *NoOpMetrics { return &NoOpMetrics{} }

func (n *NoOpMetrics) IncrementCounter(_ string, _ map[string]string, _ float64) {}

func (n *NoOpMetrics) RecordHistogram(_ string, _ map[string]string, _ float64) {}

// loggingMiddleware captures structured logs and metrics around every
// request, with prompt redaction for deployments that must not log content.
type loggingMiddleware struct {
	logger        *slog.Logger
	metrics       Metrics
	redactPrompts bool
}

// NewLoggingMiddleware creates the observability middleware. A nil logger
// falls back to slog.Default, a nil metrics to NoOpMetrics.
func NewLoggingMiddleware(logger *slog.Logger, metrics Metrics, redactPrompts bool) transport.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NewNoOpMetrics()
	}
	lm := &loggingMiddleware{
		logger:        logger.With("component", "llm"),
		metrics:       metrics,
		redactPrompts: redactPrompts,
	}
	return lm.middleware
}

func (m *loggingMiddleware) middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		requestID := req.TraceID
		if requestID == "" {
			requestID = uuid.New().String()
		}

		tags := map[string]string{
			"provider":  req.Provider,
			"model":     req.Model,
			"operation": string(req.Operation),
		}

		fields := []any{
			"request_id", requestID,
			"provider", req.Provider,
			"model", req.Model,
			"operation", req.Operation,
			"tenant_id", req.TenantID,
			"max_tokens", req.MaxTokens,
		}
		if m.redactPrompts {
			fields = append(fields, "prompt_length", len(req.Prompt))
		} else {
			fields = append(fields, "prompt", req.Prompt)
		}
		m.logger.Debug("llm request started", fields...)
		m.metrics.IncrementCounter("llm.requests.total", tags, 1)

		start := time.Now()
		resp, err := next.Handle(ctx, req)
		duration := time.Since(start)

		m.metrics.RecordHistogram("llm.request.duration_ms", tags, float64(duration.Milliseconds()))

		if err != nil {
			m.metrics.IncrementCounter("llm.requests.errors", tags, 1)
			m.logger.Error("llm request failed",
				"request_id", requestID,
				"provider", req.Provider,
				"operation", req.Operation,
				"duration_ms", duration.Milliseconds(),
				"retryable", llmerrors.IsRetryable(err),
				"error", err)
			return resp, err
		}

		m.logger.Info("llm request completed",
			"request_id", requestID,
			"provider", req.Provider,
			"operation", req.Operation,
			"duration_ms", duration.Milliseconds(),
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"cache_hit", resp.CacheHit,
			"finish_reason", resp.FinishReason)
		if resp.CacheHit {
			m.metrics.IncrementCounter("llm.cache.hits", tags, 1)
		}
		return resp, nil
	})
}
