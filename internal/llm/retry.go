package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	llmerrors "github.com/jatlaoui/ines/internal/llm/errors"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

var (
	errMaxAttemptsInvalid     = errors.New("maxAttempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initialInterval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("maxInterval must be >= initialInterval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")

	errContextCancelledDuringRetry = errors.New("context cancelled during retry")
)

// RetryConfig controls the exponential backoff retry policy.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int `yaml:"max_attempts"`

	// InitialInterval is the base backoff before the first retry.
	InitialInterval time.Duration `yaml:"initial_interval"`

	// MaxInterval caps the backoff growth.
	MaxInterval time.Duration `yaml:"max_interval"`

	// Multiplier grows the interval per attempt.
	Multiplier float64 `yaml:"multiplier"`
}

// DefaultRetryConfig returns the standard policy: three attempts with
// 500ms..8s full-jitter backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
		Multiplier:      2.0,
	}
}

type retryMiddleware struct {
	cfg    RetryConfig
	logger *slog.Logger
}

// NewRetryMiddleware creates retry middleware with exponential backoff and
// full jitter. Only errors the taxonomy classifies as retryable are retried;
// provider Retry-After guidance overrides the computed backoff.
func NewRetryMiddleware(cfg RetryConfig, logger *slog.Logger) (transport.Middleware, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	}
	if cfg.InitialInterval <= 0 {
		return nil, fmt.Errorf("%w, got %v", errInitialIntervalInvalid, cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		return nil, fmt.Errorf("%w, MaxInterval: %v, InitialInterval: %v", errMaxIntervalInvalid, cfg.MaxInterval, cfg.InitialInterval)
	}
	if cfg.Multiplier < 1.0 {
		return nil, fmt.Errorf("%w, got %f", errMultiplierInvalid, cfg.Multiplier)
	}
	if logger == nil {
		logger = slog.Default()
	}
	rm := &retryMiddleware{cfg: cfg, logger: logger.With("component", "llm_retry")}
	return rm.middleware, nil
}

func (r *retryMiddleware) middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		var lastErr error

		for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
			resp, err := next.Handle(ctx, req)
			if err == nil {
				return resp, nil
			}
			lastErr = err

			if !llmerrors.IsRetryable(err) {
				return nil, err
			}
			if attempt == r.cfg.MaxAttempts {
				break
			}

			delay := r.backoff(attempt, err)
			r.logger.Debug("retrying llm request",
				"provider", req.Provider,
				"operation", req.Operation,
				"attempt", attempt,
				"delay", delay,
				"error", err)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", errContextCancelledDuringRetry, ctx.Err())
			}
		}

		return nil, fmt.Errorf("%w after %d attempts: %w", llmerrors.ErrMaxRetriesExceeded, r.cfg.MaxAttempts, lastErr)
	})
}

// backoff computes the wait before the next attempt: provider Retry-After
// when present, otherwise exponential growth with full jitter.
func (r *retryMiddleware) backoff(attempt int, err error) time.Duration {
	if after := llmerrors.RetryAfter(err); after > 0 {
		return time.Duration(after) * time.Second
	}

	interval := float64(r.cfg.InitialInterval)
	for i := 1; i < attempt; i++ {
		interval *= r.cfg.Multiplier
	}
	if ceiling := float64(r.cfg.MaxInterval); interval > ceiling {
		interval = ceiling
	}
	// Full jitter spreads concurrent retries across [0, interval).
	return time.Duration(rand.Float64() * interval)
}
