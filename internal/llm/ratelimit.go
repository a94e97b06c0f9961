package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/time/rate"

	llmerrors "github.com/jatlaoui/ines/internal/llm/errors"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

var (
	errRPSInvalid   = errors.New("requestsPerSecond must be greater than 0")
	errBurstInvalid = errors.New("burst must be greater than 0")
)

// RateLimitConfig controls the per-provider-model token buckets.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained request rate per provider:model key.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	// Burst is the bucket capacity per key.
	Burst int `yaml:"burst"`

	// Wait makes callers block for a token instead of failing fast.
	Wait bool `yaml:"wait"`
}

// DefaultRateLimitConfig returns the standard policy: 5 rps with a burst of
// 10, blocking callers rather than surfacing rate errors.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 5, Burst: 10, Wait: true}
}

// rateLimitMiddleware enforces local token-bucket limits keyed by
// provider:model. The key set is small and bounded, so limiters live for the
// process lifetime without cleanup.
type rateLimitMiddleware struct {
	cfg      RateLimitConfig
	logger   *slog.Logger
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewRateLimitMiddleware creates rate limiting middleware. In Wait mode
// callers block until a token is available or their context expires; in
// fail-fast mode they receive a retryable rate limit error with retry
// guidance.
func NewRateLimitMiddleware(cfg RateLimitConfig, logger *slog.Logger) (transport.Middleware, error) {
	if cfg.RequestsPerSecond <= 0 {
		return nil, fmt.Errorf("%w, got %f", errRPSInvalid, cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		return nil, fmt.Errorf("%w, got %d", errBurstInvalid, cfg.Burst)
	}
	if logger == nil {
		logger = slog.Default()
	}
	rl := &rateLimitMiddleware{
		cfg:      cfg,
		logger:   logger.With("component", "llm_ratelimit"),
		limiters: make(map[string]*rate.Limiter),
	}
	return rl.middleware, nil
}

func (r *rateLimitMiddleware) middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		limiter := r.limiterFor(req.Provider + ":" + req.Model)

		if r.cfg.Wait {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
			return next.Handle(ctx, req)
		}

		if !limiter.Allow() {
			// Compute retry guidance without consuming a token.
			reservation := limiter.Reserve()
			delay := reservation.Delay()
			reservation.Cancel()

			retryAfter := int(math.Ceil(delay.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			r.logger.Debug("rate limit exceeded",
				"provider", req.Provider, "model", req.Model, "retry_after_s", retryAfter)
			return nil, &llmerrors.ProviderError{
				Provider:   req.Provider,
				Message:    "local rate limit exceeded",
				Type:       llmerrors.ErrorTypeRateLimit,
				RetryAfter: retryAfter,
			}
		}
		return next.Handle(ctx, req)
	})
}

func (r *rateLimitMiddleware) limiterFor(key string) *rate.Limiter {
	r.mu.RLock()
	limiter, ok := r.limiters[key]
	r.mu.RUnlock()
	if ok {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if limiter, ok = r.limiters[key]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(r.cfg.RequestsPerSecond), r.cfg.Burst)
	r.limiters[key] = limiter
	return limiter
}
