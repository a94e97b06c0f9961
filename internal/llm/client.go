package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jatlaoui/ines/internal/llm/transport"
)

var errNilRouter = errors.New("router must not be nil")

// Default request parameters applied when a request leaves them unset.
const (
	DefaultMaxTokens = 2048
	DefaultTimeout   = 90 * time.Second
)

// Config assembles the client: default routing parameters plus the policies
// of every middleware in the chain.
type Config struct {
	// Provider is the default provider for requests that name none.
	Provider string `yaml:"provider"`

	// Model is the default model for requests that name none.
	Model string `yaml:"model"`

	// MaxTokens is the default completion bound.
	MaxTokens int64 `yaml:"max_tokens"`

	// Timeout is the default per-request timeout.
	Timeout time.Duration `yaml:"timeout"`

	// RedactPrompts keeps prompt content out of logs.
	RedactPrompts bool `yaml:"redact_prompts"`

	Retry     RetryConfig     `yaml:"retry"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
}

// DefaultConfig returns a client config with every policy at its default.
func DefaultConfig() *Config {
	return &Config{
		Provider:  "openai",
		Model:     "gpt-4o",
		MaxTokens: DefaultMaxTokens,
		Timeout:   DefaultTimeout,
		Retry:     DefaultRetryConfig(),
		RateLimit: DefaultRateLimitConfig(),
		Cache:     DefaultCacheConfig(),
	}
}

// Client executes normalized completion requests through the full middleware
// pipeline. Implementations are safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

type client struct {
	cfg     Config
	handler transport.Handler
}

// NewClient builds the production pipeline around the router's adapters:
// logging outermost, then response cache, then retry, then rate limiting
// per attempt, then the provider dispatch core. A nil redisClient lets the
// cache middleware build (or skip) its own connection from cfg.Cache.
func NewClient(ctx context.Context, cfg *Config, router transport.Router, redisClient *redis.Client, logger *slog.Logger, metrics Metrics) (Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if router == nil {
		return nil, errNilRouter
	}

	cacheMw, err := NewCacheMiddleware(ctx, cfg.Cache, redisClient, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	retryMw, err := NewRetryMiddleware(cfg.Retry, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retry: %w", err)
	}
	rateLimitMw, err := NewRateLimitMiddleware(cfg.RateLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	handler := transport.Chain(
		transport.NewAdapterHandler(router),
		NewLoggingMiddleware(logger, metrics, cfg.RedactPrompts),
		cacheMw,
		retryMw,
		rateLimitMw,
	)

	return &client{cfg: *cfg, handler: handler}, nil
}

// Complete fills routing defaults, validates, and runs the request through
// the pipeline. Temperature is never defaulted; callers own sampling policy
// per operation.
func (c *client) Complete(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if req.Provider == "" {
		req.Provider = c.cfg.Provider
	}
	if req.Model == "" {
		req.Model = c.cfg.Model
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.cfg.MaxTokens
	}
	if req.Timeout == 0 {
		req.Timeout = c.cfg.Timeout
	}

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid llm request: %w", err)
	}
	return c.handler.Handle(ctx, req)
}
