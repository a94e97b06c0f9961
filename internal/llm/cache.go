package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jatlaoui/ines/internal/llm/transport"
)

const (
	cacheKeyVersion   = "v1"
	connectionTimeout = 5 * time.Second
	defaultPoolSize   = 10
)

// CacheConfig controls the Redis response cache.
type CacheConfig struct {
	// Enabled turns the cache on. Disabled is a clean passthrough.
	Enabled bool `yaml:"enabled"`

	// RedisAddr is the host:port of the Redis instance.
	RedisAddr string `yaml:"redis_addr"`

	// RedisPassword authenticates when non-empty.
	RedisPassword string `yaml:"redis_password"`

	// RedisDB selects the logical database.
	RedisDB int `yaml:"redis_db"`

	// TTL bounds entry lifetime.
	TTL time.Duration `yaml:"ttl"`
}

// DefaultCacheConfig returns the standard policy: enabled, localhost Redis,
// 24h TTL.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{Enabled: true, RedisAddr: "localhost:6379", TTL: 24 * time.Hour}
}

// cacheMiddleware caches successful responses in Redis keyed by the
// request's idempotency key. Requests without a key bypass the cache. All
// Redis failures degrade to a cache bypass; they never fail the request.
type cacheMiddleware struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
	logger  *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewCacheMiddleware creates the response cache. If client is nil and
// caching is enabled, a Redis client is built from cfg; a failed connection
// check disables the cache rather than failing construction.
func NewCacheMiddleware(ctx context.Context, cfg CacheConfig, client *redis.Client, logger *slog.Logger) (transport.Middleware, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "llm_cache")

	if client == nil && cfg.Enabled {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: defaultPoolSize,
		})

		timeoutCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
		defer cancel()
		if err := client.Ping(timeoutCtx).Err(); err != nil {
			logger.Warn("redis connection failed, llm cache disabled", "addr", cfg.RedisAddr, "error", err)
			cfg.Enabled = false
		}
	}

	cm := &cacheMiddleware{
		client:  client,
		ttl:     cfg.TTL,
		enabled: cfg.Enabled,
		logger:  logger,
	}
	return cm.middleware, nil
}

func (c *cacheMiddleware) middleware(next transport.Handler) transport.Handler {
	return transport.HandlerFunc(func(ctx context.Context, req *transport.Request) (*transport.Response, error) {
		if !c.enabled || req.IdempotencyKey == "" {
			return next.Handle(ctx, req)
		}

		key := c.buildKey(req)

		if cached, err := c.get(ctx, key); err == nil && cached != nil {
			c.hits.Add(1)
			c.logger.Debug("cache hit",
				"key", key, "provider", req.Provider, "operation", req.Operation)
			return cached, nil
		} else if err != nil {
			c.errors.Add(1)
			c.logger.Warn("cache read error, bypassing", "key", key, "error", err)
		} else {
			c.misses.Add(1)
		}

		resp, err := next.Handle(ctx, req)
		if err != nil {
			// Only successful responses are cached.
			return nil, err
		}

		if setErr := c.set(ctx, key, resp); setErr != nil {
			c.errors.Add(1)
			c.logger.Warn("cache write error", "key", key, "error", setErr)
		}
		return resp, nil
	})
}

// buildKey namespaces entries by tenant, provider, model, and operation so
// an idempotency key can never cross tenants or operations.
func (c *cacheMiddleware) buildKey(req *transport.Request) string {
	sum := sha256.Sum256([]byte(req.IdempotencyKey))
	return fmt.Sprintf("llm:cache:%s:%s:%s:%s:%s:%s",
		cacheKeyVersion, req.TenantID, req.Provider, req.Model, req.Operation,
		hex.EncodeToString(sum[:]))
}

func (c *cacheMiddleware) get(ctx context.Context, key string) (*transport.Response, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp transport.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("corrupt cache entry: %w", err)
	}
	resp.CacheHit = true
	return &resp, nil
}

func (c *cacheMiddleware) set(ctx context.Context, key string, resp *transport.Response) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}
