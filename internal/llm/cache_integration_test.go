//go:build integration
// +build integration

package llm_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisContainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/jatlaoui/ines/internal/llm"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

// setupRedisContainer starts a real Redis for the test and returns a
// connected client. The container is terminated on cleanup.
func setupRedisContainer(t *testing.T) *redis.Client {
	ctx := context.Background()

	container, err := redisContainer.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Redis container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	_, err = client.Ping(ctx).Result()
	require.NoError(t, err)
	return client
}

func cacheTestRequest(key string) *transport.Request {
	return &transport.Request{
		Operation:      transport.OpGeneration,
		Provider:       "mock",
		Model:          "test-model",
		TenantID:       "tenant-1",
		Prompt:         "اكتب فقرة",
		MaxTokens:      64,
		IdempotencyKey: key,
	}
}

func TestCacheMiddleware_RealRedis(t *testing.T) {
	client := setupRedisContainer(t)
	ctx := context.Background()

	mw, err := llm.NewCacheMiddleware(ctx, llm.CacheConfig{Enabled: true, TTL: time.Hour}, client, nil)
	require.NoError(t, err)

	calls := 0
	handler := mw(transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		calls++
		return &transport.Response{Content: "النص المولد", FinishReason: "stop"}, nil
	}))

	t.Run("miss then hit", func(t *testing.T) {
		first, err := handler.Handle(ctx, cacheTestRequest("task-1:unit-0:cycle-0"))
		require.NoError(t, err)
		assert.False(t, first.CacheHit)
		assert.Equal(t, 1, calls)

		second, err := handler.Handle(ctx, cacheTestRequest("task-1:unit-0:cycle-0"))
		require.NoError(t, err)
		assert.True(t, second.CacheHit)
		assert.Equal(t, "النص المولد", second.Content)
		assert.Equal(t, 1, calls, "hit is served without a provider call")
	})

	t.Run("different key misses", func(t *testing.T) {
		resp, err := handler.Handle(ctx, cacheTestRequest("task-1:unit-1:cycle-0"))
		require.NoError(t, err)
		assert.False(t, resp.CacheHit)
		assert.Equal(t, 2, calls)
	})

	t.Run("no idempotency key bypasses", func(t *testing.T) {
		req := cacheTestRequest("")
		for i := 0; i < 2; i++ {
			resp, err := handler.Handle(ctx, req)
			require.NoError(t, err)
			assert.False(t, resp.CacheHit)
		}
		assert.Equal(t, 4, calls)
	})

	t.Run("corrupt entry degrades to bypass", func(t *testing.T) {
		req := cacheTestRequest("task-1:unit-2:cycle-0")

		// Prime, then corrupt the stored entry in place.
		_, err := handler.Handle(ctx, req)
		require.NoError(t, err)

		keys, err := client.Keys(ctx, "llm:cache:*").Result()
		require.NoError(t, err)
		require.NotEmpty(t, keys)
		for _, k := range keys {
			require.NoError(t, client.Set(ctx, k, `{"content": broken json`, time.Hour).Err())
		}

		resp, err := handler.Handle(ctx, req)
		require.NoError(t, err, "corrupt cache must not fail the request")
		assert.False(t, resp.CacheHit)
	})
}
