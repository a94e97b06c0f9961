package llm

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	llmerrors "github.com/jatlaoui/ines/internal/llm/errors"
	"github.com/jatlaoui/ines/internal/llm/providers"
	"github.com/jatlaoui/ines/internal/llm/transport"
)

// testConfig disables the cache and keeps retry intervals tiny so the full
// chain runs in-process without Redis or real sleeps.
func testConfig() *Config {
	return &Config{
		Provider:  providers.MockProviderName,
		Model:     "test-model",
		MaxTokens: 128,
		Timeout:   time.Second,
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			Multiplier:      1.0,
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000, Wait: true},
		Cache:     CacheConfig{Enabled: false},
	}
}

func newTestClient(t *testing.T, adapter transport.Adapter) Client {
	t.Helper()
	c, err := NewClient(context.Background(), testConfig(), providers.NewRouter(adapter), nil, slog.Default(), nil)
	require.NoError(t, err)
	return c
}

func TestNewClient_NilRouter(t *testing.T) {
	_, err := NewClient(context.Background(), testConfig(), nil, nil, nil, nil)
	assert.ErrorIs(t, err, errNilRouter)
}

func TestClient_Complete_AppliesDefaults(t *testing.T) {
	mock := providers.NewMockAdapter(providers.MockResult{Content: "قصة قصيرة عن البحر"})
	client := newTestClient(t, mock)

	resp, err := client.Complete(context.Background(), &transport.Request{
		Operation:   transport.OpGeneration,
		Prompt:      "اكتب قصة قصيرة",
		Temperature: 0.8,
	})
	require.NoError(t, err)

	assert.Equal(t, "قصة قصيرة عن البحر", resp.Content)
	assert.Equal(t, "test-model", resp.Model, "default model is filled before dispatch")
	assert.Equal(t, 1, mock.Calls())
}

func TestClient_Complete_ValidationRejected(t *testing.T) {
	mock := providers.NewMockAdapter()
	client := newTestClient(t, mock)

	_, err := client.Complete(context.Background(), &transport.Request{
		Operation: transport.OpGeneration,
		Prompt:    "   ",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid llm request")
	assert.Equal(t, 0, mock.Calls(), "invalid requests never reach the provider")
}

func TestClient_Complete_RetriesTransientFailures(t *testing.T) {
	mock := providers.NewMockAdapter(
		providers.MockResult{Err: &llmerrors.ProviderError{
			Provider: "mock", Type: llmerrors.ErrorTypeProvider, Message: "temporarily down",
		}},
		providers.MockResult{Content: "نجحت المحاولة الثانية"},
	)
	client := newTestClient(t, mock)

	resp, err := client.Complete(context.Background(), &transport.Request{
		Operation:   transport.OpGeneration,
		Prompt:      "حاول مجدداً",
		Temperature: 0.5,
	})
	require.NoError(t, err)

	assert.Equal(t, "نجحت المحاولة الثانية", resp.Content)
	assert.Equal(t, 2, mock.Calls())
}

func TestClient_Complete_NonRetryableFailsFast(t *testing.T) {
	mock := providers.NewMockAdapter(
		providers.MockResult{Err: &llmerrors.ProviderError{
			Provider: "mock", Type: llmerrors.ErrorTypeAuth, Message: "bad key",
		}},
	)
	client := newTestClient(t, mock)

	_, err := client.Complete(context.Background(), &transport.Request{
		Operation:   transport.OpCritique,
		Prompt:      "قيّم هذا النص",
		Temperature: 0.2,
	})

	var pe *llmerrors.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, llmerrors.ErrorTypeAuth, pe.Type)
	assert.Equal(t, 1, mock.Calls(), "auth failures are not retried")
}

func TestClient_Complete_RetryBudgetExhausted(t *testing.T) {
	transient := providers.MockResult{Err: &llmerrors.ProviderError{
		Provider: "mock", Type: llmerrors.ErrorTypeNetwork, Message: "connection reset",
	}}
	mock := providers.NewMockAdapter(transient, transient, transient)
	client := newTestClient(t, mock)

	_, err := client.Complete(context.Background(), &transport.Request{
		Operation:   transport.OpGeneration,
		Prompt:      "أعد المحاولة",
		Temperature: 0.5,
	})

	assert.ErrorIs(t, err, llmerrors.ErrMaxRetriesExceeded)
	assert.Equal(t, 3, mock.Calls())
}

func TestRateLimitMiddleware_FailFast(t *testing.T) {
	mw, err := NewRateLimitMiddleware(RateLimitConfig{
		RequestsPerSecond: 0.001, Burst: 2, Wait: false,
	}, nil)
	require.NoError(t, err)

	calls := 0
	handler := mw(transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		calls++
		return &transport.Response{Content: "ok"}, nil
	}))

	req := &transport.Request{Provider: "mock", Model: "m", Prompt: "p", MaxTokens: 1}
	for i := 0; i < 2; i++ {
		_, err := handler.Handle(context.Background(), req)
		require.NoError(t, err)
	}

	_, err = handler.Handle(context.Background(), req)
	var pe *llmerrors.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, llmerrors.ErrorTypeRateLimit, pe.Type)
	assert.GreaterOrEqual(t, pe.RetryAfter, 1)
	assert.Equal(t, 2, calls, "exhausted bucket never reaches the provider")
}

func TestRetryMiddleware_Backoff(t *testing.T) {
	rm := &retryMiddleware{cfg: RetryConfig{
		MaxAttempts:     5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     400 * time.Millisecond,
		Multiplier:      2.0,
	}, logger: slog.Default()}

	t.Run("provider guidance wins", func(t *testing.T) {
		err := &llmerrors.ProviderError{Type: llmerrors.ErrorTypeRateLimit, RetryAfter: 7}
		assert.Equal(t, 7*time.Second, rm.backoff(1, err))
	})

	t.Run("jittered growth stays under the cap", func(t *testing.T) {
		plain := &llmerrors.ProviderError{Type: llmerrors.ErrorTypeNetwork}
		for attempt := 1; attempt <= 10; attempt++ {
			d := rm.backoff(attempt, plain)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.Less(t, d, 400*time.Millisecond+time.Millisecond)
		}
	})
}

func TestCacheMiddleware_DisabledPassthrough(t *testing.T) {
	mw, err := NewCacheMiddleware(context.Background(), CacheConfig{Enabled: false}, nil, nil)
	require.NoError(t, err)

	calls := 0
	handler := mw(transport.HandlerFunc(func(context.Context, *transport.Request) (*transport.Response, error) {
		calls++
		return &transport.Response{Content: "fresh"}, nil
	}))

	req := &transport.Request{
		Provider: "mock", Model: "m", Prompt: "p", MaxTokens: 1,
		IdempotencyKey: "same-key",
	}
	for i := 0; i < 2; i++ {
		resp, err := handler.Handle(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, resp.CacheHit)
	}
	assert.Equal(t, 2, calls, "disabled cache never intercepts")
}
