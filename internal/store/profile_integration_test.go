//go:build integration
// +build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redisContainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/store"
)

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

func TestRedisProfileStore_RealRedis(t *testing.T) {
	client := setupRedisContainer(t)
	ctx := context.Background()

	profiles, err := store.NewRedisProfileStore(client, 0)
	require.NoError(t, err)

	profile := domain.StyleProfile{
		UserID:          "user-7",
		PreferredStyle:  "شعبي",
		PreferredLength: domain.LengthLong,
		CulturalNotes:   []string{"أمثال بدوية", "حكايات السمر"},
		UpdatedAt:       time.Now().UTC().Truncate(time.Second),
	}

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, profiles.Set(ctx, profile))

		got, err := profiles.Get(ctx, "user-7")
		require.NoError(t, err)
		assert.Equal(t, profile.PreferredStyle, got.PreferredStyle)
		assert.Equal(t, profile.PreferredLength, got.PreferredLength)
		assert.Equal(t, profile.CulturalNotes, got.CulturalNotes)
	})

	t.Run("missing user is distinct not-found", func(t *testing.T) {
		_, err := profiles.Get(ctx, "nobody")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("last writer wins", func(t *testing.T) {
		updated := profile
		updated.PreferredStyle = "معاصر"
		require.NoError(t, profiles.Set(ctx, updated))

		got, err := profiles.Get(ctx, "user-7")
		require.NoError(t, err)
		assert.Equal(t, "معاصر", got.PreferredStyle)
	})

	t.Run("ttl expires entries", func(t *testing.T) {
		shortLived, err := store.NewRedisProfileStore(client, time.Second)
		require.NoError(t, err)

		expiring := profile
		expiring.UserID = "user-ttl"
		require.NoError(t, shortLived.Set(ctx, expiring))

		_, err = shortLived.Get(ctx, "user-ttl")
		require.NoError(t, err)

		time.Sleep(1500 * time.Millisecond)

		_, err = shortLived.Get(ctx, "user-ttl")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestCachedProfileStore_OverRealRedis(t *testing.T) {
	client := setupRedisContainer(t)
	ctx := context.Background()

	backing, err := store.NewRedisProfileStore(client, 0)
	require.NoError(t, err)

	cached, err := store.NewCachedProfileStore(backing, 16)
	require.NoError(t, err)

	profile := domain.StyleProfile{
		UserID:         "user-9",
		PreferredStyle: "كلاسيكي",
		UpdatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, cached.Set(ctx, profile))

	// Served from cache even if the backing entry disappears.
	require.NoError(t, client.Del(ctx, "ines:profile:user-9").Err())

	got, err := cached.Get(ctx, "user-9")
	require.NoError(t, err)
	assert.Equal(t, "كلاسيكي", got.PreferredStyle)
}
