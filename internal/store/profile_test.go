package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatlaoui/ines/internal/domain"
)

func testProfile(userID string) domain.StyleProfile {
	return domain.StyleProfile{
		UserID:          userID,
		PreferredStyle:  "كلاسيكي",
		PreferredLength: domain.LengthMedium,
		CulturalNotes:   []string{"تقاليد جبلية"},
		UpdatedAt:       time.Unix(1700000000, 0).UTC(),
	}
}

// countingProfileStore wraps a ProfileStore and counts backing reads.
type countingProfileStore struct {
	inner ProfileStore
	gets  atomic.Int64
}

func (c *countingProfileStore) Get(ctx context.Context, userID string) (domain.StyleProfile, error) {
	c.gets.Add(1)
	return c.inner.Get(ctx, userID)
}

func (c *countingProfileStore) Set(ctx context.Context, profile domain.StyleProfile) error {
	return c.inner.Set(ctx, profile)
}

func TestMemoryProfileStore_RoundTrip(t *testing.T) {
	stored := NewMemoryProfileStore()
	ctx := context.Background()

	require.NoError(t, stored.Set(ctx, testProfile("user-1")))

	got, err := stored.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "كلاسيكي", got.PreferredStyle)
	assert.Equal(t, domain.LengthMedium, got.PreferredLength)

	// Mutating the returned copy must not leak into the store.
	got.CulturalNotes[0] = "changed"
	again, err := stored.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "تقاليد جبلية", again.CulturalNotes[0])
}

func TestMemoryProfileStore_NotFound(t *testing.T) {
	stored := NewMemoryProfileStore()

	_, err := stored.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "profile", notFound.Kind)
	assert.Equal(t, "missing", notFound.Key)
}

func TestMemoryProfileStore_RejectsInvalidProfile(t *testing.T) {
	stored := NewMemoryProfileStore()

	err := stored.Set(context.Background(), domain.StyleProfile{})
	require.Error(t, err)
}

func TestCachedProfileStore_ServesRepeatReadsFromCache(t *testing.T) {
	counting := &countingProfileStore{inner: NewMemoryProfileStore()}
	require.NoError(t, counting.inner.Set(context.Background(), testProfile("user-1")))

	cached, err := NewCachedProfileStore(counting, 8)
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		got, err := cached.Get(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "user-1", got.UserID)
	}

	assert.Equal(t, int64(1), counting.gets.Load(), "only the first read should hit the backing store")
}

func TestCachedProfileStore_WriteThrough(t *testing.T) {
	inner := NewMemoryProfileStore()
	cached, err := NewCachedProfileStore(inner, 8)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, cached.Set(ctx, testProfile("user-2")))

	// The write must reach the backing store, not just the cache.
	direct, err := inner.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "كلاسيكي", direct.PreferredStyle)

	got, err := cached.Get(ctx, "user-2")
	require.NoError(t, err)
	assert.Equal(t, "user-2", got.UserID)
}

func TestCachedProfileStore_MissIsNotCached(t *testing.T) {
	inner := NewMemoryProfileStore()
	cached, err := NewCachedProfileStore(inner, 8)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cached.Get(ctx, "late-user")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// A profile created after the miss becomes visible on the next read.
	require.NoError(t, inner.Set(ctx, testProfile("late-user")))

	got, err := cached.Get(ctx, "late-user")
	require.NoError(t, err)
	assert.Equal(t, "late-user", got.UserID)
}

func TestCachedProfileStore_RequiresInner(t *testing.T) {
	_, err := NewCachedProfileStore(nil, 8)
	require.Error(t, err)
}
