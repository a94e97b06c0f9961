package store

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jatlaoui/ines/internal/domain"
)

// DefaultProfileCacheSize bounds the in-process profile cache.
const DefaultProfileCacheSize = 1024

// CachedProfileStore fronts a ProfileStore with an in-process LRU. Reads may
// be stale until the next Set through this decorator; profile data tolerates
// that. Set writes through to the backing store before updating the cache.
type CachedProfileStore struct {
	inner ProfileStore
	cache *lru.Cache[string, domain.StyleProfile]
}

// NewCachedProfileStore wraps inner with an LRU of the given size.
func NewCachedProfileStore(inner ProfileStore, size int) (*CachedProfileStore, error) {
	if inner == nil {
		return nil, errors.New("inner profile store must not be nil")
	}
	if size <= 0 {
		size = DefaultProfileCacheSize
	}

	cache, err := lru.New[string, domain.StyleProfile](size)
	if err != nil {
		return nil, fmt.Errorf("create profile cache: %w", err)
	}
	return &CachedProfileStore{inner: inner, cache: cache}, nil
}

// Get serves from the cache when possible, falling back to the backing store
// and caching the result. Not-found results are not cached: a profile created
// after a miss becomes visible on the next read.
func (s *CachedProfileStore) Get(ctx context.Context, userID string) (domain.StyleProfile, error) {
	if cached, ok := s.cache.Get(userID); ok {
		return cached.Clone(), nil
	}

	profile, err := s.inner.Get(ctx, userID)
	if err != nil {
		return domain.StyleProfile{}, err
	}

	s.cache.Add(userID, profile.Clone())
	return profile, nil
}

// Set writes through to the backing store, then refreshes the cache entry.
func (s *CachedProfileStore) Set(ctx context.Context, profile domain.StyleProfile) error {
	if err := s.inner.Set(ctx, profile); err != nil {
		return err
	}
	s.cache.Add(profile.UserID, profile.Clone())
	return nil
}
