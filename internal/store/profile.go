// Package store provides the persistence layer for the story pipeline: user
// style profiles in Redis, the task archive in SQLite, and story bodies in a
// blob store. Every lookup distinguishes a missing key from an empty result;
// callers test with errors.Is(err, domain.ErrNotFound).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jatlaoui/ines/internal/domain"
)

// profileKeyPrefix namespaces profile keys in Redis.
const profileKeyPrefix = "ines:profile:"

// ProfileStore persists user style profiles. Profile data is advisory:
// implementations may serve stale reads, and writes are last-writer-wins.
type ProfileStore interface {
	// Get returns the profile for the user, or an error matching
	// domain.ErrNotFound when none is stored.
	Get(ctx context.Context, userID string) (domain.StyleProfile, error)

	// Set stores the profile, replacing any previous value.
	Set(ctx context.Context, profile domain.StyleProfile) error
}

// RedisProfileStore keeps profiles as JSON values in Redis.
type RedisProfileStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisProfileStore creates a profile store on the given Redis client.
// A zero ttl stores profiles without expiry.
func NewRedisProfileStore(client redis.UniversalClient, ttl time.Duration) (*RedisProfileStore, error) {
	if client == nil {
		return nil, errors.New("redis client must not be nil")
	}
	return &RedisProfileStore{client: client, ttl: ttl}, nil
}

// Get fetches and decodes the stored profile.
func (s *RedisProfileStore) Get(ctx context.Context, userID string) (domain.StyleProfile, error) {
	if userID == "" {
		return domain.StyleProfile{}, errors.New("user id must not be empty")
	}

	data, err := s.client.Get(ctx, profileKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.StyleProfile{}, domain.NewNotFoundError("profile", userID)
		}
		return domain.StyleProfile{}, fmt.Errorf("get profile %q: %w", userID, err)
	}

	var profile domain.StyleProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return domain.StyleProfile{}, fmt.Errorf("decode profile %q: %w", userID, err)
	}
	return profile, nil
}

// Set validates and stores the profile under the user's key.
func (s *RedisProfileStore) Set(ctx context.Context, profile domain.StyleProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encode profile %q: %w", profile.UserID, err)
	}

	if err := s.client.Set(ctx, profileKey(profile.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set profile %q: %w", profile.UserID, err)
	}
	return nil
}

func profileKey(userID string) string {
	return profileKeyPrefix + userID
}

// MemoryProfileStore is a map-backed ProfileStore for tests and local
// development. Safe for concurrent use.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.StyleProfile
}

// NewMemoryProfileStore creates an empty in-memory profile store.
func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[string]domain.StyleProfile)}
}

// Get returns a copy of the stored profile.
func (s *MemoryProfileStore) Get(ctx context.Context, userID string) (domain.StyleProfile, error) {
	select {
	case <-ctx.Done():
		return domain.StyleProfile{}, ctx.Err()
	default:
	}

	s.mu.RLock()
	profile, ok := s.profiles[userID]
	s.mu.RUnlock()

	if !ok {
		return domain.StyleProfile{}, domain.NewNotFoundError("profile", userID)
	}
	return profile.Clone(), nil
}

// Set stores a copy of the profile.
func (s *MemoryProfileStore) Set(ctx context.Context, profile domain.StyleProfile) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}

	s.mu.Lock()
	s.profiles[profile.UserID] = profile.Clone()
	s.mu.Unlock()
	return nil
}
