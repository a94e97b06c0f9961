package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jatlaoui/ines/internal/domain"
)

// ArtifactStore holds the large text bodies the pipeline produces. Events,
// traces, and the archive carry only the returned references; the bodies
// live here.
type ArtifactStore interface {
	// Put stores content under the key and returns its reference.
	Put(ctx context.Context, content string, kind domain.ArtifactKind, key string) (domain.ArtifactRef, error)

	// Get returns the content behind the reference, or an error matching
	// domain.ErrNotFound when the key does not exist.
	Get(ctx context.Context, ref domain.ArtifactRef) (string, error)

	// Exists reports whether the reference's key is stored.
	Exists(ctx context.Context, ref domain.ArtifactRef) (bool, error)
}

type memoryArtifact struct {
	content string
	kind    domain.ArtifactKind
}

// MemoryArtifactStore is a map-backed ArtifactStore for tests and local
// development. Safe for concurrent use.
type MemoryArtifactStore struct {
	mu      sync.RWMutex
	objects map[string]memoryArtifact
}

// NewMemoryArtifactStore creates an empty in-memory artifact store.
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{objects: make(map[string]memoryArtifact)}
}

// Put stores the content and returns its reference.
func (s *MemoryArtifactStore) Put(ctx context.Context, content string, kind domain.ArtifactKind, key string) (domain.ArtifactRef, error) {
	select {
	case <-ctx.Done():
		return domain.ArtifactRef{}, ctx.Err()
	default:
	}

	ref := domain.ArtifactRef{Key: key, Size: int64(len(content)), Kind: kind}
	if err := ref.Validate(); err != nil {
		return domain.ArtifactRef{}, fmt.Errorf("invalid artifact ref: %w", err)
	}

	s.mu.Lock()
	s.objects[key] = memoryArtifact{content: content, kind: kind}
	s.mu.Unlock()
	return ref, nil
}

// Get returns the stored content.
func (s *MemoryArtifactStore) Get(ctx context.Context, ref domain.ArtifactRef) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if ref.Key == "" {
		return "", errors.New("artifact key must not be empty")
	}

	s.mu.RLock()
	obj, ok := s.objects[ref.Key]
	s.mu.RUnlock()

	if !ok {
		return "", domain.NewNotFoundError("artifact", ref.Key)
	}
	return obj.content, nil
}

// Exists reports whether the key is stored.
func (s *MemoryArtifactStore) Exists(ctx context.Context, ref domain.ArtifactRef) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	s.mu.RLock()
	_, ok := s.objects[ref.Key]
	s.mu.RUnlock()
	return ok, nil
}
