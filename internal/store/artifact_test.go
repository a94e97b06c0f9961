package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatlaoui/ines/internal/domain"
)

func TestMemoryArtifactStore_PutGetExists(t *testing.T) {
	blobs := NewMemoryArtifactStore()
	ctx := context.Background()

	content := "كان يا ما كان في قديم الزمان صياد يسكن قرية صغيرة على الساحل"
	key := domain.ArtifactKey("task-1", domain.ArtifactUnit, "1.txt")

	ref, err := blobs.Put(ctx, content, domain.ArtifactUnit, key)
	require.NoError(t, err)
	assert.Equal(t, key, ref.Key)
	assert.Equal(t, int64(len(content)), ref.Size)
	assert.Equal(t, domain.ArtifactUnit, ref.Kind)

	got, err := blobs.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	ok, err := blobs.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryArtifactStore_Missing(t *testing.T) {
	blobs := NewMemoryArtifactStore()
	ctx := context.Background()

	ref := domain.ArtifactRef{Key: "tasks/none/story/final.txt", Kind: domain.ArtifactStory}

	_, err := blobs.Get(ctx, ref)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ok, err := blobs.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryArtifactStore_RejectsInvalidRef(t *testing.T) {
	blobs := NewMemoryArtifactStore()
	ctx := context.Background()

	_, err := blobs.Put(ctx, "body", domain.ArtifactKind("bogus"), "some/key")
	require.Error(t, err)

	_, err = blobs.Put(ctx, "body", domain.ArtifactStory, "")
	require.Error(t, err)
}

func TestMemoryArtifactStore_OverwriteSameKey(t *testing.T) {
	blobs := NewMemoryArtifactStore()
	ctx := context.Background()

	key := domain.ArtifactKey("task-2", domain.ArtifactExport, "story.md")

	_, err := blobs.Put(ctx, "first draft", domain.ArtifactExport, key)
	require.NoError(t, err)

	ref, err := blobs.Put(ctx, "نسخة منقحة نهائية", domain.ArtifactExport, key)
	require.NoError(t, err)

	got, err := blobs.Get(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "نسخة منقحة نهائية", got)
}
