package worker

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatlaoui/ines/internal/config"
	"github.com/jatlaoui/ines/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Archive.Path = filepath.Join(t.TempDir(), "archive.db")
	return cfg
}

func TestSetupBuildsRuntimeFromDefaults(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rt, err := Setup(context.Background(), testConfig(t), logger)
	require.NoError(t, err)
	require.NotNil(t, rt.Activities)

	require.NoError(t, rt.Close())
}

func TestSetupAcceptsNilLogger(t *testing.T) {
	rt, err := Setup(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	require.NoError(t, rt.Close())
}

func TestInitializeProfileStoreWithoutRedis(t *testing.T) {
	profiles, err := initializeProfileStore(config.Default(), nil)
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryProfileStore{}, profiles)
}

func TestInitializeProfileStoreWithRedis(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Enabled = true

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer rdb.Close()

	profiles, err := initializeProfileStore(cfg, rdb)
	require.NoError(t, err)
	assert.IsType(t, &store.CachedProfileStore{}, profiles)
}

func TestInitializeArtifactStoreDefaultsToMemory(t *testing.T) {
	artifacts, err := initializeArtifactStore(config.Default())
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryArtifactStore{}, artifacts)
}
