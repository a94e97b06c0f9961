// Package worker builds the dependency graph behind the story pipeline and
// registers it with a Temporal worker. Construction happens here during
// startup, keeping the stage activities focused on pipeline logic.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/jatlaoui/ines/internal/analysis"
	"github.com/jatlaoui/ines/internal/config"
	"github.com/jatlaoui/ines/internal/domain"
	"github.com/jatlaoui/ines/internal/export"
	"github.com/jatlaoui/ines/internal/llm"
	"github.com/jatlaoui/ines/internal/llm/providers"
	"github.com/jatlaoui/ines/internal/llm/transport"
	"github.com/jatlaoui/ines/internal/pipeline"
	"github.com/jatlaoui/ines/internal/stages"
	"github.com/jatlaoui/ines/internal/store"
	"github.com/jatlaoui/ines/pkg/activity"
	"github.com/jatlaoui/ines/pkg/events"
)

// Runtime holds the wired activity set together with the resources behind
// it. Close releases those resources once the worker has stopped.
type Runtime struct {
	// Activities is the fully wired stage activity set to register.
	Activities *stages.Activities

	archive *store.ArchiveStore
	redis   *redis.Client
}

// Close releases the archive database and the Redis connection, if any.
func (r *Runtime) Close() error {
	var redisErr, archiveErr error
	if r.redis != nil {
		redisErr = r.redis.Close()
	}
	if r.archive != nil {
		archiveErr = r.archive.Close()
	}
	return errors.Join(redisErr, archiveErr)
}

// Setup builds every dependency of the stage activities from the loaded
// configuration: provider adapters and the LLM client with its middleware
// pipeline, the analyzers and orchestrator, profile and artifact stores,
// and the archive database. The caller owns the returned Runtime and must
// Close it after the worker stops.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rdb := initializeRedis(cfg)

	client, err := initializeLLMClient(ctx, cfg, rdb, logger)
	if err != nil {
		return nil, err
	}

	narrative, err := analysis.NewLLMAnalyzer(domain.AnalyzerNarrative, client, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize narrative analyzer: %w", err)
	}
	inferrer, err := analysis.NewLLMAnalyzer(domain.AnalyzerHistorical, client, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize historical analyzer: %w", err)
	}

	profiles, err := initializeProfileStore(cfg, rdb)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize profile store: %w", err)
	}

	orch, err := pipeline.NewOrchestrator(pipeline.Deps{
		Narrative:    narrative,
		Inferrer:     inferrer,
		Client:       client,
		Profiles:     profiles,
		DefaultStyle: cfg.Pipeline.DefaultStyle,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orchestrator: %w", err)
	}

	artifacts, err := initializeArtifactStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	db, err := store.NewDB(cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	archive, err := store.NewArchiveStore(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize archive store: %w", err)
	}

	base := activity.NewBaseActivities(events.NewNoOpEventSink())
	acts := stages.NewActivities(base, orch, export.NewRenderer(), archive, artifacts)

	return &Runtime{Activities: acts, archive: archive, redis: rdb}, nil
}

// initializeRedis connects to Redis when enabled. A nil client leaves
// profiles in memory and the response cache on its own connection policy.
func initializeRedis(cfg *config.Config) *redis.Client {
	if !cfg.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: cfg.Redis.Password,
	})
}

// initializeLLMClient assembles the provider router from the configured
// credentials and wraps it in the middleware pipeline. The mock adapter is
// always in the route table; the default provider comes from cfg.LLM.
func initializeLLMClient(ctx context.Context, cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (llm.Client, error) {
	adapters := []transport.Adapter{providers.NewMockAdapter()}

	if cfg.LLM.OpenAIAPIKey != "" {
		openai, err := providers.NewOpenAIAdapter(cfg.LLM.OpenAIAPIKey, cfg.LLM.OpenAIBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai adapter: %w", err)
		}
		adapters = append(adapters, openai)
	}
	if cfg.LLM.GeminiAPIKey != "" {
		gemini, err := providers.NewGeminiAdapter(ctx, cfg.LLM.GeminiAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize gemini adapter: %w", err)
		}
		adapters = append(adapters, gemini)
	}

	client, err := llm.NewClient(ctx, &cfg.LLM.Config, providers.NewRouter(adapters...), rdb, logger, llm.NewNoOpMetrics())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return client, nil
}

// initializeProfileStore picks the profile backend. Redis-backed profiles
// sit behind an in-process LRU layer.
func initializeProfileStore(cfg *config.Config, rdb *redis.Client) (store.ProfileStore, error) {
	if rdb == nil {
		return store.NewMemoryProfileStore(), nil
	}
	inner, err := store.NewRedisProfileStore(rdb, cfg.Redis.ProfileTTL)
	if err != nil {
		return nil, err
	}
	return store.NewCachedProfileStore(inner, cfg.Redis.ProfileCacheSize)
}

// initializeArtifactStore picks the blob backend for phase outputs and
// exports.
func initializeArtifactStore(cfg *config.Config) (store.ArtifactStore, error) {
	if cfg.Artifacts.Backend == config.BackendMinIO {
		return store.NewMinIOArtifactStore(cfg.Artifacts.MinIO)
	}
	return store.NewMemoryArtifactStore(), nil
}
