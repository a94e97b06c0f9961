package config

import (
	"time"

	"github.com/jatlaoui/ines/internal/llm"
	"github.com/jatlaoui/ines/internal/store"
)

// Temporal connection constants.
const (
	// DefaultTemporalHostPort targets a local Temporal frontend.
	DefaultTemporalHostPort = "localhost:7233"

	// DefaultTemporalNamespace is the namespace workers register in.
	DefaultTemporalNamespace = "default"

	// DefaultTaskQueue is the queue the pipeline workflow and its
	// activities are scheduled on.
	DefaultTaskQueue = "ines-pipeline"

	// DefaultMaxConcurrentActivities bounds parallel activity executions
	// per worker process. Story generation is LLM-bound, so a small bound
	// keeps provider rate limits effective.
	DefaultMaxConcurrentActivities = 5
)

// Storage constants.
const (
	// DefaultRedisAddr targets a local Redis instance.
	DefaultRedisAddr = "localhost:6379"

	// DefaultProfileTTL expires stored style profiles. Profiles are
	// advisory, so a bounded lifetime keeps stale preferences from
	// outliving the users who set them.
	DefaultProfileTTL = 30 * 24 * time.Hour

	// DefaultProfileCacheSize is the capacity of the in-process LRU in
	// front of the profile store.
	DefaultProfileCacheSize = 256

	// DefaultArchivePath is the SQLite file backing the task archive.
	DefaultArchivePath = "ines.db"

	// DefaultArtifactBackend keeps artifact bodies in process memory.
	// Production deployments switch to "minio".
	DefaultArtifactBackend = BackendMemory

	// DefaultMinIOBucket holds exported artifacts and large bodies.
	DefaultMinIOBucket = "ines-artifacts"
)

// Pipeline constants.
const (
	// DefaultStoryStyle is applied when a request names no narrative
	// style and the user's profile has no preference.
	DefaultStoryStyle = "تراثي"
)

// Logging constants.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns a configuration suitable for local development: local
// Temporal, in-memory stores, Redis disabled, and the mock LLM provider so
// a worker starts without credentials. Production deployments override the
// provider and storage backends via YAML and supply keys via environment.
func Default() *Config {
	llmCfg := *llm.DefaultConfig()
	llmCfg.Provider = ProviderMock
	llmCfg.Cache.Enabled = false
	// The redis section owns the cache address unless YAML pins one.
	llmCfg.Cache.RedisAddr = ""

	return &Config{
		Temporal: TemporalConfig{
			HostPort:                DefaultTemporalHostPort,
			Namespace:               DefaultTemporalNamespace,
			TaskQueue:               DefaultTaskQueue,
			MaxConcurrentActivities: DefaultMaxConcurrentActivities,
		},
		LLM: LLMConfig{Config: llmCfg},
		Redis: RedisConfig{
			Addr:             DefaultRedisAddr,
			ProfileTTL:       DefaultProfileTTL,
			ProfileCacheSize: DefaultProfileCacheSize,
		},
		Archive: ArchiveConfig{Path: DefaultArchivePath},
		Artifacts: ArtifactConfig{
			Backend: DefaultArtifactBackend,
			MinIO:   store.MinIOConfig{Bucket: DefaultMinIOBucket},
		},
		Pipeline: PipelineConfig{DefaultStyle: DefaultStoryStyle},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
