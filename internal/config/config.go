// Package config loads worker configuration: a YAML file parsed over
// documented defaults, then an environment overlay. Secrets (provider API
// keys, passwords) are read exclusively from the environment and have no
// YAML schema, so a serialized config can never leak them.
//
// Recognized environment variables: OPENAI_API_KEY, OPENAI_BASE_URL,
// GEMINI_API_KEY, REDIS_ADDR, REDIS_PASSWORD, MINIO_ACCESS_KEY,
// MINIO_SECRET_KEY, TEMPORAL_HOST_PORT, TEMPORAL_NAMESPACE,
// TEMPORAL_TASK_QUEUE, INES_LOG_LEVEL.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jatlaoui/ines/internal/llm"
	"github.com/jatlaoui/ines/internal/store"
)

// Provider values accepted by LLMConfig.Provider. They match the adapter
// names the provider router registers under.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Backend values accepted by ArtifactConfig.Backend.
const (
	BackendMemory = "memory"
	BackendMinIO  = "minio"
)

// Config is the full worker configuration.
type Config struct {
	Temporal  TemporalConfig `yaml:"temporal"`
	LLM       LLMConfig      `yaml:"llm"`
	Redis     RedisConfig    `yaml:"redis"`
	Archive   ArchiveConfig  `yaml:"archive"`
	Artifacts ArtifactConfig `yaml:"artifacts"`
	Pipeline  PipelineConfig `yaml:"pipeline"`
	Logging   LoggingConfig  `yaml:"logging"`
}

// TemporalConfig locates the Temporal cluster and names the worker's queue.
type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`

	// MaxConcurrentActivities bounds parallel activity executions in one
	// worker process.
	MaxConcurrentActivities int `yaml:"max_concurrent_activities"`
}

// LLMConfig extends the client configuration with provider credentials.
// The embedded fields (provider, model, retry, rate_limit, cache) inline
// into the llm section of the YAML document.
type LLMConfig struct {
	llm.Config `yaml:",inline"`

	// OpenAIBaseURL points the OpenAI adapter at a compatible gateway
	// instead of the public endpoint.
	OpenAIBaseURL string `yaml:"openai_base_url"`

	// OpenAIAPIKey comes from OPENAI_API_KEY. Never serialized.
	OpenAIAPIKey string `yaml:"-"`

	// GeminiAPIKey comes from GEMINI_API_KEY. Never serialized.
	GeminiAPIKey string `yaml:"-"`
}

// RedisConfig controls the Redis-backed profile store and, by extension,
// the LLM response cache address.
type RedisConfig struct {
	// Enabled switches the profile store to Redis. Disabled, profiles
	// live in process memory and vanish on restart.
	Enabled bool `yaml:"enabled"`

	Addr string `yaml:"addr"`
	DB   int    `yaml:"db"`

	// Password comes from REDIS_PASSWORD. Never serialized.
	Password string `yaml:"-"`

	// ProfileTTL expires stored style profiles. Zero keeps them forever.
	ProfileTTL time.Duration `yaml:"profile_ttl"`

	// ProfileCacheSize is the capacity of the in-process LRU serving
	// reads in front of the store.
	ProfileCacheSize int `yaml:"profile_cache_size"`
}

// ArchiveConfig locates the SQLite task archive.
type ArchiveConfig struct {
	Path string `yaml:"path"`
}

// ArtifactConfig selects the blob store holding story bodies and exports.
type ArtifactConfig struct {
	// Backend is "memory" or "minio".
	Backend string `yaml:"backend"`

	// MinIO configures the bucket when Backend is "minio". Access and
	// secret keys come only from MINIO_ACCESS_KEY and MINIO_SECRET_KEY.
	MinIO store.MinIOConfig `yaml:"minio"`
}

// PipelineConfig carries generation defaults that are not per-request.
type PipelineConfig struct {
	// DefaultStyle is the narrative style applied when a request names
	// none and the user's profile has no preference.
	DefaultStyle string `yaml:"default_style"`
}

// LoggingConfig shapes the worker's slog output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// Load reads the YAML file at path over the defaults, overlays the
// environment, and validates the result. An empty path skips the file and
// yields defaults plus environment, which is enough to run a worker against
// local Temporal with the mock provider.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		data = b
	}
	return load(data, os.LookupEnv)
}

// load is the testable core of Load: parse, overlay, default, validate.
func load(data []byte, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}

	cfg.overlayEnv(lookup)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// overlayEnv applies environment overrides. Secrets only exist here.
func (c *Config) overlayEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set("TEMPORAL_HOST_PORT", &c.Temporal.HostPort)
	set("TEMPORAL_NAMESPACE", &c.Temporal.Namespace)
	set("TEMPORAL_TASK_QUEUE", &c.Temporal.TaskQueue)

	set("OPENAI_API_KEY", &c.LLM.OpenAIAPIKey)
	set("OPENAI_BASE_URL", &c.LLM.OpenAIBaseURL)
	set("GEMINI_API_KEY", &c.LLM.GeminiAPIKey)

	set("REDIS_ADDR", &c.Redis.Addr)
	set("REDIS_PASSWORD", &c.Redis.Password)

	set("MINIO_ACCESS_KEY", &c.Artifacts.MinIO.AccessKey)
	set("MINIO_SECRET_KEY", &c.Artifacts.MinIO.SecretKey)

	set("INES_LOG_LEVEL", &c.Logging.Level)
}

// applyDefaults restores empties and wires cross-section fallbacks after
// the YAML pass, which may have blanked fields explicitly.
func (c *Config) applyDefaults() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	c.Artifacts.Backend = strings.ToLower(strings.TrimSpace(c.Artifacts.Backend))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Temporal.HostPort == "" {
		c.Temporal.HostPort = DefaultTemporalHostPort
	}
	if c.Temporal.Namespace == "" {
		c.Temporal.Namespace = DefaultTemporalNamespace
	}
	if c.Temporal.TaskQueue == "" {
		c.Temporal.TaskQueue = DefaultTaskQueue
	}
	if c.Temporal.MaxConcurrentActivities <= 0 {
		c.Temporal.MaxConcurrentActivities = DefaultMaxConcurrentActivities
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = DefaultArtifactBackend
	}
	if c.Archive.Path == "" {
		c.Archive.Path = DefaultArchivePath
	}

	// The response cache rides the same Redis instance as the profile
	// store unless pointed elsewhere.
	if c.LLM.Cache.Enabled && c.LLM.Cache.RedisAddr == "" {
		c.LLM.Cache.RedisAddr = c.Redis.Addr
		if c.LLM.Cache.RedisPassword == "" {
			c.LLM.Cache.RedisPassword = c.Redis.Password
		}
	}
}

// Validate rejects configurations a worker cannot start with. Provider
// credential checks apply to the default provider only; adapters for other
// providers are registered when their keys are present.
func (c *Config) Validate() error {
	if c.Temporal.HostPort == "" {
		return fmt.Errorf("temporal.host_port is required")
	}
	if c.Temporal.Namespace == "" {
		return fmt.Errorf("temporal.namespace is required")
	}
	if c.Temporal.TaskQueue == "" {
		return fmt.Errorf("temporal.task_queue is required")
	}

	switch c.LLM.Provider {
	case ProviderOpenAI:
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when llm.provider is %q", ProviderOpenAI)
		}
	case ProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required when llm.provider is %q", ProviderGemini)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("llm.provider must be %q, %q, or %q, got %q",
			ProviderOpenAI, ProviderGemini, ProviderMock, c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required when redis is enabled")
		}
		if c.Redis.ProfileCacheSize < 1 {
			return fmt.Errorf("redis.profile_cache_size must be at least 1")
		}
	}

	switch c.Artifacts.Backend {
	case BackendMemory, BackendMinIO:
	default:
		return fmt.Errorf("artifacts.backend must be %q or %q, got %q",
			BackendMemory, BackendMinIO, c.Artifacts.Backend)
	}

	if _, err := parseLevel(c.Logging.Level); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format)
	}

	return nil
}

// APIKeyFor returns the configured credential for a provider name, empty
// when the provider needs none or is unknown.
func (c *Config) APIKeyFor(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return c.LLM.OpenAIAPIKey
	case ProviderGemini:
		return c.LLM.GeminiAPIKey
	default:
		return ""
	}
}

// NewLogger builds the worker's slog logger per the logging section.
func (l LoggingConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(l.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if l.Format == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", s)
	}
}
