// Package config loads and validates the search core configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values may use "30s"-style strings.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(n)
		return nil
	}

	return fmt.Errorf("invalid duration value %q", value.Value)
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the complete configuration for the search core.
type Config struct {
	Search     SearchConfig     `yaml:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Reranker   RerankerConfig   `yaml:"reranker"`
	Storage    StorageConfig    `yaml:"storage"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level"`

	// Format selects "json" or "text" output.
	Format string `yaml:"format"`

	// FilePath duplicates logs to a file when non-empty.
	FilePath string `yaml:"file_path"`
}

// SearchConfig tunes the retrieval pipeline.
type SearchConfig struct {
	// TopK is the number of nearest chunks fetched from the vector index.
	TopK int `yaml:"top_k"`

	// TopVideos caps how many distinct videos a result may reference.
	TopVideos int `yaml:"top_videos"`

	// FallbackLimit caps the naive candidate list used when reranking
	// fails or returns nothing.
	FallbackLimit int `yaml:"fallback_limit"`

	// KeywordCacheSize bounds the short-lived per-channel keyword index
	// cache. 0 disables caching and rebuilds on every query.
	KeywordCacheSize int `yaml:"keyword_cache_size"`

	// KeywordCacheTTL is how long a cached keyword index stays fresh.
	KeywordCacheTTL Duration `yaml:"keyword_cache_ttl"`
}

// EmbeddingsConfig configures the embedding backend.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama" or "static".
	Provider string `yaml:"provider"`

	// Model is the embedding model identifier.
	Model string `yaml:"model"`

	// Dimensions overrides auto-detection when non-zero.
	Dimensions int `yaml:"dimensions"`

	// BatchSize for batch embedding requests.
	BatchSize int `yaml:"batch_size"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host"`
}

// RerankerConfig configures the cross-encoder backend.
type RerankerConfig struct {
	// Endpoint is the rerank service URL.
	Endpoint string `yaml:"endpoint"`

	// Model is the cross-encoder model identifier.
	Model string `yaml:"model"`

	// BatchSize is the number of candidates scored per batch.
	BatchSize int `yaml:"batch_size"`

	// Timeout bounds a single batch scoring request.
	Timeout Duration `yaml:"timeout"`
}

// StorageConfig configures the relational store.
type StorageConfig struct {
	// DatabasePath is the SQLite file path. Empty means in-memory.
	DatabasePath string `yaml:"database_path"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			TopK:             20,
			TopVideos:        5,
			FallbackLimit:    10,
			KeywordCacheSize: 16,
			KeywordCacheTTL:  Duration(30 * time.Second),
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
		},
		Reranker: RerankerConfig{
			Endpoint:  "http://localhost:9659",
			Model:     "ms-marco-minilm-l6-v2",
			BatchSize: 32,
			Timeout:   Duration(30 * time.Second),
		},
		Storage: StorageConfig{},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file, applies env overrides, and
// validates the result. A missing path yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults.
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies YTNAV_* env vars on top of file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("YTNAV_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("YTNAV_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("YTNAV_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("YTNAV_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
	}
	if v := os.Getenv("YTNAV_RERANKER_MODEL"); v != "" {
		c.Reranker.Model = v
	}
	if v := os.Getenv("YTNAV_DATABASE_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("YTNAV_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("YTNAV_SEARCH_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.TopK = n
		}
	}
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.TopVideos <= 0 {
		return fmt.Errorf("search.top_videos must be positive, got %d", c.Search.TopVideos)
	}
	if c.Search.FallbackLimit <= 0 {
		return fmt.Errorf("search.fallback_limit must be positive, got %d", c.Search.FallbackLimit)
	}
	if c.Search.KeywordCacheSize < 0 {
		return fmt.Errorf("search.keyword_cache_size must not be negative, got %d", c.Search.KeywordCacheSize)
	}
	switch c.Embeddings.Provider {
	case "ollama", "static":
	default:
		return fmt.Errorf("embeddings.provider must be ollama or static, got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Reranker.BatchSize <= 0 {
		return fmt.Errorf("reranker.batch_size must be positive, got %d", c.Reranker.BatchSize)
	}
	return nil
}
