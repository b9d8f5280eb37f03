// Package config loads notegraphd configuration from defaults, an optional
// config file, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/viper"
)

// Config holds all configuration for the daemon.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Retrieval      RetrievalConfig      `mapstructure:"retrieval"`
	Community      CommunityConfig      `mapstructure:"community"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageConfig holds on-disk layout configuration.
type StorageConfig struct {
	DataDir  string `mapstructure:"data_dir"`  // notes markdown + attachments
	DBPath   string `mapstructure:"db_path"`   // sqlite file, or ":memory:"
	NotesDir string `mapstructure:"notes_dir"` // subdirectory of DataDir holding .md files
}

// LLMConfig holds the extraction/synthesis LLM client configuration.
type LLMConfig struct {
	Provider       string  `mapstructure:"provider"` // openai, or any openai-compatible endpoint
	Model          string  `mapstructure:"model"`
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	Temperature    float32 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"` // per-call deadline for Complete/Stream/Embeddings
}

// EmbeddingConfig holds the embedding client configuration.
type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Model     string `mapstructure:"model"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Dimension int    `mapstructure:"dimension"`
}

// CircuitBreakerConfig holds the gobreaker wrapping around LLM calls.
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	IntervalSeconds  int     `mapstructure:"interval_seconds"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds"`
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// RetrievalConfig tunes the hybrid retriever's fusion and expansion.
type RetrievalConfig struct {
	FTSWeight       float64 `mapstructure:"fts_weight"`
	VectorWeight    float64 `mapstructure:"vector_weight"`
	MaxHops         int     `mapstructure:"max_hops"`
	HopDecay        float64 `mapstructure:"hop_decay"`
	SemanticThresh  float64 `mapstructure:"semantic_threshold"`
	TagJaccardThresh float64 `mapstructure:"tag_jaccard_threshold"`
}

// CommunityConfig tunes community detection.
type CommunityConfig struct {
	MinClusterSize int `mapstructure:"min_cluster_size"`
}

// Load reads defaults, then any config file viper was told to read, then
// environment variable overrides, in that precedence order.
func Load() (*Config, error) {
	setDefaults()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(cfg)
	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")

	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8085)

	home, err := os.UserHomeDir()
	dataDir := "./notegraph-data"
	if err == nil {
		dataDir = fmt.Sprintf("%s/.notegraph", home)
	}
	viper.SetDefault("storage.data_dir", dataDir)
	viper.SetDefault("storage.db_path", fmt.Sprintf("%s/notegraph.db", dataDir))
	viper.SetDefault("storage.notes_dir", "notes")

	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("llm.timeout_seconds", 30)

	viper.SetDefault("embedding.provider", "openai")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.dimension", 1536)

	viper.SetDefault("circuit_breaker.enabled", true)
	viper.SetDefault("circuit_breaker.max_requests", 1)
	viper.SetDefault("circuit_breaker.interval_seconds", 60)
	viper.SetDefault("circuit_breaker.timeout_seconds", 30)
	viper.SetDefault("circuit_breaker.ready_to_trip_ratio", 0.6)

	viper.SetDefault("retrieval.fts_weight", 0.4)
	viper.SetDefault("retrieval.vector_weight", 0.6)
	viper.SetDefault("retrieval.max_hops", 2)
	viper.SetDefault("retrieval.hop_decay", 0.5)
	viper.SetDefault("retrieval.semantic_threshold", 0.5)
	viper.SetDefault("retrieval.tag_jaccard_threshold", 0.3)

	viper.SetDefault("community.min_cluster_size", 3)
}

// overrideWithEnv applies environment variables that take precedence over
// file/default configuration - mainly secrets that should never live in a
// config file checked into a repo.
func overrideWithEnv(cfg *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
		cfg.Embedding.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
		cfg.Embedding.BaseURL = baseURL
	}
	if dbPath := os.Getenv("NOTEGRAPH_DB_PATH"); dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if dataDir := os.Getenv("NOTEGRAPH_DATA_DIR"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if host := os.Getenv("NOTEGRAPH_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("NOTEGRAPH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
}
