package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the pdfrag tool.
type Config struct {
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Cache     CacheConfig     `yaml:"cache"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ChunkingConfig controls how extracted document text is split.
type ChunkingConfig struct {
	Size    int `yaml:"size"`    // chunk size in characters
	Overlap int `yaml:"overlap"` // overlap between consecutive chunks
}

// RetrievalConfig holds retrieval configuration.
type RetrievalConfig struct {
	TopK       int    `yaml:"top_k"`
	Store      string `yaml:"store"`       // "bolt" or "sqlite"
	PersistDir string `yaml:"persist_dir"` // directory for index state
	Variants   int    `yaml:"variants"`    // multi-query paraphrase count
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`    // "openai", "ollama", "mock"
	Model     string `yaml:"model"`       // e.g. "text-embedding-3-small"
	APIKeyEnv string `yaml:"api_key_env"` // environment variable for API key
	BaseURL   string `yaml:"base_url"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// LLMConfig holds chat model configuration.
type LLMConfig struct {
	Provider      string  `yaml:"provider"`
	Model         string  `yaml:"model"`
	APIKeyEnv     string  `yaml:"api_key_env"`
	BaseURL       string  `yaml:"base_url"`
	Temperature   float64 `yaml:"temperature"`
	ContextBudget int     `yaml:"context_budget"` // prompt token budget for retrieved context
}

// CacheConfig holds answer cache configuration.
type CacheConfig struct {
	Path string `yaml:"path"` // cache database file
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	UploadDir string `yaml:"upload_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Retrieval: RetrievalConfig{
			TopK:       4,
			Store:      "bolt",
			PersistDir: "./vector_db",
			Variants:   3,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			Dimension: 1536,
			BatchSize: 50,
		},
		LLM: LLMConfig{
			Provider:      "openai",
			Model:         "gpt-4o",
			APIKeyEnv:     "OPENAI_API_KEY",
			Temperature:   0.0,
			ContextBudget: 4000,
		},
		Cache: CacheConfig{
			Path: "./cache/answers.db",
		},
		Server: ServerConfig{
			Addr:      ":8080",
			UploadDir: "./uploads",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks cross-field constraints that YAML decoding cannot.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}
	if c.Retrieval.Store != "bolt" && c.Retrieval.Store != "sqlite" {
		return fmt.Errorf("retrieval.store must be bolt or sqlite, got %q", c.Retrieval.Store)
	}
	return nil
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for pdfrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "pdfrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// BoltIndexPath returns the path of the bolt-backed index file.
func BoltIndexPath(persistDir string) string {
	return filepath.Join(persistDir, "index.db")
}

// SQLiteIndexPath returns the path of the sqlite-backed index file.
func SQLiteIndexPath(persistDir string) string {
	return filepath.Join(persistDir, "index.sqlite")
}
