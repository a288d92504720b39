package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

// Config holds the codebridge configuration.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Docs      DocsConfig      `yaml:"docs"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Prompt    PromptConfig    `yaml:"prompt"`
	Provider  ProviderConfig  `yaml:"provider"`
	HTTP      HTTPConfig      `yaml:"http"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Format string `yaml:"format"` // console, json (default: console)
	Level  string `yaml:"level"`  // debug, info, warn, error
}

// DocsConfig points at the reference material on disk.
type DocsConfig struct {
	Dir string `yaml:"dir"`
}

// ChunkingConfig holds document splitting parameters.
type ChunkingConfig struct {
	WindowSize int `yaml:"window_size"` // runes per chunk
	Overlap    int `yaml:"overlap"`     // runes shared between consecutive chunks
}

// EmbeddingConfig holds embedding backend settings. BaseURL points at an
// OpenAI-compatible endpoint (Ollama and LM Studio both expose /v1).
type EmbeddingConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"` // most local servers ignore it
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"` // 0 = model default
	BatchSize  int    `yaml:"batch_size"`
	Cache      bool   `yaml:"cache"` // requires the redis index backend
}

// IndexConfig holds vector index settings.
type IndexConfig struct {
	Backend   string   `yaml:"backend"` // file, redis (default: file)
	Path      string   `yaml:"path"`    // file backend: on-disk index location
	KeyPrefix string   `yaml:"key_prefix"`
	Addrs     []string `yaml:"addrs"` // redis backend
	Password  string   `yaml:"password"`
}

// RetrievalConfig holds ranking parameters.
type RetrievalConfig struct {
	TopK     int     `yaml:"top_k"`
	MinScore float64 `yaml:"min_score"`
}

// PromptConfig holds context assembly parameters.
type PromptConfig struct {
	Budget int `yaml:"budget"` // characters of assembled prompt
}

// ProviderConfig holds the generation backend settings.
type ProviderConfig struct {
	Backend      string `yaml:"backend"` // ollama, lmstudio
	BaseURL      string `yaml:"base_url"`
	Model        string `yaml:"model"`
	TimeoutMs    int    `yaml:"timeout_ms"`
	MaxRetries   int    `yaml:"max_retries"`
	RetryDelayMs int    `yaml:"retry_delay_ms"`
}

// HTTPConfig holds serve-mode HTTP settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// IngestConfig holds setup-phase settings.
type IngestConfig struct {
	Workers int `yaml:"workers"`
}

// Load reads configuration from a YAML file. An empty path falls back to the
// default search locations; a missing default file yields pure defaults so the
// tool works out of the box against a local Ollama.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = findConfigPath()
	}

	var cfg Config
	data, err := os.ReadFile(filepath.Clean(path))
	switch {
	case err == nil:
		data = expandEnvVars(data)
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// defaults only
	default:
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Docs.Dir == "" {
		c.Docs.Dir = "data/docs"
	}
	if c.Chunking.WindowSize <= 0 {
		c.Chunking.WindowSize = 500
	}
	if c.Chunking.Overlap < 0 {
		c.Chunking.Overlap = 0
	}
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = "http://localhost:11434/v1"
	}
	if c.Embedding.APIKey == "" {
		c.Embedding.APIKey = "local"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "nomic-embed-text"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 32
	}
	if c.Index.Backend == "" {
		c.Index.Backend = "file"
	}
	if c.Index.Path == "" {
		c.Index.Path = "data/index.json"
	}
	if c.Index.KeyPrefix == "" {
		c.Index.KeyPrefix = "codebridge:"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 3
	}
	if c.Retrieval.MinScore == 0 {
		c.Retrieval.MinScore = 0.25
	}
	if c.Prompt.Budget <= 0 {
		c.Prompt.Budget = 8000
	}
	if c.Provider.Backend == "" {
		c.Provider.Backend = "ollama"
	}
	if c.Provider.BaseURL == "" {
		switch c.Provider.Backend {
		case "lmstudio":
			c.Provider.BaseURL = "http://localhost:1234"
		default:
			c.Provider.BaseURL = "http://localhost:11434"
		}
	}
	if c.Provider.Model == "" {
		c.Provider.Model = "codellama:7b"
	}
	if c.Provider.TimeoutMs <= 0 {
		c.Provider.TimeoutMs = 120000
	}
	if c.Provider.MaxRetries < 0 {
		c.Provider.MaxRetries = 0
	} else if c.Provider.MaxRetries == 0 {
		c.Provider.MaxRetries = 3
	}
	if c.Provider.RetryDelayMs <= 0 {
		c.Provider.RetryDelayMs = 500
	}
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 15
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 180
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 4
	}
}

// Validate checks the configuration for correctness. Violations are reported
// as domain.ErrInvalidConfig before any operation is attempted.
func (c *Config) Validate() error {
	if c.Chunking.Overlap >= c.Chunking.WindowSize {
		return fmt.Errorf("%w: chunking.overlap (%d) must be smaller than chunking.window_size (%d)",
			domain.ErrInvalidConfig, c.Chunking.Overlap, c.Chunking.WindowSize)
	}
	if c.Retrieval.MinScore < -1 || c.Retrieval.MinScore > 1 {
		return fmt.Errorf("%w: retrieval.min_score must be within [-1, 1], got %v",
			domain.ErrInvalidConfig, c.Retrieval.MinScore)
	}
	switch c.Index.Backend {
	case "file":
	case "redis":
		if len(c.Index.Addrs) == 0 {
			return fmt.Errorf("%w: index.addrs is required for the redis backend", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: index.backend must be \"file\" or \"redis\", got %q",
			domain.ErrInvalidConfig, c.Index.Backend)
	}
	if c.Embedding.Cache && c.Index.Backend != "redis" {
		return fmt.Errorf("%w: embedding.cache requires the redis index backend", domain.ErrInvalidConfig)
	}
	switch c.Provider.Backend {
	case "ollama", "lmstudio":
	default:
		return fmt.Errorf("%w: provider.backend must be \"ollama\" or \"lmstudio\", got %q",
			domain.ErrInvalidConfig, c.Provider.Backend)
	}
	if c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: http.port must be between 1 and 65535, got %d",
			domain.ErrInvalidConfig, c.HTTP.Port)
	}
	return nil
}

// findConfigPath locates the config file: ./codebridge.yaml first, then the
// per-user config directory.
func findConfigPath() string {
	if fileExists("codebridge.yaml") {
		return "codebridge.yaml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "codebridge", "config.yaml")
	}
	return "codebridge.yaml"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
