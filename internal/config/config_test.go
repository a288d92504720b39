package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/codebridge-ai/codebridge/internal/domain"
)

func validConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.Chunking.WindowSize != 500 {
		t.Errorf("expected default window size 500, got %d", cfg.Chunking.WindowSize)
	}
	if cfg.Chunking.Overlap != 0 {
		t.Errorf("expected default overlap 0, got %d", cfg.Chunking.Overlap)
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("expected default top_k 3, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Provider.Backend != "ollama" {
		t.Errorf("expected default provider ollama, got %q", cfg.Provider.Backend)
	}
	if cfg.Provider.BaseURL != "http://localhost:11434" {
		t.Errorf("unexpected default provider base url %q", cfg.Provider.BaseURL)
	}
	if cfg.Index.Backend != "file" {
		t.Errorf("expected default index backend file, got %q", cfg.Index.Backend)
	}
}

func TestApplyDefaults_LMStudioBaseURL(t *testing.T) {
	cfg := Config{Provider: ProviderConfig{Backend: "lmstudio"}}
	cfg.ApplyDefaults()
	if cfg.Provider.BaseURL != "http://localhost:1234" {
		t.Errorf("expected LM Studio default base url, got %q", cfg.Provider.BaseURL)
	}
}

func TestValidate_OverlapNotSmallerThanWindow(t *testing.T) {
	for _, overlap := range []int{500, 600} {
		cfg := validConfig()
		cfg.Chunking.Overlap = overlap

		err := cfg.Validate()
		if !errors.Is(err, domain.ErrInvalidConfig) {
			t.Fatalf("overlap=%d: expected ErrInvalidConfig, got %v", overlap, err)
		}
	}
}

func TestValidate_MinScoreOutOfRange(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.MinScore = 1.5

	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidate_RedisBackendRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Index.Backend = "redis"

	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}

	cfg.Index.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with addrs set: %v", err)
	}
}

func TestValidate_CacheRequiresRedis(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Cache = true

	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestValidate_UnknownProviderBackend(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.Backend = "vllm"

	if err := cfg.Validate(); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoad_FileWithEnvExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "codebridge.yaml")
	t.Setenv("CB_TEST_MODEL", "qwen2.5-coder")

	raw := `
chunking:
  window_size: 200
  overlap: 20
provider:
  backend: lmstudio
  model: ${CB_TEST_MODEL}
retrieval:
  top_k: 5
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chunking.WindowSize != 200 || cfg.Chunking.Overlap != 20 {
		t.Errorf("chunking not loaded: %+v", cfg.Chunking)
	}
	if cfg.Provider.Model != "qwen2.5-coder" {
		t.Errorf("env expansion failed, got model %q", cfg.Provider.Model)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected top_k 5, got %d", cfg.Retrieval.TopK)
	}
	// untouched sections still get defaults
	if cfg.Prompt.Budget != 8000 {
		t.Errorf("expected default prompt budget, got %d", cfg.Prompt.Budget)
	}
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing explicit config")
	}
}

func TestLoad_InvalidChunkingRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	raw := `
chunking:
  window_size: 100
  overlap: 100
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
