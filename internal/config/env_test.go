package config

import (
	"errors"
	"os"
	"testing"
)

var configKeys = []string{
	"DATABASE_URL", "MISTRAL_API_KEY", "GEMINI_API_KEY", "EMBED_PROVIDER", "EMBED_MODEL", "EMBED_DIM",
	"EXTRACTOR", "CHUNK_SIZE", "CHUNK_OVERLAP", "EMBED_BATCH_SIZE", "MATCH_THRESHOLD", "MATCH_COUNT",
	"TEMPERATURE", "AWS_ACCESS_KEY", "AWS_SECRET_KEY", "BUCKET_NAME", "ALLOWED_ORIGINS",
}

// setRequiredEnv clears every setting the tests look at and sets the required ones.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("DATABASE_URL", "postgres://localhost/alynappi")
	t.Setenv("MISTRAL_API_KEY", "mk")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EmbedProvider != "mistral" || cfg.EmbedModel != "mistral-embed" {
		t.Errorf("Unexpected embedder %s/%s", cfg.EmbedProvider, cfg.EmbedModel)
	}
	if cfg.ChunkSize != 1000 || cfg.ChunkOverlap != 200 || cfg.EmbedBatchSize != 10 {
		t.Errorf("Unexpected chunking %d/%d/%d", cfg.ChunkSize, cfg.ChunkOverlap, cfg.EmbedBatchSize)
	}
	if cfg.MatchThreshold != 0.15 || cfg.MatchCount != 8 {
		t.Errorf("Unexpected matching %v/%d", cfg.MatchThreshold, cfg.MatchCount)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "http://localhost:3000" {
		t.Errorf("Unexpected origins %q", cfg.AllowedOrigins)
	}
	if cfg.ArchiveEnabled() {
		t.Errorf("Expected archive disabled without AWS settings")
	}
}

func TestLoadConfigEmbedModelFollowsProvider(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("EMBED_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "gk")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EmbedModel != "text-embedding-004" {
		t.Errorf("Expected the gemini default model, got %q", cfg.EmbedModel)
	}

	t.Setenv("EMBED_MODEL", "gemini-embedding-001")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.EmbedModel != "gemini-embedding-001" {
		t.Errorf("Expected the explicit model, got %q", cfg.EmbedModel)
	}
}

func TestLoadConfigBadNumberFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MATCH_COUNT", "lots")
	t.Setenv("TEMPERATURE", "warm")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MatchCount != 8 || cfg.Temperature != 0.7 {
		t.Errorf("Expected defaults, got %d/%v", cfg.MatchCount, cfg.Temperature)
	}
}

func validConfig() Config {
	return Config{
		DatabaseURL:   "postgres://localhost/alynappi",
		MistralAPIKey: "mk",
		EmbedProvider: "mistral",
		Extractor:     "mistral",
		EmbedDim:      1024,
		ChunkSize:     1000,
		ChunkOverlap:  200,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		missing bool
	}{
		{"no database", func(c *Config) { c.DatabaseURL = "" }, true},
		{"no mistral key", func(c *Config) { c.MistralAPIKey = "" }, true},
		{"gemini without key", func(c *Config) { c.EmbedProvider = "gemini" }, true},
		{"unknown provider", func(c *Config) { c.EmbedProvider = "openai" }, false},
		{"unknown extractor", func(c *Config) { c.Extractor = "tesseract" }, false},
		{"zero dim", func(c *Config) { c.EmbedDim = 0 }, false},
		{"zero chunk size", func(c *Config) { c.ChunkSize = 0 }, false},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, false},
	}

	base := validConfig()
	if err := base.Validate(); err != nil {
		t.Fatalf("Expected the base config to be valid, got %v", err)
	}

	for _, c := range cases {
		cfg := validConfig()
		c.mutate(&cfg)
		err := cfg.Validate()
		if err == nil {
			t.Errorf("%s: expected an error", c.name)
			continue
		}
		if got := errors.Is(err, ErrMissingConfig); got != c.missing {
			t.Errorf("%s: errors.Is(ErrMissingConfig) = %v, want %v (%v)", c.name, got, c.missing, err)
		}
	}

	gemini := validConfig()
	gemini.EmbedProvider = "gemini"
	gemini.GeminiAPIKey = "gk"
	if err := gemini.Validate(); err != nil {
		t.Errorf("Expected gemini with a key to be valid, got %v", err)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a , ,http://b,")
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Errorf("Unexpected list %q", got)
	}
}
