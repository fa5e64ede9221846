package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// ErrMissingConfig is returned when a required setting is absent.
var ErrMissingConfig = errors.New("missing required configuration")

type Config struct {
	DatabaseURL string
	SslCertPath string

	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string
	BucketName   string

	MistralAPIKey  string
	MistralBaseURL string
	EmbedProvider  string // "mistral" or "gemini"
	EmbedModel     string
	EmbedDim       int
	GeminiAPIKey   string
	ChatModel      string
	OCRModel       string
	Extractor      string // "mistral" (OCR) or "local" (PDF text layer)

	MatchThreshold   float64
	MatchCount       int
	MaxTokens        int
	Temperature      float64
	FrequencyPenalty float64
	PresencePenalty  float64
	TopP             float64

	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int
	SourcesFile    string

	Port           string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
}

// LoadConfig loads the environment variables and returns the validated config.
func LoadConfig() (*Config, error) {

	_ = godotenv.Load(".env.local", ".env")

	cfg := &Config{
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SslCertPath:      getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey:     getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey:     getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:        getEnv("AWS_REGION", "eu-north-1"),
		BucketName:       getEnv("BUCKET_NAME", ""),
		MistralAPIKey:    getEnv("MISTRAL_API_KEY", ""),
		MistralBaseURL:   getEnv("MISTRAL_BASE_URL", "https://api.mistral.ai/v1"),
		EmbedProvider:    strings.ToLower(getEnv("EMBED_PROVIDER", "mistral")),
		EmbedModel:       getEnv("EMBED_MODEL", ""),
		EmbedDim:         getEnvInt("EMBED_DIM", 1024),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		ChatModel:        getEnv("CHAT_MODEL", "mistral-large-latest"),
		OCRModel:         getEnv("OCR_MODEL", "mistral-ocr-latest"),
		Extractor:        strings.ToLower(getEnv("EXTRACTOR", "mistral")),
		MatchThreshold:   getEnvFloat("MATCH_THRESHOLD", 0.15),
		MatchCount:       getEnvInt("MATCH_COUNT", 8),
		MaxTokens:        getEnvInt("MAX_TOKENS", 2000),
		Temperature:      getEnvFloat("TEMPERATURE", 0.7),
		FrequencyPenalty: getEnvFloat("FREQUENCY_PENALTY", 0.2),
		PresencePenalty:  getEnvFloat("PRESENCE_PENALTY", 0.1),
		TopP:             getEnvFloat("TOP_P", 1),
		ChunkSize:        getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:     getEnvInt("CHUNK_OVERLAP", 200),
		EmbedBatchSize:   getEnvInt("EMBED_BATCH_SIZE", 10),
		SourcesFile:      getEnv("SOURCES_FILE", "sources.yaml"),
		Port:             getEnv("PORT", "8080"),
		AllowedOrigins:   splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "console"),
	}

	if cfg.EmbedModel == "" {
		cfg.EmbedModel = DefaultEmbedModel(cfg.EmbedProvider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultEmbedModel is the embedding model used when EMBED_MODEL is unset.
func DefaultEmbedModel(provider string) string {
	if provider == "gemini" {
		return "text-embedding-004"
	}
	return "mistral-embed"
}

// Validate rejects configurations that cannot serve a single request.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL", ErrMissingConfig)
	}
	if c.MistralAPIKey == "" {
		return fmt.Errorf("%w: MISTRAL_API_KEY", ErrMissingConfig)
	}
	switch c.EmbedProvider {
	case "mistral":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY (EMBED_PROVIDER=gemini)", ErrMissingConfig)
		}
	default:
		return fmt.Errorf("unknown EMBED_PROVIDER %q", c.EmbedProvider)
	}
	switch c.Extractor {
	case "mistral", "local":
	default:
		return fmt.Errorf("unknown EXTRACTOR %q", c.Extractor)
	}
	if c.EmbedDim <= 0 {
		return fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim)
	}
	if c.ChunkSize <= 0 || c.ChunkOverlap < 0 {
		return fmt.Errorf("invalid chunking: CHUNK_SIZE=%d CHUNK_OVERLAP=%d", c.ChunkSize, c.ChunkOverlap)
	}
	return nil
}

// ArchiveEnabled reports whether S3 credentials and a bucket are configured.
func (c *Config) ArchiveEnabled() bool {
	return c.AwsAccessKey != "" && c.AwsSecretKey != "" && c.BucketName != ""
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Int("default", def).Msg("not an int, using default")
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Float64("default", def).Msg("not a float, using default")
		return def
	}
	return f
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
