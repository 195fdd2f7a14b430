package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloo-solutions/coverdraft/internal/domain"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`

	APIToken string `envconfig:"API_TOKEN"`
	// APITokenPrevious stays valid after a rotation until clients move on.
	APITokenPrevious string `envconfig:"API_TOKEN_PREVIOUS"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"coverdraft-documents"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	OpenAIAPIKey          string  `envconfig:"OPENAI_API_KEY"`
	OpenAIChatModel       string  `envconfig:"OPENAI_CHAT_MODEL" default:"gpt-4o-mini"`
	OpenAIBaseURL         string  `envconfig:"OPENAI_BASE_URL"`
	OpenAIEmbeddingModel  string  `envconfig:"OPENAI_EMBEDDING_MODEL" default:"text-embedding-3-small"`
	AnthropicAPIKey       string  `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel        string  `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`
	GeminiAPIKey          string  `envconfig:"GEMINI_API_KEY"`
	GeminiModel           string  `envconfig:"GEMINI_MODEL" default:"gemini-2.0-flash"`
	DefaultGenerator      string  `envconfig:"DEFAULT_GENERATOR" default:"openai"`
	GenerationMaxTokens   int     `envconfig:"GENERATION_MAX_TOKENS" default:"1024"`
	GenerationTemperature float64 `envconfig:"GENERATION_TEMPERATURE" default:"0.7"`
	// BatchDelay spaces out generations in a batch request.
	BatchDelay time.Duration `envconfig:"BATCH_DELAY" default:"3s"`

	// Embedder selects the embedding provider: "openai" or "hash".
	// Empty picks openai when a key is configured and hash otherwise.
	Embedder           string  `envconfig:"EMBEDDER"`
	EmbeddingDimension int     `envconfig:"EMBEDDING_DIMENSION" default:"1536"`
	EmbedConcurrency   int     `envconfig:"EMBED_CONCURRENCY" default:"4"`
	EmbedRatePerSecond float64 `envconfig:"EMBED_RATE_PER_SECOND" default:"5"`
	EmbedBurst         int     `envconfig:"EMBED_BURST" default:"5"`

	BaseWeight              float64 `envconfig:"BASE_WEIGHT" default:"1.0"`
	CVWeight                float64 `envconfig:"CV_WEIGHT" default:"2.0"`
	CoverLetterWeight       float64 `envconfig:"COVER_LETTER_WEIGHT" default:"1.8"`
	LinkedInWeight          float64 `envconfig:"LINKEDIN_WEIGHT" default:"1.2"`
	OtherWeight             float64 `envconfig:"OTHER_WEIGHT" default:"0.8"`
	RecencyPeriodDays       float64 `envconfig:"RECENCY_PERIOD_DAYS" default:"365"`
	MinWeightMultiplier     float64 `envconfig:"MIN_WEIGHT_MULTIPLIER" default:"0.1"`
	RecencyWeightingEnabled bool    `envconfig:"RECENCY_WEIGHTING_ENABLED" default:"true"`
	ManualWeightMin         float64 `envconfig:"MANUAL_WEIGHT_MIN" default:"0.1"`
	ManualWeightMax         float64 `envconfig:"MANUAL_WEIGHT_MAX" default:"10.0"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"500"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"100"`
	MaxChunks    int `envconfig:"MAX_CHUNKS" default:"200"`

	TopK             int           `envconfig:"TOP_K" default:"3"`
	ContextBudget    int           `envconfig:"CONTEXT_BUDGET" default:"6000"`
	RetrievalTimeout time.Duration `envconfig:"RETRIEVAL_TIMEOUT" default:"15s"`

	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"2s"`
	MaxUploadBytes     int64         `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	MaxJSONBytes       int64         `envconfig:"MAX_JSON_BYTES" default:"2097152"`
}

// WeightingConfig holds the inputs of the document weight formula.
type WeightingConfig struct {
	BaseWeight              float64
	TypeWeights             map[domain.DocumentType]float64
	RecencyPeriodDays       float64
	MinWeightMultiplier     float64
	RecencyWeightingEnabled bool
	ManualWeightMin         float64
	ManualWeightMax         float64
}

// ChunkingConfig controls how document text is split before embedding.
type ChunkingConfig struct {
	Size      int
	Overlap   int
	MaxChunks int
}

// RetrievalConfig controls ranking and context assembly.
type RetrievalConfig struct {
	TopK          int
	ContextBudget int
	Timeout       time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("COVERDRAFT", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	return cfg
}

// Validate rejects configurations that would make the weight formula or
// chunker misbehave.
func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	// NaN fails every comparison, so weights are checked with w > 0.
	if !(c.BaseWeight > 0) {
		errs = append(errs, errors.New("BASE_WEIGHT must be positive"))
	}
	for t, w := range c.Weighting().TypeWeights {
		if !(w > 0) {
			errs = append(errs, fmt.Errorf("type weight for %s must be positive", t))
		}
	}
	if !(c.RecencyPeriodDays > 0) {
		errs = append(errs, errors.New("RECENCY_PERIOD_DAYS must be positive"))
	}
	if !(c.MinWeightMultiplier > 0 && c.MinWeightMultiplier <= 1) {
		errs = append(errs, errors.New("MIN_WEIGHT_MULTIPLIER must be in (0, 1]"))
	}
	if !(c.ManualWeightMin > 0 && c.ManualWeightMin <= c.ManualWeightMax) {
		errs = append(errs, errors.New("MANUAL_WEIGHT_MIN must be positive and not exceed MANUAL_WEIGHT_MAX"))
	}
	if !(c.GenerationTemperature >= 0 && c.GenerationTemperature <= 2) {
		errs = append(errs, errors.New("GENERATION_TEMPERATURE must be in [0, 2]"))
	}
	if c.BatchDelay < 0 {
		errs = append(errs, errors.New("BATCH_DELAY must not be negative"))
	}
	if c.ChunkSize <= 0 {
		errs = append(errs, errors.New("CHUNK_SIZE must be positive"))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, errors.New("CHUNK_OVERLAP must be in [0, CHUNK_SIZE)"))
	}
	if c.TopK <= 0 {
		errs = append(errs, errors.New("TOP_K must be positive"))
	}
	if c.ContextBudget <= 0 {
		errs = append(errs, errors.New("CONTEXT_BUDGET must be positive"))
	}
	if c.EmbedConcurrency <= 0 {
		errs = append(errs, errors.New("EMBED_CONCURRENCY must be positive"))
	}
	switch c.Embedder {
	case "", "openai", "hash":
	default:
		errs = append(errs, fmt.Errorf("EMBEDDER must be openai or hash, got %q", c.Embedder))
	}
	return errors.Join(errs...)
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasAnthropic() bool {
	return c.AnthropicAPIKey != ""
}

func (c *Config) HasGemini() bool {
	return c.GeminiAPIKey != ""
}

// EmbedderName resolves the configured embedder, defaulting by available keys.
func (c *Config) EmbedderName() string {
	if c.Embedder != "" {
		return c.Embedder
	}
	if c.HasOpenAI() {
		return "openai"
	}
	return "hash"
}

// Weighting returns a copy of the weight formula settings.
func (c *Config) Weighting() WeightingConfig {
	return WeightingConfig{
		BaseWeight: c.BaseWeight,
		TypeWeights: map[domain.DocumentType]float64{
			domain.DocumentTypeCV:          c.CVWeight,
			domain.DocumentTypeCoverLetter: c.CoverLetterWeight,
			domain.DocumentTypeLinkedIn:    c.LinkedInWeight,
			domain.DocumentTypeOther:       c.OtherWeight,
		},
		RecencyPeriodDays:       c.RecencyPeriodDays,
		MinWeightMultiplier:     c.MinWeightMultiplier,
		RecencyWeightingEnabled: c.RecencyWeightingEnabled,
		ManualWeightMin:         c.ManualWeightMin,
		ManualWeightMax:         c.ManualWeightMax,
	}
}

// Chunking returns a copy of the chunker settings.
func (c *Config) Chunking() ChunkingConfig {
	return ChunkingConfig{Size: c.ChunkSize, Overlap: c.ChunkOverlap, MaxChunks: c.MaxChunks}
}

// Retrieval returns a copy of the retrieval settings.
func (c *Config) Retrieval() RetrievalConfig {
	return RetrievalConfig{TopK: c.TopK, ContextBudget: c.ContextBudget, Timeout: c.RetrievalTimeout}
}

// DefaultWeighting returns the stock weight settings without reading the environment.
func DefaultWeighting() WeightingConfig {
	return WeightingConfig{
		BaseWeight: 1.0,
		TypeWeights: map[domain.DocumentType]float64{
			domain.DocumentTypeCV:          2.0,
			domain.DocumentTypeCoverLetter: 1.8,
			domain.DocumentTypeLinkedIn:    1.2,
			domain.DocumentTypeOther:       0.8,
		},
		RecencyPeriodDays:       365,
		MinWeightMultiplier:     0.1,
		RecencyWeightingEnabled: true,
		ManualWeightMin:         0.1,
		ManualWeightMax:         10.0,
	}
}
