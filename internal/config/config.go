package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	Storage     StorageConfig
	Pipeline    PipelineConfig
	Extraction  ExtractionConfig
	Summarizer  SummarizerConfig
	Idempotency IdempotencyConfig
	Resilience  ResilienceConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
}

type StorageConfig struct {
	SupabaseURL string
	SupabaseKey string
	Bucket      string
}

type PipelineConfig struct {
	Concurrency int
	MaxRetry    int
	TaskTimeout time.Duration
}

type ExtractionConfig struct {
	RasterDPI     int
	PageWorkers   int
	TesseractPath string
	Language      string
	// Pages whose native text layer yields at least this many characters
	// skip OCR entirely.
	TextLayerMinChars int
}

// Fallback policies for a summarizer call that exhausts retries or hits an
// open circuit.
const (
	FallbackDegraded = "degraded"
	FallbackFail     = "fail"
)

type SummarizerConfig struct {
	Provider       string
	Model          string
	OpenAIKey      string
	AnthropicKey   string
	Temperature    float64
	MaxTokens      int
	MinTextLength  int
	MaxTextLength  int
	FallbackPolicy string
}

type IdempotencyConfig struct {
	Backend string // "redis" or "memory"
	TTL     time.Duration
}

type ResilienceConfig struct {
	RetryMaxAttempts   int
	RetryInitialDelay  time.Duration
	RetryMaxDelay      time.Duration
	BreakerWindowSize  int
	BreakerMinSamples  int
	BreakerThreshold   float64
	BreakerCooldown    time.Duration
	BreakerHalfOpenMax int
	RateLimit          float64
	RateBurst          int
	RateAcquireTimeout time.Duration
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	maxRetry, err := getEnvInt("TASK_MAX_RETRY", 3)
	if err != nil {
		return nil, fmt.Errorf("invalid TASK_MAX_RETRY: %w", err)
	}

	pageWorkers, err := getEnvInt("EXTRACTION_PAGE_WORKERS", 4)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACTION_PAGE_WORKERS: %w", err)
	}

	rasterDPI, err := getEnvInt("EXTRACTION_RASTER_DPI", 300)
	if err != nil {
		return nil, fmt.Errorf("invalid EXTRACTION_RASTER_DPI: %w", err)
	}

	minText, err := getEnvInt("SUMMARY_MIN_TEXT_LENGTH", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid SUMMARY_MIN_TEXT_LENGTH: %w", err)
	}

	maxText, err := getEnvInt("SUMMARY_MAX_TEXT_LENGTH", 50000)
	if err != nil {
		return nil, fmt.Errorf("invalid SUMMARY_MAX_TEXT_LENGTH: %w", err)
	}

	idemTTL, err := getEnvDuration("IDEMPOTENCY_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("invalid IDEMPOTENCY_TTL: %w", err)
	}

	taskTimeout, err := getEnvDuration("TASK_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid TASK_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: maxConns,
			MinConns: minConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Storage: StorageConfig{
			SupabaseURL: getEnv("SUPABASE_URL", ""),
			SupabaseKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Bucket:      getEnv("STORAGE_BUCKET", "documents"),
		},
		Pipeline: PipelineConfig{
			Concurrency: concurrency,
			MaxRetry:    maxRetry,
			TaskTimeout: taskTimeout,
		},
		Extraction: ExtractionConfig{
			RasterDPI:         rasterDPI,
			PageWorkers:       pageWorkers,
			TesseractPath:     getEnv("TESSERACT_PATH", "tesseract"),
			Language:          getEnv("OCR_LANGUAGE", "eng"),
			TextLayerMinChars: 32,
		},
		Summarizer: SummarizerConfig{
			Provider:       getEnv("SUMMARY_PROVIDER", "anthropic"),
			Model:          getEnv("SUMMARY_MODEL", ""),
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			Temperature:    0.3,
			MaxTokens:      1024,
			MinTextLength:  minText,
			MaxTextLength:  maxText,
			FallbackPolicy: getEnv("SUMMARY_FALLBACK_POLICY", FallbackDegraded),
		},
		Idempotency: IdempotencyConfig{
			Backend: getEnv("IDEMPOTENCY_BACKEND", "redis"),
			TTL:     idemTTL,
		},
		Resilience: ResilienceConfig{
			RetryMaxAttempts:   3,
			RetryInitialDelay:  500 * time.Millisecond,
			RetryMaxDelay:      30 * time.Second,
			BreakerWindowSize:  10,
			BreakerMinSamples:  5,
			BreakerThreshold:   0.5,
			BreakerCooldown:    30 * time.Second,
			BreakerHalfOpenMax: 2,
			RateLimit:          5,
			RateBurst:          10,
			RateAcquireTimeout: 10 * time.Second,
		},
	}

	if cfg.Summarizer.FallbackPolicy != FallbackDegraded && cfg.Summarizer.FallbackPolicy != FallbackFail {
		return nil, fmt.Errorf("invalid SUMMARY_FALLBACK_POLICY: %q", cfg.Summarizer.FallbackPolicy)
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	return missingVars(missing)
}

// ValidateWorker checks the settings the worker process needs. The worker
// serves no HTTP traffic, so JWT_SECRET is not required.
func (c *Config) ValidateWorker() error {
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	return missingVars(missing)
}

func missingVars(missing []string) error {
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SummarizerConfigured reports whether the selected provider has credentials.
func (c *SummarizerConfig) Configured() bool {
	switch c.Provider {
	case "openai":
		return c.OpenAIKey != ""
	default:
		return c.AnthropicKey != ""
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return time.ParseDuration(v)
}
