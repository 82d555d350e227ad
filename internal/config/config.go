package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the upload/transcription pipeline. All values
// come from the environment; a .env file is honored when present.
type Config struct {
	Host        string `env:"HOST" envDefault:"0.0.0.0"`
	Port        string `env:"PORT" envDefault:"8080"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`

	DatabaseURL string `env:"DATABASE_URL,required"`

	MinioEndpoint  string `env:"MINIO_ENDPOINT" envDefault:"localhost:9000"`
	MinioAccessKey string `env:"MINIO_ACCESS_KEY" envDefault:"minioadmin"`
	MinioSecretKey string `env:"MINIO_SECRET_KEY" envDefault:"minioadmin"`
	MinioBucket    string `env:"MINIO_BUCKET" envDefault:"session-audio"`
	MinioUseSSL    bool   `env:"MINIO_USE_SSL" envDefault:"false"`

	// RedisAddr enables the Redis-backed finalize lock when set. Empty means
	// the in-process locker is used (single instance deployments).
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	GroqAPIKey   string `env:"GROQ_API_KEY,required"`
	GroqBaseURL  string `env:"GROQ_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	WhisperModel string `env:"WHISPER_MODEL" envDefault:"whisper-large-v3-turbo"`
	// Language hint for the provider; empty lets the model auto-detect.
	Language string `env:"TRANSCRIBE_LANGUAGE"`
	// Prompt is passed to the provider as transcription context.
	Prompt string `env:"TRANSCRIBE_PROMPT"`

	// MaxRequestBytes is the provider's per-request size ceiling; buffers
	// above it are split into pieces. Default 20 MiB.
	MaxRequestBytes  int64         `env:"PROVIDER_MAX_REQUEST_BYTES" envDefault:"20971520"`
	MaxAttempts      int           `env:"TRANSCRIBE_MAX_ATTEMPTS" envDefault:"4"`
	RateLimitBackoff time.Duration `env:"RATE_LIMIT_BACKOFF" envDefault:"60s"`
	RateLimitMargin  time.Duration `env:"RATE_LIMIT_MARGIN" envDefault:"3s"`
	TransientBackoff time.Duration `env:"TRANSIENT_BACKOFF" envDefault:"5s"`
	ProviderTimeout  time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"120s"`

	// Retention is how long an assembled audio blob may live before the
	// sweeper removes it. Transcripts are exempt.
	Retention       time.Duration `env:"AUDIO_RETENTION" envDefault:"24h"`
	FinalizeTimeout time.Duration `env:"FINALIZE_TIMEOUT" envDefault:"300s"`
	SweepBatchSize  int           `env:"SWEEP_BATCH_SIZE" envDefault:"100"`

	// CronSecret guards the cleanup endpoint against non-operator callers.
	CronSecret string `env:"CRON_SECRET,required"`
}

// Load reads a .env file if one exists and parses the environment into a
// Config. Missing required variables fail fast.
func Load() (*Config, error) {
	// Environment variables may be set system-wide; an absent .env is fine.
	envPaths := []string{".env", ".env.local"}
	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("error loading %s file: %w", envPath, err)
			}
			break
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	if cfg.MaxRequestBytes <= 0 {
		return nil, fmt.Errorf("PROVIDER_MAX_REQUEST_BYTES must be positive, got %d", cfg.MaxRequestBytes)
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("TRANSCRIBE_MAX_ATTEMPTS must be at least 1, got %d", cfg.MaxAttempts)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment != "production"
}
