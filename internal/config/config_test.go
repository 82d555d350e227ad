package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/sessionscribe_test")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("CRON_SECRET", "sekret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, "https://api.groq.com/openai/v1", cfg.GroqBaseURL)
	assert.Equal(t, "whisper-large-v3-turbo", cfg.WhisperModel)
	assert.Equal(t, int64(20971520), cfg.MaxRequestBytes)
	assert.Equal(t, 4, cfg.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.RateLimitBackoff)
	assert.Equal(t, 3*time.Second, cfg.RateLimitMargin)
	assert.Equal(t, 5*time.Second, cfg.TransientBackoff)
	assert.Equal(t, 24*time.Hour, cfg.Retention)
	assert.Equal(t, 300*time.Second, cfg.FinalizeTimeout)
	assert.Equal(t, 100, cfg.SweepBatchSize)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("PROVIDER_MAX_REQUEST_BYTES", "1048576")
	t.Setenv("AUDIO_RETENTION", "48h")
	t.Setenv("TRANSCRIBE_MAX_ATTEMPTS", "2")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, int64(1048576), cfg.MaxRequestBytes)
	assert.Equal(t, 48*time.Hour, cfg.Retention)
	assert.Equal(t, 2, cfg.MaxAttempts)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "placeholder")
	os.Unsetenv("DATABASE_URL")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("CRON_SECRET", "sekret")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadLimits(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRANSCRIBE_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRANSCRIBE_MAX_ATTEMPTS")
}
