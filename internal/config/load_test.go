package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load reads from the process environment, so these tests cannot run in
// parallel with each other.
func TestLoad(t *testing.T) {
	setRequired := func(t *testing.T) {
		t.Setenv("STUDYHALL_DATABASE_URL", "postgres://localhost:5432/studyhall?sslmode=disable")
		t.Setenv("STUDYHALL_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
		t.Setenv("STUDYHALL_AUTH_VAULT_SECRET", "fedcba9876543210fedcba9876543210")
		t.Setenv("STUDYHALL_LLM_GEMINI_API_KEY", "test-shared-key")
	}

	t.Run("defaults applied", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "info", cfg.Server.LogLevel)
		assert.Equal(t, "gemini-2.5-flash", cfg.LLM.ModelName)
		assert.Equal(t, 90*time.Second, cfg.LLM.RequestTimeout)
		assert.Equal(t, 3, cfg.Quota.DailyLimit)
		assert.Equal(t, 2, cfg.Task.WorkerCount)
		assert.InDelta(t, 0.10, cfg.LLM.InputPricePerMillion, 1e-9)
		assert.InDelta(t, 0.40, cfg.LLM.OutputPricePerMillion, 1e-9)
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STUDYHALL_SERVER_PORT", "9090")
		t.Setenv("STUDYHALL_QUOTA_DAILY_LIMIT", "5")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, 5, cfg.Quota.DailyLimit)
	})

	t.Run("missing required values fail validation", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STUDYHALL_DATABASE_URL", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("short jwt secret rejected", func(t *testing.T) {
		setRequired(t)
		t.Setenv("STUDYHALL_AUTH_JWT_SECRET", "too-short")

		_, err := Load()
		assert.Error(t, err)
	})
}
