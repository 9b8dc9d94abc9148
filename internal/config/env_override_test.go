package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOverrides_App(t *testing.T) {
	t.Run("source url", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PAYLOADFORGE_SOURCE_URL", "http://mirror.local")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://mirror.local", cfg.Source.BaseURL)
	})

	t.Run("backend is lower-cased", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("PAYLOADFORGE_STORE_BACKEND", "SQLite")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "sqlite", cfg.Cache.Backend)
	})

	t.Run("empty values are ignored", func(t *testing.T) {
		clearEnv(t)

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultConfig(), cfg)
	})
}

func TestEnvOverrides_Settings(t *testing.T) {
	assert.Equal(t, "PAYLOADFORGE_USE_LIVE_SOURCE", EnvName(KeyUseLiveSource))
	assert.Equal(t, "PAYLOADFORGE_REQUEST_TIMEOUT_MS", EnvName(KeyRequestTimeoutMs))

	clearSettingsEnv(t)
	t.Setenv("PAYLOADFORGE_USE_LIVE_SOURCE", "yes")
	t.Setenv("PAYLOADFORGE_RETRY_ATTEMPTS", "5")
	t.Setenv("PAYLOADFORGE_RETRY_DELAY_MS", "-1")

	s := NewStore("")
	got := s.GetAll()
	assert.True(t, got.UseLiveSource)
	assert.Equal(t, 5, got.RetryAttempts)
	assert.Equal(t, 1000, got.RetryDelayMs, "invalid env value keeps default")
}

func clearSettingsEnv(t *testing.T) {
	t.Helper()
	for _, key := range Keys {
		t.Setenv(EnvName(key), "")
	}
}
