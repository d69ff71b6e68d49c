package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresEnv(t *testing.T) {
	t.Setenv("ET_ENV", "")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("ET_ENV", "staging")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ET_ENV", "dev")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Empty(t, cfg.DSN)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 120, cfg.RateLimitRPM)
	require.False(t, cfg.EmitHeader)
	require.False(t, cfg.SendPII)
	require.Equal(t, 60, cfg.FlushSeconds)
	require.True(t, cfg.IsDev())
}

func TestLoad_ValidatesValues(t *testing.T) {
	t.Setenv("ET_ENV", "prod")

	t.Setenv("ET_LOG_LEVEL", "verbose")
	_, err := Load()
	require.Error(t, err)
	t.Setenv("ET_LOG_LEVEL", "warn")

	t.Setenv("ET_EMIT_HEADER", "maybe")
	_, err = Load()
	require.Error(t, err)
	t.Setenv("ET_EMIT_HEADER", "true")

	t.Setenv("ET_FLUSH_SECONDS", "0")
	_, err = Load()
	require.Error(t, err)
	t.Setenv("ET_FLUSH_SECONDS", "30")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.EmitHeader)
	require.Equal(t, 30, cfg.FlushSeconds)
	require.False(t, cfg.IsDev())
}

func TestRedactedValues_HidesDSNCredentials(t *testing.T) {
	t.Setenv("ET_ENV", "dev")
	t.Setenv("ET_DSN", "https://publickey@ingest.example.com/store")

	cfg, err := Load()
	require.NoError(t, err)

	values := cfg.RedactedValues()
	require.Equal(t, "https://[REDACTED]@ingest.example.com/store", values["ET_DSN"])
	require.NotContains(t, values["ET_DSN"], "publickey")
}
