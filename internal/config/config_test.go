package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "client_data", cfg.DataDir)
	assert.Equal(t, 5000, cfg.MaxInputLength)
	assert.Equal(t, 10, cfg.MaxHistoryTurns)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "system_instruction.txt", cfg.SystemInstructionFile)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "primary", cfg.CalendarID)
}

func TestLoadCORSOriginsSplit(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_HISTORY_TURNS", "4")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("OPERATOR_EMAIL", "ops@example.com")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 4, cfg.MaxHistoryTurns)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.Equal(t, "ops@example.com", cfg.OperatorEmail)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_INPUT_LENGTH", "not-a-number")
	t.Setenv("SESSION_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 5000, cfg.MaxInputLength)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
}
