package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("AI_MODEL", "")
	t.Setenv("AI_TIMEOUT", "")
	t.Setenv("AI_MAX_RETRIES", "")
	t.Setenv("IDENTITY_MODE", "")

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "deepseek/deepseek-chat", cfg.AIModel)
	assert.Equal(t, "https://openrouter.ai/api/v1/chat/completions", cfg.OpenRouterBaseURL)
	assert.Equal(t, 60*time.Second, cfg.AITimeout)
	assert.Equal(t, 1, cfg.AIMaxRetries)
	assert.Equal(t, IdentityModeHeader, cfg.IdentityMode)
	assert.Empty(t, cfg.OpenRouterAPIKey)
	require.NoError(t, cfg.Validate())
}

func TestLoadParsesTypedValues(t *testing.T) {
	t.Setenv("AI_TIMEOUT", "5s")
	t.Setenv("AI_MAX_RETRIES", "3")
	t.Setenv("DOCTOR_CHAT_ID", "-100123")
	t.Setenv("TELEGRAM_BOT_TOKEN", "tg-token")
	t.Setenv("IDENTITY_MODE", " Redis ")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.AITimeout)
	assert.Equal(t, 3, cfg.AIMaxRetries)
	assert.Equal(t, int64(-100123), cfg.DoctorChatID)
	assert.Equal(t, IdentityModeRedis, cfg.IdentityMode)
	assert.True(t, cfg.AlertsEnabled())
	require.NoError(t, cfg.Validate())
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("AI_TIMEOUT", "soon")
	t.Setenv("AI_MAX_RETRIES", "many")
	t.Setenv("DOCTOR_CHAT_ID", "abc")

	cfg := Load()

	assert.Equal(t, 60*time.Second, cfg.AITimeout)
	assert.Equal(t, 1, cfg.AIMaxRetries)
	assert.Zero(t, cfg.DoctorChatID)
}

func TestValidate(t *testing.T) {
	base := Config{IdentityMode: IdentityModeHeader, AITimeout: time.Second}

	redisNoAddr := base
	redisNoAddr.IdentityMode = IdentityModeRedis
	assert.Error(t, redisNoAddr.Validate())

	unknown := base
	unknown.IdentityMode = "ldap"
	assert.Error(t, unknown.Validate())

	negative := base
	negative.AIMaxRetries = -1
	assert.Error(t, negative.Validate())

	noTimeout := base
	noTimeout.AITimeout = 0
	assert.Error(t, noTimeout.Validate())

	assert.NoError(t, base.Validate())
}

func TestLoadListsAndFlags(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("METRICS_ENABLED", "false")

	cfg := Load()

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.MetricsEnabled)
}

func TestLoadListDefaults(t *testing.T) {
	t.Setenv("CORS_ALLOWED_ORIGINS", " , ")
	t.Setenv("METRICS_ENABLED", "maybe")

	cfg := Load()

	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.MetricsEnabled)
}
