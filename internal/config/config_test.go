package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "gemini")
		t.Setenv("GEMINI_API_KEY", "gemini_key")

		cfg, err := NewFromEnv()
		require.NoError(t, err)

		assert.Equal(t, "gemini_key", cfg.LLM.GeminiAPIKey)
		assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
		assert.Equal(t, 60*time.Second, cfg.Rollover.Budget)
		assert.Equal(t, 2, cfg.Rollover.DefaultPortions)
		assert.Equal(t, 50, cfg.Rollover.RecentTitles)
		assert.Equal(t, "system", cfg.Rollover.SystemUserID)
		assert.False(t, cfg.BringEnabled())
		assert.False(t, cfg.TelegramEnabled())
	})

	t.Run("Groq", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "groq")
		t.Setenv("GROQ_API_KEY", "groq_key")
		t.Setenv("AI_TIMEOUT", "20s")
		t.Setenv("TELEGRAM_BOT_TOKEN", "token")
		t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "42")

		cfg, err := NewFromEnv()
		require.NoError(t, err)

		assert.Equal(t, 20*time.Second, cfg.LLM.Timeout)
		assert.Equal(t, int64(42), cfg.Telegram.AdminChatID)
		assert.True(t, cfg.TelegramEnabled())
	})

	t.Run("MissingGeminiAPIKey", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "gemini")
		t.Setenv("GEMINI_API_KEY", "")

		_, err := NewFromEnv()
		require.Error(t, err)
		assert.Equal(t, "GEMINI_API_KEY environment variable not set", err.Error())
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "parrot")

		_, err := NewFromEnv()
		require.Error(t, err)
	})

	t.Run("BringWithoutPassword", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "gemini")
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("BRING_EMAIL", "casa@example.com")
		t.Setenv("BRING_PASSWORD", "")

		_, err := NewFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BRING_PASSWORD")
	})
}
