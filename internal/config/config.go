package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// LLM providers accepted in LLM_PROVIDER.
const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// Config holds the configuration for the application.
// It is built once at process start and handed to every constructor.
type Config struct {
	DatabasePath string `env:"DATABASE_PATH" env-default:"data/meal-planner.db"`
	Port         string `env:"PORT" env-default:"8080"`

	LLM      LLMConfig
	Images   ImageConfig
	Bring    BringConfig
	Rollover RolloverConfig
	Telegram TelegramConfig
	Log      LogConfig
}

// LLMConfig selects and configures the AI collaborator.
type LLMConfig struct {
	Provider     string        `env:"LLM_PROVIDER" env-default:"gemini"`
	GeminiAPIKey string        `env:"GEMINI_API_KEY"`
	GeminiModel  string        `env:"GEMINI_MODEL" env-default:"gemini-2.0-flash"`
	GroqAPIKey   string        `env:"GROQ_API_KEY"`
	GroqModel    string        `env:"GROQ_MODEL" env-default:"llama-3.3-70b-versatile"`
	Timeout      time.Duration `env:"AI_TIMEOUT" env-default:"45s"`
}

// ImageConfig configures the image-search collaborator.
// An empty SearchURL disables image enrichment.
type ImageConfig struct {
	SearchURL   string `env:"IMAGE_SEARCH_URL"`
	Concurrency int    `env:"IMAGE_CONCURRENCY" env-default:"6"`
}

// BringConfig holds the credentials of the external shopping-list service.
// Sync is disabled when Email is empty.
type BringConfig struct {
	BaseURL  string `env:"BRING_BASE_URL" env-default:"https://api.getbring.com/rest"`
	Email    string `env:"BRING_EMAIL"`
	Password string `env:"BRING_PASSWORD"`
	APIKey   string `env:"BRING_API_KEY" env-default:"cof4Nc6D8saplXjE3h3HXqHH8m7VU2i1Gs0g85Sp"`
	ListName string `env:"BRING_LIST_NAME"`
}

// RolloverConfig configures the scheduled weekly plan job.
type RolloverConfig struct {
	CronSecret      string        `env:"CRON_SECRET"`
	Budget          time.Duration `env:"ROLLOVER_BUDGET" env-default:"60s"`
	DefaultPortions int           `env:"DEFAULT_PORTIONS" env-default:"2"`
	SystemUserID    string        `env:"SYSTEM_USER_ID" env-default:"system"`
	RecentTitles    int           `env:"RECENT_TITLES_WINDOW" env-default:"50"`
}

// TelegramConfig is optional; rollover reports are only sent when both are set.
type TelegramConfig struct {
	BotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	AdminChatID int64  `env:"TELEGRAM_ADMIN_CHAT_ID"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderGemini:
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case ProviderGroq:
		if c.LLM.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}

	if c.Rollover.DefaultPortions < 1 {
		return fmt.Errorf("DEFAULT_PORTIONS must be at least 1")
	}
	if c.Bring.Email != "" && c.Bring.Password == "" {
		return fmt.Errorf("BRING_PASSWORD environment variable not set")
	}
	return nil
}

// BringEnabled reports whether external shopping-list sync is configured.
func (c *Config) BringEnabled() bool {
	return c.Bring.Email != ""
}

// TelegramEnabled reports whether rollover reports can be delivered.
func (c *Config) TelegramEnabled() bool {
	return c.Telegram.BotToken != "" && c.Telegram.AdminChatID != 0
}
