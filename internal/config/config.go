// Package config provides configuration loading, validation, and defaults
// for the FinTalk service. Configuration is read from a YAML file with
// FINTALK_* environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrCredentials indicates that a required vendor credential is missing.
// It is fatal at startup: no session operation may proceed until resolved.
var ErrCredentials = errors.New("missing or invalid credentials")

// Config defines all configuration parameters for the FinTalk service:
// logging, the Telegram transport, the Gemini model client, the Sarvam
// speech client, profile persistence, and session snapshots.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Sarvam    SarvamConfig    `mapstructure:"sarvam"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Profile   ProfileConfig   `mapstructure:"profile"`
	Session   SessionConfig   `mapstructure:"session"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the transport credentials.
type TelegramConfig struct {
	Token   string `mapstructure:"token"`
	AdminID int64  `mapstructure:"admin_id" validate:"gte=0"`

	// BotInfo is populated at runtime after GetMe; not read from file.
	BotInfo BotInfo `mapstructure:"-"`
}

// BotInfo carries the bot identity retrieved from Telegram at startup.
type BotInfo struct {
	ID        int64
	Username  string
	FirstName string
}

// GeminiConfig holds the model client parameters.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key"`
	ModelName         string  `mapstructure:"model"`
	Temperature       float32 `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxContextTokens  int     `mapstructure:"max_context_tokens" validate:"min=1000,max=200000"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=1,max=60"`
}

// SarvamConfig holds the speech vendor parameters. With Enabled false the
// bot is text-only and the API key may be empty.
type SarvamConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url" validate:"url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"min=1s,max=5m"`

	STTModel       string `mapstructure:"stt_model"`
	TTSModel       string `mapstructure:"tts_model"`
	TranslateModel string `mapstructure:"translate_model"`
}

// ChatConfig holds session behavior parameters.
type ChatConfig struct {
	DefaultLanguage  string `mapstructure:"default_language" validate:"required"`
	TranslateReplies bool   `mapstructure:"translate_replies"`
	MaxHistoryTurns  int    `mapstructure:"max_history_turns" validate:"min=2,max=1000"`
}

// ProfileConfig selects and configures the profile store driver.
type ProfileConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=file sqlite"`
	Path   string `mapstructure:"path" validate:"required"`
}

// SessionConfig selects and configures the session snapshot store.
type SessionConfig struct {
	Driver    string        `mapstructure:"driver" validate:"oneof=memory redis"`
	RedisAddr string        `mapstructure:"redis_addr"`
	TTL       time.Duration `mapstructure:"ttl" validate:"min=1m"`
}

// SchedulerConfig maps task names to their cron schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables one named scheduled task.
type TaskConfig struct {
	Schedule string `mapstructure:"schedule"`
	Enabled  bool   `mapstructure:"enabled"`
}

// Load reads configuration from the given YAML file (optional), applies
// FINTALK_* environment overrides and defaults, and validates the result.
// Credential fields are checked explicitly so a missing vendor key fails
// fast with ErrCredentials before any component starts.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FINTALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only surfaces keys viper already knows about, and the
	// credential keys deliberately have no defaults. Bind them so they can
	// come from the environment alone, without a config file.
	for _, key := range []string{"gemini.api_key", "telegram.token", "sarvam.api_key"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !os.IsNotExist(err) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
			}
		}
		// Missing file is fine; env vars and defaults still apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.checkCredentials(); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// checkCredentials validates the vendor credential surface before anything
// else runs. Validation tags cover the rest of the config; credentials get
// a dedicated sentinel so the caller can distinguish "fix your keys" from
// other config mistakes.
func (c *Config) checkCredentials() error {
	if strings.TrimSpace(c.Gemini.APIKey) == "" {
		return fmt.Errorf("%w: gemini.api_key is required", ErrCredentials)
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("%w: telegram.token is required", ErrCredentials)
	}
	if c.Sarvam.Enabled && strings.TrimSpace(c.Sarvam.APIKey) == "" {
		return fmt.Errorf("%w: sarvam.api_key is required when speech is enabled", ErrCredentials)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.max_context_tokens", 16000)
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.retry_delay_seconds", 2)

	v.SetDefault("sarvam.enabled", true)
	v.SetDefault("sarvam.base_url", "https://api.sarvam.ai")
	v.SetDefault("sarvam.timeout", time.Minute)
	v.SetDefault("sarvam.stt_model", "saarika:v2")
	v.SetDefault("sarvam.tts_model", "bulbul:v1")
	v.SetDefault("sarvam.translate_model", "mayura:v1")

	v.SetDefault("chat.default_language", "English")
	v.SetDefault("chat.translate_replies", false)
	v.SetDefault("chat.max_history_turns", 100)

	v.SetDefault("profile.driver", "file")
	v.SetDefault("profile.path", "fincard.json")

	v.SetDefault("session.driver", "memory")
	v.SetDefault("session.ttl", 30*time.Minute)

	v.SetDefault("scheduler.tasks.session_cleanup.schedule", "0 */10 * * * *")
	v.SetDefault("scheduler.tasks.session_cleanup.enabled", true)
	v.SetDefault("scheduler.tasks.db_maintenance.schedule", "0 0 4 * * *")
	v.SetDefault("scheduler.tasks.db_maintenance.enabled", true)
}
