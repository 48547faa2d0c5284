package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the relay service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	LogLevel         string

	BotToken      string
	WebhookURL    string
	WebhookSecret string
	PollTimeout   time.Duration

	MasterPassword      string
	DefaultAnthropicKey string
	DefaultOpenAIKey    string

	MaxHistory     int
	SessionTimeout time.Duration
	SweepInterval  time.Duration
	MessageLimit   int

	AnthropicModel string
	OpenAIModel    string
	ModelMaxTokens int
	Temperature    float64

	DatabaseURL      string
	SessionStateFile string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:            envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:    envOrDefault("APP_METRICS_NAMESPACE", "claudegram"),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		BotToken:            trimmedEnv("BOT_TOKEN"),
		WebhookURL:          trimmedEnv("TELEGRAM_WEBHOOK_URL"),
		WebhookSecret:       trimmedEnv("TELEGRAM_WEBHOOK_SECRET"),
		MasterPassword:      os.Getenv("MASTER_PASSWORD"),
		DefaultAnthropicKey: trimmedEnv("DEFAULT_CLAUDE_API_KEY"),
		DefaultOpenAIKey:    trimmedEnv("DEFAULT_OPENAI_API_KEY"),
		AnthropicModel:      envOrDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		OpenAIModel:         envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		DatabaseURL:         trimmedEnv("DATABASE_URL"),
		SessionStateFile:    trimmedEnv("SESSION_STATE_FILE"),
		ShutdownTimeout:     15 * time.Second,
		PollTimeout:         30 * time.Second,
		MaxHistory:          20,
		SessionTimeout:      24 * time.Hour,
		SweepInterval:       time.Hour,
		MessageLimit:        4096,
		ModelMaxTokens:      4096,
		Temperature:         0.7,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.PollTimeout, err = durationFromEnv("POLL_TIMEOUT", cfg.PollTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxHistory, err = intFromEnv("MAX_CONVERSATION_LENGTH", cfg.MaxHistory)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTimeout, err = durationFromEnv("SESSION_TIMEOUT", cfg.SessionTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SweepInterval, err = durationFromEnv("SESSION_SWEEP_INTERVAL", cfg.SweepInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.MessageLimit, err = intFromEnv("MESSAGE_CHUNK_LIMIT", cfg.MessageLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.ModelMaxTokens, err = intFromEnv("MODEL_MAX_TOKENS", cfg.ModelMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature, err = floatFromEnv("MODEL_TEMPERATURE", cfg.Temperature)
	if err != nil {
		return Config{}, err
	}

	// The original deployment configured the timeout in whole hours; keep
	// accepting that form so existing environments migrate cleanly.
	if raw := strings.TrimSpace(os.Getenv("SESSION_TIMEOUT_HOURS")); raw != "" {
		hours, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return Config{}, fmt.Errorf("invalid SESSION_TIMEOUT_HOURS %q: %w", raw, convErr)
		}
		cfg.SessionTimeout = time.Duration(hours) * time.Hour
	}

	if cfg.MaxHistory <= 0 {
		return Config{}, fmt.Errorf("MAX_CONVERSATION_LENGTH must be positive, got %d", cfg.MaxHistory)
	}
	if cfg.MessageLimit <= 0 {
		return Config{}, fmt.Errorf("MESSAGE_CHUNK_LIMIT must be positive, got %d", cfg.MessageLimit)
	}

	return cfg, nil
}

// RequireBotToken validates the settings every Telegram-facing command needs.
func (c Config) RequireBotToken() error {
	if c.BotToken == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return f, nil
}
