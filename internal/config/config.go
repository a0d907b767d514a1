// Package config collects the environment-variable configuration
// surface of the bot. main loads .env first, so env vars and .env
// entries are equivalent.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/example/vocabbot/internal/scheduling"
)

// Config holds everything tunable at startup.
type Config struct {
	// TelegramToken authenticates the bot with the Telegram API.
	TelegramToken string
	// VocabDir is the directory of .csv/.xlsx vocab sets.
	VocabDir string
	// SessionSize caps how many due items one review session takes.
	SessionSize int
	// Scheduling holds the spaced-repetition parameters.
	Scheduling scheduling.Config
	// EnableReminders toggles the hourly due-review reminder job.
	EnableReminders bool
	// NotificationStartHour and NotificationEndHour bound the daily
	// window in which reminders may be sent.
	NotificationStartHour int
	NotificationEndHour   int
}

// Load reads configuration from the environment, applying defaults for
// everything except the Telegram token.
func Load() (*Config, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	cfg := &Config{
		TelegramToken:         token,
		VocabDir:              envString("VOCAB_DIR", "data/vocabs"),
		SessionSize:           envInt("SESSION_SIZE", 20),
		EnableReminders:       os.Getenv("ENABLE_REMINDERS") != "false",
		NotificationStartHour: envInt("NOTIFICATION_START_HOUR", 8),
		NotificationEndHour:   envInt("NOTIFICATION_END_HOUR", 22),
		Scheduling: scheduling.Config{
			BaseInterval:  envMinutes("BASE_INTERVAL_MINUTES", 10),
			GrowthFactor:  envFloat("GROWTH_FACTOR", 2.0),
			MaxInterval:   envMinutes("MAX_INTERVAL_MINUTES", 60*24*60),
			MinEase:       envFloat("MIN_EASE", 1.3),
			MaxEase:       envFloat("MAX_EASE", 3.0),
			EaseIncrement: envFloat("EASE_INCREMENT", 0.1),
			EaseDecrement: envFloat("EASE_DECREMENT", 0.2),
		},
	}

	if cfg.SessionSize < 1 {
		return nil, fmt.Errorf("SESSION_SIZE must be positive, got %d", cfg.SessionSize)
	}
	if cfg.NotificationStartHour < 0 || cfg.NotificationStartHour > 23 ||
		cfg.NotificationEndHour < 0 || cfg.NotificationEndHour > 23 {
		return nil, fmt.Errorf("notification hours must be within 0-23")
	}
	return cfg, nil
}

func envString(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envMinutes(name string, fallback int) time.Duration {
	return time.Duration(envInt(name, fallback)) * time.Minute
}
