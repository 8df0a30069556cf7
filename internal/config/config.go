package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/susu3304/warikan/internal/optimizer"
)

type Config struct {
	// Discord Bot; disabled when empty
	DiscordToken string

	// Web Server
	WebEnabled         bool
	WebBind            string
	CORSAllowedOrigins []string

	// Logging
	LogLevel  string
	LogFormat string

	// Settlement
	Strategy         optimizer.Strategy
	SearchLimit      int
	ExactMaxGaps     int
	ReminderInterval time.Duration
}

func (c *Config) BotEnabled() bool { return c.DiscordToken != "" }

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()
	return fromEnv()
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		WebBind:      getEnvDefault("WEB_BIND", "0.0.0.0:3000"),
		LogLevel:     getEnvDefault("LOG_LEVEL", "info"),
		LogFormat:    getEnvDefault("LOG_FORMAT", "json"),
	}
	cfg.CORSAllowedOrigins = splitList(getEnvDefault("CORS_ALLOWED_ORIGINS", "*"))

	var errs []error
	var err error
	if cfg.WebEnabled, err = strconv.ParseBool(getEnvDefault("WEB_ENABLED", "true")); err != nil {
		errs = append(errs, fmt.Errorf("WEB_ENABLED: %w", err))
	}
	if cfg.Strategy, err = optimizer.ParseStrategy(getEnvDefault("WARIKAN_STRATEGY", "least-transfer")); err != nil {
		errs = append(errs, fmt.Errorf("WARIKAN_STRATEGY: %w", err))
	}
	if cfg.SearchLimit, err = positiveInt("WARIKAN_SEARCH_LIMIT", optimizer.DefaultSearchLimit); err != nil {
		errs = append(errs, err)
	}
	if cfg.ExactMaxGaps, err = positiveInt("WARIKAN_EXACT_MAX_GAPS", optimizer.DefaultExactMaxGaps); err != nil {
		errs = append(errs, err)
	}
	if cfg.ReminderInterval, err = time.ParseDuration(getEnvDefault("REMINDER_INTERVAL", "1m")); err != nil {
		errs = append(errs, fmt.Errorf("REMINDER_INTERVAL: %w", err))
	} else if cfg.ReminderInterval <= 0 {
		errs = append(errs, fmt.Errorf("REMINDER_INTERVAL must be positive"))
	}
	switch cfg.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.LogFormat))
	}

	if !cfg.BotEnabled() && !cfg.WebEnabled {
		errs = append(errs, fmt.Errorf("nothing to run: set DISCORD_TOKEN or WEB_ENABLED=true"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func positiveInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, raw)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
