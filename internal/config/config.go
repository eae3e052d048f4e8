package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration values.
type Config struct {
	Bot      BotConfig
	Ledger   LedgerConfig
	Health   HealthConfig
	Logging  LoggingConfig
	Timezone string
}

// BotConfig identifies the bot and the single chat it serves.
type BotConfig struct {
	Token  string
	ChatID int64
}

// LedgerConfig describes connectivity to the Google Sheets ledger.
type LedgerConfig struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	LedgerSheet     string
	SummarySheet    string
}

// HealthConfig governs the liveness HTTP server.
type HealthConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string
	Format        string // text|json
	IncludeCaller bool
}

const (
	defaultHost            = "0.0.0.0"
	defaultPort            = 8080
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultLoggingLevel    = "info"
	defaultLoggingFormat   = "text"
	defaultTimezone        = "Asia/Manila"
	defaultCredentialsFile = "credentials.json"
	defaultLedgerSheet     = "Transfer chat"
	defaultSummarySheet    = "Transfer summary"
)

// Load reads configuration from the environment, applying defaults. A .env
// file in the working directory is folded in first when present.
func Load() (Config, error) {
	// Missing .env is the normal case in deployed environments.
	_ = godotenv.Load()

	cfg := Config{
		Bot: BotConfig{
			Token: os.Getenv("BOT_TOKEN"),
		},
		Ledger: LedgerConfig{
			SpreadsheetID:   os.Getenv("SPREADSHEET_ID"),
			CredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS"),
			CredentialsFile: valueOrDefault("GOOGLE_CREDENTIALS_FILE", defaultCredentialsFile),
			LedgerSheet:     valueOrDefault("LEDGER_SHEET", defaultLedgerSheet),
			SummarySheet:    valueOrDefault("SUMMARY_SHEET", defaultSummarySheet),
		},
		Health: HealthConfig{
			Host:            valueOrDefault("HEALTH_HOST", defaultHost),
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			IdleTimeout:     defaultIdleTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:         valueOrDefault("LOG_LEVEL", defaultLoggingLevel),
			Format:        valueOrDefault("LOG_FORMAT", defaultLoggingFormat),
			IncludeCaller: parseBoolWithDefault("LOG_INCLUDE_CALLER", false),
		},
		Timezone: valueOrDefault("TIMEZONE", defaultTimezone),
	}

	if cfg.Bot.Token == "" {
		return Config{}, fmt.Errorf("BOT_TOKEN is required")
	}

	chatID, err := parseInt64("CHAT_ID")
	if err != nil {
		return Config{}, err
	}
	cfg.Bot.ChatID = chatID

	if cfg.Ledger.SpreadsheetID == "" {
		return Config{}, fmt.Errorf("SPREADSHEET_ID is required")
	}

	port, err := parsePort("HEALTH_PORT", defaultPort)
	if err != nil {
		return Config{}, err
	}
	cfg.Health.Port = port

	if v := os.Getenv("HEALTH_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid HEALTH_SHUTDOWN_TIMEOUT: %w", err)
		}
		cfg.Health.ShutdownTimeout = d
	}

	return cfg, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}

func parseInt64(key string) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	val, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	return val, nil
}

func parsePort(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", key, v, err)
		}
		if port <= 0 || port > 65535 {
			return 0, fmt.Errorf("port %d is out of range", port)
		}
		return port, nil
	}
	return fallback, nil
}
