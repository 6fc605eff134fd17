package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config keeps runtime settings for the planner daemon.
type Config struct {
	Environment string
	HTTPAddr    string
	DatabaseURL string

	// OfflineMode swaps the SQL adapter for a single-file JSON store.
	OfflineMode bool
	DataFile    string

	// DefaultOwner, when set, is loaded at startup without waiting for a
	// session call.
	DefaultOwner string

	DigestTime    string
	TelegramToken string
	TelegramChat  int64

	FocusLimit        int
	FocusAllQuadrants bool
	UndoWindow        time.Duration

	LogFile string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		Environment:       strings.TrimSpace(os.Getenv("ENVIRONMENT")),
		HTTPAddr:          strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		OfflineMode:       parseBool(os.Getenv("OFFLINE_MODE")),
		DataFile:          strings.TrimSpace(os.Getenv("DATA_FILE")),
		DefaultOwner:      strings.TrimSpace(os.Getenv("DEFAULT_OWNER")),
		DigestTime:        strings.TrimSpace(os.Getenv("DIGEST_TIME")),
		TelegramToken:     strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		FocusLimit:        parseInt(os.Getenv("FOCUS_LIMIT")),
		FocusAllQuadrants: parseBool(os.Getenv("FOCUS_ALL_QUADRANTS")),
		UndoWindow:        parseSeconds(os.Getenv("UNDO_WINDOW_SECONDS")),
		LogFile:           strings.TrimSpace(os.Getenv("LOG_FILE")),
	}

	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		chat, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramChat = chat
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "matrix_planner.db"
	}
	if cfg.DataFile == "" {
		cfg.DataFile = "matrix_tasks.json"
	}
	if cfg.DigestTime == "" {
		cfg.DigestTime = "08:00"
	}
	if cfg.OfflineMode && cfg.DefaultOwner == "" {
		cfg.DefaultOwner = "local"
	}

	if cfg.TelegramToken != "" && cfg.TelegramChat == 0 {
		return cfg, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	return cfg, nil
}

func parseBool(raw string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && value
}

func parseInt(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 0 {
		return 0
	}
	return value
}

func parseSeconds(raw string) time.Duration {
	seconds := parseInt(raw)
	return time.Duration(seconds) * time.Second
}
