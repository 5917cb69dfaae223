package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr    string
	Workers     int
	QueueDepth  int
	LockTimeout time.Duration
	Env         string
}

// Load reads an optional .env file, then the environment, falling back
// to defaults. A zero LockTimeout means lock acquisition blocks
// indefinitely.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment variables")
	}

	return &Config{
		HTTPAddr:    getEnv("LEDGER_HTTP_ADDR", ":8080"),
		Workers:     getIntEnv("LEDGER_WORKERS", 1),
		QueueDepth:  getIntEnv("LEDGER_QUEUE_DEPTH", 1024),
		LockTimeout: getDurationEnv("LEDGER_LOCK_TIMEOUT", 0),
		Env:         getEnv("LEDGER_ENV", "development"),
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
