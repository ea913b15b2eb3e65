package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// DefaultAPIURL is the backend address used when INFOMLY_API_URL is unset.
const DefaultAPIURL = "http://localhost:8000/api"

// Config holds all configuration values.
type Config struct {
	// Backend
	APIURL        string
	ClientTimeout time.Duration

	// Synchronization
	StatusInterval   time.Duration
	FindingsInterval time.Duration
	StaleTime        time.Duration

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Dev backend
	DevServerPort string
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		APIURL:        getEnv("INFOMLY_API_URL", DefaultAPIURL),
		ClientTimeout: getDuration("INFOMLY_CLIENT_TIMEOUT", 30*time.Second),

		StatusInterval:   getDuration("INFOMLY_STATUS_INTERVAL", 5*time.Second),
		FindingsInterval: getDuration("INFOMLY_FINDINGS_INTERVAL", 3*time.Second),
		StaleTime:        getDuration("INFOMLY_STALE_TIME", time.Minute),

		LogFile:  getEnv("INFOMLY_LOG_FILE", "/tmp/infomly.log"),
		LogLevel: parseLogLevel(getEnv("INFOMLY_LOG_LEVEL", "INFO")),

		DevServerPort: getEnv("INFOMLY_DEVSERVER_PORT", "8000"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getDuration parses a Go duration ("5s", "1m"); malformed values fall back to the default.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
