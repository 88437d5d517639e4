package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port             int
	DBPath           string
	SearchTimeout    time.Duration
	HashWorkers      int
	ProgressInterval time.Duration
	RetentionDays    int
	LogLevel         string

	// RetentionDaysFromEnv is true when the retention was set via env var,
	// which locks it against the settings stored in the database.
	RetentionDaysFromEnv bool
}

// Load reads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		Port:             getEnvInt("DOPPEL_PORT", 8080),
		DBPath:           ExpandPath(getEnv("DOPPEL_DB_PATH", "./data/doppel.db")),
		SearchTimeout:    getEnvDuration("DOPPEL_SEARCH_TIMEOUT", 2*time.Hour),
		HashWorkers:      getEnvInt("DOPPEL_HASH_WORKERS", defaultHashWorkers()),
		ProgressInterval: getEnvDuration("DOPPEL_PROGRESS_INTERVAL", 100*time.Millisecond),
		RetentionDays:    getEnvInt("DOPPEL_RETENTION_DAYS", 30),
		LogLevel:         getEnv("DOPPEL_LOG_LEVEL", "info"),
	}
	cfg.RetentionDaysFromEnv = os.Getenv("DOPPEL_RETENTION_DAYS") != ""
	return cfg
}

// defaultHashWorkers bounds hashing parallelism to a small multiple of
// available I/O concurrency; more workers just thrash the disk.
func defaultHashWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	if n < 2 {
		n = 2
	}
	return n
}

// ExpandPath expands a leading ~ to the user's home directory and cleans
// the result. Relative paths are cleaned but not made absolute.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return filepath.Clean(path)
		}
		return filepath.Join(home, path[2:])
	}
	return filepath.Clean(path)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}
