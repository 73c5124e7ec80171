package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Downloads DownloadsConfig `toml:"downloads"`
	Logging   LoggingConfig   `toml:"logging"`
	Transfer  TransferConfig  `toml:"transfer"`
	Secrets   SecretsConfig   `toml:"secrets"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// DownloadsConfig controls where activity files are cached on disk
type DownloadsConfig struct {
	Dir string `toml:"dir"` // Root directory for downloaded activity files
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs (default: "15:04:05")
}

// TransferConfig contains tuning for the transfer pipeline and vendor calls
type TransferConfig struct {
	RequestTimeout             time.Duration `toml:"request_timeout"`               // Per-request HTTP timeout for source/sink calls
	RateLimitDelay             time.Duration `toml:"rate_limit_delay"`              // Gap between pagination calls
	DuplicateConfirmWindowSecs int           `toml:"duplicate_confirm_window_secs"` // Match window for the duplicate probe
	DuplicateConfirmSearchDays int           `toml:"duplicate_confirm_search_days"` // Days either side of the target to search
	WorkerIdleSleep            time.Duration `toml:"worker_idle_sleep"`             // Driver sleep when no pending jobs exist
}

// SecretsConfig holds the credential encryption key. Normally supplied via
// STRIDESYNC_ENCRYPTION_KEY rather than the config file.
type SecretsConfig struct {
	EncryptionKey string `toml:"encryption_key"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Downloads: DownloadsConfig{
			Dir: "./downloads",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Transfer: TransferConfig{
			RequestTimeout:             30 * time.Second,
			RateLimitDelay:             1 * time.Second,
			DuplicateConfirmWindowSecs: 15 * 60,
			DuplicateConfirmSearchDays: 1,
			WorkerIdleSleep:            1 * time.Second,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if port := os.Getenv("STRIDESYNC_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("STRIDESYNC_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if path := os.Getenv("STRIDESYNC_BADGER_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}
	if dir := os.Getenv("STRIDESYNC_DOWNLOADS_DIR"); dir != "" {
		config.Downloads.Dir = dir
	}
	if level := os.Getenv("STRIDESYNC_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if key := os.Getenv("STRIDESYNC_ENCRYPTION_KEY"); key != "" {
		config.Secrets.EncryptionKey = key
	} else if key := os.Getenv("ENCRYPTION_KEY"); key != "" {
		config.Secrets.EncryptionKey = key
	}

	if secs := os.Getenv("DUPLICATE_CONFIRM_WINDOW_SECONDS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil && n > 0 {
			config.Transfer.DuplicateConfirmWindowSecs = n
		}
	}
	if days := os.Getenv("DUPLICATE_CONFIRM_SEARCH_DAYS"); days != "" {
		if n, err := strconv.Atoi(days); err == nil && n >= 0 {
			config.Transfer.DuplicateConfirmSearchDays = n
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// DuplicateConfirmWindow returns the probe match window as a duration.
func (c *Config) DuplicateConfirmWindow() time.Duration {
	return time.Duration(c.Transfer.DuplicateConfirmWindowSecs) * time.Second
}
