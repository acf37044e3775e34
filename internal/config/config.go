// Package config holds the application configuration for vaultsync.
// All root paths, intervals and flags live here; nothing in the sync
// engine reads them from globals.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Sync      SyncConfig
	Knowledge KnowledgeConfig
	Logging   LoggingConfig
	configDir string // Internal: Directory where config was loaded from
}

// SyncConfig holds everything the sync engine needs: the three roots, the
// organization and company maps, file patterns and pass behavior.
type SyncConfig struct {
	RepoBase      string   // Root directory containing organization folders
	CompaniesBase string   // Root directory containing company folders
	VaultBase     string   // Root of the Obsidian vault
	Orgs          []string // Organizations to scan for projects

	// VaultFolders maps an organization to its vault folder. Organizations
	// missing from the map use their own name.
	VaultFolders map[string]string

	// Companies maps a company folder name to its vault folder.
	Companies map[string]string

	Patterns       []string // Doublestar globs selecting files to sync
	IgnorePatterns []string // Additional ignore patterns on top of the defaults

	StatePath     string        // Path to the persisted sync state document
	Interval      time.Duration // Sleep between passes in watch mode
	ModTimeWindow time.Duration // Mtime tolerance within which timestamps count as equal
}

// KnowledgeConfig holds the Open WebUI knowledge-base client configuration.
type KnowledgeConfig struct {
	Enabled bool   // Whether knowledge-base mirroring is available
	BaseURL string // Open WebUI base URL
	APIKey  string // Bearer token

	Timeout    time.Duration // Request timeout
	MaxRetries int           // Maximum number of retries on transient failure

	// Rate limiting for uploads
	RequestsPerMinute int
	BurstLimit        int

	StatePath   string // Path to the persisted upload state document
	TargetsFile string // Optional YAML file overriding collection names
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
}

// New returns a new empty Config
func New() *Config {
	return &Config{
		Sync:      SyncConfig{},
		Knowledge: KnowledgeConfig{},
		Logging:   LoggingConfig{},
	}
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateSync(); err != nil {
		return fmt.Errorf("sync config: %w", err)
	}

	if err := c.validateKnowledge(); err != nil {
		return fmt.Errorf("knowledge config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RepoBase == "" {
		return fmt.Errorf("repo base cannot be empty")
	}

	if c.Sync.VaultBase == "" {
		return fmt.Errorf("vault base cannot be empty")
	}

	if c.Sync.StatePath == "" {
		return fmt.Errorf("state path cannot be empty")
	}

	if len(c.Sync.Patterns) == 0 {
		return fmt.Errorf("at least one sync pattern is required")
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	if c.Sync.ModTimeWindow < 0 {
		return fmt.Errorf("mod time window cannot be negative")
	}

	return nil
}

func (c *Config) validateKnowledge() error {
	// Mirroring is optional; an unset API key simply disables it.
	if c.Knowledge.APIKey == "" {
		c.Knowledge.Enabled = false
		return nil
	}

	if c.Knowledge.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	if c.Knowledge.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.Knowledge.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if c.Knowledge.RequestsPerMinute <= 0 {
		return fmt.Errorf("requests_per_minute must be positive")
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" && level != "none" {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Logging.Output != "stdout" && c.Logging.Output != "stderr" {
		dir := filepath.Dir(c.Logging.Output)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create log directory: %w", err)
			}
		}
	}

	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		// Set to a very high level that won't be triggered
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvStringSlice returns a comma-separated list from the environment
// variable. Empty elements are dropped.
func getEnvStringSlice(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	if out == nil {
		return defaultValue
	}
	return out
}

// getEnvStringMap returns a comma-separated list of key=value entries from
// the environment variable.
func getEnvStringMap(key string, defaultValue map[string]string) map[string]string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	out := make(map[string]string)
	for _, item := range strings.Split(value, ",") {
		k, v, ok := strings.Cut(item, "=")
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if ok && k != "" && v != "" {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
