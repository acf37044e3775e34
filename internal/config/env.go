package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Default organization roster and company mapping. Overridable through the
// VAULTSYNC_SYNC_ORGS and VAULTSYNC_SYNC_COMPANIES environment variables.
var (
	defaultOrgs = []string{"thalamus-ai", "cortex-digital", "hype-local", "thalamus-labz"}

	defaultCompanies = map[string]string{
		"Thalamus":       "thalamus-ai",
		"Cortex Digital": "cortex-digital",
		"Hype Local":     "hype-local",
		"Thalamus Labz":  "thalamus-labz",
	}

	defaultPatterns = []string{"**/*.md", "**/*.mdx", "**/*.txt"}
)

// LoadFromEnv loads configuration from environment variables, optionally
// seeded from a .env file in the config directory (default ~/.vaultsync).
func LoadFromEnv(configDir string, configFilePath string) (*Config, error) {
	cfg := New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	if configDir == "" {
		configDir = filepath.Join(homeDir, ".vaultsync")
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	cfg.configDir = configDir

	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}

	// Check if ENV_FILE_PATH is set to load from a custom .env file
	envFilePath := getEnvString("ENV_FILE_PATH", "")
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else {
		// Try the config directory first, then the current directory.
		if err := godotenv.Load(configFilePath); err != nil {
			_ = godotenv.Load() // Ignore errors if file doesn't exist
		}
	}

	cfg.Sync = SyncConfig{
		RepoBase:       getEnvString("VAULTSYNC_SYNC_REPO_BASE", filepath.Join(homeDir, "repos")),
		CompaniesBase:  getEnvString("VAULTSYNC_SYNC_COMPANIES_BASE", filepath.Join(homeDir, "Documents", "companies")),
		VaultBase:      getEnvString("VAULTSYNC_SYNC_VAULT_BASE", filepath.Join(homeDir, "Documents", "Obsidian Vault")),
		Orgs:           getEnvStringSlice("VAULTSYNC_SYNC_ORGS", defaultOrgs),
		VaultFolders:   getEnvStringMap("VAULTSYNC_SYNC_VAULT_FOLDERS", nil),
		Companies:      getEnvStringMap("VAULTSYNC_SYNC_COMPANIES", defaultCompanies),
		Patterns:       getEnvStringSlice("VAULTSYNC_SYNC_PATTERNS", defaultPatterns),
		IgnorePatterns: getEnvStringSlice("VAULTSYNC_SYNC_IGNORE_PATTERNS", nil),
		StatePath:      getEnvString("VAULTSYNC_SYNC_STATE_PATH", filepath.Join(configDir, "sync_state.json")),
		Interval:       getEnvDuration("VAULTSYNC_SYNC_INTERVAL", 5*time.Minute),
		ModTimeWindow:  getEnvDuration("VAULTSYNC_SYNC_MOD_TIME_WINDOW", 0),
	}

	cfg.Knowledge = KnowledgeConfig{
		Enabled:           getEnvBool("VAULTSYNC_KNOWLEDGE_ENABLED", true),
		BaseURL:           getEnvString("VAULTSYNC_KNOWLEDGE_BASE_URL", "http://localhost:3000"),
		APIKey:            getEnvString("VAULTSYNC_KNOWLEDGE_API_KEY", ""),
		Timeout:           getEnvDuration("VAULTSYNC_KNOWLEDGE_TIMEOUT", 60*time.Second),
		MaxRetries:        getEnvInt("VAULTSYNC_KNOWLEDGE_MAX_RETRIES", 2),
		RequestsPerMinute: getEnvInt("VAULTSYNC_KNOWLEDGE_REQUESTS_PER_MINUTE", 30),
		BurstLimit:        getEnvInt("VAULTSYNC_KNOWLEDGE_BURST_LIMIT", 5),
		StatePath:         getEnvString("VAULTSYNC_KNOWLEDGE_STATE_PATH", filepath.Join(configDir, "knowledge_state.json")),
		TargetsFile:       getEnvString("VAULTSYNC_KNOWLEDGE_TARGETS_FILE", ""),
	}

	cfg.Logging = LoggingConfig{
		Level:      getEnvString("VAULTSYNC_LOG_LEVEL", "info"),
		Format:     getEnvString("VAULTSYNC_LOG_FORMAT", "text"),
		Output:     getEnvString("VAULTSYNC_LOG_OUTPUT", filepath.Join(configDir, "vaultsync.log")),
		AddSource:  getEnvBool("VAULTSYNC_LOG_ADD_SOURCE", false),
		TimeFormat: getEnvString("VAULTSYNC_LOG_TIME_FORMAT", time.RFC3339),
	}

	return cfg, cfg.Validate()
}
