// Package config provides configuration management for the assessment server
// and the command-line tool.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// LiteConfig is a simplified configuration for the command-line tool.
// It requires no external services and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the archive and exports

	// Active assessment cache
	CacheMaxItems int
	CacheTTL      time.Duration

	// Optional document store; records are read from JSON files when empty
	MongoURI      string
	MongoDatabase string

	// Optional narrative service; the deterministic stub is used when no key is set
	NarrativeAPIKey  string
	NarrativeBaseURL string
	NarrativeModel   string

	ThresholdsFile string

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".ccas")

	return &LiteConfig{
		DataDir:          dataDir,
		CacheMaxItems:    1000,
		CacheTTL:         24 * time.Hour,
		MongoDatabase:    "healthmate",
		NarrativeBaseURL: "https://api.openai.com/v1",
		NarrativeModel:   "gpt-4o-mini",
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("CCAS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("CCAS_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("CCAS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	cfg.MongoURI = os.Getenv("CCAS_MONGO_URI")
	if v := os.Getenv("CCAS_MONGO_DATABASE"); v != "" {
		cfg.MongoDatabase = v
	}

	cfg.NarrativeAPIKey = os.Getenv("OPENAI_API_KEY")
	if v := os.Getenv("CCAS_NARRATIVE_BASE_URL"); v != "" {
		cfg.NarrativeBaseURL = v
	}
	if v := os.Getenv("CCAS_NARRATIVE_MODEL"); v != "" {
		cfg.NarrativeModel = v
	}

	cfg.ThresholdsFile = os.Getenv("CCAS_THRESHOLDS_FILE")

	if v := os.Getenv("CCAS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("CCAS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// ArchiveDBPath returns the path to the snapshot archive SQLite database.
func (c *LiteConfig) ArchiveDBPath() string {
	return filepath.Join(c.DataDir, "archive.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// Archive returns the archive settings of the standalone tool
func (c *LiteConfig) Archive() domain.ArchiveConfig {
	return domain.ArchiveConfig{Driver: "sqlite", SQLitePath: c.ArchiveDBPath()}
}

// Narrative returns the narrative settings; without an API key the stub provider is used
func (c *LiteConfig) Narrative() domain.NarrativeConfig {
	provider := "stub"
	if c.NarrativeAPIKey != "" {
		provider = "openai"
	}
	return domain.NarrativeConfig{
		Provider:       provider,
		BaseURL:        c.NarrativeBaseURL,
		APIKey:         c.NarrativeAPIKey,
		Model:          c.NarrativeModel,
		Timeout:        60 * time.Second,
		RetryCount:     1,
		RateLimit:      2,
		ConsultTimeout: 30 * time.Second,
	}
}

// Logging returns the logging settings
func (c *LiteConfig) Logging() domain.LoggingConfig {
	return domain.LoggingConfig{Level: c.LogLevel, Format: c.LogFormat, Output: "stderr"}
}
