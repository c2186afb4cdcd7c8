package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/Project-DevX/healthmate-sub000/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g. CCAS_SERVER_PORT
const EnvPrefix = "CCAS"

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	configFile string
	config     *domain.Config
}

var _ domain.ConfigManager = (*Manager)(nil)

// NewManager creates a new configuration manager. An empty configFile
// searches the default locations for config.yaml.
func NewManager(configFile string) (*Manager, error) {
	m := &Manager{configFile: configFile}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from the config file, environment and defaults
func (m *Manager) loadConfig() error {
	v := viper.New()

	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/ccas/")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// The config file is optional; defaults and environment still apply
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.tls_enabled", false)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 10)

	// Document store defaults
	v.SetDefault("document_store.uri", "mongodb://localhost:27017")
	v.SetDefault("document_store.database", "healthmate")
	v.SetDefault("document_store.lab_results_collection", "lab_results")
	v.SetDefault("document_store.medical_records_collection", "medical_records")
	v.SetDefault("document_store.patients_collection", "patients")
	v.SetDefault("document_store.timeout", "10s")
	v.SetDefault("document_store.breaker_max_failures", 5)
	v.SetDefault("document_store.breaker_timeout", "30s")

	// Archive database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "ccas")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("archive.driver", "none")
	v.SetDefault("archive.sqlite_path", "data/archive.db")

	// Cache defaults
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.default_ttl", "15m")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)
	v.SetDefault("cache.pool_timeout", "4s")

	// Narrative generation defaults
	v.SetDefault("narrative.provider", "stub")
	v.SetDefault("narrative.base_url", "https://api.openai.com/v1")
	v.SetDefault("narrative.model", "gpt-4o-mini")
	v.SetDefault("narrative.timeout", "60s")
	v.SetDefault("narrative.retry_count", 1)
	v.SetDefault("narrative.rate_limit", 2)
	v.SetDefault("narrative.consult_timeout", "30s")

	// Engine defaults
	v.SetDefault("engine.thresholds_file", "")
	v.SetDefault("engine.correlation_window", "168h")
	v.SetDefault("engine.max_projection_months", 60)
	v.SetDefault("engine.workers", 8)

	v.SetDefault("assessments.ttl", "24h")
	v.SetDefault("assessments.max_entries", 1000)

	v.SetDefault("events.enabled", false)
	v.SetDefault("events.brokers", []string{"localhost:9092"})
	v.SetDefault("events.topic", "ccas.assessments")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port: %d", domain.ErrConfiguration, config.Server.Port)
	}
	if config.Server.RateLimit < 0 {
		return fmt.Errorf("%w: rate limit must not be negative", domain.ErrConfiguration)
	}

	if config.DocumentStore.URI == "" {
		return fmt.Errorf("%w: document store URI is required", domain.ErrConfiguration)
	}
	if config.DocumentStore.Database == "" {
		return fmt.Errorf("%w: document store database is required", domain.ErrConfiguration)
	}

	switch strings.ToLower(config.Archive.Driver) {
	case "", "none":
	case "sqlite":
		if config.Archive.SQLitePath == "" {
			return fmt.Errorf("%w: archive sqlite path is required", domain.ErrConfiguration)
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("%w: database host is required", domain.ErrConfiguration)
		}
		if config.Database.Database == "" {
			return fmt.Errorf("%w: database name is required", domain.ErrConfiguration)
		}
		if config.Database.Username == "" {
			return fmt.Errorf("%w: database username is required", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown archive driver: %s", domain.ErrConfiguration, config.Archive.Driver)
	}

	switch strings.ToLower(config.Narrative.Provider) {
	case "", "stub":
	case "openai":
		if config.Narrative.BaseURL == "" {
			return fmt.Errorf("%w: narrative base URL is required", domain.ErrConfiguration)
		}
		if config.Narrative.APIKey == "" {
			return fmt.Errorf("%w: narrative API key is required", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown narrative provider: %s", domain.ErrConfiguration, config.Narrative.Provider)
	}

	if config.Engine.MaxProjectionMonths < 0 {
		return fmt.Errorf("%w: max projection months must not be negative", domain.ErrConfiguration)
	}

	if config.Events.Enabled && (len(config.Events.Brokers) == 0 || config.Events.Topic == "") {
		return fmt.Errorf("%w: events require brokers and a topic", domain.ErrConfiguration)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("%w: invalid log level: %s", domain.ErrConfiguration, config.Logging.Level)
	}

	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	db := m.config.Database
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		db.Host, db.Port, db.Username, db.Password, db.Database, db.SSLMode)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}
