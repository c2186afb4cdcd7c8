package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	DocumentStore DocumentStoreConfig `mapstructure:"document_store"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Narrative     NarrativeConfig     `mapstructure:"narrative"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Assessments   AssessmentConfig    `mapstructure:"assessments"`
	Events        EventsConfig        `mapstructure:"events"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
	RateLimit    float64       `mapstructure:"rate_limit"` // requests per second per client
	RateBurst    int           `mapstructure:"rate_burst"`
}

// DocumentStoreConfig represents the patient record store (MongoDB)
type DocumentStoreConfig struct {
	URI                      string        `mapstructure:"uri"`
	Database                 string        `mapstructure:"database"`
	LabResultsCollection     string        `mapstructure:"lab_results_collection"`
	MedicalRecordsCollection string        `mapstructure:"medical_records_collection"`
	PatientsCollection       string        `mapstructure:"patients_collection"`
	Timeout                  time.Duration `mapstructure:"timeout"`
	BreakerMaxFailures       uint32        `mapstructure:"breaker_max_failures"`
	BreakerTimeout           time.Duration `mapstructure:"breaker_timeout"`
}

// DatabaseConfig represents PostgreSQL connection configuration for the archive
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// ArchiveConfig selects where finished case-file snapshots are kept
type ArchiveConfig struct {
	Driver     string `mapstructure:"driver"` // "none", "sqlite", "postgres"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	RedisURL    string        `mapstructure:"redis_url"`
	DefaultTTL  time.Duration `mapstructure:"default_ttl"`
	MaxRetries  int           `mapstructure:"max_retries"`
	PoolSize    int           `mapstructure:"pool_size"`
	PoolTimeout time.Duration `mapstructure:"pool_timeout"`
}

// NarrativeConfig represents the text-generation service used for specialist opinions
type NarrativeConfig struct {
	Provider       string        `mapstructure:"provider"` // "stub", "openai"
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	Model          string        `mapstructure:"model"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryCount     int           `mapstructure:"retry_count"`
	RateLimit      int           `mapstructure:"rate_limit"` // requests per second
	ConsultTimeout time.Duration `mapstructure:"consult_timeout"`
}

// EngineConfig tunes the feature engine
type EngineConfig struct {
	ThresholdsFile      string        `mapstructure:"thresholds_file"`
	CorrelationWindow   time.Duration `mapstructure:"correlation_window"`
	MaxProjectionMonths float64       `mapstructure:"max_projection_months"`
	Workers             int           `mapstructure:"workers"`
}

// AssessmentConfig bounds the store of active assessments
type AssessmentConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	MaxEntries int           `mapstructure:"max_entries"`
}

// EventsConfig represents the assessment event stream (Kafka)
type EventsConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
