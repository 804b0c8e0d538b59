package config

import (
	"fmt"
	"time"

	"github.com/jonesrussell/feedguard/internal/configloader"
)

// Default configuration values.
const (
	defaultServiceName  = "feedguard"
	defaultVersion      = "0.1.0"
	defaultServicePort  = 8094
	defaultLoggingLevel = "info"

	defaultClassifierURL = "http://localhost:8000"
	defaultPredictRPS    = 20
	defaultPredictBurst  = 40

	defaultCacheTTLMin = 10

	defaultReviewMin = 0.45
	defaultReviewMax = 0.60

	defaultOutboxBatchSize     = 10
	defaultOutboxFlushInterval = 30 * time.Second
	defaultLocalStorePath      = "feedguard.db"

	defaultDBHost    = "localhost"
	defaultDBPort    = 5432
	defaultDBName    = "feedguard"
	defaultDBUser    = "postgres"
	defaultDBSSLMode = "disable"
)

// Config holds the agent configuration.
type Config struct {
	Service    ServiceConfig    `yaml:"service"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Cache      CacheConfig      `yaml:"cache"`
	Review     ReviewConfig     `yaml:"review"`
	Outbox     OutboxConfig     `yaml:"outbox"`
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Port    int    `env:"FEEDGUARD_PORT" yaml:"port"`
	Debug   bool   `env:"APP_DEBUG"      yaml:"debug"`
}

// ClassifierConfig holds the remote classification service settings.
type ClassifierConfig struct {
	BaseURL      string `env:"FEEDGUARD_CLASSIFIER_URL" yaml:"base_url"`
	RequestsPerS int    `yaml:"requests_per_second"`
	Burst        int    `yaml:"burst"`
}

// CacheConfig holds prediction cache settings.
type CacheConfig struct {
	TTL time.Duration `env:"FEEDGUARD_CACHE_TTL" yaml:"ttl"`
}

// ReviewConfig holds the borderline score band routed for review.
// A zero score is treated as unset and replaced by the default, so the
// band's lower edge cannot be configured as exactly 0; use a small
// positive value to pin it near zero.
type ReviewConfig struct {
	MinScore float64 `env:"FEEDGUARD_REVIEW_MIN" yaml:"min_score"`
	MaxScore float64 `env:"FEEDGUARD_REVIEW_MAX" yaml:"max_score"`
}

// OutboxConfig holds durable outbox settings. ReportURL and ReviewURL
// are the bulk ingestion endpoints; LocalStorePath is the sqlite file
// that keeps queued items across restarts.
type OutboxConfig struct {
	ReportURL      string        `env:"FEEDGUARD_REPORT_URL" yaml:"report_url"`
	ReviewURL      string        `env:"FEEDGUARD_REVIEW_URL" yaml:"review_url"`
	BatchSize      int           `yaml:"batch_size"`
	FlushInterval  time.Duration `yaml:"flush_interval"`
	LocalStorePath string        `env:"FEEDGUARD_LOCAL_STORE" yaml:"local_store_path"`
}

// DatabaseConfig holds the persistent document store (PostgreSQL)
// configuration.
type DatabaseConfig struct {
	Host     string `env:"POSTGRES_FEEDGUARD_HOST"     yaml:"host"`
	Port     int    `env:"POSTGRES_FEEDGUARD_PORT"     yaml:"port"`
	User     string `env:"POSTGRES_FEEDGUARD_USER"     yaml:"user"`
	Password string `env:"POSTGRES_FEEDGUARD_PASSWORD" yaml:"password"`
	Database string `env:"POSTGRES_FEEDGUARD_DB"       yaml:"database"`
	SSLMode  string `env:"POSTGRES_FEEDGUARD_SSLMODE"  yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" yaml:"level"`
}

// Load loads configuration from the specified path.
func Load(path string) (*Config, error) {
	return configloader.LoadWithDefaults[Config](path, setDefaults)
}

func setDefaults(cfg *Config) {
	setServiceDefaults(&cfg.Service)
	setClassifierDefaults(&cfg.Classifier)
	setCacheDefaults(&cfg.Cache)
	setReviewDefaults(&cfg.Review)
	setOutboxDefaults(&cfg.Outbox)
	setDatabaseDefaults(&cfg.Database)
	setLoggingDefaults(&cfg.Logging)
}

func setServiceDefaults(svc *ServiceConfig) {
	if svc.Name == "" {
		svc.Name = defaultServiceName
	}
	if svc.Version == "" {
		svc.Version = defaultVersion
	}
	if svc.Port == 0 {
		svc.Port = defaultServicePort
	}
}

func setClassifierDefaults(c *ClassifierConfig) {
	if c.BaseURL == "" {
		c.BaseURL = defaultClassifierURL
	}
	if c.RequestsPerS == 0 {
		c.RequestsPerS = defaultPredictRPS
	}
	if c.Burst == 0 {
		c.Burst = defaultPredictBurst
	}
}

func setCacheDefaults(c *CacheConfig) {
	if c.TTL == 0 {
		c.TTL = defaultCacheTTLMin * time.Minute
	}
}

func setReviewDefaults(r *ReviewConfig) {
	if r.MinScore == 0 {
		r.MinScore = defaultReviewMin
	}
	if r.MaxScore == 0 {
		r.MaxScore = defaultReviewMax
	}
}

func setOutboxDefaults(o *OutboxConfig) {
	if o.ReportURL == "" {
		o.ReportURL = defaultClassifierURL + "/report_bulk"
	}
	if o.ReviewURL == "" {
		o.ReviewURL = defaultClassifierURL + "/review_queue"
	}
	if o.BatchSize == 0 {
		o.BatchSize = defaultOutboxBatchSize
	}
	if o.FlushInterval == 0 {
		o.FlushInterval = defaultOutboxFlushInterval
	}
	if o.LocalStorePath == "" {
		o.LocalStorePath = defaultLocalStorePath
	}
}

func setDatabaseDefaults(db *DatabaseConfig) {
	if db.Host == "" {
		db.Host = defaultDBHost
	}
	if db.Port == 0 {
		db.Port = defaultDBPort
	}
	if db.User == "" {
		db.User = defaultDBUser
	}
	if db.Database == "" {
		db.Database = defaultDBName
	}
	if db.SSLMode == "" {
		db.SSLMode = defaultDBSSLMode
	}
}

func setLoggingDefaults(log *LoggingConfig) {
	if log.Level == "" {
		log.Level = defaultLoggingLevel
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port: %d is out of range", c.Service.Port)
	}
	if c.Review.MinScore > c.Review.MaxScore {
		return fmt.Errorf("review: min_score %.2f exceeds max_score %.2f",
			c.Review.MinScore, c.Review.MaxScore)
	}
	if c.Review.MinScore < 0 || c.Review.MaxScore > 1 {
		return fmt.Errorf("review: band [%.2f, %.2f] must lie within [0, 1]",
			c.Review.MinScore, c.Review.MaxScore)
	}
	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("outbox.batch_size: must be positive, got %d", c.Outbox.BatchSize)
	}
	return nil
}
