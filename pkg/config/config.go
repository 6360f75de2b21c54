// Package config implements the ConfigStore (spec C1): a typed, read-only
// lookup surface over the process environment and an optional YAML
// configuration document. Values are resolved once at Load and never mutated
// afterwards; callers that need a fresh read must call Load again.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	DisplayHost string `env:"WEB_SERVER_DISPLAY_HOST,default=localhost"`
	Port        int    `env:"WEB_SERVER_API_PORT,default=3000"`
}

// DatabaseConfig controls the Postgres connection pool.
type DatabaseConfig struct {
	Host           string `env:"DB_HOST,default=localhost"`
	Port           int    `env:"DB_PORT,default=5432"`
	Name           string `env:"DB_NAME,default=regulens"`
	User           string `env:"DB_USER,default=regulens"`
	Secret         string `env:"DB_PASSWORD"`
	SSLMode        string `env:"DB_SSLMODE,default=disable"`
	MaxConnections int    `env:"DB_MAX_CONNECTIONS,default=20"`
	AcquireTimeout time.Duration `env:"DB_ACQUIRE_TIMEOUT,default=5s"`
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	JWTSecret          string `env:"JWT_SECRET"`
	AccessTokenTTLHours int   `env:"ACCESS_TOKEN_TTL_HOURS,default=24"`
	RefreshTokenTTLDays int   `env:"REFRESH_TOKEN_TTL_DAYS,default=30"`
}

// PatternConfig controls the analytic engine (C8).
type PatternConfig struct {
	MinOccurrences    int           `env:"PATTERN_MIN_OCCURRENCES,default=5"`
	MinConfidence     float64       `env:"PATTERN_MIN_CONFIDENCE,default=0.7"`
	RetentionHours    int           `env:"PATTERN_RETENTION_HOURS,default=168"`
	RealTimeAnalysis  bool          `env:"PATTERN_REAL_TIME_ANALYSIS,default=true"`
	BatchInterval     int           `env:"PATTERN_BATCH_INTERVAL,default=100"`
	PerEntityCap      int           `env:"PATTERN_ENTITY_BUFFER_CAP,default=10000"`
	CleanupInterval   time.Duration `env:"PATTERN_CLEANUP_INTERVAL,default=30m"`
}

// FeedbackConfig controls the feedback system (C9).
type FeedbackConfig struct {
	MaxPerEntity         int           `env:"FEEDBACK_MAX_PER_ENTITY,default=10000"`
	RetentionHours       int           `env:"FEEDBACK_RETENTION_HOURS,default=168"`
	MinForLearning       int           `env:"FEEDBACK_MIN_FOR_LEARNING,default=10"`
	ConfidenceThreshold  float64       `env:"FEEDBACK_CONFIDENCE_THRESHOLD,default=0.7"`
	RealTimeLearning     bool          `env:"FEEDBACK_REAL_TIME_LEARNING,default=true"`
	BatchInterval        int           `env:"FEEDBACK_BATCH_INTERVAL,default=50"`
	LearningTickInterval time.Duration `env:"FEEDBACK_LEARNING_INTERVAL,default=15m"`
}

// MonitorConfig controls the regulatory monitor (C7).
type MonitorConfig struct {
	ScrapeTimeoutSeconds int `env:"SCRAPE_TIMEOUT_SECONDS,default=30"`
	FailureThreshold     int `env:"SCRAPE_FAILURE_THRESHOLD,default=5"`
	MinBackoffMinutes    int `env:"SCRAPE_MIN_BACKOFF_MINUTES,default=15"`
	MaxBackoffHours      int `env:"SCRAPE_MAX_BACKOFF_HOURS,default=24"`
}

// LoggingConfig controls the structured logger (C4).
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT,default=text"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=regulens-core"`
}

// Config is the fully resolved, immutable process configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Pattern  PatternConfig
	Feedback FeedbackConfig
	Monitor  MonitorConfig
	Logging  LoggingConfig

	// Sources holds the regulatory-source catalogue. It is not naturally
	// environment-scoped, so it is read from an optional YAML document
	// instead (see loadSourcesFile).
	Sources []SourceSpec
}

// SourceSpec describes one regulatory source as configuration, before it
// becomes a persisted RegulatorySource row.
type SourceSpec struct {
	ID                   string `yaml:"id"`
	Name                 string `yaml:"name"`
	BaseURL              string `yaml:"base_url"`
	SourceType           string `yaml:"source_type"`
	CheckIntervalMinutes int    `yaml:"check_interval_minutes"`
	Active               bool   `yaml:"active"`
}

// Load resolves configuration from a .env file (if present, non-fatal),
// environment variables, and an optional sources.yaml document. It fails
// fast on any required-but-missing value so misconfiguration is caught at
// process boot rather than at first use.
func Load() (*Config, error) {
	_ = godotenv.Load() // optional; absence is not an error

	cfg := &Config{}
	if err := envdecode.StrictDecode(cfg); err != nil {
		return nil, fmt.Errorf("decode environment configuration: %w", err)
	}

	if strings.TrimSpace(cfg.Auth.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if sourcesPath := os.Getenv("REGULATORY_SOURCES_FILE"); sourcesPath != "" {
		sources, err := loadSourcesFile(sourcesPath)
		if err != nil {
			return nil, fmt.Errorf("load regulatory sources: %w", err)
		}
		cfg.Sources = sources
	} else {
		cfg.Sources = defaultSources()
	}

	return cfg, nil
}

func loadSourcesFile(path string) ([]SourceSpec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Sources []SourceSpec `yaml:"sources"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc.Sources, nil
}

func defaultSources() []SourceSpec {
	return []SourceSpec{
		{ID: "sec_edgar", Name: "SEC EDGAR Full-Text Search", BaseURL: "https://www.sec.gov/cgi-bin/browse-edgar", SourceType: "sec_edgar", CheckIntervalMinutes: 60, Active: true},
		{ID: "fca_uk", Name: "FCA Regulatory News", BaseURL: "https://www.fca.org.uk/news", SourceType: "fca_uk", CheckIntervalMinutes: 120, Active: true},
		{ID: "sec_news", Name: "SEC Press Releases", BaseURL: "https://www.sec.gov/news/pressreleases", SourceType: "sec_news", CheckIntervalMinutes: 60, Active: true},
		{ID: "esma_eu", Name: "ESMA News", BaseURL: "https://www.esma.europa.eu/press-news/esma-news", SourceType: "esma_eu", CheckIntervalMinutes: 180, Active: true},
	}
}

// DSN renders the Postgres connection string for lib/pq.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Secret, d.SSLMode,
	)
}

// Bool parses a boolean environment override, falling back to def.
func Bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
