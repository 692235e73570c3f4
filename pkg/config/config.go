package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dd0wney/cluso-starter/pkg/validation"
	"gopkg.in/yaml.v3"
)

// Default configuration values
const (
	DefaultPoolSize         = 30
	DefaultStatementTimeout = 30 * time.Second
	DefaultIdleTimeout      = 30 * time.Second
	DefaultLogLevel         = "info"
	DefaultHTTPAddr         = ":8080"
	DefaultMigrationsDir    = "./migrations"
)

// MaxPoolSize bounds PoolSize.
const MaxPoolSize = 1000

var (
	// ErrMissingDatabaseURL is returned when no connection string was configured.
	ErrMissingDatabaseURL = errors.New("DATABASE_URL environment variable is required")
	// ErrUnsupportedScheme is returned for a URL-form DatabaseURL that is not postgres.
	ErrUnsupportedScheme = errors.New("database URL scheme must be postgres or postgresql")
)

var logLevels = []string{"trace", "debug", "info", "warn", "warning", "error", "fatal"}

// Config holds process configuration
type Config struct {
	// DatabaseURL is a libpq connection string or postgres:// URL
	DatabaseURL string `yaml:"database_url" validate:"required"`

	// PoolSize caps open connections (default: 30)
	PoolSize int `yaml:"pool_size"`

	// StatementTimeout is sent as the statement_timeout runtime parameter
	StatementTimeout time.Duration `yaml:"statement_timeout"`

	// IdleTimeout releases pooled connections unused for this long
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	LogLevel      string `yaml:"log_level"`
	HTTPAddr      string `yaml:"http_addr" validate:"required"`
	MigrationsDir string `yaml:"migrations_dir" validate:"required"`
}

// Default returns a Config with every optional field populated.
func Default() *Config {
	return &Config{
		PoolSize:         DefaultPoolSize,
		StatementTimeout: DefaultStatementTimeout,
		IdleTimeout:      DefaultIdleTimeout,
		LogLevel:         DefaultLogLevel,
		HTTPAddr:         DefaultHTTPAddr,
		MigrationsDir:    DefaultMigrationsDir,
	}
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML config file, then applies environment overrides.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("DATABASE_POOL_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DATABASE_POOL_SIZE %q: %w", v, err)
		}
		c.PoolSize = n
	}
	if v := os.Getenv("DATABASE_STATEMENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DATABASE_STATEMENT_TIMEOUT %q: %w", v, err)
		}
		c.StatementTimeout = d
	}
	if v := os.Getenv("DATABASE_IDLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DATABASE_IDLE_TIMEOUT %q: %w", v, err)
		}
		c.IdleTimeout = d
	}
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.HTTPAddr = getEnvOrDefault("HTTP_ADDR", c.HTTPAddr)
	c.MigrationsDir = getEnvOrDefault("MIGRATIONS_DIR", c.MigrationsDir)
	return nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return validation.NewConfigValidator("Config").
		Custom("DatabaseURL", c.checkDatabaseURL).
		RangeInt("PoolSize", c.PoolSize, 1, MaxPoolSize).
		MinDuration("StatementTimeout", c.StatementTimeout, time.Millisecond).
		MinDuration("IdleTimeout", c.IdleTimeout, time.Second).
		OneOf("LogLevel", strings.ToLower(c.LogLevel), logLevels).
		Validate()
}

// checkDatabaseURL accepts libpq keyword/value strings as-is and requires a
// postgres scheme for URL-form strings.
func (c *Config) checkDatabaseURL() error {
	if !strings.Contains(c.DatabaseURL, "://") {
		return nil
	}
	u, err := url.Parse(c.DatabaseURL)
	if err != nil {
		return err
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("%w, got %q", ErrUnsupportedScheme, u.Scheme)
	}
	return nil
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
