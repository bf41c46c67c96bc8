package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the complete server configuration. Values come from environment
// variables with the RFX prefix, optionally overlaid on a YAML file.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
	License  LicenseConfig  `yaml:"license" envconfig:"LICENSE"`
	Admin    AdminConfig    `yaml:"admin" envconfig:"ADMIN"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"25"`
}

// DatabaseConfig contains the SQLite store configuration.
type DatabaseConfig struct {
	Path string `yaml:"path" envconfig:"PATH" default:"license_system.db"`
}

// LicenseConfig contains license issuance and lifecycle parameters.
type LicenseConfig struct {
	// Secret keys the HMAC derivation of license keys. Keys are stable for
	// a given owner only while the secret is stable, so rotating it orphans
	// every issued key.
	Secret          string        `yaml:"secret" envconfig:"SECRET"`
	KeyPrefix       string        `yaml:"key_prefix" envconfig:"KEY_PREFIX" default:"RFX"`
	TrialDuration   time.Duration `yaml:"trial_duration" envconfig:"TRIAL_DURATION" default:"72h"`
	MonthlyDuration time.Duration `yaml:"monthly_duration" envconfig:"MONTHLY_DURATION" default:"720h"`
	MonthlyPriceUSD float64       `yaml:"monthly_price_usd" envconfig:"MONTHLY_PRICE_USD" default:"100"`
}

// AdminConfig lists the actor IDs granted the admin role. The identity
// check itself (who presented this ID) happens outside this service.
type AdminConfig struct {
	ActorIDs []string `yaml:"actor_ids" envconfig:"ACTOR_IDS"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format string `yaml:"format" envconfig:"FORMAT" default:"json"`
}

// Load loads configuration from an optional YAML file, then overlays
// environment variables, then validates.
func Load(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			data, err := os.ReadFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := envconfig.Process("RFX", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.License.Secret == "" {
		return fmt.Errorf("license secret must be set (RFX_LICENSE_SECRET)")
	}
	if c.License.TrialDuration <= 0 || c.License.MonthlyDuration <= 0 {
		return fmt.Errorf("license durations must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path must be set")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	return nil
}

// IsAdmin reports whether the given actor ID is in the admin allow-list.
func (c *Config) IsAdmin(actorID string) bool {
	for _, id := range c.Admin.ActorIDs {
		if id == actorID {
			return true
		}
	}
	return false
}
