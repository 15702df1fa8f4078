// ABOUTME: Configuration loading and parsing for vireon-host
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete vireon-host configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Bots     BotsConfig     `yaml:"bots"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	TokenTTLRaw string `yaml:"token_ttl"`
}

// BotsConfig holds hosted-bot behavior configuration
type BotsConfig struct {
	CommandPrefix        string        `yaml:"command_prefix"`
	Nodes                []string      `yaml:"nodes"`
	ConnectTimeout       time.Duration `yaml:"-"`
	RestoreRetryInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	ConnectTimeoutRaw       string `yaml:"connect_timeout"`
	RestoreRetryIntervalRaw string `yaml:"restore_retry_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the corresponding fields are absent from the file.
const (
	DefaultCommandPrefix        = "!"
	DefaultConnectTimeout       = 30 * time.Second
	DefaultRestoreRetryInterval = 5 * time.Minute
	DefaultTokenTTL             = 24 * time.Hour
)

// DefaultNodes is the node list used when bots.nodes is not configured.
var DefaultNodes = []string{"node-1", "node-2", "node-3"}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in defaults for optional fields.
func (c *Config) applyDefaults() {
	if c.Bots.CommandPrefix == "" {
		c.Bots.CommandPrefix = DefaultCommandPrefix
	}
	if len(c.Bots.Nodes) == 0 {
		c.Bots.Nodes = append([]string(nil), DefaultNodes...)
	}
	if c.Bots.ConnectTimeout == 0 {
		c.Bots.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Bots.RestoreRetryIntervalRaw == "" {
		c.Bots.RestoreRetryInterval = DefaultRestoreRetryInterval
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Bots.ConnectTimeoutRaw != "" {
		cfg.Bots.ConnectTimeout, err = time.ParseDuration(cfg.Bots.ConnectTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing connect_timeout %q: %w", cfg.Bots.ConnectTimeoutRaw, err)
		}
	}

	if cfg.Bots.RestoreRetryIntervalRaw != "" {
		cfg.Bots.RestoreRetryInterval, err = time.ParseDuration(cfg.Bots.RestoreRetryIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing restore_retry_interval %q: %w", cfg.Bots.RestoreRetryIntervalRaw, err)
		}
	}

	if cfg.Auth.TokenTTLRaw != "" {
		cfg.Auth.TokenTTL, err = time.ParseDuration(cfg.Auth.TokenTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing token_ttl %q: %w", cfg.Auth.TokenTTLRaw, err)
		}
	}

	return nil
}
