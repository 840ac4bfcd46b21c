// ABOUTME: Configuration loading and parsing for pileup-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete pileup-gateway configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Tailscale  TailscaleConfig  `yaml:"tailscale"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Queue      QueueConfig      `yaml:"queue"`
	Stream     StreamConfig     `yaml:"stream"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	HTTPS     bool   `yaml:"https"`  // TLS with Tailscale-provisioned certs
	Funnel    bool   `yaml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// AdminPasswordHash is a bcrypt hash; generate with
	// `pileup-gateway hash-password`
	AdminPasswordHash string `yaml:"admin_password_hash"`
}

// QueueConfig holds queue capacity and history retention configuration
type QueueConfig struct {
	Capacity      int           `yaml:"capacity"`
	WorkedTTL     time.Duration `yaml:"-"`
	SweepInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	WorkedTTLRaw     string `yaml:"worked_ttl"`
	SweepIntervalRaw string `yaml:"sweep_interval"`
}

// StreamConfig holds viewer stream configuration
type StreamConfig struct {
	KeepaliveInterval time.Duration `yaml:"-"`

	KeepaliveIntervalRaw string `yaml:"keepalive_interval"`
}

// EnrichmentConfig holds callsign lookup configuration
type EnrichmentConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a config populated with defaults. Duration fields are
// set both in parsed and raw form so Validate works either way.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{HTTPAddr: "0.0.0.0:8080"},
		Database: DatabaseConfig{Path: "pileup.db"},
		Queue: QueueConfig{
			Capacity:         15,
			WorkedTTL:        time.Hour,
			SweepInterval:    5 * time.Minute,
			WorkedTTLRaw:     "1h",
			SweepIntervalRaw: "5m",
		},
		Stream: StreamConfig{
			KeepaliveInterval:    30 * time.Second,
			KeepaliveIntervalRaw: "30s",
		},
		Enrichment: EnrichmentConfig{
			BaseURL:    "https://api.hamdb.org",
			Timeout:    10 * time.Second,
			TimeoutRaw: "10s",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"queue.worked_ttl", cfg.Queue.WorkedTTLRaw, &cfg.Queue.WorkedTTL},
		{"queue.sweep_interval", cfg.Queue.SweepIntervalRaw, &cfg.Queue.SweepInterval},
		{"stream.keepalive_interval", cfg.Stream.KeepaliveIntervalRaw, &cfg.Stream.KeepaliveInterval},
		{"enrichment.timeout", cfg.Enrichment.TimeoutRaw, &cfg.Enrichment.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Queue.Capacity <= 0 {
		return fmt.Errorf("queue.capacity must be positive, got %d", c.Queue.Capacity)
	}
	if c.Queue.WorkedTTL <= 0 {
		return fmt.Errorf("queue.worked_ttl must be positive, got %s", c.Queue.WorkedTTL)
	}
	if c.Stream.KeepaliveInterval <= 0 {
		return fmt.Errorf("stream.keepalive_interval must be positive, got %s", c.Stream.KeepaliveInterval)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// Admin surface requires both halves of the credential story
	if c.Auth.AdminPasswordHash != "" && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.admin_password_hash is set")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes, got %d", len(c.Auth.JWTSecret))
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Enrichment.Enabled && c.Enrichment.BaseURL == "" {
		return fmt.Errorf("enrichment.base_url is required when enrichment is enabled")
	}
	return nil
}
