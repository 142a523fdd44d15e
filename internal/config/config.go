package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all tarmac configuration.
type Config struct {
	Explain  ExplainConfig  `yaml:"explain"`
	Delta    DeltaConfig    `yaml:"delta"`
	Sampling SamplingConfig `yaml:"sampling"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ExplainConfig configures the surrogate tree.
type ExplainConfig struct {
	MinLeafFraction float64 `yaml:"min_leaf_fraction"`
	Seed            int64   `yaml:"seed"`
	MaxDepth        int     `yaml:"max_depth"` // 0 = unlimited
	ConsoleRules    int     `yaml:"console_rules"`
}

// DeltaConfig configures disagreement labeling.
type DeltaConfig struct {
	Task    string  `yaml:"task"` // auto, classification, regression
	Epsilon float64 `yaml:"epsilon"`
}

// SamplingConfig configures the held-out split used when targets are known.
type SamplingConfig struct {
	TestSize float64 `yaml:"test_size"`
	Seed     int64   `yaml:"seed"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	JWTSecret      string   `yaml:"jwt_secret"`
	APIKeyHash     string   `yaml:"api_key_hash"`
	TokenTTL       string   `yaml:"token_ttl"`
	RequestTimeout string   `yaml:"request_timeout"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
}

// StorageConfig configures report persistence.
type StorageConfig struct {
	// DSN is postgres://… or sqlite://…; empty disables persistence.
	DSN string `yaml:"dsn"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level       string `yaml:"level"` // debug, info, warn, error
	Development bool   `yaml:"development"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Explain: ExplainConfig{
			MinLeafFraction: 0.01,
			Seed:            0,
			MaxDepth:        0,
			ConsoleRules:    10,
		},
		Delta: DeltaConfig{
			Task:    "auto",
			Epsilon: 0.05,
		},
		Sampling: SamplingConfig{
			TestSize: 0.4,
			Seed:     0,
		},
		Server: ServerConfig{
			Port:           "8080",
			AllowedOrigins: []string{"http://localhost:*", "https://*"},
			TokenTTL:       "24h",
			RequestTimeout: "60s",
			MaxBodyBytes:   32 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file. A missing file yields defaults.
// Environment variables override file values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		c.Storage.DSN = dsn
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		c.Server.JWTSecret = secret
	}
	if hash := os.Getenv("TARMAC_API_KEY_HASH"); hash != "" {
		c.Server.APIKeyHash = hash
	}
	if level := os.Getenv("TARMAC_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if seed := os.Getenv("TARMAC_SEED"); seed != "" {
		if v, err := strconv.ParseInt(seed, 10, 64); err == nil {
			c.Explain.Seed = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Explain.MinLeafFraction <= 0 || c.Explain.MinLeafFraction >= 1 {
		return fmt.Errorf("explain.min_leaf_fraction must be in (0, 1), got %v", c.Explain.MinLeafFraction)
	}
	if c.Explain.MaxDepth < 0 {
		return fmt.Errorf("explain.max_depth must not be negative")
	}
	switch c.Delta.Task {
	case "auto", "classification", "regression":
	default:
		return fmt.Errorf("delta.task must be auto, classification or regression, got %q", c.Delta.Task)
	}
	if c.Delta.Epsilon < 0 {
		return fmt.Errorf("delta.epsilon must not be negative, got %v", c.Delta.Epsilon)
	}
	if c.Sampling.TestSize <= 0 || c.Sampling.TestSize >= 1 {
		return fmt.Errorf("sampling.test_size must be in (0, 1), got %v", c.Sampling.TestSize)
	}
	if c.Server.APIKeyHash != "" && c.Server.JWTSecret == "" {
		return fmt.Errorf("server.jwt_secret is required when server.api_key_hash is set")
	}
	if _, err := c.TokenTTL(); err != nil {
		return err
	}
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	return nil
}

// TokenTTL parses the configured token lifetime.
func (c *Config) TokenTTL() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.TokenTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid server.token_ttl: %w", err)
	}
	return d, nil
}

// RequestTimeout parses the per-request timeout of the HTTP API.
func (c *Config) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid server.request_timeout: %w", err)
	}
	return d, nil
}
