package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all gateway configuration.
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Gateway   GatewayConfig
	Catalog   CatalogConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds listener configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8400"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// UpstreamConfig holds the external endpoints the gateway calls out to.
type UpstreamConfig struct {
	WorkflowURL   string        `envconfig:"WORKFLOW_URL" default:"http://localhost:5678"`
	CapabilityURL string        `envconfig:"CAPABILITY_URL" default:"http://localhost:8900"`
	CallTimeout   time.Duration `envconfig:"CALL_TIMEOUT" default:"15s"`
}

// GatewayConfig holds socket-side behavior.
type GatewayConfig struct {
	DrainTimeout      time.Duration `envconfig:"DRAIN_TIMEOUT" default:"10s"`
	MaxMessageBytes   int64         `envconfig:"MAX_MESSAGE_BYTES" default:"1048576"`
	WriteTimeout      time.Duration `envconfig:"WRITE_TIMEOUT" default:"10s"`
	MessagesPerSecond float64       `envconfig:"CONN_MESSAGES_PER_SECOND" default:"50"`
	MessageBurst      int           `envconfig:"CONN_MESSAGE_BURST" default:"100"`
}

// CatalogConfig holds the optional workflow catalog location.
type CatalogConfig struct {
	Path string `envconfig:"CATALOG_PATH" default:""`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds HTTP rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values the gateway cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port must not be empty")
	}
	if c.Upstream.CallTimeout <= 0 {
		return fmt.Errorf("call timeout must be positive, got %v", c.Upstream.CallTimeout)
	}
	if c.Gateway.DrainTimeout < 0 {
		return fmt.Errorf("drain timeout must not be negative, got %v", c.Gateway.DrainTimeout)
	}
	if c.Gateway.MaxMessageBytes <= 0 {
		return fmt.Errorf("max message bytes must be positive, got %d", c.Gateway.MaxMessageBytes)
	}
	return nil
}

// BindAddr returns the listener address in host:port form.
func (c *Config) BindAddr() string {
	return c.Server.Host + ":" + c.Server.Port
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8400",
			Host: "0.0.0.0",
		},
		Upstream: UpstreamConfig{
			WorkflowURL:   "http://localhost:5678",
			CapabilityURL: "http://localhost:8900",
			CallTimeout:   15 * time.Second,
		},
		Gateway: GatewayConfig{
			DrainTimeout:      10 * time.Second,
			MaxMessageBytes:   1 << 20,
			WriteTimeout:      10 * time.Second,
			MessagesPerSecond: 50,
			MessageBurst:      100,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
