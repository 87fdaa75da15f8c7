package config

import (
	"fmt"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`             // Bind address (e.g., 0.0.0.0 for all interfaces)
	HTTPPort        int           `mapstructure:"http_port"`        // HTTP server port
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`     // Max time to read a request
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`    // Max time to write a response
	BodyLimit       int           `mapstructure:"body_limit"`       // Max request body size in bytes
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"` // Grace period for in-flight requests
}

// EngineConfig represents Nelson rules engine configuration
type EngineConfig struct {
	StdDevEstimator    string `mapstructure:"stddev_estimator"`     // sample (N-1) or population (N)
	Workers            int    `mapstructure:"workers"`              // Concurrent partitions, 0 = NumCPU
	MaxSeries          int    `mapstructure:"max_series"`           // Upper bound for a request's series limit
	DefaultSeriesLimit int    `mapstructure:"default_series_limit"` // Series limit when the request has none
	MaxObservations    int    `mapstructure:"max_observations"`     // Max rows accepted per request
}

// QueueConfig represents message queue configuration
type QueueConfig struct {
	Enabled  bool   `mapstructure:"enabled"`  // Start the evaluation worker
	Type     string `mapstructure:"type"`     // Queue type: nats (default), redis, kafka, memory
	URL      string `mapstructure:"url"`      // Queue server URL (e.g., nats://localhost:4222, redis://localhost:6379)
	Username string `mapstructure:"username"` // Optional authentication
	Password string `mapstructure:"password"` // Optional authentication

	RequestSubject string `mapstructure:"request_subject"` // Subject carrying evaluation requests
	ResultSubject  string `mapstructure:"result_subject"`  // Subject receiving evaluation results
	Compression    string `mapstructure:"compression"`     // Result payload compression: none, snappy
	ConsumerGroup  string `mapstructure:"consumer_group"`  // Durable consumer group shared by workers
	NodeID         string `mapstructure:"node_id"`         // Unique worker name inside the group

	// Redis-specific options
	RedisDB     int    `mapstructure:"redis_db"`     // Redis database number (default: 0)
	RedisStream string `mapstructure:"redis_stream"` // Redis stream prefix (default: "nelson")

	// Kafka-specific options
	KafkaBrokers []string `mapstructure:"kafka_brokers"` // Kafka broker addresses
}

// AuthConfig represents authentication configuration
type AuthConfig struct {
	Enabled bool     `mapstructure:"enabled"`  // Enable/disable API key authentication
	APIKeys []string `mapstructure:"api_keys"` // List of valid API keys
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, file path
	TimeFormat string `mapstructure:"time_format"` // RFC3339, Unix, UnixMs, etc
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Engine.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	if err := c.Queue.Validate(); err != nil {
		return fmt.Errorf("queue config: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration
func (c *ServerConfig) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.HTTPPort)
	}

	if c.BodyLimit < 0 {
		return fmt.Errorf("body_limit cannot be negative")
	}

	return nil
}

// Validate validates engine configuration
func (c *EngineConfig) Validate() error {
	switch strings.ToLower(c.StdDevEstimator) {
	case "", "sample", "population":
	default:
		return fmt.Errorf("engine.stddev_estimator must be 'sample' or 'population'")
	}

	if c.Workers < 0 {
		return fmt.Errorf("engine.workers cannot be negative")
	}

	if c.MaxSeries < 1 {
		return fmt.Errorf("engine.max_series must be at least 1")
	}

	if c.DefaultSeriesLimit < 1 {
		return fmt.Errorf("engine.default_series_limit must be at least 1")
	}

	if c.DefaultSeriesLimit > c.MaxSeries {
		return fmt.Errorf("engine.default_series_limit cannot exceed engine.max_series")
	}

	if c.MaxObservations < 0 {
		return fmt.Errorf("engine.max_observations cannot be negative")
	}

	return nil
}

// Validate validates queue configuration. Nothing is checked while the
// worker is disabled.
func (c *QueueConfig) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch strings.ToLower(c.Type) {
	case "", "nats", "redis", "memory":
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("queue.kafka_brokers is required for kafka")
		}
	default:
		return fmt.Errorf("queue.type must be one of: nats, redis, kafka, memory")
	}

	if c.RequestSubject == "" {
		return fmt.Errorf("queue.request_subject is required")
	}

	if c.RequestSubject == c.ResultSubject {
		return fmt.Errorf("queue.request_subject and queue.result_subject cannot be the same")
	}

	switch strings.ToLower(c.Compression) {
	case "", "none", "snappy":
	default:
		return fmt.Errorf("queue.compression must be 'none' or 'snappy'")
	}

	return nil
}

// Validate validates auth configuration
func (c *AuthConfig) Validate() error {
	if c.Enabled && len(c.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys is required when auth is enabled")
	}
	return nil
}

// Validate validates logging configuration
func (c *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json":    true,
		"console": true,
	}

	if !validFormats[c.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console'")
	}

	return nil
}
