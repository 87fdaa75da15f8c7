package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load loads configuration from file
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default config locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")           // Current directory
		v.AddConfigPath("./configs")   // Project configs directory
		v.AddConfigPath("./config")    // Alternative config directory
		v.AddConfigPath("/etc/nelson") // System-wide config
	}

	// Set defaults
	setDefaults(v)

	// Enable environment variable overrides, e.g. NELSON_ENGINE_STDDEV_ESTIMATOR
	v.SetEnvPrefix("NELSON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; use defaults
			return parseConfig(v)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return parseConfig(v)
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	// Server defaults
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.http_port", d.Server.HTTPPort)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout.String())
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout.String())
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout.String())

	// Engine defaults
	v.SetDefault("engine.stddev_estimator", d.Engine.StdDevEstimator)
	v.SetDefault("engine.workers", d.Engine.Workers)
	v.SetDefault("engine.max_series", d.Engine.MaxSeries)
	v.SetDefault("engine.default_series_limit", d.Engine.DefaultSeriesLimit)
	v.SetDefault("engine.max_observations", d.Engine.MaxObservations)

	// Queue defaults
	v.SetDefault("queue.enabled", d.Queue.Enabled)
	v.SetDefault("queue.type", d.Queue.Type)
	v.SetDefault("queue.url", d.Queue.URL)
	v.SetDefault("queue.request_subject", d.Queue.RequestSubject)
	v.SetDefault("queue.result_subject", d.Queue.ResultSubject)
	v.SetDefault("queue.compression", d.Queue.Compression)
	v.SetDefault("queue.consumer_group", d.Queue.ConsumerGroup)
	v.SetDefault("queue.redis_stream", d.Queue.RedisStream)

	// Auth defaults
	v.SetDefault("auth.enabled", d.Auth.Enabled)

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output_path", d.Logging.OutputPath)
	v.SetDefault("logging.time_format", d.Logging.TimeFormat)
}

// parseConfig parses viper config into Config struct
func parseConfig(v *viper.Viper) (*Config, error) {
	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// LoadOrDefault loads configuration from file or returns default config
func LoadOrDefault(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		// Return default configuration
		return DefaultConfig()
	}
	return cfg
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			HTTPPort:        5555,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			BodyLimit:       16 * 1024 * 1024,
			ShutdownTimeout: 10 * time.Second,
		},
		Engine: EngineConfig{
			StdDevEstimator:    "sample",
			Workers:            0,
			MaxSeries:          100,
			DefaultSeriesLimit: 10,
			MaxObservations:    1000000,
		},
		Queue: QueueConfig{
			Enabled:        false,
			Type:           "nats",
			URL:            "nats://localhost:4222",
			RequestSubject: "nelson.evaluate.request",
			ResultSubject:  "nelson.evaluate.result",
			Compression:    "none",
			ConsumerGroup:  "nelson-workers",
			RedisStream:    "nelson",
		},
		Auth: AuthConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			OutputPath: "stdout",
			TimeFormat: "RFC3339",
		},
	}
}
