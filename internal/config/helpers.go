package config

import (
	"fmt"
	"os"
	"strings"
)

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Logging.Level == "debug" && c.Logging.Format == "console"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Logging.Level == "info" && c.Logging.Format == "json"
}

// GetServerAddress returns the HTTP listen address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.HTTPPort)
}

// CompressionEnabled reports whether result payloads are snappy compressed
func (c *QueueConfig) CompressionEnabled() bool {
	return strings.EqualFold(c.Compression, "snappy")
}

// GetNodeID returns the configured worker name, falling back to the hostname
func (c *QueueConfig) GetNodeID() string {
	if c.NodeID != "" {
		return c.NodeID
	}
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "nelson-worker"
	}
	return hostname
}
