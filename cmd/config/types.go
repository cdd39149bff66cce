package config

import (
	"fmt"
	"time"
)

// Config file names (searched in this order)
var (
	// SupportedConfigFiles lists all supported webchat config file names
	SupportedConfigFiles = []string{
		"webchat.yaml",
		"webchat.yml",
		"webchat.toml",
		"webchat.json",
	}
)

// Defaults applied after file and environment values.
const (
	DefaultServerURL        = "http://127.0.0.1:23333"
	DefaultStorage          = "file"
	DefaultModel            = "flash"
	DefaultReconnectDelay   = "3s"
	DefaultHandshakeTimeout = "10s"
	DefaultRequestTimeout   = "60s"
)

// WebchatConfig is the client configuration. File values are overridden by
// WEBCHAT_* environment variables, which are overridden by flags.
type WebchatConfig struct {
	ServerURL string `yaml:"server_url,omitempty" toml:"server_url,omitempty" json:"server_url,omitempty" split_words:"true"`

	// Endpoint overrides; derived from ServerURL when empty.
	SocketURL string `yaml:"socket_url,omitempty" toml:"socket_url,omitempty" json:"socket_url,omitempty" split_words:"true"`
	HealthURL string `yaml:"health_url,omitempty" toml:"health_url,omitempty" json:"health_url,omitempty" split_words:"true"`
	UploadURL string `yaml:"upload_url,omitempty" toml:"upload_url,omitempty" json:"upload_url,omitempty" split_words:"true"`

	// Storage is one of file, pebble or memory.
	Storage      string `yaml:"storage,omitempty" toml:"storage,omitempty" json:"storage,omitempty"`
	DefaultModel string `yaml:"default_model,omitempty" toml:"default_model,omitempty" json:"default_model,omitempty" split_words:"true"`

	// Durations in time.ParseDuration form ("3s", "1m").
	ReconnectDelay   string `yaml:"reconnect_delay,omitempty" toml:"reconnect_delay,omitempty" json:"reconnect_delay,omitempty" split_words:"true"`
	HandshakeTimeout string `yaml:"handshake_timeout,omitempty" toml:"handshake_timeout,omitempty" json:"handshake_timeout,omitempty" split_words:"true"`
	RequestTimeout   string `yaml:"request_timeout,omitempty" toml:"request_timeout,omitempty" json:"request_timeout,omitempty" split_words:"true"`

	MetricsAddr string `yaml:"metrics_addr,omitempty" toml:"metrics_addr,omitempty" json:"metrics_addr,omitempty" split_words:"true"`

	// Path is the file the values were read from, if any.
	Path string `yaml:"-" toml:"-" json:"-" ignored:"true"`
}

// ApplyDefaults fills every empty field with its default.
func (c *WebchatConfig) ApplyDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.Storage == "" {
		c.Storage = DefaultStorage
	}
	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}
	if c.ReconnectDelay == "" {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.HandshakeTimeout == "" {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.RequestTimeout == "" {
		c.RequestTimeout = DefaultRequestTimeout
	}
}

// Validate checks the duration fields and the storage kind.
func (c *WebchatConfig) Validate() error {
	for name, v := range map[string]string{
		"reconnect_delay":   c.ReconnectDelay,
		"handshake_timeout": c.HandshakeTimeout,
		"request_timeout":   c.RequestTimeout,
	} {
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		if d <= 0 {
			return fmt.Errorf("invalid %s %q: must be positive", name, v)
		}
	}
	switch c.Storage {
	case "", "file", "pebble", "memory":
	default:
		return fmt.Errorf("invalid storage %q: use file, pebble or memory", c.Storage)
	}
	return nil
}

// ReconnectDelayDuration returns the parsed reconnect delay, or the default.
func (c *WebchatConfig) ReconnectDelayDuration() time.Duration {
	return parseOr(c.ReconnectDelay, DefaultReconnectDelay)
}

// HandshakeTimeoutDuration returns the parsed handshake timeout, or the default.
func (c *WebchatConfig) HandshakeTimeoutDuration() time.Duration {
	return parseOr(c.HandshakeTimeout, DefaultHandshakeTimeout)
}

// RequestTimeoutDuration returns the parsed HTTP timeout, or the default.
func (c *WebchatConfig) RequestTimeoutDuration() time.Duration {
	return parseOr(c.RequestTimeout, DefaultRequestTimeout)
}

func parseOr(v, def string) time.Duration {
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(def)
	return d
}
