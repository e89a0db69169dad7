package config

import (
	"fmt"
	"time"

	"github.com/grovetools/statesync/logging"
	"github.com/mitchellh/mapstructure"
)

// Config is the statesync.yml file.
type Config struct {
	Version string       `yaml:"version" toml:"version" json:"version"`
	Server  ServerConfig `yaml:"server" toml:"server" json:"server"`

	// Extensions captures all other top-level keys for extensibility.
	// The "logging" and "policies" sections are read from here.
	Extensions map[string]interface{} `yaml:",inline" toml:"-" json:"extensions,omitempty" jsonschema:"-"`

	// path is the file the configuration was loaded from, if any.
	path string
}

// ServerConfig describes the remote API and its push endpoint.
type ServerConfig struct {
	// URL is the base URL of the HTTP API.
	URL string `yaml:"url" toml:"url" json:"url" jsonschema:"description=Base URL of the HTTP API"`
	// PushURL overrides the push endpoint derived from URL.
	PushURL string `yaml:"push_url,omitempty" toml:"push_url,omitempty" json:"push_url,omitempty" jsonschema:"description=Websocket endpoint; derived from url when empty"`
	// RequestTimeout bounds a single remote call, e.g. "30s".
	RequestTimeout string `yaml:"request_timeout,omitempty" toml:"request_timeout,omitempty" json:"request_timeout,omitempty" jsonschema:"description=Timeout of a single remote call,pattern=^([0-9]+(ns|us|ms|s|m|h))+$"`
	// MaxFrameBytes bounds a single push frame.
	MaxFrameBytes int64 `yaml:"max_frame_bytes,omitempty" toml:"max_frame_bytes,omitempty" json:"max_frame_bytes,omitempty" jsonschema:"description=Largest accepted push frame in bytes,minimum=1"`
}

// Timeout returns the parsed request timeout.
func (s ServerConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(s.RequestTimeout)
	if err != nil {
		return 0
	}
	return d
}

// PolicyConfig overrides the concurrency policy of one command kind.
type PolicyConfig struct {
	Policy string        `yaml:"policy"`
	Window time.Duration `yaml:"window"`
}

// Path returns the file the configuration was loaded from.
func (c *Config) Path() string {
	return c.path
}

// UnmarshalExtension decodes a custom extension section into target.
// A missing section leaves target untouched.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     target,
		TagName:    "yaml",
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}
	return nil
}

// Logging returns the logging section.
func (c *Config) Logging() (logging.Config, error) {
	var cfg logging.Config
	err := c.UnmarshalExtension("logging", &cfg)
	return cfg, err
}

// Policies returns the policy overrides keyed by command kind ("samples.create").
func (c *Config) Policies() (map[string]PolicyConfig, error) {
	policies := map[string]PolicyConfig{}
	if err := c.UnmarshalExtension("policies", &policies); err != nil {
		return nil, err
	}
	return policies, nil
}
