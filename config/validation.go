package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/grovetools/statesync/errors"
)

const (
	DefaultVersion        = "1"
	DefaultRequestTimeout = "30s"
	DefaultMaxFrameBytes  = 4 << 20
)

// SetDefaults fills unset values.
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Server.RequestTimeout == "" {
		c.Server.RequestTimeout = DefaultRequestTimeout
	}
	if c.Server.MaxFrameBytes == 0 {
		c.Server.MaxFrameBytes = DefaultMaxFrameBytes
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.ConfigInvalid("server.url is required")
	}
	if err := validateURL("server.url", c.Server.URL, "http", "https"); err != nil {
		return err
	}
	if c.Server.PushURL != "" {
		if err := validateURL("server.push_url", c.Server.PushURL, "ws", "wss"); err != nil {
			return err
		}
	}

	d, err := time.ParseDuration(c.Server.RequestTimeout)
	if err != nil || d <= 0 {
		return errors.ConfigInvalid(fmt.Sprintf("server.request_timeout %q is not a positive duration", c.Server.RequestTimeout))
	}
	if c.Server.MaxFrameBytes < 0 {
		return errors.ConfigInvalid("server.max_frame_bytes must be positive")
	}

	if _, err := c.Logging(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid logging section")
	}
	if _, err := c.Policies(); err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid policies section")
	}
	return nil
}

func validateURL(field, raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeConfigInvalid, fmt.Sprintf("%s is not a valid URL", field))
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return errors.ConfigInvalid(fmt.Sprintf("%s must be an absolute %v URL, got %q", field, schemes, raw))
}
