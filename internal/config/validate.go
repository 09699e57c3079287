package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.MaxMessageSize < 1 {
		return errors.New("max_message_size must be >= 1")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level: %q", c.LogLevel)
	}

	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}

	return nil
}
