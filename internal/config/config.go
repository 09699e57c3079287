// Package config loads the chat relay configuration from defaults, an
// optional YAML file and the process environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SocketPath is the fixed HTTP path prefix of the WebSocket endpoint.
const SocketPath = "/socket/"

// Config holds the server settings.
type Config struct {
	Port            int
	AllowedOrigins  []string
	MaxMessageSize  int64
	LogLevel        string
	ShutdownTimeout time.Duration
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SlogLevel maps LogLevel onto a slog level. Unknown values map to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns a Config populated with default values for all settings.
func Default() *Config {
	return &Config{
		Port:            DefaultPort,
		AllowedOrigins:  []string{DefaultClientURL},
		MaxMessageSize:  DefaultMaxMessageSize,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Load reads the configuration. When path is empty a config.yaml in the
// working directory or ./configs is used if present; a missing file is not an
// error. Environment variables always win over file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnvVars(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	cfg := &Config{
		Port:            v.GetInt(keyPort),
		AllowedOrigins:  parseOrigins(v.GetStringSlice(keyClientURL)),
		MaxMessageSize:  v.GetInt64(keyMaxMessageSize),
		LogLevel:        v.GetString(keyLogLevel),
		ShutdownTimeout: v.GetDuration(keyShutdownTimeout),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// parseOrigins flattens comma-separated entries so CLIENT_URL may carry a
// list in a single variable.
func parseOrigins(values []string) []string {
	var origins []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
