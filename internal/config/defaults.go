package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for optional configuration fields.
const (
	DefaultPort            = 8081
	DefaultClientURL       = "http://localhost:3000"
	DefaultMaxMessageSize  = 4096
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 10 * time.Second
)

const (
	keyPort            = "port"
	keyClientURL       = "client_url"
	keyMaxMessageSize  = "max_message_size"
	keyLogLevel        = "log_level"
	keyShutdownTimeout = "shutdown_timeout"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyPort, DefaultPort)
	v.SetDefault(keyClientURL, []string{DefaultClientURL})
	v.SetDefault(keyMaxMessageSize, DefaultMaxMessageSize)
	v.SetDefault(keyLogLevel, DefaultLogLevel)
	v.SetDefault(keyShutdownTimeout, DefaultShutdownTimeout)
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv(keyPort, "PORT")
	_ = v.BindEnv(keyClientURL, "CLIENT_URL")
	_ = v.BindEnv(keyMaxMessageSize, "MAX_MESSAGE_SIZE")
	_ = v.BindEnv(keyLogLevel, "LOG_LEVEL")
	_ = v.BindEnv(keyShutdownTimeout, "SHUTDOWN_TIMEOUT")
}
