// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the chat service.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"

	"github.com/Tyrowin/chatroom/internal/chat"
	"github.com/Tyrowin/chatroom/internal/store"
)

var validate = validator.New()

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `validate:"gt=0"`
	RefillInterval time.Duration `validate:"gt=0"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string   `validate:"required"`
	AllowedOrigins  []string
	MaxMessageSize  int64 `validate:"gt=0"`
	SendBufferSize  int   `validate:"gt=0"`
	RateLimit       RateLimitConfig
	TypingTimeout   time.Duration `validate:"gt=0"`
	StoreDriver     string        `validate:"oneof=badger postgres"`
	BadgerPath      string        `validate:"required_if=StoreDriver badger"`
	DatabaseURL     string        `validate:"required_if=StoreDriver postgres"`
	LogLevel        string        `validate:"oneof=DEBUG INFO WARN ERROR"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
}

// envConfig mirrors Config as flat environment variables.
type envConfig struct {
	Port            string        `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=512"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=5"`
	RateLimitRefill time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
	TypingTimeout   time.Duration `env:"TYPING_TIMEOUT,default=2s"`
	StoreDriver     string        `env:"STORE_DRIVER,default=badger"`
	BadgerPath      string        `env:"BADGER_FILEPATH,default=./data/chat"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 512,
		SendBufferSize: 256,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		TypingTimeout:   chat.DefaultTypingWindow,
		StoreDriver:     store.DriverBadger,
		BadgerPath:      "./data/chat",
		LogLevel:        "INFO",
		ShutdownTimeout: 10 * time.Second,
	}
}

// sanitizeConfig replaces unusable values with defaults so a partially
// filled Config is still safe to run with.
func sanitizeConfig(cfg Config) Config {
	defaults := defaultConfig()

	if cfg.Port == "" {
		cfg.Port = defaults.Port
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaults.MaxMessageSize
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaults.SendBufferSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaults.RateLimit.Burst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaults.RateLimit.RefillInterval
	}

	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = defaults.TypingTimeout
	}

	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaults.ShutdownTimeout
	}

	cfg.LogLevel = strings.ToUpper(strings.TrimSpace(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// Validate checks the configuration after sanitizing it.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// StoreOptions returns the message store selection derived from the config.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      c.StoreDriver,
		BadgerPath:  c.BadgerPath,
		DatabaseURL: c.DatabaseURL,
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables fall back to their defaults.
func NewConfigFromEnv() (*Config, error) {
	var raw envConfig
	if _, err := env.UnmarshalFromEnviron(&raw); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg := sanitizeConfig(Config{
		Port:           raw.Port,
		AllowedOrigins: parseOrigins(raw.AllowedOrigins),
		MaxMessageSize: raw.MaxMessageSize,
		SendBufferSize: raw.SendBufferSize,
		RateLimit: RateLimitConfig{
			Burst:          raw.RateLimitBurst,
			RefillInterval: raw.RateLimitRefill,
		},
		TypingTimeout:   raw.TypingTimeout,
		StoreDriver:     strings.ToLower(strings.TrimSpace(raw.StoreDriver)),
		BadgerPath:      raw.BadgerPath,
		DatabaseURL:     raw.DatabaseURL,
		LogLevel:        raw.LogLevel,
		ShutdownTimeout: raw.ShutdownTimeout,
	})
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
