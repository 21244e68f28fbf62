// Package config loads runtime settings for the chat server from the
// environment, applying defaults and validation before anything starts.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST,default=5" validate:"gte=0"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s" validate:"gte=0"`
}

// Config holds the server configuration.
type Config struct {
	Port           string `env:"SERVER_PORT,default=:8080" validate:"required"`
	RawOrigins     string `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	AllowedOrigins []string
	MaxMessageSize int `env:"MAX_MESSAGE_SIZE,default=4096" validate:"gte=0"`
	SendBufferSize int `env:"SEND_BUFFER_SIZE,default=256" validate:"gte=0"`
	RateLimit      RateLimitConfig

	HistorySize         int           `env:"HISTORY_SIZE,default=100" validate:"gte=0,lte=100000"`
	TypingTimeout       time.Duration `env:"TYPING_TIMEOUT,default=6s" validate:"gte=0"`
	TypingMode          string        `env:"TYPING_MODE,default=broadcast" validate:"oneof=broadcast direct"`
	TypingSweepInterval time.Duration `env:"TYPING_SWEEP_INTERVAL,default=2s" validate:"gte=0"`
	RingTimeout         time.Duration `env:"RING_TIMEOUT,default=45s" validate:"gte=0"`
	SingleSession       bool          `env:"SINGLE_SESSION,default=false"`

	StoreDriver       string `env:"STORE_DRIVER,default=memory" validate:"oneof=memory badger sqlite"`
	StorePath         string `env:"STORE_PATH,default=data" validate:"required_unless=StoreDriver memory"`
	ArchiveBufferSize int    `env:"ARCHIVE_BUFFER_SIZE,default=1024" validate:"gte=0"`

	LogLevel        string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gte=0"`
}

var validate = validator.New()

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Sanitize(Config{
		Port:           ":8080",
		AllowedOrigins: []string{"http://localhost:8080"},
		MaxMessageSize: 4096,
		SendBufferSize: 256,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		HistorySize:         100,
		TypingTimeout:       6 * time.Second,
		TypingMode:          "broadcast",
		TypingSweepInterval: 2 * time.Second,
		RingTimeout:         45 * time.Second,
		StoreDriver:         "memory",
		StorePath:           "data",
		ArchiveBufferSize:   1024,
		LogLevel:            "INFO",
		ShutdownTimeout:     10 * time.Second,
	})
}

// Load reads an optional .env file, then the process environment.
func Load(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("reading dotenv: %w", err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	cfg.AllowedOrigins = ParseOrigins(cfg.RawOrigins)

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return Sanitize(cfg), nil
}

// Sanitize replaces unusable values with defaults and normalizes origins.
func Sanitize(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 100
	}
	if cfg.TypingTimeout <= 0 {
		cfg.TypingTimeout = 6 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	cfg.LogLevel = strings.ToUpper(cfg.LogLevel)
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// ParseOrigins splits a comma separated origin list.
func ParseOrigins(origins string) []string {
	var out []string
	for _, part := range strings.Split(origins, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
