package huddle

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds configuration for the Engine.
type Config struct {
	// Concurrency is the maximum number of jobs processed concurrently.
	Concurrency int `env:"HUDDLE_CONCURRENCY" envDefault:"10"`

	// PollInterval is how often idle workers poll the queue.
	PollInterval time.Duration `env:"HUDDLE_POLL_INTERVAL" envDefault:"1s"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `env:"HUDDLE_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// MaxRetries is the default retry ceiling for submitted jobs.
	MaxRetries int `env:"HUDDLE_MAX_RETRIES" envDefault:"3"`

	// BackoffBase is the initial delay of the default exponential backoff.
	BackoffBase time.Duration `env:"HUDDLE_BACKOFF_BASE" envDefault:"2s"`

	// BusChannel is the shared cross-process channel presence events are
	// mirrored on. All processes of a deployment must agree on it.
	BusChannel string `env:"HUDDLE_BUS_CHANNEL" envDefault:"workspace:events"`

	// RedisAddr and RedisPassword configure the Redis transport used by
	// the queue, the bus, and the Redis job store. Empty means the caller
	// supplies its own client.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	// PostgresDSN configures the Postgres job store. Empty means unused.
	PostgresDSN string `env:"POSTGRES_DSN"`

	// JWTSigningKey verifies bearer credentials on the realtime channel.
	JWTSigningKey string `env:"JWT_SIGNING_KEY"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     10,
		PollInterval:    1 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxRetries:      3,
		BackoffBase:     2 * time.Second,
		BusChannel:      "workspace:events",
	}
}

// LoadConfig reads configuration from the environment, falling back to
// the same defaults as DefaultConfig.
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("huddle: load config: %w", err)
	}
	return c, nil
}
