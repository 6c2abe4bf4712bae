package job

import "time"

// Options configures per-job behavior such as retries and timeout.
type Options struct {
	// MaxRetries is the maximum number of retry attempts before the job is
	// marked failed.
	MaxRetries int

	// Timeout is the maximum duration a handler may run before being
	// cancelled. Zero means no deadline.
	Timeout time.Duration
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries: DefaultMaxRetries,
		Timeout:    5 * time.Minute,
	}
}

// Option is a functional option for configuring a job definition.
type Option func(*Options)

// WithMaxRetries sets the maximum number of retry attempts.
func WithMaxRetries(n int) Option {
	return func(o *Options) {
		o.MaxRetries = n
	}
}

// WithTimeout sets the maximum execution duration for the job.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}
