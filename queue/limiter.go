package queue

import (
	"sync"

	"golang.org/x/time/rate"
)

// LimitConfig defines dequeue-side throttling for the worker pool.
type LimitConfig struct {
	// MaxConcurrency limits how many jobs may run simultaneously across
	// the local worker pool. Zero means no limit beyond pool size.
	MaxConcurrency int

	// RateLimit is the maximum sustained jobs per second the pool may
	// start. Zero disables rate limiting.
	RateLimit float64

	// RateBurst is the burst size for the token-bucket rate limiter.
	// Defaults to 1 if RateLimit is set but RateBurst is zero.
	RateBurst int
}

// ownerState tracks runtime state for a single submitting user.
type ownerState struct {
	limiter        *rate.Limiter
	maxConcurrency int
	active         int
}

// Limiter throttles job execution pool-wide and per owner, so one
// workspace member flooding the queue cannot starve everyone else.
// It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	config  LimitConfig
	limiter *rate.Limiter
	active  int
	owners  map[string]*ownerState
}

// NewLimiter creates a Limiter with the given pool-wide configuration.
func NewLimiter(cfg LimitConfig) *Limiter {
	l := &Limiter{
		config: cfg,
		owners: make(map[string]*ownerState),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return l
}

// SetOwnerLimit configures throttling for a specific submitting user.
// Calling this again for the same owner replaces the previous
// configuration, preserving the active count.
func (l *Limiter) SetOwnerLimit(ownerID string, cfg LimitConfig) {
	l.mu.Lock()
	defer l.mu.Unlock()

	os := &ownerState{maxConcurrency: cfg.MaxConcurrency}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		os.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	if existing := l.owners[ownerID]; existing != nil {
		os.active = existing.active
	}
	l.owners[ownerID] = os
}

// Acquire checks rate and concurrency limits for the pool and the given
// owner. If the job may proceed it increments the active counters and
// returns true. The caller MUST call Release when the job settles.
func (l *Limiter) Acquire(ownerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.limiter != nil && !l.limiter.Allow() {
		return false
	}
	if l.config.MaxConcurrency > 0 && l.active >= l.config.MaxConcurrency {
		return false
	}

	if ownerID != "" {
		if os := l.owners[ownerID]; os != nil {
			if os.limiter != nil && !os.limiter.Allow() {
				return false
			}
			if os.maxConcurrency > 0 && os.active >= os.maxConcurrency {
				return false
			}
			os.active++
		}
	}

	l.active++
	return true
}

// Release decrements the active counters for the pool and owner.
func (l *Limiter) Release(ownerID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active > 0 {
		l.active--
	}
	if ownerID != "" {
		if os := l.owners[ownerID]; os != nil && os.active > 0 {
			os.active--
		}
	}
}

// ActiveCount returns the current number of running jobs.
func (l *Limiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// OwnerActiveCount returns the current number of running jobs for an
// owner with a configured limit.
func (l *Limiter) OwnerActiveCount(ownerID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if os := l.owners[ownerID]; os != nil {
		return os.active
	}
	return 0
}
