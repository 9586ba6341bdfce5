// Package retry repeats ledger store operations that failed transiently.
// A reconciliation converges when re-run, so repeating the whole operation
// after a partial failure is safe.
package retry

import (
	"context"
	"math/rand"
	"time"

	"github.com/alem-hub/progress-ranking/internal/domain/shared"
)

// Config holds retry configuration.
type Config struct {
	// MaxAttempts counts the first attempt. Default: 3
	MaxAttempts int

	// InitialDelay is the wait before the first retry; it doubles after
	// every further failure. Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the wait between attempts. Default: 2s
	MaxDelay time.Duration

	// RetryIf classifies errors. Default: shared.IsRetryable, so only
	// unavailable stores, timeouts and lock contention are repeated.
	RetryIf func(error) bool

	// OnRetry is called before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)

	// jitter spreads waits by up to ±jitter of the base delay.
	jitter float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		RetryIf:      shared.IsRetryable,
		jitter:       0.1,
	}
}

// Option is a functional option for configuring retries.
type Option func(*Config)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxAttempts = n
		}
	}
}

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InitialDelay = d
		}
	}
}

// WithRetryIf replaces the error classifier. Nil keeps the current one.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) {
		if fn != nil {
			c.RetryIf = fn
		}
	}
}

// WithOnRetry sets a callback function called before each retry.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) {
		c.OnRetry = fn
	}
}

// Retrier runs an operation until it succeeds, fails permanently or runs
// out of attempts.
type Retrier struct {
	config Config
}

// New creates a new Retrier with the given options.
func New(opts ...Option) *Retrier {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.MaxDelay < config.InitialDelay {
		config.MaxDelay = config.InitialDelay
	}
	return &Retrier{config: config}
}

// DatabaseRetrier is tuned for a ledger store round trip: short first wait,
// one second cap. Extra options override the defaults.
func DatabaseRetrier(opts ...Option) *Retrier {
	base := []Option{
		WithMaxAttempts(3),
		WithInitialDelay(50 * time.Millisecond),
		func(c *Config) {
			c.MaxDelay = time.Second
			c.jitter = 0.05
		},
	}
	return New(append(base, opts...)...)
}

// Do runs operation and returns nil or the last error it produced. A
// context canceled before the first attempt returns the context error.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = operation(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt >= r.config.MaxAttempts || !r.config.RetryIf(lastErr) {
			return lastErr
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := r.config.InitialDelay << (attempt - 1)
	if d <= 0 || d > r.config.MaxDelay {
		d = r.config.MaxDelay
	}
	if r.config.jitter > 0 {
		d += time.Duration(float64(d) * r.config.jitter * (rand.Float64()*2 - 1))
	}
	if d < 0 {
		d = 0
	}
	return d
}
