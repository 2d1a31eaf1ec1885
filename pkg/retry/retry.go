// Package retry provides retry functionality with exponential backoff and jitter.
// Used for broker publishes and startup connections.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// PermanentError marks an error that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps an error to indicate it should not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks if an error is permanent.
func IsPermanent(err error) bool {
	var permanentErr *PermanentError
	return errors.As(err, &permanentErr)
}

// Config holds retry configuration.
type Config struct {
	// MaxAttempts is the maximum number of attempts, first one included.
	MaxAttempts int

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Multiplier grows the delay after each attempt.
	Multiplier float64

	// JitterFactor adds +/- randomness to delays (0.0 to 1.0).
	JitterFactor float64

	// RetryIf decides whether an error is retried. Nil retries everything
	// that is not Permanent.
	RetryIf func(error) bool

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
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

// WithMaxDelay sets the maximum delay between retries.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.MaxDelay = d
		}
	}
}

// WithJitter sets the jitter factor.
func WithJitter(j float64) Option {
	return func(c *Config) {
		if j >= 0 && j <= 1.0 {
			c.JitterFactor = j
		}
	}
}

// WithRetryIf sets the retry predicate.
func WithRetryIf(fn func(error) bool) Option {
	return func(c *Config) { c.RetryIf = fn }
}

// WithOnRetry sets a callback invoked before each retry.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(c *Config) { c.OnRetry = fn }
}

// Retrier runs operations with backoff.
type Retrier struct {
	config Config
}

// New creates a new Retrier with the given options.
func New(opts ...Option) *Retrier {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return &Retrier{config: config}
}

// Do executes the operation until it succeeds, returns a non-retryable error,
// runs out of attempts or ctx is done. The last error is returned unwrapped
// from PermanentError.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return errors.Unwrap(err)
		}
		if r.config.RetryIf != nil && !r.config.RetryIf(err) {
			return err
		}
		if attempt == r.config.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}

	return lastErr
}

// delay computes initialDelay * multiplier^(attempt-1), capped and jittered.
func (r *Retrier) delay(attempt int) time.Duration {
	base := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if base > float64(r.config.MaxDelay) {
		base = float64(r.config.MaxDelay)
	}
	if r.config.JitterFactor > 0 {
		base += base * r.config.JitterFactor * (rand.Float64()*2 - 1)
	}
	if base < 0 {
		base = 0
	}
	return time.Duration(base)
}

// Do is a convenience function that creates a Retrier and executes the operation.
func Do(ctx context.Context, operation func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, operation)
}

// DoWithData is a helper for operations that return data.
func DoWithData[T any](ctx context.Context, operation func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var result T
	err := New(opts...).Do(ctx, func(ctx context.Context) error {
		var opErr error
		result, opErr = operation(ctx)
		return opErr
	})
	return result, err
}

// PublishRetrier is tuned for broker publishes: short, few attempts, so a
// request is never held long by an unavailable broker.
func PublishRetrier(maxAttempts int, opts ...Option) *Retrier {
	return New(append([]Option{
		WithMaxAttempts(maxAttempts),
		WithInitialDelay(50 * time.Millisecond),
		WithMaxDelay(500 * time.Millisecond),
		WithJitter(0.2),
	}, opts...)...)
}

// StartupRetrier is used while waiting for PostgreSQL, Redis or NATS at boot.
func StartupRetrier() *Retrier {
	return New(
		WithMaxAttempts(10),
		WithInitialDelay(250*time.Millisecond),
		WithMaxDelay(5*time.Second),
	)
}
