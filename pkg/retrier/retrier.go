package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultInitialInterval     = 1 * time.Second
	defaultMaxInterval         = 30 * time.Second
	defaultMultiplier          = 2.0
	defaultRateLimitMultiplier = 3.0
	defaultMaxRetries          = 2
	defaultJitter              = 0.1
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier implements exponential backoff with jitter.
// Waits after a rate-limited failure are stretched by the rate limit multiplier.
type Retrier struct {
	initialInterval     time.Duration
	maxInterval         time.Duration
	multiplier          float64
	rateLimitMultiplier float64
	maxRetries          int
	jitter              float64
	isRateLimited       func(error) bool
	sleep               SleepFunc
}

// Option defines a function to configure the Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the initial retry interval.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.initialInterval = d
	}
}

// WithMaxInterval sets the maximum retry interval.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.maxInterval = d
	}
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(r *Retrier) {
		r.multiplier = m
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) {
		r.maxRetries = n
	}
}

// WithMaxAttempts sets the total number of attempts, the first one included.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		r.maxRetries = max(n-1, 0)
	}
}

// WithJitter sets the jitter factor (0.0 to 1.0).
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		r.jitter = j
	}
}

// WithRateLimit marks errors accepted by isRateLimited as throttling responses
// and stretches the next wait by multiplier.
func WithRateLimit(isRateLimited func(error) bool, multiplier float64) Option {
	return func(r *Retrier) {
		r.isRateLimited = isRateLimited
		r.rateLimitMultiplier = multiplier
	}
}

// WithSleep replaces the wait between attempts.
func WithSleep(sleep SleepFunc) Option {
	return func(r *Retrier) {
		r.sleep = sleep
	}
}

// New creates a new Retrier with default values and optional overrides.
// By default it makes three attempts.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval:     defaultInitialInterval,
		maxInterval:         defaultMaxInterval,
		multiplier:          defaultMultiplier,
		rateLimitMultiplier: defaultRateLimitMultiplier,
		maxRetries:          defaultMaxRetries,
		jitter:              defaultJitter,
		sleep:               contextSleep,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Do executes the given function with retries.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	interval := r.initialInterval

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 {
			wait := interval
			if r.isRateLimited != nil && r.isRateLimited(err) {
				wait = time.Duration(float64(wait) * r.rateLimitMultiplier)
			}

			jitter := (rand.Float64()*2 - 1) * r.jitter * float64(wait)
			sleepDuration := time.Duration(float64(wait) + jitter)

			if sleepDuration < 0 {
				sleepDuration = 0
			}

			if sleepErr := r.sleep(ctx, sleepDuration); sleepErr != nil {
				return sleepErr
			}

			interval = time.Duration(float64(interval) * r.multiplier)
			if interval > r.maxInterval {
				interval = r.maxInterval
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
	}

	return err
}

// DoWithData executes the given function with retries and returns a value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}

func contextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
