// Package backoff retries rate-limited calls with exponentially growing delays.
// Every network caller (expansion, search, availability probes) goes through Do.
package backoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/fetchr/internal/domain"
	"github.com/kailas-cloud/fetchr/internal/metrics"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultMaxRetries   = 3
	DefaultInitialDelay = time.Second
	DefaultMultiplier   = 2.0
)

// Notifier receives a human-readable notice before each backoff sleep.
type Notifier func(message string)

// Config holds executor settings.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	Logger       *zap.Logger
	Notify       Notifier
}

// Executor runs operations and retries them on rate-limit failures.
// Safe for concurrent use; it holds no per-call state.
type Executor struct {
	maxRetries   int
	initialDelay time.Duration
	multiplier   float64
	logger       *zap.Logger
	notify       Notifier
	sleep        func(ctx context.Context, d time.Duration) error
}

// New creates an executor. An empty delay falls back to 1s and an empty
// multiplier to x2; MaxRetries is taken as is (0 disables retries).
func New(cfg Config) *Executor {
	e := &Executor{
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.InitialDelay,
		multiplier:   cfg.Multiplier,
		logger:       cfg.Logger,
		notify:       cfg.Notify,
		sleep:        sleepContext,
	}
	if e.maxRetries < 0 {
		e.maxRetries = 0
	}
	if e.initialDelay <= 0 {
		e.initialDelay = DefaultInitialDelay
	}
	if e.multiplier < 1 {
		e.multiplier = DefaultMultiplier
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// MaxRetries returns the retry budget (attempts beyond the first call).
func (e *Executor) MaxRetries() int { return e.maxRetries }

// Do runs fn, retrying while it fails with a rate-limit signal and the retry
// budget is not spent. The returned error never carries the MarkRateLimited tag.
// A nil executor runs fn exactly once.
func Do[T any](ctx context.Context, e *Executor, service string, fn func(ctx context.Context) (T, error)) (T, error) {
	if e == nil {
		v, err := fn(ctx)
		return v, strip(err)
	}

	var zero T
	delay := e.initialDelay
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsRateLimited(err) || attempt >= e.maxRetries {
			return zero, strip(err)
		}

		e.logger.Warn("Rate limited, backing off",
			zap.String("service", service),
			zap.Int("retry", attempt+1),
			zap.Int("max_retries", e.maxRetries),
			zap.Duration("delay", delay),
			zap.Error(strip(err)),
		)
		if e.notify != nil {
			e.notify(fmt.Sprintf("Rate limited by %s, retrying in %s...", service, delay))
		}
		metrics.BackoffRetriesTotal.WithLabelValues(service).Inc()

		if err := e.sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("backoff wait: %w", err)
		}
		delay = time.Duration(float64(delay) * e.multiplier)
	}
}

// IsRateLimited reports whether err carries a rate-limit signal: an explicit
// MarkRateLimited tag, or an error in the chain exposing HTTP status 429 or 503.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var tagged *rateLimitError
	if errors.As(err, &tagged) {
		return true
	}
	var se statusError
	if errors.As(err, &se) {
		return domain.IsRateLimitStatus(se.HTTPStatus())
	}
	return false
}

// MarkRateLimited tags err as retryable. The tag must be the outermost wrapper;
// Do removes it before returning.
func MarkRateLimited(err error) error {
	if err == nil {
		return nil
	}
	return &rateLimitError{err: err}
}

type statusError interface {
	HTTPStatus() int
}

type rateLimitError struct {
	err error
}

func (e *rateLimitError) Error() string { return e.err.Error() }
func (e *rateLimitError) Unwrap() error { return e.err }

func strip(err error) error {
	if rl, ok := err.(*rateLimitError); ok { //nolint:errorlint // only the outermost tag is stripped
		return rl.err
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
