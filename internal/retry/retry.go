package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Permanent wraps an error that must not be retried (bad request, rate
// limit exhaustion).
type Permanent struct {
	Err error
}

func (p Permanent) Error() string { return p.Err.Error() }
func (p Permanent) Unwrap() error { return p.Err }

type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // doubles the delay each attempt
}

// Do runs fn until it succeeds, returns a Permanent error, the attempts
// run out, or the context is done.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var perm Permanent
		if errors.As(err, &perm) {
			return perm.Err
		}
		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, err)
		}

		delay := cfg.Delay
		if cfg.Backoff {
			delay = time.Duration(1<<(attempt-1)) * cfg.Delay
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return lastErr
}
