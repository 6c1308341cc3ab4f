// Package retry repeats calls against remote slot stores with exponential
// backoff.
//
// Only failures of the remote collaborator are repeated. Tree-level codes
// such as QUOTA_EXCEEDED or FILE_NOT_FOUND are deterministic and returned at
// once, and an INVARIANT error always aborts.
package retry

import (
	"context"
	stderr "errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/objectfs/jailstore/pkg/errors"
)

// Policy describes how often and how patiently a call is repeated. Zero
// fields take the package defaults.
type Policy struct {
	// MaxAttempts counts the first call.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Jitter spreads every delay by up to 20% in either direction.
	Jitter bool

	// OnRetry runs before each wait.
	OnRetry func(attempt int, err error, delay time.Duration)
}

const (
	defaultAttempts     = 3
	defaultInitialDelay = 200 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
)

// Retryable reports whether err is worth another attempt. Store errors are
// repeated when they are marked retryable and not fatal; foreign errors
// count as UNKNOWN. Cancellation and expired deadlines never are.
func Retryable(err error) bool {
	if err == nil || stderr.Is(err, context.Canceled) || stderr.Is(err, context.DeadlineExceeded) {
		return false
	}

	var storeErr *errors.StoreError
	if stderr.As(err, &storeErr) {
		return storeErr.Retryable && !storeErr.Fatal
	}
	return errors.IsRetryableByDefault(errors.ErrCodeUnknown)
}

// Do calls fn until it succeeds, fails with an error Retryable rejects, or
// runs out of attempts. Errors that exhausted the attempts come back wrapped,
// so CodeOf still reports the code of the last failure.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	p = p.withDefaults()

	delay := p.InitialDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !Retryable(err) {
			return err
		}
		if attempt >= p.MaxAttempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		wait := p.spread(delay)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, stderr.Join(ctx.Err(), err))
		case <-timer.C:
		}

		delay = min(2*delay, p.MaxDelay)
	}
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultAttempts
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = defaultInitialDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = max(defaultMaxDelay, p.InitialDelay)
	}
	return p
}

func (p Policy) spread(delay time.Duration) time.Duration {
	if !p.Jitter {
		return delay
	}
	return delay + time.Duration(float64(delay)*0.2*(2*rand.Float64()-1))
}
