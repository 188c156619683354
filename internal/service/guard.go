package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/newhook/plclog/internal/logging"
	"github.com/newhook/plclog/internal/model"
)

// Policy bounds how calls to an external service are made.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles per attempt
	// up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// RatePerSecond limits call starts; zero means unlimited.
	RatePerSecond float64
	Burst         int
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		Backoff:     200 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
		Timeout:     30 * time.Second,
		Burst:       1,
	}
}

// Guard applies a Policy to calls. It is safe for concurrent use.
type Guard struct {
	policy  Policy
	limiter *rate.Limiter

	// sleep waits between attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGuard returns a guard enforcing p.
func NewGuard(p Policy) *Guard {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	limit := rate.Inf
	if p.RatePerSecond > 0 {
		limit = rate.Limit(p.RatePerSecond)
	}
	burst := p.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Guard{
		policy:  p,
		limiter: rate.NewLimiter(limit, burst),
		sleep:   sleepContext,
	}
}

// Do runs fn under the guard's policy. Transient failures are retried with
// backoff; once attempts run out the last failure is returned wrapped in
// ErrUnavailable. Any other failure is returned as is. If ctx carries a stop
// signal (see WithStop) that fires, no further attempt is started and
// ErrStopped is returned.
func (g *Guard) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	waitCtx, cancel := untilStopped(ctx)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= g.policy.MaxAttempts; attempt++ {
		if Stopped(ctx) {
			return g.stopped(op, attempt-1, lastErr)
		}
		if err := g.limiter.Wait(waitCtx); err != nil {
			if Stopped(ctx) {
				return g.stopped(op, attempt-1, lastErr)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
		if Stopped(ctx) {
			return g.stopped(op, attempt-1, lastErr)
		}

		err := g.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		// A per-attempt deadline is a transient failure; the caller's own
		// cancellation is not.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil && !IsTransient(err) {
			err = Transient(op, err)
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err

		if attempt == g.policy.MaxAttempts {
			break
		}
		delay := g.backoff(attempt)
		logging.Warn("Retrying service call with backoff",
			"op", op, "attempt", attempt, "max_attempts", g.policy.MaxAttempts,
			"delay", delay, "error", err)
		if err := g.sleep(waitCtx, delay); err != nil {
			if Stopped(ctx) {
				return g.stopped(op, attempt, lastErr)
			}
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	logging.Warn("Service call exhausted retries", "op", op, "attempts", g.policy.MaxAttempts, "error", lastErr)
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrUnavailable, op, g.policy.MaxAttempts, lastErr)
}

func (g *Guard) stopped(op string, attempts int, lastErr error) error {
	logging.Info("Service call stopped", "op", op, "attempts", attempts)
	if lastErr == nil {
		return fmt.Errorf("%s: %w", op, ErrStopped)
	}
	return fmt.Errorf("%w: %s after %d attempts: %w", ErrStopped, op, attempts, lastErr)
}

func (g *Guard) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.policy.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, g.policy.Timeout)
	defer cancel()
	return fn(attemptCtx)
}

func (g *Guard) backoff(attempt int) time.Duration {
	d := g.policy.Backoff << (attempt - 1)
	if g.policy.MaxBackoff > 0 && (d > g.policy.MaxBackoff || d <= 0) {
		d = g.policy.MaxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Classifier wraps next so every call runs under the guard.
func (g *Guard) Classifier(next Classifier) Classifier {
	return ClassifierFunc(func(ctx context.Context, result *model.ParseResult) (model.Classification, error) {
		var out model.Classification
		err := g.Do(ctx, "classify", func(ctx context.Context) error {
			cls, err := next.Classify(ctx, result)
			if err != nil {
				return err
			}
			out = cls
			return nil
		})
		return out, err
	})
}

// Suggester wraps next so every call runs under the guard.
func (g *Guard) Suggester(next Suggester) Suggester {
	return SuggesterFunc(func(ctx context.Context, result *model.ParseResult, cls model.Classification) ([]model.Suggestion, error) {
		var out []model.Suggestion
		err := g.Do(ctx, "suggest", func(ctx context.Context) error {
			s, err := next.Suggest(ctx, result, cls)
			if err != nil {
				return err
			}
			out = s
			return nil
		})
		return out, err
	})
}
