// Package retry runs polling operations under a bounded backoff policy.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// ErrMaxRetriesExceeded wraps the last error once a policy runs out of attempts.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// Policy describes one backoff schedule.
type Policy struct {
	// Base is the first delay. Exponential policies double it per attempt.
	Base time.Duration
	// Max caps a single delay. Zero leaves it uncapped.
	Max time.Duration
	// JitterPercent randomizes each delay by up to this percentage.
	JitterPercent uint64
	// MaxRetries bounds retries after the first attempt.
	MaxRetries uint64
	// Constant keeps every delay at Base.
	Constant bool
}

// ExponentialPolicy doubles from base up to max with 10% jitter.
func ExponentialPolicy(base, max time.Duration, maxRetries uint64) Policy {
	return Policy{Base: base, Max: max, JitterPercent: 10, MaxRetries: maxRetries}
}

// ConstantPolicy waits interval between attempts.
func ConstantPolicy(interval time.Duration, maxRetries uint64) Policy {
	return Policy{Base: interval, MaxRetries: maxRetries, Constant: true}
}

// Validate checks the policy can build a backoff.
func (p Policy) Validate() error {
	if p.Base <= 0 {
		return fmt.Errorf("base delay must be positive, got %s", p.Base)
	}
	if p.Max != 0 && p.Max < p.Base {
		return fmt.Errorf("max delay %s below base %s", p.Max, p.Base)
	}
	if p.JitterPercent > 100 {
		return fmt.Errorf("jitter percent %d above 100", p.JitterPercent)
	}
	return nil
}

func (p Policy) backoff() (retry.Backoff, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	var (
		b   retry.Backoff
		err error
	)
	if p.Constant {
		b, err = retry.NewConstant(p.Base)
	} else {
		b, err = retry.NewExponential(p.Base)
	}
	if err != nil {
		return nil, err
	}
	if p.Max > 0 {
		b = retry.WithCappedDuration(p.Max, b)
	}
	if p.JitterPercent > 0 {
		b = retry.WithJitterPercent(p.JitterPercent, b)
	}
	return retry.WithMaxRetries(p.MaxRetries, b), nil
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

// Retryable marks err as worth another attempt. Unmarked errors stop the loop.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{err: err}
}

// Retrier runs operations under one policy.
type Retrier struct {
	policy Policy
	name   string
	logger *zap.Logger
}

// NewRetrier creates a retrier. It panics on an invalid policy, which is a
// programming error.
func NewRetrier(name string, policy Policy, logger *zap.Logger) *Retrier {
	if err := policy.Validate(); err != nil {
		panic(fmt.Sprintf("invalid retry policy for %s: %v", name, err))
	}
	return &Retrier{policy: policy, name: name, logger: logger}
}

// Do runs operation until it succeeds, returns an error not marked Retryable,
// the policy is exhausted, or ctx ends.
func (r *Retrier) Do(ctx context.Context, operation func(ctx context.Context) error) error {
	b, err := r.policy.backoff()
	if err != nil {
		return err
	}

	var attempt uint64
	var exhausted bool
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		opErr := operation(ctx)
		if opErr == nil {
			if attempt > 1 {
				r.logger.Info("Operation succeeded after retries",
					zap.String("operation", r.name),
					zap.Uint64("attempt", attempt))
			}
			return nil
		}
		var re *retryableError
		if errors.As(opErr, &re) {
			exhausted = attempt > r.policy.MaxRetries
			r.logger.Debug("Retrying operation",
				zap.String("operation", r.name),
				zap.Uint64("attempt", attempt),
				zap.Error(re.err))
			return retry.RetryableError(re.err)
		}
		return opErr
	})
	if err != nil && exhausted && ctx.Err() == nil {
		r.logger.Warn("Max retries exceeded",
			zap.String("operation", r.name),
			zap.Uint64("attempts", attempt),
			zap.Error(err))
		return fmt.Errorf("%s: %w: %w", r.name, ErrMaxRetriesExceeded, err)
	}
	return err
}

// Do is a package-level helper for one-off retries.
func Do(ctx context.Context, name string, policy Policy, logger *zap.Logger, operation func(ctx context.Context) error) error {
	return NewRetrier(name, policy, logger).Do(ctx, operation)
}
