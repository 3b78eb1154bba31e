// Package webhook holds delivery-side policies shared by the API and the
// webhook runner: retry scheduling, payload signing, and destination checks.
package webhook

import (
	"errors"
	"time"
)

// Default retry policy values.
const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 30 * time.Second
	DefaultMaxDelay    = time.Hour
)

// ErrInvalidRetryPolicy indicates a retry policy was constructed with non-positive values.
var ErrInvalidRetryPolicy = errors.New("retry policy values must be positive")

// RetryPolicy decides when an undelivered webhook may be attempted again.
// Delays grow exponentially from the base and are capped.
type RetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewRetryPolicy constructs a RetryPolicy.
func NewRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) (*RetryPolicy, error) {
	if maxAttempts <= 0 || baseDelay <= 0 || maxDelay <= 0 {
		return nil, ErrInvalidRetryPolicy
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &RetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}, nil
}

// DefaultRetryPolicy returns the standard delivery policy.
func DefaultRetryPolicy() *RetryPolicy {
	p, _ := NewRetryPolicy(DefaultMaxAttempts, DefaultBaseDelay, DefaultMaxDelay)
	return p
}

// MaxAttempts returns the attempt budget.
func (p *RetryPolicy) MaxAttempts() int {
	if p == nil {
		return DefaultMaxAttempts
	}
	return p.maxAttempts
}

// Delay returns the wait before the given attempt number (1-based). The first
// attempt has no delay.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if p == nil || attempt <= 1 {
		return 0
	}
	delay := p.baseDelay
	for i := 2; i < attempt; i++ {
		delay *= 2
		if delay >= p.maxDelay {
			return p.maxDelay
		}
	}
	if delay > p.maxDelay {
		return p.maxDelay
	}
	return delay
}

// NextAttemptAt returns when a delivery that just failed its attemptCount'th
// attempt should be retried, or false once the budget is spent.
func (p *RetryPolicy) NextAttemptAt(now time.Time, attemptCount int) (time.Time, bool) {
	if attemptCount >= p.MaxAttempts() {
		return time.Time{}, false
	}
	return now.Add(p.Delay(attemptCount + 1)), true
}
