// Package backoff implements the pure retry/delay decision used by the
// retrying completion client. It holds no clocks and performs no sleeping;
// callers interpret the returned decision.
package backoff

import (
	"math/rand"
	"time"

	"relaybot/internal/types"
)

const (
	// DefaultMaxAttempts bounds the total number of tries per call.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the backoff base for the exponential schedule.
	DefaultBaseDelay = 2 * time.Second
)

// Decision is the outcome of consulting the policy after a failed attempt.
type Decision struct {
	Retry bool
	Delay time.Duration
}

// Stop is the no-retry decision.
var Stop = Decision{}

// Policy maps (error kind, attempt index) to a retry decision.
// The zero value is not usable; construct with New.
type Policy struct {
	maxAttempts int
	base        time.Duration
	jitter      func() time.Duration
}

// New builds a policy with the given retry budget and base delay.
// Non-positive arguments fall back to the defaults.
func New(maxAttempts int, base time.Duration) Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return Policy{
		maxAttempts: maxAttempts,
		base:        base,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(time.Second)))
		},
	}
}

// MaxAttempts returns the configured retry budget.
func (p Policy) MaxAttempts() int { return p.maxAttempts }

// Decide returns the retry decision for a failure of the given kind on the
// given 0-based attempt index. Fatal failures always stop. Retryable kinds
// stop once the budget is spent; otherwise the delay grows as base*2^attempt,
// with added jitter for rate limits so concurrent callers don't retry in
// lockstep.
func (p Policy) Decide(kind types.ErrorKind, attempt int) Decision {
	if kind == types.KindFatal {
		return Stop
	}
	if attempt >= p.maxAttempts-1 {
		return Stop
	}
	delay := p.base * (1 << uint(attempt))
	if kind == types.KindRateLimited {
		delay += p.jitter()
	}
	return Decision{Retry: true, Delay: delay}
}
