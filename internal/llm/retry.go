package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"relaybot/internal/backoff"
	"relaybot/internal/types"
)

// Retrier wraps a Client with the backoff policy. Each Call makes up to the
// policy's attempt budget of tries, sleeping the decided delay between them
// without blocking other goroutines. Retry decisions never escape Call; only
// terminal outcomes do.
type Retrier struct {
	client         Client
	policy         backoff.Policy
	attemptTimeout time.Duration
	logger         *zap.Logger

	// sleep is swappable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier builds a retrier. attemptTimeout bounds each individual try;
// non-positive disables the per-attempt deadline.
func NewRetrier(client Client, policy backoff.Policy, attemptTimeout time.Duration, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{
		client:         client,
		policy:         policy,
		attemptTimeout: attemptTimeout,
		logger:         logger,
		sleep:          sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Retrier) attempt(ctx context.Context, req Request) (Response, error) {
	if r.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()
	}
	return r.client.Complete(ctx, req)
}

// Call invokes the completion service with retries. Fatal errors surface
// after a single attempt; a spent retry budget surfaces as *ExhaustedError
// wrapping the last attempt's error. Cancelling ctx aborts both in-flight
// attempts and backoff sleeps.
func (r *Retrier) Call(ctx context.Context, req Request) (Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := r.attempt(ctx, req)
		if err == nil {
			if attempt > 0 {
				r.logger.Info("completion succeeded after retries", zap.Int("attempts", attempt+1))
			}
			return resp, nil
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		kind := Classify(err)
		decision := r.policy.Decide(kind, attempt)
		if !decision.Retry {
			if kind == types.KindFatal {
				r.logger.Error("completion failed with non-retryable error", zap.Error(err))
				return Response{}, err
			}
			r.logger.Error("completion retries exhausted",
				zap.Int("attempts", attempt+1),
				zap.Stringer("kind", kind),
				zap.Error(err))
			return Response{}, &types.ExhaustedError{Attempts: attempt + 1, Last: err}
		}

		r.logger.Warn("completion attempt failed, backing off",
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", r.policy.MaxAttempts()),
			zap.Stringer("kind", kind),
			zap.Duration("delay", decision.Delay),
			zap.Error(err))
		if err := r.sleep(ctx, decision.Delay); err != nil {
			return Response{}, err
		}
	}
}
