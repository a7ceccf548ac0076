// Package liveness emits a periodic "still working" signal (e.g. a typing
// indicator) while a completion call is in flight.
package liveness

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultInterval matches how long a typical typing indicator stays visible.
const DefaultInterval = 8 * time.Second

// NotifyFunc pings the external channel. Errors are swallowed by the loop;
// a failed liveness ping must never fail the surrounding operation.
type NotifyFunc func(ctx context.Context) error

// Signaler runs a background loop invoking a notify callback until stopped.
type Signaler struct {
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

// Start fires notify immediately, then every interval, until Stop is called
// or ctx is cancelled. Non-positive interval falls back to DefaultInterval.
func Start(ctx context.Context, notify NotifyFunc, interval time.Duration, logger *zap.Logger) *Signaler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &Signaler{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			if err := notify(ctx); err != nil && ctx.Err() == nil {
				logger.Debug("liveness notify failed", zap.Error(err))
			}
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return s
}

// Stop cancels the loop and waits for it to exit. After Stop returns, no
// further notify invocation occurs. Safe to call more than once.
func (s *Signaler) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		<-s.done
	})
}
