// Package gate provides the admission gate bounding concurrent outbound
// completion calls. It is a channel semaphore with context-aware
// acquisition and visibility counters for logging.
package gate

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultSize matches the provider-side concurrency limit.
const DefaultSize = 3

// Gate limits the number of concurrently admitted operations.
type Gate struct {
	slots  chan struct{}
	logger *zap.Logger

	waiting  atomic.Int32
	inflight atomic.Int32
}

// New builds a gate admitting at most size concurrent operations.
// Non-positive size falls back to DefaultSize.
func New(size int, logger *zap.Logger) *Gate {
	if size <= 0 {
		size = DefaultSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		slots:  make(chan struct{}, size),
		logger: logger,
	}
}

// Size returns the gate capacity.
func (g *Gate) Size() int { return cap(g.slots) }

// InFlight returns the number of currently admitted operations.
func (g *Gate) InFlight() int { return int(g.inflight.Load()) }

// Waiting returns the number of callers blocked in Acquire.
func (g *Gate) Waiting() int { return int(g.waiting.Load()) }

// Acquire blocks until a slot is free or ctx is done. On success the caller
// holds one slot and must pair it with exactly one Release.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		g.inflight.Add(1)
		return nil
	default:
	}

	// Saturated; wait.
	g.waiting.Add(1)
	start := time.Now()
	g.logger.Debug("gate saturated, waiting for slot",
		zap.Int("in_flight", g.InFlight()),
		zap.Int("capacity", g.Size()))
	defer g.waiting.Add(-1)

	select {
	case g.slots <- struct{}{}:
		g.inflight.Add(1)
		if wait := time.Since(start); wait > 100*time.Millisecond {
			g.logger.Debug("acquired gate slot after wait", zap.Duration("waited", wait))
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees one slot, waking one blocked Acquire if any. A Release
// without a matching Acquire is a deterministic no-op (logged, never panics).
func (g *Gate) Release() {
	select {
	case <-g.slots:
		g.inflight.Add(-1)
	default:
		g.logger.Warn("gate release without matching acquire")
	}
}
