package session

import (
	"context"
	"sync"
	"sync/atomic"
)

// gate parks the transfer loop while paused. wake is closed exactly while
// running is true; the mutex only orders togglers against waiters, readers
// of running never take it.
type gate struct {
	running atomic.Bool
	mu      sync.Mutex
	wake    chan struct{}
}

func newGate() *gate {
	return &gate{wake: make(chan struct{})}
}

func (g *gate) toggle() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := !g.running.Load()
	g.running.Store(next)
	if next {
		close(g.wake)
	} else {
		g.wake = make(chan struct{})
	}
	return next
}

// wait blocks until running is true or ctx is done.
func (g *gate) wait(ctx context.Context) error {
	for {
		if g.running.Load() {
			return nil
		}
		g.mu.Lock()
		if g.running.Load() {
			g.mu.Unlock()
			return nil
		}
		wake := g.wake
		g.mu.Unlock()

		select {
		case <-wake:
			// re-check: it may have been paused again already
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
