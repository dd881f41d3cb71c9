package usecase

import (
	"context"
	"sync"
)

// RecomputeCoordinator serializes recompute requests coming from independent
// trigger sources (the periodic timer, per-contract quote pushes). At most
// one run executes at a time; triggers that arrive while a run is in flight
// collapse into a single pending follow-up, so a burst of quote updates costs
// one extra run, never a pile of concurrent ones.
type RecomputeCoordinator struct {
	mu      sync.Mutex
	running bool
	pending bool
	run     func(ctx context.Context)
}

func NewRecomputeCoordinator(run func(ctx context.Context)) *RecomputeCoordinator {
	return &RecomputeCoordinator{run: run}
}

// Trigger requests a recompute. Never blocks the caller: the run executes on
// its own goroutine.
func (c *RecomputeCoordinator) Trigger(ctx context.Context) {
	c.mu.Lock()
	if c.running {
		c.pending = true
		c.mu.Unlock()
		return
	}
	c.running = true
	c.mu.Unlock()

	go c.loop(ctx)
}

func (c *RecomputeCoordinator) loop(ctx context.Context) {
	for {
		c.run(ctx)

		c.mu.Lock()
		if c.pending && ctx.Err() == nil {
			c.pending = false
			c.mu.Unlock()
			continue
		}
		c.running = false
		c.mu.Unlock()
		return
	}
}

// InFlight reports whether a run is currently executing.
func (c *RecomputeCoordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
