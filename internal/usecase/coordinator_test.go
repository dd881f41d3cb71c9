package usecase

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCoordinatorRunsOnce(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	done := make(chan struct{}, 8)

	c := NewRecomputeCoordinator(func(ctx context.Context) {
		mu.Lock()
		runs++
		mu.Unlock()
		done <- struct{}{}
	})

	c.Trigger(context.Background())
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("run never executed")
	}

	waitIdle(t, c)
	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Fatalf("runs = %d, want 1", runs)
	}
}

func TestCoordinatorCoalescesBurst(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	release := make(chan struct{})
	started := make(chan struct{}, 16)

	c := NewRecomputeCoordinator(func(ctx context.Context) {
		started <- struct{}{}
		<-release
		mu.Lock()
		runs++
		mu.Unlock()
	})

	ctx := context.Background()
	c.Trigger(ctx)
	<-started // first run is now in flight

	// a burst of triggers while running collapses into one pending follow-up
	for i := 0; i < 10; i++ {
		c.Trigger(ctx)
	}
	close(release)

	<-started // the single coalesced rerun
	waitIdle(t, c)

	mu.Lock()
	defer mu.Unlock()
	if runs != 2 {
		t.Fatalf("runs = %d, want 2 (initial + one coalesced)", runs)
	}
}

func TestCoordinatorRunsAgainWhenIdle(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	done := make(chan struct{}, 8)

	c := NewRecomputeCoordinator(func(ctx context.Context) {
		mu.Lock()
		runs++
		mu.Unlock()
		done <- struct{}{}
	})

	ctx := context.Background()
	c.Trigger(ctx)
	<-done
	waitIdle(t, c)
	c.Trigger(ctx)
	<-done
	waitIdle(t, c)

	mu.Lock()
	defer mu.Unlock()
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}
}

func TestCoordinatorDropsPendingOnCancel(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	release := make(chan struct{})
	started := make(chan struct{}, 4)

	c := NewRecomputeCoordinator(func(ctx context.Context) {
		started <- struct{}{}
		<-release
		mu.Lock()
		runs++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	c.Trigger(ctx)
	<-started
	c.Trigger(ctx) // queued as pending
	cancel()
	close(release)

	waitIdle(t, c)
	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Fatalf("runs = %d, want 1: pending must be dropped after cancel", runs)
	}
}

func waitIdle(t *testing.T, c *RecomputeCoordinator) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for c.InFlight() {
		if time.Now().After(deadline) {
			t.Fatalf("coordinator still in flight")
		}
		time.Sleep(time.Millisecond)
	}
}
