package throttle

import (
	"context"
	"testing"
	"time"
)

func TestWaitIfNeededReturnsWhenLoadLow(t *testing.T) {
	g := New(0.85, 2*time.Second)

	done := make(chan struct{})
	go func() {
		g.WaitIfNeeded(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitIfNeeded() did not return promptly under low load")
	}
}

func TestWaitIfNeededRespectsMaxWait(t *testing.T) {
	g := New(0.85, 300*time.Millisecond)
	g.load = 0.99 // force high load without waiting on a real sample tick

	start := time.Now()
	g.WaitIfNeeded(context.Background())
	if elapsed := time.Since(start); elapsed < 250*time.Millisecond {
		t.Errorf("returned after %v, want roughly maxWait", elapsed)
	}
}

func TestWaitIfNeededRespectsContextCancellation(t *testing.T) {
	g := New(0.85, 10*time.Second)
	g.load = 0.99

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	g.WaitIfNeeded(ctx)
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("WaitIfNeeded() ignored context cancellation, took %v", elapsed)
	}
}
