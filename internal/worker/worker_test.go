package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_RunsSubmittedTasks(t *testing.T) {
	var processed atomic.Int64

	pool := NewPool(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		pool.Submit(func(ctx context.Context) {
			defer wg.Done()
			processed.Add(1)
		})
	}
	wg.Wait()

	cancel()
	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 tasks processed, got %d", processed.Load())
	}
}

func TestPool_ConcurrentSubmit(t *testing.T) {
	var processed atomic.Int64

	pool := NewPool(4, 100)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go pool.Submit(func(ctx context.Context) {
			defer wg.Done()
			processed.Add(1)
		})
	}
	wg.Wait()

	cancel()
	pool.Stop()

	if processed.Load() != 100 {
		t.Errorf("expected 100 tasks processed, got %d", processed.Load())
	}
}

func TestPool_StopWaitsForInFlightTasks(t *testing.T) {
	var completed atomic.Int64

	pool := NewPool(2, 50)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pool.Start(ctx)

	for i := 0; i < 10; i++ {
		pool.Submit(func(ctx context.Context) {
			time.Sleep(5 * time.Millisecond)
			completed.Add(1)
		})
	}

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool.Stop() timed out")
	}

	t.Logf("completed %d tasks before shutdown", completed.Load())
}

func TestPool_TasksQueuedAfterCancelStillRun(t *testing.T) {
	var processed atomic.Int64

	pool := NewPool(2, 10)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	// Tasks submitted after the run context is cancelled must still
	// execute, otherwise a submitter waiting on them blocks forever
	// during shutdown.
	cancel()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		pool.Submit(func(ctx context.Context) {
			defer wg.Done()
			if ctx.Err() == nil {
				t.Error("expected task to observe cancelled context")
			}
			processed.Add(1)
		})
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks queued after cancel never ran")
	}

	pool.Stop()

	if processed.Load() != 5 {
		t.Errorf("expected 5 tasks processed, got %d", processed.Load())
	}
}
