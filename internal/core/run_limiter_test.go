package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunLimiter_AcquireRelease(t *testing.T) {
	limiter := NewRunLimiter(1)

	if got := limiter.Active(); got != 0 {
		t.Errorf("initial Active = %d, want 0", got)
	}

	if err := limiter.TryAcquire(); err != nil {
		t.Fatalf("first TryAcquire failed: %v", err)
	}
	if got := limiter.Active(); got != 1 {
		t.Errorf("after TryAcquire, Active = %d, want 1", got)
	}

	// The only slot is taken
	if err := limiter.TryAcquire(); err != ErrRunInProgress {
		t.Errorf("second TryAcquire = %v, want ErrRunInProgress", err)
	}

	limiter.Release()
	if got := limiter.Active(); got != 0 {
		t.Errorf("after Release, Active = %d, want 0", got)
	}

	if err := limiter.TryAcquire(); err != nil {
		t.Errorf("TryAcquire after Release failed: %v", err)
	}
	limiter.Release()
}

func TestRunLimiter_DefaultsToOneSlot(t *testing.T) {
	limiter := NewRunLimiter(0)

	status := limiter.Status()
	if status.MaxConcurrent != 1 {
		t.Errorf("MaxConcurrent = %d, want 1", status.MaxConcurrent)
	}
}

func TestRunLimiter_ConcurrentStarts(t *testing.T) {
	limiter := NewRunLimiter(1)

	const attempts = 20
	var wg sync.WaitGroup
	var admitted atomic.Int32
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if limiter.TryAcquire() == nil {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	// Nobody released, so exactly one start can have been admitted
	if got := admitted.Load(); got != 1 {
		t.Errorf("admitted = %d, want 1", got)
	}
	limiter.Release()
}

func TestRunLimiter_WaitForDrain(t *testing.T) {
	limiter := NewRunLimiter(1)
	if err := limiter.TryAcquire(); err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		limiter.Release()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); err != nil {
		t.Errorf("WaitForDrain failed: %v", err)
	}
}

func TestRunLimiter_WaitForDrainTimeout(t *testing.T) {
	limiter := NewRunLimiter(1)
	if err := limiter.TryAcquire(); err != nil {
		t.Fatalf("TryAcquire failed: %v", err)
	}
	defer limiter.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := limiter.WaitForDrain(ctx); err != context.DeadlineExceeded {
		t.Errorf("WaitForDrain = %v, want context.DeadlineExceeded", err)
	}
}
