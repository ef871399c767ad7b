package core

// run_limiter.go bounds how many import runs may execute at once.
//
// Two runs loading the same collections would race on unique indexes and
// interleave their documents, so the service uses a single slot: a start
// request either gets the slot immediately or fails with ErrRunInProgress.
// WaitForDrain lets shutdown wait for the active run to finish.

import (
	"context"
	"sync"
	"time"
)

// RunLimiter is a non-blocking semaphore over import runs.
type RunLimiter struct {
	slots chan struct{}

	mu     sync.RWMutex
	active int
}

// NewRunLimiter creates a limiter admitting at most maxConcurrent runs.
// Values below one are treated as one.
func NewRunLimiter(maxConcurrent int) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &RunLimiter{slots: make(chan struct{}, maxConcurrent)}
}

// TryAcquire takes a slot without blocking. Returns ErrRunInProgress when
// every slot is taken. The caller must Release a slot it acquired.
func (l *RunLimiter) TryAcquire() error {
	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	default:
		return ErrRunInProgress
	}
}

// Release returns a slot taken by TryAcquire.
func (l *RunLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.slots
}

// Active returns the number of runs holding a slot.
func (l *RunLimiter) Active() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no run holds a slot or ctx is done.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Active() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunLimiterStatus is a snapshot of the limiter.
type RunLimiterStatus struct {
	Active        int `json:"active"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns a snapshot of the limiter's current state.
func (l *RunLimiter) Status() RunLimiterStatus {
	return RunLimiterStatus{
		Active:        l.Active(),
		MaxConcurrent: cap(l.slots),
	}
}
