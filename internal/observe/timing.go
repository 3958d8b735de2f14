package observe

import (
	"sync"
	"time"
)

// Timing records start/end timestamps only
type Timing struct {
	mu          sync.RWMutex
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewTiming creates timing with current start time
func NewTiming() *Timing {
	return &Timing{
		StartedAt: time.Now(),
	}
}

// Complete records completion time. Later calls are ignored.
func (t *Timing) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CompletedAt.IsZero() {
		t.CompletedAt = time.Now()
	}
}

// Duration returns elapsed time, up to completion if completed
func (t *Timing) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.CompletedAt.IsZero() {
		return time.Since(t.StartedAt)
	}
	return t.CompletedAt.Sub(t.StartedAt)
}
