package ipc

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// connLimiter caps concurrent page sockets. A limit of zero or less means
// unlimited.
type connLimiter struct {
	slots *semaphore.Weighted
	held  atomic.Int64
}

func newConnLimiter(limit int) *connLimiter {
	if limit <= 0 {
		return &connLimiter{}
	}
	return &connLimiter{slots: semaphore.NewWeighted(int64(limit))}
}

// Acquire takes a slot without waiting.
func (l *connLimiter) Acquire() bool {
	if l == nil || l.slots == nil {
		return true
	}
	if !l.slots.TryAcquire(1) {
		return false
	}
	l.held.Add(1)
	return true
}

// Release returns a slot. Releasing more than was acquired is a no-op.
func (l *connLimiter) Release() {
	if l == nil || l.slots == nil {
		return
	}
	for {
		n := l.held.Load()
		if n <= 0 {
			return
		}
		if l.held.CompareAndSwap(n, n-1) {
			l.slots.Release(1)
			return
		}
	}
}

// Active counts held slots.
func (l *connLimiter) Active() int {
	if l == nil {
		return 0
	}
	return int(l.held.Load())
}
