package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
)

// DefaultFrameRate is the frame clock rate when none is configured.
const DefaultFrameRate = 60

var errLoopClosed = apperrors.New(apperrors.ErrCodeInternal, "page loop closed")

type frameReq struct {
	fn        func(time.Time)
	cancelled bool
}

// Loop runs every task of one page on a single goroutine. Frame callbacks
// and timers are delivered through the same queue, so page state never needs
// its own locking.
type Loop struct {
	mu       sync.Mutex
	tasks    []func()
	wake     chan struct{}
	done     chan struct{}
	stopped  chan struct{}
	closed   bool
	running  atomic.Bool
	frames   []*frameReq
	interval time.Duration
}

// NewLoop creates a loop whose frame clock ticks frameRate times a second.
func NewLoop(frameRate int) *Loop {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return &Loop{
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		interval: time.Second / time.Duration(frameRate),
	}
}

// Interval returns the frame period.
func (l *Loop) Interval() time.Duration { return l.interval }

// Post queues fn. It returns false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	l.tasks = append(l.tasks, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return errLoopClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return errLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestFrame registers fn for the next frame tick. It must be called
// from the loop goroutine; the returned cancel must be too.
func (l *Loop) RequestFrame(fn func(time.Time)) func() {
	req := &frameReq{fn: fn}
	l.frames = append(l.frames, req)
	return func() { req.cancelled = true }
}

// PendingFrames counts registered frame callbacks.
func (l *Loop) PendingFrames() int {
	n := 0
	for _, req := range l.frames {
		if !req.cancelled {
			n++
		}
	}
	return n
}

// AfterFunc runs fn on the loop after d. Stopping the timer from the loop
// guarantees fn does not run afterwards, even when the timer already fired.
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() bool {
	var stopped atomic.Bool
	t := time.AfterFunc(d, func() {
		l.Post(func() {
			if !stopped.Load() {
				fn()
			}
		})
	})
	return func() bool {
		if stopped.Swap(true) {
			return false
		}
		t.Stop()
		return true
	}
}

// Step runs the callbacks registered before this tick. Callbacks that
// request another frame are deferred to the next tick.
func (l *Loop) Step(now time.Time) int {
	batch := l.frames
	l.frames = nil
	ran := 0
	for _, req := range batch {
		if req.cancelled {
			continue
		}
		req.fn(now)
		ran++
	}
	return ran
}

// Run processes tasks and frame ticks until ctx is done or Close is called.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return apperrors.New(apperrors.ErrCodeInternal, "page loop already running")
	}
	defer close(l.stopped)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.Close()
			return ctx.Err()
		case <-l.done:
			l.drain()
			return nil
		case <-l.wake:
			l.drain()
		case now := <-ticker.C:
			l.drain()
			if len(l.frames) > 0 {
				l.Step(now)
			}
		}
	}
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		tasks := l.tasks
		l.tasks = nil
		l.mu.Unlock()
		if len(tasks) == 0 {
			return
		}
		for _, fn := range tasks {
			fn()
		}
	}
}

// Close stops accepting tasks. Tasks already queued still run.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.done)
}

// Done is closed when the loop stops accepting tasks.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Stopped is closed when Run has returned.
func (l *Loop) Stopped() <-chan struct{} { return l.stopped }
