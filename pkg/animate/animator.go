// Package animate drives smooth numeric transitions for scalar widgets.
// Animators never own a timer; they sample on frames handed out by a
// FrameScheduler, normally the page loop's frame clock.
package animate

import (
	"math"
	"sync"
	"time"

	"github.com/odvcencio/livewidgets/pkg/format"
)

// FrameScheduler runs fn on the next rendering frame. The returned cancel
// function prevents a pending fn from running.
type FrameScheduler interface {
	RequestFrame(fn func(now time.Time)) (cancel func())
}

// Sink receives each sampled value together with its formatted text.
type Sink func(value float64, text string)

// EaseOutCubic maps linear progress t in [0,1] to 1-(1-t)^3.
func EaseOutCubic(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	inv := 1 - t
	return 1 - inv*inv*inv
}

// Animator runs at most one interpolation at a time. Starting a new one
// supersedes whatever is running.
type Animator struct {
	mu       sync.Mutex
	frames   FrameScheduler
	sink     Sink
	format   format.Spec
	duration time.Duration

	baseline  float64
	displayed float64
	gen       uint64
	running   bool
	cancel    func()
	stopped   bool
}

// New returns an animator writing formatted samples to sink. duration is
// the default used by SetValue.
func New(frames FrameScheduler, spec format.Spec, duration time.Duration, sink Sink) *Animator {
	return &Animator{frames: frames, sink: sink, format: spec, duration: duration}
}

// SetFormat changes the display format for subsequent samples.
func (a *Animator) SetFormat(spec format.Spec) {
	a.mu.Lock()
	a.format = spec
	a.mu.Unlock()
}

// SetDuration changes the default SetValue duration.
func (a *Animator) SetDuration(d time.Duration) {
	a.mu.Lock()
	a.duration = d
	a.mu.Unlock()
}

// Value returns the last sampled value.
func (a *Animator) Value() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.displayed
}

// Baseline returns the value the last completed animation settled on.
func (a *Animator) Baseline() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.baseline
}

// Running reports whether an interpolation is in flight.
func (a *Animator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// Text formats v with the animator's current format.
func (a *Animator) Text(v float64) string {
	a.mu.Lock()
	spec := a.format
	a.mu.Unlock()
	return format.Value(v, spec)
}

// SetValue animates from the currently displayed value to v using the
// default duration.
func (a *Animator) SetValue(v float64) {
	a.mu.Lock()
	from, d := a.displayed, a.duration
	a.mu.Unlock()
	a.Animate(from, v, d)
}

// Jump shows v immediately and makes it the baseline.
func (a *Animator) Jump(v float64) {
	a.Animate(v, v, 0)
}

// Animate interpolates from -> to over d with an ease-out-cubic curve. A
// non-positive duration or a missing scheduler settles on to immediately.
func (a *Animator) Animate(from, to float64, d time.Duration) {
	if math.IsNaN(from) || math.IsInf(from, 0) {
		from = 0
	}
	if math.IsNaN(to) || math.IsInf(to, 0) {
		to = 0
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.gen++
	gen := a.gen
	a.cancelLocked()
	if d <= 0 || a.frames == nil || from == to {
		a.settleLocked(to)
		sink, text := a.sink, format.Value(to, a.format)
		a.mu.Unlock()
		if sink != nil {
			sink(to, text)
		}
		return
	}
	a.running = true
	a.mu.Unlock()

	var start time.Time
	var step func(now time.Time)
	step = func(now time.Time) {
		a.mu.Lock()
		if a.gen != gen || a.stopped {
			a.mu.Unlock()
			return
		}
		if start.IsZero() {
			start = now
		}
		progress := float64(now.Sub(start)) / float64(d)
		var value float64
		done := progress >= 1
		if done {
			value = to
			a.settleLocked(to)
		} else {
			value = from + (to-from)*EaseOutCubic(progress)
			a.displayed = value
		}
		sink, text := a.sink, format.Value(value, a.format)
		a.mu.Unlock()

		if sink != nil {
			sink(value, text)
		}
		if done {
			return
		}
		a.mu.Lock()
		if a.gen == gen && !a.stopped {
			a.cancel = a.frames.RequestFrame(step)
		}
		a.mu.Unlock()
	}

	cancel := a.frames.RequestFrame(step)
	a.mu.Lock()
	if a.gen == gen && a.running {
		a.cancel = cancel
	} else if cancel != nil {
		cancel()
	}
	a.mu.Unlock()
}

// Cancel stops the running interpolation, leaving the displayed value where
// it is. The sink is not called again until the next Animate.
func (a *Animator) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.cancelLocked()
	a.running = false
}

// Stop cancels any animation and permanently detaches the sink.
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gen++
	a.cancelLocked()
	a.running = false
	a.stopped = true
	a.sink = nil
}

func (a *Animator) settleLocked(v float64) {
	a.displayed = v
	a.baseline = v
	a.running = false
	a.cancel = nil
}

func (a *Animator) cancelLocked() {
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}
