// Package toast keeps the short-lived notices shown on a page or inside a
// widget. Each notice dismisses itself after its duration and the visible
// set is bounded, oldest first out.
package toast

import (
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ToastLevel is the severity of a notice.
type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastSuccess ToastLevel = "success"
	ToastWarning ToastLevel = "warning"
	ToastError   ToastLevel = "error"
)

var knownLevels = map[ToastLevel]bool{ToastInfo: true, ToastSuccess: true, ToastWarning: true, ToastError: true}

// ParseLevel maps free text onto a level, defaulting to info.
func ParseLevel(raw string) ToastLevel {
	lvl := ToastLevel(strings.ToLower(strings.TrimSpace(raw)))
	if knownLevels[lvl] {
		return lvl
	}
	return ToastInfo
}

const (
	DefaultToastDuration = 3 * time.Second
	DefaultMaxToasts     = 5
)

// Toast is one visible notice.
type Toast struct {
	ID        string        `json:"id"`
	Level     ToastLevel    `json:"level"`
	Title     string        `json:"title,omitempty"`
	Message   string        `json:"message"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"created_at"`
}

// Timers schedules dismissals. The page loop implements it so that
// dismissals run serially with everything else on the page.
type Timers interface {
	AfterFunc(d time.Duration, fn func()) (stop func() bool)
}

type wallTimers struct{}

func (wallTimers) AfterFunc(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

type entry struct {
	toast *Toast
	stop  func() bool
}

func (e *entry) cancel() {
	if e.stop != nil {
		e.stop()
		e.stop = nil
	}
}

// ToastManager holds the visible notices of one surface.
type ToastManager struct {
	mu       sync.RWMutex
	entries  []*entry
	clock    Timers
	limit    int
	onChange func([]*Toast)
	closed   bool
}

// NewToastManager creates a manager showing at most DefaultMaxToasts
// notices. A nil Timers uses wall-clock timers.
func NewToastManager(timers Timers) *ToastManager {
	if timers == nil {
		timers = wallTimers{}
	}
	return &ToastManager{clock: timers, limit: DefaultMaxToasts}
}

// SetMaxCount bounds the number of visible notices.
func (tm *ToastManager) SetMaxCount(n int) {
	if tm == nil || n <= 0 {
		return
	}
	tm.mu.Lock()
	tm.limit = n
	tm.mu.Unlock()
}

// SetOnChange registers fn to receive the visible set after every change.
func (tm *ToastManager) SetOnChange(fn func([]*Toast)) {
	if tm == nil {
		return
	}
	tm.mu.Lock()
	tm.onChange = fn
	tm.mu.Unlock()
}

// Show adds a notice and returns its id. A closed manager ignores the call
// and returns "".
func (tm *ToastManager) Show(level ToastLevel, title, message string, duration time.Duration) string {
	if tm == nil {
		return ""
	}
	if duration <= 0 {
		duration = DefaultToastDuration
	}
	n := &Toast{
		ID:        ulid.Make().String(),
		Level:     level,
		Title:     strings.TrimSpace(title),
		Message:   strings.TrimSpace(message),
		Duration:  duration,
		CreatedAt: time.Now(),
	}

	tm.mu.Lock()
	if tm.closed {
		tm.mu.Unlock()
		return ""
	}
	id := n.ID
	tm.entries = append(tm.entries, &entry{
		toast: n,
		stop:  tm.clock.AfterFunc(duration, func() { tm.Dismiss(id) }),
	})
	for len(tm.entries) > tm.limit {
		tm.entries[0].cancel()
		tm.entries = tm.entries[1:]
	}
	tm.notifyUnlock()
	return id
}

// Dismiss removes the notice with id. Unknown ids are ignored.
func (tm *ToastManager) Dismiss(id string) {
	if tm == nil || strings.TrimSpace(id) == "" {
		return
	}
	tm.mu.Lock()
	idx := tm.indexLocked(id)
	if idx < 0 || tm.closed {
		tm.mu.Unlock()
		return
	}
	tm.entries[idx].cancel()
	tm.entries = append(tm.entries[:idx], tm.entries[idx+1:]...)
	tm.notifyUnlock()
}

// Active returns the visible notices, oldest first.
func (tm *ToastManager) Active() []*Toast {
	if tm == nil {
		return nil
	}
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	return tm.visibleLocked()
}

// Pending counts scheduled dismissals.
func (tm *ToastManager) Pending() int {
	if tm == nil {
		return 0
	}
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	n := 0
	for _, e := range tm.entries {
		if e.stop != nil {
			n++
		}
	}
	return n
}

// Close cancels every pending dismissal and drops all notices without
// notifying. Later calls are no-ops.
func (tm *ToastManager) Close() {
	if tm == nil {
		return
	}
	tm.mu.Lock()
	defer tm.mu.Unlock()
	if tm.closed {
		return
	}
	tm.closed = true
	for _, e := range tm.entries {
		e.cancel()
	}
	tm.entries = nil
	tm.onChange = nil
}

func (tm *ToastManager) indexLocked(id string) int {
	for i, e := range tm.entries {
		if e.toast.ID == id {
			return i
		}
	}
	return -1
}

// notifyUnlock releases tm.mu and then reports the visible set.
func (tm *ToastManager) notifyUnlock() {
	visible := tm.visibleLocked()
	fn := tm.onChange
	tm.mu.Unlock()
	if fn != nil {
		fn(visible)
	}
}

func (tm *ToastManager) visibleLocked() []*Toast {
	if len(tm.entries) == 0 {
		return nil
	}
	out := make([]*Toast, 0, len(tm.entries))
	for _, e := range tm.entries {
		out = append(out, e.toast)
	}
	return out
}
