// Package engine runs live dashboard pages. Each page owns a single loop
// goroutine that serializes widget lifecycle calls, update dispatch, host
// events, frame ticks and timers.
package engine

import (
	"context"
	"regexp"
	"sort"
	"sync"

	"github.com/odvcencio/livewidgets/pkg/bus"
	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/logging"
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/render/remote"
	"github.com/odvcencio/livewidgets/pkg/telemetry"
)

// FrameSink receives the frames of every page.
type FrameSink interface {
	SendFrame(pageID string, frame remote.Frame)
}

// Options configure a Manager.
type Options struct {
	FrameRate   int
	Frames      FrameSink
	Intents     IntentPublisher
	SourceClass string
	TargetClass string
	// DisableRendering mounts every widget against an unavailable backend.
	DisableRendering bool
	Logger           *logging.Logger
}

var pageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// ValidPageID reports whether id is usable as a page id and bus token.
func ValidPageID(id string) bool { return pageIDPattern.MatchString(id) }

// Manager owns the live pages of the process.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options

	mu     sync.Mutex
	pages  map[string]*Page
	closed bool
}

// NewManager creates a manager. Pages stop when ctx is done.
func NewManager(ctx context.Context, opts Options) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{ctx: ctx, cancel: cancel, opts: opts, pages: make(map[string]*Page)}
}

// Page returns the page with id, creating it on first use.
func (m *Manager) Page(id string) (*Page, error) {
	if !ValidPageID(id) {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "invalid page id").WithContext("page", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, apperrors.New(apperrors.ErrCodeInternal, "engine closed")
	}
	if p, ok := m.pages[id]; ok {
		return p, nil
	}
	opts := PageOptions{
		FrameRate:   m.opts.FrameRate,
		Intents:     m.opts.Intents,
		SourceClass: m.opts.SourceClass,
		TargetClass: m.opts.TargetClass,
		Logger:      m.opts.Logger,
	}
	if m.opts.Frames != nil {
		frames := m.opts.Frames
		opts.Sink = remote.SinkFunc(func(f remote.Frame) { frames.SendFrame(id, f) })
	}
	if m.opts.DisableRendering {
		opts.Backend = disabledBackend{}
	}
	p := NewPage(m.ctx, id, opts)
	m.pages[id] = p
	m.opts.Logger.Info(logging.CategoryEngine, "page_created", "", id, nil)
	return p, nil
}

// Lookup returns an existing page.
func (m *Manager) Lookup(id string) (*Page, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pages[id]
	return p, ok
}

// Pages lists page ids in sorted order.
func (m *Manager) Pages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pages))
	for id := range m.pages {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ClosePage destroys a page and all of its widgets.
func (m *Manager) ClosePage(id string) bool {
	m.mu.Lock()
	p, ok := m.pages[id]
	delete(m.pages, id)
	m.mu.Unlock()
	if !ok {
		return false
	}
	p.Close()
	m.opts.Logger.Info(logging.CategoryEngine, "page_closed", "", id, nil)
	return true
}

// HandleEvent routes a bus event to an existing page. Events for pages
// nobody opened are dropped.
func (m *Manager) HandleEvent(pageID string, ev bus.Event) {
	p, ok := m.Lookup(pageID)
	if !ok {
		telemetry.ObserveDispatch("bus", 0)
		return
	}
	n, err := p.Dispatch(m.ctx, ev.Channel, ev.Payload)
	if err != nil {
		m.opts.Logger.Warn(logging.CategoryEngine, "dispatch_failed", "", err.Error(), map[string]any{"page": pageID})
		return
	}
	telemetry.ObserveDispatch("bus", n)
}

// Close tears down every page.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	pages := m.pages
	m.pages = make(map[string]*Page)
	m.mu.Unlock()

	for _, p := range pages {
		p.Close()
	}
	m.cancel()
}

// disabledBackend is never available, so bindings mount degraded.
type disabledBackend struct{}

func (disabledBackend) Name() string    { return "disabled" }
func (disabledBackend) Available() bool { return false }
func (disabledBackend) Construct(render.Target, render.Spec) (render.Resource, error) {
	return nil, render.ErrUnavailable
}
