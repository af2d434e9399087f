// Package remote implements a rendering backend that draws nothing itself:
// every resource operation becomes a Frame handed to a Sink, typically the
// websocket hub that fans frames out to browsers painting the page.
package remote

import (
	"sort"
	"sync"

	"github.com/odvcencio/livewidgets/pkg/render"
)

// Frame operations.
const (
	OpConstruct = "construct"
	OpUpdate    = "update"
	OpResize    = "resize"
	OpDestroy   = "destroy"
	OpClass     = "class"
	OpToast     = "toast"
	OpIntent    = "intent"
)

// Frame is one server to client render instruction.
type Frame struct {
	Op      string      `json:"op"`
	Element string      `json:"element,omitempty"`
	Kind    string      `json:"kind,omitempty"`
	Spec    render.Spec `json:"spec,omitempty"`
	Width   float64     `json:"width,omitempty"`
	Height  float64     `json:"height,omitempty"`
	Class   string      `json:"class,omitempty"`
	On      bool        `json:"on,omitempty"`
	Name    string      `json:"name,omitempty"`
	Payload any         `json:"payload,omitempty"`
}

// Sink receives frames in order.
type Sink interface {
	Send(frame Frame)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame)

func (f SinkFunc) Send(frame Frame) { f(frame) }

// Backend streams resource operations to a Sink. It remembers the latest
// spec of every live resource so late subscribers can be brought up to date.
type Backend struct {
	sink Sink

	mu    sync.Mutex
	live  map[string]*resource
	avail bool
}

// New returns an available backend writing to sink.
func New(sink Sink) *Backend {
	return &Backend{sink: sink, live: make(map[string]*resource), avail: true}
}

func (b *Backend) Name() string { return "remote" }

// Available reports whether frames have somewhere to go.
func (b *Backend) Available() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.avail && b.sink != nil
}

// SetAvailable toggles availability, for example while the page has no
// transport attached.
func (b *Backend) SetAvailable(v bool) {
	b.mu.Lock()
	b.avail = v
	b.mu.Unlock()
}

// Construct registers a resource for target and emits a construct frame.
// Constructing over a live element replaces it.
func (b *Backend) Construct(target render.Target, spec render.Spec) (render.Resource, error) {
	if !b.Available() {
		return nil, render.ErrUnavailable
	}
	res := &resource{backend: b, target: target, spec: spec}
	b.mu.Lock()
	if prev, ok := b.live[target.ID]; ok {
		prev.released = true
	}
	b.live[target.ID] = res
	b.mu.Unlock()
	b.sink.Send(constructFrame(target, spec))
	return res, nil
}

// Snapshot returns construct frames for every live resource, ordered by
// element id.
func (b *Backend) Snapshot() []Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Frame, 0, len(b.live))
	for _, res := range b.live {
		out = append(out, constructFrame(res.target, res.spec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Element < out[j].Element })
	return out
}

// Live reports the number of live resources.
func (b *Backend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.live)
}

func constructFrame(target render.Target, spec render.Spec) Frame {
	return Frame{
		Op:      OpConstruct,
		Element: target.ID,
		Kind:    spec.SpecKind(),
		Spec:    spec,
		Width:   target.Width,
		Height:  target.Height,
	}
}

type resource struct {
	backend  *Backend
	target   render.Target
	spec     render.Spec
	released bool
}

func (r *resource) Update(spec render.Spec) error {
	b := r.backend
	b.mu.Lock()
	if r.released {
		b.mu.Unlock()
		return render.ErrReleased
	}
	r.spec = spec
	b.mu.Unlock()
	b.sink.Send(Frame{Op: OpUpdate, Element: r.target.ID, Kind: spec.SpecKind(), Spec: spec})
	return nil
}

func (r *resource) Resize(width, height float64) error {
	b := r.backend
	b.mu.Lock()
	if r.released {
		b.mu.Unlock()
		return render.ErrReleased
	}
	r.target.Width, r.target.Height = width, height
	b.mu.Unlock()
	b.sink.Send(Frame{Op: OpResize, Element: r.target.ID, Width: width, Height: height})
	return nil
}

func (r *resource) Destroy() {
	b := r.backend
	b.mu.Lock()
	if r.released {
		b.mu.Unlock()
		return
	}
	r.released = true
	if b.live[r.target.ID] == r {
		delete(b.live, r.target.ID)
	}
	b.mu.Unlock()
	b.sink.Send(Frame{Op: OpDestroy, Element: r.target.ID})
}
