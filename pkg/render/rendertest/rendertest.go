// Package rendertest provides in-memory rendering backends for tests.
package rendertest

import (
	"errors"
	"sync"

	"github.com/odvcencio/livewidgets/pkg/render"
)

// Recorder is an always-available backend that records every call.
type Recorder struct {
	mu        sync.Mutex
	resources []*Resource
	// FailConstruct makes Construct return this error.
	FailConstruct error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Name() string    { return "recorder" }
func (r *Recorder) Available() bool { return true }

func (r *Recorder) Construct(target render.Target, spec render.Spec) (render.Resource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailConstruct != nil {
		return nil, r.FailConstruct
	}
	res := &Resource{Target: target, Specs: []render.Spec{spec}}
	r.resources = append(r.resources, res)
	return res, nil
}

// Resources returns every resource constructed so far.
func (r *Recorder) Resources() []*Resource {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Resource(nil), r.resources...)
}

// Live counts resources not yet destroyed.
func (r *Recorder) Live() int {
	n := 0
	for _, res := range r.Resources() {
		if !res.Destroyed() {
			n++
		}
	}
	return n
}

// Last returns the most recently constructed resource, or nil.
func (r *Recorder) Last() *Resource {
	all := r.Resources()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// Resource records the specs and calls it received.
type Resource struct {
	mu        sync.Mutex
	Target    render.Target
	Specs     []render.Spec
	Resizes   int
	Destroys  int
	destroyed bool
}

func (r *Resource) Update(spec render.Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return render.ErrReleased
	}
	r.Specs = append(r.Specs, spec)
	return nil
}

func (r *Resource) Resize(width, height float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.destroyed {
		return render.ErrReleased
	}
	r.Target.Width, r.Target.Height = width, height
	r.Resizes++
	return nil
}

func (r *Resource) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Destroys++
	r.destroyed = true
}

// Destroyed reports whether Destroy was called.
func (r *Resource) Destroyed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.destroyed
}

// Latest returns the most recent spec.
func (r *Resource) Latest() render.Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Specs) == 0 {
		return nil
	}
	return r.Specs[len(r.Specs)-1]
}

// Unavailable is a backend that never constructs anything.
type Unavailable struct{}

func (Unavailable) Name() string    { return "unavailable" }
func (Unavailable) Available() bool { return false }
func (Unavailable) Construct(render.Target, render.Spec) (render.Resource, error) {
	return nil, render.ErrUnavailable
}

// ErrBoom is a generic construct failure.
var ErrBoom = errors.New("rendertest: construct failed")
