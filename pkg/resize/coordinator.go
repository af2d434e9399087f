// Package resize tracks the container size of chart widgets and asks their
// rendering resource to re-layout when the host reports a change.
package resize

import (
	"sync"
)

// Target is re-laid out on size change.
type Target interface {
	Resize(width, height float64) error
}

// Observer watches one element.
type Observer struct {
	ElementID string

	coord  *Coordinator
	target Target
	width  float64
	height float64
	active bool
}

// Disconnect stops observing. Safe to call more than once.
func (o *Observer) Disconnect() {
	if o == nil || o.coord == nil {
		return
	}
	o.coord.disconnect(o)
}

// Active reports whether the observer is still connected.
func (o *Observer) Active() bool {
	if o == nil || o.coord == nil {
		return false
	}
	o.coord.mu.Lock()
	defer o.coord.mu.Unlock()
	return o.active
}

// Coordinator holds at most one observer per element.
type Coordinator struct {
	mu        sync.Mutex
	observers map[string]*Observer
	onError   func(elementID string, err error)
}

// NewCoordinator returns an empty coordinator. onError, when set, receives
// resize failures.
func NewCoordinator(onError func(elementID string, err error)) *Coordinator {
	return &Coordinator{observers: make(map[string]*Observer), onError: onError}
}

// Observe starts watching elementID with its current size. Observing an
// element again replaces the previous observer.
func (c *Coordinator) Observe(elementID string, width, height float64, target Target) *Observer {
	obs := &Observer{ElementID: elementID, coord: c, target: target, width: width, height: height, active: true}
	c.mu.Lock()
	if prev, ok := c.observers[elementID]; ok {
		prev.active = false
	}
	c.observers[elementID] = obs
	c.mu.Unlock()
	return obs
}

// Notify reports the element's new size. It returns true when the size
// changed and the target was asked to re-layout.
func (c *Coordinator) Notify(elementID string, width, height float64) bool {
	c.mu.Lock()
	obs, ok := c.observers[elementID]
	if !ok || !obs.active || (obs.width == width && obs.height == height) {
		c.mu.Unlock()
		return false
	}
	obs.width, obs.height = width, height
	target := obs.target
	c.mu.Unlock()

	if target == nil {
		return false
	}
	if err := target.Resize(width, height); err != nil {
		if c.onError != nil {
			c.onError(elementID, err)
		}
		return false
	}
	return true
}

// Len returns the number of connected observers.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observers)
}

func (c *Coordinator) disconnect(o *Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !o.active {
		return
	}
	o.active = false
	if c.observers[o.ElementID] == o {
		delete(c.observers, o.ElementID)
	}
}
