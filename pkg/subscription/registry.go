// Package subscription routes server-pushed update events to the widget that
// owns them. Every subscription is scoped to a widget id and revocable through
// the Handle returned by Subscribe.
package subscription

import (
	"bytes"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// Key names an event family. Scoped keys expand to "<name>:<widget-id>";
// shared keys use a single channel and match the owner through the
// payload's widget_id field.
type Key struct {
	Name   string
	Shared bool
}

// Scoped returns a per-widget key, e.g. Scoped("widget_update").
func Scoped(name string) Key { return Key{Name: name} }

// Shared returns a key on a channel shared by all widgets.
func Shared(name string) Key { return Key{Name: name, Shared: true} }

// Channel returns the concrete channel for an owner.
func (k Key) Channel(widgetID string) string {
	if k.Shared {
		return k.Name
	}
	return k.Name + ":" + widgetID
}

// Callback receives the event body. When the payload carries a "data"
// member the callback receives that member only.
type Callback func(payload json.RawMessage)

// Handle is one active subscription.
type Handle struct {
	ID      string
	Channel string
	Owner   string

	shared   bool
	cb       Callback
	registry *Registry
	active   atomic.Bool
}

// Unsubscribe revokes this subscription. Calling it again is a no-op.
func (h *Handle) Unsubscribe() {
	if h == nil || !h.active.Swap(false) {
		return
	}
	h.registry.remove(h)
}

// Active reports whether the handle still receives events.
func (h *Handle) Active() bool {
	return h != nil && h.active.Load()
}

// Registry maps channels to handles. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	channels map[string][]*Handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string][]*Handle)}
}

// Subscribe registers cb for key on behalf of widgetID.
func (r *Registry) Subscribe(key Key, widgetID string, cb Callback) *Handle {
	h := &Handle{
		ID:       ulid.Make().String(),
		Channel:  key.Channel(widgetID),
		Owner:    widgetID,
		shared:   key.Shared,
		cb:       cb,
		registry: r,
	}
	h.active.Store(true)

	r.mu.Lock()
	r.channels[h.Channel] = append(r.channels[h.Channel], h)
	r.mu.Unlock()
	return h
}

// Dispatch delivers payload to every active subscription on channel whose
// owner matches, in subscription order, and returns the number of callbacks
// invoked. Events nobody listens to are dropped.
func (r *Registry) Dispatch(channel string, payload json.RawMessage) int {
	r.mu.RLock()
	handles := append([]*Handle(nil), r.channels[channel]...)
	r.mu.RUnlock()
	if len(handles) == 0 {
		return 0
	}

	env := parseEnvelope(payload)
	delivered := 0
	for _, h := range handles {
		if h.shared && env.widgetID != h.Owner {
			continue
		}
		// a callback earlier in this dispatch may have revoked h
		if !h.active.Load() {
			continue
		}
		if h.cb != nil {
			h.cb(env.body)
		}
		delivered++
	}
	return delivered
}

// UnsubscribeAll revokes every handle owned by widgetID.
func (r *Registry) UnsubscribeAll(widgetID string) int {
	var owned []*Handle
	r.mu.RLock()
	for _, handles := range r.channels {
		for _, h := range handles {
			if h.Owner == widgetID {
				owned = append(owned, h)
			}
		}
	}
	r.mu.RUnlock()

	n := 0
	for _, h := range owned {
		if h.active.Load() {
			h.Unsubscribe()
			n++
		}
	}
	return n
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, handles := range r.channels {
		n += len(handles)
	}
	return n
}

// Channels lists the channels that currently have subscribers.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.channels))
	for ch := range r.channels {
		out = append(out, ch)
	}
	return out
}

func (r *Registry) remove(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles := r.channels[h.Channel]
	for i, existing := range handles {
		if existing == h {
			handles = append(handles[:i:i], handles[i+1:]...)
			break
		}
	}
	if len(handles) == 0 {
		delete(r.channels, h.Channel)
		return
	}
	r.channels[h.Channel] = handles
}

type envelope struct {
	widgetID string
	body     json.RawMessage
}

func parseEnvelope(payload json.RawMessage) envelope {
	env := envelope{body: payload}
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return env
	}
	var wire struct {
		WidgetID any             `json:"widget_id"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return env
	}
	switch id := wire.WidgetID.(type) {
	case string:
		env.widgetID = id
	case float64:
		env.widgetID = formatID(id)
	}
	if len(wire.Data) > 0 {
		env.body = wire.Data
	}
	return env
}

func formatID(v float64) string {
	b, _ := json.Marshal(v)
	return string(b)
}
