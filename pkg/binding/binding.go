// Package binding ties one host element to one rendering adapter and owns
// everything the adapter creates: the rendering resource, subscription
// handles, the resize observer and pending notice timers.
//
// A Binding is not safe for concurrent use. The page loop serializes every
// call, including subscription callbacks.
package binding

import (
	"encoding/json"
	"time"

	"github.com/odvcencio/livewidgets/pkg/adapter"
	"github.com/odvcencio/livewidgets/pkg/animate"
	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/logging"
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/resize"
	"github.com/odvcencio/livewidgets/pkg/subscription"
	"github.com/odvcencio/livewidgets/pkg/toast"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

// State is the lifecycle state of a binding.
type State string

const (
	StatePending   State = "pending"
	StateMounted   State = "mounted"
	StateDegraded  State = "degraded"
	StateDestroyed State = "destroyed"
)

// EventNotice carries transient messages addressed to one widget.
const EventNotice = "widget_notice"

// Notice is the payload of a widget_notice event.
type Notice struct {
	Level      string  `json:"level"`
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	DurationMS float64 `json:"duration"`
}

// Options are the page-level collaborators a binding uses.
type Options struct {
	Backend  render.Backend
	Registry *subscription.Registry
	Resize   *resize.Coordinator
	Frames   animate.FrameScheduler
	Timers   toast.Timers
	Emit     adapter.Emitter
	// Notices receives the visible notices of a widget on every change.
	Notices func(widgetID string, active []*toast.Toast)
	Logger  *logging.Logger
}

// Binding is the lifecycle owner of one mounted widget.
type Binding struct {
	opts     Options
	el       widget.Element
	inst     widget.Instance
	adapter  adapter.Adapter
	res      render.Resource
	handles  []*subscription.Handle
	observer *resize.Observer
	notices  *toast.ToastManager
	state    State
}

// Mount reads the mount-contract attributes of el and binds it. Malformed
// data or config degrade to empty values. An element without a widget id or
// with an unknown kind is rejected.
func Mount(el widget.Element, opts Options) (*Binding, error) {
	if el == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "nil element")
	}
	rawKind, _ := widget.LookupAttr(el, widget.AttrWidgetType)
	kind, ok := widget.ParseKind(rawKind)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeUnknownWidget, "unknown widget type").
			WithContext("element", el.ID()).
			WithContext("type", rawKind)
	}
	id := widgetID(el)

	rawData, _ := widget.LookupData(el, kind)
	data, err := widget.DecodeData(kind, []byte(rawData))
	if err != nil {
		opts.Logger.Warn(logging.CategoryBinding, "malformed_data", id, err.Error(), nil)
	}
	rawConfig, _ := widget.LookupAttr(el, widget.AttrConfig)
	cfg, err := widget.ParseConfig([]byte(rawConfig))
	if err != nil {
		opts.Logger.Warn(logging.CategoryBinding, "malformed_config", id, err.Error(), nil)
	}
	return mount(el, widget.Instance{ID: id, Kind: kind, Config: cfg, Data: data}, opts)
}

// MountWith binds el using already decoded data and config. The kind comes
// from data.
func MountWith(el widget.Element, data widget.Data, cfg widget.Config, opts Options) (*Binding, error) {
	if el == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "nil element")
	}
	if data == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "nil widget data").WithContext("element", el.ID())
	}
	return mount(el, widget.Instance{ID: widgetID(el), Kind: data.WidgetKind(), Config: cfg, Data: data}, opts)
}

func widgetID(el widget.Element) string {
	if id, ok := widget.LookupAttr(el, widget.AttrWidgetID); ok && id != "" {
		return id
	}
	return el.ID()
}

func mount(el widget.Element, inst widget.Instance, opts Options) (*Binding, error) {
	a, err := adapter.New(inst.Kind, adapter.Deps{
		WidgetID: inst.ID,
		Frames:   opts.Frames,
		Emit:     opts.Emit,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	b := &Binding{opts: opts, el: el, inst: inst, adapter: a, state: StatePending}

	width, height := el.Size()
	target := render.Target{ID: el.ID(), Width: width, Height: height}
	res, err := a.Initialize(target, opts.Backend, inst.Data, inst.Config)
	if err != nil {
		a.Dispose()
		b.state = StateDegraded
		details := map[string]any{"element": el.ID(), "kind": string(inst.Kind)}
		if opts.Backend != nil {
			details["backend"] = opts.Backend.Name()
		}
		opts.Logger.Warn(logging.CategoryBinding, string(apperrors.ErrCodeBackendUnavailable), inst.ID, err.Error(), details)
		return b, nil
	}
	b.res = res
	b.state = StateMounted

	if opts.Registry != nil {
		for _, key := range a.Channels() {
			b.handles = append(b.handles, opts.Registry.Subscribe(key, inst.ID, b.onPush))
		}
		b.handles = append(b.handles, opts.Registry.Subscribe(subscription.Scoped(EventNotice), inst.ID, b.onNotice))
	}
	if inst.Kind.IsChart() && opts.Resize != nil {
		b.observer = opts.Resize.Observe(el.ID(), width, height, res)
	}
	opts.Logger.Debug(logging.CategoryBinding, "mounted", inst.ID, "", map[string]any{
		"element":  el.ID(),
		"kind":     string(inst.Kind),
		"channels": len(b.handles),
	})
	return b, nil
}

// ID returns the widget id.
func (b *Binding) ID() string { return b.inst.ID }

// ElementID returns the id of the bound host element.
func (b *Binding) ElementID() string { return b.el.ID() }

// Kind returns the widget kind.
func (b *Binding) Kind() widget.Kind { return b.inst.Kind }

// State returns the lifecycle state.
func (b *Binding) State() State { return b.state }

// Instance returns the current widget definition.
func (b *Binding) Instance() widget.Instance { return b.inst }

// Spec returns the last rendered spec, or nil when nothing was rendered.
func (b *Binding) Spec() render.Spec {
	if b.state != StateMounted {
		return nil
	}
	return b.adapter.Spec()
}

// Update applies new data in place. A non-nil cfg replaces the stored config
// before the data is applied; nil data re-renders the stored data. Degraded
// and destroyed bindings ignore updates.
func (b *Binding) Update(data widget.Data, cfg *widget.Config) error {
	if b.state != StateMounted {
		return nil
	}
	if cfg != nil {
		b.inst.Config = *cfg
		b.adapter.Reconfigure(*cfg)
	}
	if data == nil {
		data = b.inst.Data
	} else if data.WidgetKind() != b.inst.Kind {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "data kind does not match widget").
			WithContext("widget", b.inst.ID).
			WithContext("kind", string(data.WidgetKind()))
	}
	b.inst.Data = data
	if err := b.adapter.ApplyUpdate(b.res, data); err != nil {
		b.opts.Logger.Warn(logging.CategoryBinding, "update_failed", b.inst.ID, err.Error(), nil)
		return err
	}
	return nil
}

// Interact forwards a user action to adapters that accept one.
func (b *Binding) Interact(in widget.Interaction) error {
	if b.state != StateMounted {
		return nil
	}
	ia, ok := b.adapter.(adapter.Interactive)
	if !ok {
		return nil
	}
	return ia.Interact(b.res, in)
}

// Destroy releases everything the binding owns. Only the first call does
// any work.
func (b *Binding) Destroy() {
	if b.state == StateDestroyed {
		return
	}
	prev := b.state
	b.state = StateDestroyed
	if prev != StateMounted {
		return
	}

	b.adapter.Dispose()
	b.notices.Close()
	for _, h := range b.handles {
		h.Unsubscribe()
	}
	b.handles = nil
	b.observer.Disconnect()
	b.observer = nil
	if b.res != nil {
		b.res.Destroy()
		b.res = nil
	}
	b.opts.Logger.Debug(logging.CategoryBinding, "destroyed", b.inst.ID, "", nil)
}

func (b *Binding) onPush(payload json.RawMessage) {
	if b.state != StateMounted {
		return
	}
	data, err := widget.DecodeData(b.inst.Kind, payload)
	if err != nil {
		b.opts.Logger.Warn(logging.CategoryBinding, "malformed_update", b.inst.ID, err.Error(), nil)
		return
	}
	_ = b.Update(data, nil)
}

func (b *Binding) onNotice(payload json.RawMessage) {
	if b.state != StateMounted {
		return
	}
	var n Notice
	if err := json.Unmarshal(payload, &n); err != nil {
		b.opts.Logger.Warn(logging.CategoryBinding, "malformed_notice", b.inst.ID, err.Error(), nil)
		return
	}
	if b.notices == nil {
		b.notices = toast.NewToastManager(b.opts.Timers)
		id := b.inst.ID
		notify := b.opts.Notices
		b.notices.SetOnChange(func(active []*toast.Toast) {
			if notify != nil {
				notify(id, active)
			}
		})
	}
	b.notices.Show(toast.ParseLevel(n.Level), n.Title, n.Message, time.Duration(n.DurationMS*float64(time.Millisecond)))
}

// PendingNotices counts notices waiting for their dismiss timer.
func (b *Binding) PendingNotices() int { return b.notices.Pending() }
