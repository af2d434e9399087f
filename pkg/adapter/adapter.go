// Package adapter holds one rendering adapter per widget kind. An adapter
// turns typed widget data plus config into a declarative render.Spec,
// creates the backing resource once and then updates it in place.
package adapter

import (
	"github.com/odvcencio/livewidgets/pkg/animate"
	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/logging"
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/subscription"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

// Event families adapters listen on.
const (
	EventWidgetUpdate    = "widget_update"
	EventChartUpdate     = "chart:update"
	EventBandwidthUpdate = "bandwidth:update"
	EventSharedChart     = "update_chart"
)

// Adapter renders one widget kind.
type Adapter interface {
	Kind() widget.Kind
	// Channels lists the update events the adapter consumes.
	Channels() []subscription.Key
	Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error)
	ApplyUpdate(res render.Resource, data widget.Data) error
	// Reconfigure replaces the config used by the next render.
	Reconfigure(cfg widget.Config)
	// Spec returns the most recently rendered spec, nil before Initialize.
	Spec() render.Spec
	// Dispose releases adapter-owned helpers such as animations. It does
	// not destroy the resource.
	Dispose()
}

// Interactive adapters react to user actions.
type Interactive interface {
	Interact(res render.Resource, in widget.Interaction) error
}

// Emitter publishes an outbound intent.
type Emitter func(name string, payload any)

// Deps are the collaborators shared by every adapter of a binding.
type Deps struct {
	WidgetID string
	Frames   animate.FrameScheduler
	Emit     Emitter
	Logger   *logging.Logger
}

// New selects the adapter for kind.
func New(kind widget.Kind, deps Deps) (Adapter, error) {
	b := base{deps: deps, kind: kind}
	switch kind {
	case widget.KindLineChart:
		return &lineChart{base: b}, nil
	case widget.KindBarChart:
		return &barChart{base: b}, nil
	case widget.KindPieChart:
		return &pieChart{base: b}, nil
	case widget.KindHeatmap:
		return &heatmap{base: b}, nil
	case widget.KindNetworkMap:
		return &networkMap{base: b}, nil
	case widget.KindBandwidthMonitor:
		return &bandwidthMonitor{base: b, window: NewRollingWindow(BandwidthWindow)}, nil
	case widget.KindServiceStatus:
		return &serviceStatus{base: b}, nil
	case widget.KindNumberCard:
		return &numberCard{scalar: scalar{base: b}}, nil
	case widget.KindGauge:
		return &gauge{scalar: scalar{base: b}}, nil
	case widget.KindTable:
		return &table{base: b}, nil
	}
	return nil, apperrors.New(apperrors.ErrCodeUnknownWidget, "no adapter for widget kind").WithContext("kind", string(kind))
}

// base carries the state every adapter shares.
type base struct {
	deps   Deps
	kind   widget.Kind
	cfg    widget.Config
	target render.Target
	spec   render.Spec
}

func (b *base) Kind() widget.Kind { return b.kind }

func (b *base) Channels() []subscription.Key {
	return []subscription.Key{subscription.Scoped(EventWidgetUpdate)}
}

func (b *base) Reconfigure(cfg widget.Config) { b.cfg = cfg }

func (b *base) Spec() render.Spec { return b.spec }

func (b *base) Dispose() {}

// construct creates the resource for the first spec.
func (b *base) construct(target render.Target, backend render.Backend, cfg widget.Config, spec render.Spec) (render.Resource, error) {
	b.target = target
	b.cfg = cfg
	if !render.Usable(backend) {
		return nil, render.ErrUnavailable
	}
	res, err := backend.Construct(target, spec)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBackendUnavailable, "construct resource").
			WithContext("widget", b.deps.WidgetID).
			WithContext("backend", backend.Name())
	}
	b.spec = spec
	return res, nil
}

// push sends spec to an existing resource.
func (b *base) push(res render.Resource, spec render.Spec) error {
	b.spec = spec
	if res == nil {
		return nil
	}
	if err := res.Update(spec); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeResourceReleased, "update resource").WithContext("widget", b.deps.WidgetID)
	}
	return nil
}

func (b *base) emit(name string, payload any) {
	if b.deps.Emit != nil {
		b.deps.Emit(name, payload)
	}
}

// chartChannels are consumed by every chart kind.
func chartChannels() []subscription.Key {
	return []subscription.Key{
		subscription.Scoped(EventWidgetUpdate),
		subscription.Scoped(EventChartUpdate),
		subscription.Shared(EventSharedChart),
	}
}
