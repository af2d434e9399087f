package engine

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/odvcencio/livewidgets/pkg/binding"
	"github.com/odvcencio/livewidgets/pkg/bus"
	"github.com/odvcencio/livewidgets/pkg/dom"
	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/kanban"
	"github.com/odvcencio/livewidgets/pkg/logging"
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/render/remote"
	"github.com/odvcencio/livewidgets/pkg/resize"
	"github.com/odvcencio/livewidgets/pkg/subscription"
	"github.com/odvcencio/livewidgets/pkg/telemetry"
	"github.com/odvcencio/livewidgets/pkg/toast"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

// Client message types sent by browsers.
const (
	MsgResize    = "resize"
	MsgInteract  = "interact"
	MsgDragStart = "dragstart"
	MsgDragOver  = "dragover"
	MsgDragLeave = "dragleave"
	MsgDrop      = "drop"
	MsgDragEnd   = "dragend"
)

// ClientMessage is one host event reported by a browser.
type ClientMessage struct {
	Type        string              `json:"type"`
	Element     string              `json:"element"`
	Width       float64             `json:"width,omitempty"`
	Height      float64             `json:"height,omitempty"`
	Interaction *widget.Interaction `json:"interaction,omitempty"`
	// Data is the drag transfer payload, when the browser supplies one.
	Data string `json:"data,omitempty"`
}

// IntentPublisher sends intents off the page.
type IntentPublisher interface {
	PublishIntent(ctx context.Context, pageID, name string, payload any) (bus.Intent, error)
}

// MountResult lists the element ids a fragment mounted.
type MountResult struct {
	Widgets  []string `json:"widgets"`
	Cards    []string `json:"cards,omitempty"`
	Surfaces []string `json:"surfaces,omitempty"`
	Degraded []string `json:"degraded,omitempty"`
}

// UpdateRequest is a host re-render of one element.
type UpdateRequest struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Config json.RawMessage `json:"config,omitempty"`
}

// Announcement is a page-wide notice.
type Announcement struct {
	Level      string  `json:"level"`
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	DurationMS float64 `json:"duration,omitempty"`
}

// WidgetState describes one mounted widget.
type WidgetState struct {
	ElementID string        `json:"element"`
	WidgetID  string        `json:"widget"`
	Tag       string        `json:"tag,omitempty"`
	Kind      widget.Kind   `json:"kind"`
	Title     string        `json:"title"`
	State     binding.State `json:"state"`
	Spec      render.Spec   `json:"spec,omitempty"`
}

// PageOptions configure a page.
type PageOptions struct {
	FrameRate int
	Sink      remote.Sink
	// Backend overrides the remote backend built on Sink.
	Backend     render.Backend
	Intents     IntentPublisher
	SourceClass string
	TargetClass string
	Logger      *logging.Logger
}

// Page is one live dashboard: its bindings, kanban surfaces and
// announcements, all driven by a single loop goroutine.
type Page struct {
	id      string
	loop    *Loop
	sink    remote.Sink
	remote  *remote.Backend
	backend render.Backend
	intents IntentPublisher
	logger  *logging.Logger
	tracer  trace.Tracer

	registry *subscription.Registry
	resize   *resize.Coordinator
	kanban   *kanban.Controller
	announce *toast.ToastManager
	transfer *kanban.DataTransfer

	bindings map[string]*binding.Binding
	widgets  map[string]string
	elements map[string]*dom.Element
}

// NewPage creates a page and starts its loop. The loop stops when ctx is
// done or Close is called.
func NewPage(ctx context.Context, id string, opts PageOptions) *Page {
	sink := opts.Sink
	if sink == nil {
		sink = remote.SinkFunc(func(remote.Frame) {})
	}
	p := &Page{
		id:       id,
		loop:     NewLoop(opts.FrameRate),
		sink:     sink,
		intents:  opts.Intents,
		logger:   opts.Logger.ForPage(id),
		tracer:   telemetry.Tracer(),
		registry: subscription.NewRegistry(),
		bindings: make(map[string]*binding.Binding),
		widgets:  make(map[string]string),
		elements: make(map[string]*dom.Element),
	}
	p.remote = remote.New(sink)
	p.backend = opts.Backend
	if p.backend == nil {
		p.backend = p.remote
	}
	p.resize = resize.NewCoordinator(func(elementID string, err error) {
		p.diagnostic(logging.CategoryBinding, err, elementID)
	})
	p.kanban = kanban.New(kanban.Options{
		SourceClass: opts.SourceClass,
		TargetClass: opts.TargetClass,
		Classes:     kanban.ClassFunc(p.setClass),
		Emit: func(in kanban.Intent) {
			p.emit(kanban.IntentUpdateStatus, in)
		},
		Logger: p.logger,
	})
	p.announce = toast.NewToastManager(p.loop)
	p.announce.SetOnChange(func(active []*toast.Toast) {
		p.sink.Send(toastFrame("", active))
	})

	go func() {
		_ = p.loop.Run(ctx)
	}()
	return p
}

// ID returns the page id.
func (p *Page) ID() string { return p.id }

// Done is closed once the page stops.
func (p *Page) Done() <-chan struct{} { return p.loop.Done() }

func (p *Page) bindingOptions() binding.Options {
	return binding.Options{
		Backend:  p.backend,
		Registry: p.registry,
		Resize:   p.resize,
		Frames:   p.loop,
		Timers:   p.loop,
		Emit:     p.emit,
		Notices: func(widgetID string, active []*toast.Toast) {
			p.sink.Send(toastFrame(p.widgets[widgetID], active))
		},
		Logger: p.logger,
	}
}

func (p *Page) span(ctx context.Context, name string) (context.Context, trace.Span) {
	ctx, span := p.tracer.Start(ctx, name)
	span.SetAttributes(telemetry.AttrPage.String(p.id))
	return ctx, span
}

// MountHTML binds every widget, card and drop surface found in fragment.
// An element id that is already mounted is torn down and replaced.
func (p *Page) MountHTML(ctx context.Context, fragment string) (MountResult, error) {
	ctx, span := p.span(ctx, "page.mount")
	defer span.End()

	frag, err := dom.ParseString(fragment)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return MountResult{}, err
	}
	var res MountResult
	var firstErr error
	err = p.loop.Do(ctx, func() {
		for _, el := range frag.Widgets {
			p.release(el.ID())
			b, err := binding.Mount(el, p.bindingOptions())
			if err != nil {
				p.diagnostic(logging.CategoryBinding, err, el.ID())
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			p.elements[el.ID()] = el
			p.bindings[el.ID()] = b
			p.widgets[b.ID()] = el.ID()
			if b.State() == binding.StateDegraded {
				res.Degraded = append(res.Degraded, el.ID())
				telemetry.ObserveLifecycle(string(b.Kind()), telemetry.LifecycleDegraded)
				telemetry.Diagnostics.WithLabelValues(string(apperrors.ErrCodeBackendUnavailable)).Inc()
			} else {
				telemetry.ObserveLifecycle(string(b.Kind()), telemetry.LifecycleMounted)
			}
			res.Widgets = append(res.Widgets, el.ID())
		}
		for _, el := range frag.Cards {
			p.release(el.ID())
			p.elements[el.ID()] = el
			res.Cards = append(res.Cards, el.ID())
		}
		for _, el := range frag.Surfaces {
			p.release(el.ID())
			p.elements[el.ID()] = el
			res.Surfaces = append(res.Surfaces, el.ID())
		}
	})
	if err != nil {
		return MountResult{}, err
	}
	if len(res.Widgets) == 0 && firstErr != nil {
		telemetry.RecordError(ctx, firstErr)
		return res, firstErr
	}
	return res, nil
}

// release destroys whatever is mounted on elementID. Loop only.
func (p *Page) release(elementID string) bool {
	_, ok := p.elements[elementID]
	if !ok {
		return false
	}
	if b, ok := p.bindings[elementID]; ok {
		mounted := b.State() == binding.StateMounted
		b.Destroy()
		if mounted {
			telemetry.ObserveLifecycle(string(b.Kind()), telemetry.LifecycleDestroyed)
		}
		delete(p.bindings, elementID)
		if p.widgets[b.ID()] == elementID {
			delete(p.widgets, b.ID())
		}
	}
	if p.kanban.Source() == elementID {
		p.kanban.Reset()
		p.transfer = nil
	}
	delete(p.elements, elementID)
	return true
}

// Update re-renders one mounted widget in place.
func (p *Page) Update(ctx context.Context, elementID string, req UpdateRequest) error {
	ctx, span := p.span(ctx, "page.update")
	defer span.End()
	span.SetAttributes(telemetry.AttrElement.String(elementID))

	var result error
	err := p.loop.Do(ctx, func() {
		b, ok := p.bindings[elementID]
		if !ok {
			result = unknownElement(elementID)
			return
		}
		var data widget.Data
		if len(req.Data) > 0 {
			d, err := widget.DecodeData(b.Kind(), req.Data)
			if err != nil {
				p.diagnostic(logging.CategoryBinding, err, b.ID())
				result = err
				return
			}
			data = d
			p.elements[elementID].SetAttr("data-"+widget.AttrChartData, string(req.Data))
		}
		var cfg *widget.Config
		if len(req.Config) > 0 {
			c, err := widget.ParseConfig(req.Config)
			if err != nil {
				p.diagnostic(logging.CategoryBinding, err, b.ID())
				result = err
				return
			}
			cfg = &c
			p.elements[elementID].SetAttr("data-"+widget.AttrConfig, string(req.Config))
		}
		result = b.Update(data, cfg)
	})
	if err != nil {
		return err
	}
	telemetry.RecordError(ctx, result)
	return result
}

// Destroy tears down one element.
func (p *Page) Destroy(ctx context.Context, elementID string) error {
	ctx, span := p.span(ctx, "page.destroy")
	defer span.End()
	span.SetAttributes(telemetry.AttrElement.String(elementID))

	var found bool
	if err := p.loop.Do(ctx, func() { found = p.release(elementID) }); err != nil {
		return err
	}
	if !found {
		return unknownElement(elementID)
	}
	return nil
}

// Dispatch delivers an update event to the page's subscriptions and
// returns how many callbacks ran.
func (p *Page) Dispatch(ctx context.Context, channel string, payload json.RawMessage) (int, error) {
	ctx, span := p.span(ctx, "page.dispatch")
	defer span.End()
	span.SetAttributes(telemetry.AttrChannel.String(channel))

	var n int
	if err := p.loop.Do(ctx, func() { n = p.registry.Dispatch(channel, payload) }); err != nil {
		return 0, err
	}
	if n == 0 {
		p.logger.Debug(logging.CategoryRegistry, "event_dropped", "", "no subscriber", map[string]any{"channel": channel})
	}
	return n, nil
}

// Announce shows a page-wide notice and returns its id.
func (p *Page) Announce(ctx context.Context, a Announcement) (string, error) {
	if strings.TrimSpace(a.Message) == "" && strings.TrimSpace(a.Title) == "" {
		return "", apperrors.New(apperrors.ErrCodeInvalidInput, "announcement needs a title or message")
	}
	var id string
	err := p.loop.Do(ctx, func() {
		id = p.announce.Show(toast.ParseLevel(a.Level), a.Title, a.Message, time.Duration(a.DurationMS*float64(time.Millisecond)))
	})
	return id, err
}

// HandleClient applies one browser event. For dragover the boolean tells
// the client to suppress its default handling; for resize it reports
// whether the size changed.
func (p *Page) HandleClient(ctx context.Context, msg ClientMessage) (bool, error) {
	var (
		handled bool
		result  error
	)
	err := p.loop.Do(ctx, func() {
		handled, result = p.handleClient(msg)
	})
	if err != nil {
		return false, err
	}
	return handled, result
}

func (p *Page) handleClient(msg ClientMessage) (bool, error) {
	switch msg.Type {
	case MsgResize:
		el, ok := p.elements[msg.Element]
		if !ok {
			return false, unknownElement(msg.Element)
		}
		el.SetSize(msg.Width, msg.Height)
		return p.resize.Notify(msg.Element, msg.Width, msg.Height), nil
	case MsgInteract:
		b, ok := p.bindings[msg.Element]
		if !ok {
			return false, unknownElement(msg.Element)
		}
		if msg.Interaction == nil {
			return false, apperrors.New(apperrors.ErrCodeInvalidInput, "interact without interaction")
		}
		err := b.Interact(*msg.Interaction)
		return err == nil, err
	case MsgDragStart:
		el, ok := p.elements[msg.Element]
		if !ok {
			return false, unknownElement(msg.Element)
		}
		itemID, _ := widget.LookupAttr(el, widget.AttrItemID)
		p.transfer = kanban.NewDataTransfer()
		p.kanban.DragStart(el.ID(), itemID, p.transfer)
		return true, nil
	case MsgDragOver:
		return p.kanban.DragOver(msg.Element), nil
	case MsgDragLeave:
		p.kanban.DragLeave(msg.Element)
		return true, nil
	case MsgDrop:
		status := ""
		if el, ok := p.elements[msg.Element]; ok {
			status, _ = widget.LookupAttr(el, widget.AttrStatus)
		}
		dt := p.transfer
		if msg.Data != "" {
			dt = kanban.NewDataTransfer()
			dt.SetData(kanban.TransferType, msg.Data)
		}
		p.transfer = nil
		_, emitted := p.kanban.Drop(msg.Element, status, dt)
		if !emitted {
			telemetry.Diagnostics.WithLabelValues(string(apperrors.ErrCodeIncompleteIntent)).Inc()
		}
		return emitted, nil
	case MsgDragEnd:
		p.kanban.DragEnd()
		p.transfer = nil
		return true, nil
	}
	return false, apperrors.New(apperrors.ErrCodeInvalidInput, "unknown client message").WithContext("type", msg.Type)
}

// Snapshot returns the frames a newly connected client needs.
func (p *Page) Snapshot(ctx context.Context) ([]remote.Frame, error) {
	var frames []remote.Frame
	err := p.loop.Do(ctx, func() { frames = p.snapshot() })
	return frames, err
}

// Attach calls attach with the current snapshot on the loop goroutine. Frames
// the page sends afterwards follow the snapshot, so a sink registered
// inside attach sees a gapless stream.
func (p *Page) Attach(ctx context.Context, attach func(snapshot []remote.Frame)) error {
	return p.loop.Do(ctx, func() { attach(p.snapshot()) })
}

func (p *Page) snapshot() []remote.Frame {
	frames := p.remote.Snapshot()
	ids := make([]string, 0, len(p.elements))
	for id := range p.elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, class := range p.elements[id].Classes() {
			if class == p.kanbanClass(true) || class == p.kanbanClass(false) {
				frames = append(frames, remote.Frame{Op: remote.OpClass, Element: id, Class: class, On: true})
			}
		}
	}
	if active := p.announce.Active(); len(active) > 0 {
		frames = append(frames, toastFrame("", active))
	}
	return frames
}

func (p *Page) kanbanClass(source bool) string {
	if source {
		return p.kanban.SourceClass()
	}
	return p.kanban.TargetClass()
}

// Widgets lists mounted widgets in element order.
func (p *Page) Widgets(ctx context.Context) ([]WidgetState, error) {
	var out []WidgetState
	err := p.loop.Do(ctx, func() {
		for elementID, b := range p.bindings {
			inst := b.Instance()
			tag := ""
			if el, ok := p.elements[elementID]; ok {
				tag = el.Tag()
			}
			out = append(out, WidgetState{
				ElementID: elementID,
				WidgetID:  b.ID(),
				Tag:       tag,
				Kind:      b.Kind(),
				Title:     inst.Config.String("title"),
				State:     b.State(),
				Spec:      b.Spec(),
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ElementID < out[j].ElementID })
	return out, err
}

// Close destroys every binding and stops the loop.
func (p *Page) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	teardown := func() {
		for id := range p.elements {
			p.release(id)
		}
		p.kanban.Reset()
		p.announce.Close()
	}
	if err := p.loop.Do(ctx, teardown); err != nil {
		// the loop already stopped; nothing else touches page state now
		select {
		case <-p.loop.Stopped():
			teardown()
		case <-ctx.Done():
		}
	}
	p.loop.Close()
}

func (p *Page) setClass(elementID, class string, on bool) {
	if el, ok := p.elements[elementID]; ok {
		el.SetClass(class, on)
	}
	p.sink.Send(remote.Frame{Op: remote.OpClass, Element: elementID, Class: class, On: on})
}

// emit publishes an intent from the loop.
func (p *Page) emit(name string, payload any) {
	telemetry.IntentsEmitted.WithLabelValues(name).Inc()
	p.sink.Send(remote.Frame{Op: remote.OpIntent, Name: name, Payload: payload})
	if p.intents == nil {
		p.logger.Info(logging.CategoryIntent, name, "", "intent emitted", map[string]any{"payload": payload})
		return
	}
	ctx, span := p.tracer.Start(context.Background(), "page.intent")
	defer span.End()
	span.SetAttributes(telemetry.AttrPage.String(p.id), telemetry.AttrIntent.String(name))
	in, err := p.intents.PublishIntent(ctx, p.id, name, payload)
	if err != nil {
		telemetry.RecordError(ctx, err)
		p.diagnostic(logging.CategoryIntent, apperrors.Wrap(err, apperrors.ErrCodeTransport, "publish intent").WithContext("intent", name), "")
		return
	}
	p.logger.Info(logging.CategoryIntent, name, "", "intent published", map[string]any{"id": in.ID})
}

// diagnostic counts err and logs it; codes the raising component absorbs
// are warnings, everything else is an error.
func (p *Page) diagnostic(category logging.Category, err error, widgetID string) {
	code := apperrors.GetCode(err)
	telemetry.Diagnostics.WithLabelValues(string(code)).Inc()
	if apperrors.IsRecoverable(err) {
		p.logger.Warn(category, string(code), widgetID, err.Error(), nil)
		return
	}
	p.logger.Error(category, string(code), widgetID, err.Error(), nil)
}

// toastFrame carries the visible toasts; an empty list clears them.
func toastFrame(elementID string, active []*toast.Toast) remote.Frame {
	f := remote.Frame{Op: remote.OpToast, Element: elementID}
	if len(active) > 0 {
		f.Payload = active
	}
	return f
}

func unknownElement(id string) error {
	return apperrors.New(apperrors.ErrCodeUnknownWidget, "element not mounted").WithContext("element", id)
}
