// Package kanban implements the drag-and-drop status controller used by task
// boards: a card dragged onto a column produces an update_status intent
// carrying the card id and the column's status.
package kanban

import (
	"strings"
	"sync"

	"github.com/odvcencio/livewidgets/pkg/logging"
)

// TransferType is the data-transfer key the dragged card id travels under.
const TransferType = "text/plain"

// Default affordance classes.
const (
	DefaultSourceClass = "opacity-50"
	DefaultTargetClass = "drop-target"
)

// IntentUpdateStatus is the name of the emitted intent.
const IntentUpdateStatus = "update_status"

// State is the controller's drag state.
type State string

const (
	StateIdle     State = "idle"
	StateDragging State = "dragging"
)

// Outcome describes how the last drag finished.
type Outcome string

const (
	OutcomeNone      Outcome = ""
	OutcomeDropped   Outcome = "dropped"
	OutcomeCancelled Outcome = "cancelled"
)

// Intent asks the server to move a card to a new status.
type Intent struct {
	ID        string `json:"id"`
	NewStatus string `json:"new_status"`
}

// DataTransfer carries drag payloads between dragstart and drop.
type DataTransfer struct {
	mu    sync.Mutex
	items map[string]string
}

// NewDataTransfer returns an empty transfer.
func NewDataTransfer() *DataTransfer {
	return &DataTransfer{items: make(map[string]string)}
}

// SetData stores value under format.
func (d *DataTransfer) SetData(format, value string) {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.items == nil {
		d.items = make(map[string]string)
	}
	d.items[format] = value
}

// GetData returns the value stored under format, or "".
func (d *DataTransfer) GetData(format string) string {
	if d == nil {
		return ""
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.items[format]
}

// ClassSink toggles a CSS class on a host element.
type ClassSink interface {
	SetClass(elementID, class string, on bool)
}

// ClassFunc adapts a function to ClassSink.
type ClassFunc func(elementID, class string, on bool)

func (f ClassFunc) SetClass(elementID, class string, on bool) { f(elementID, class, on) }

// Options configures a Controller.
type Options struct {
	SourceClass string
	TargetClass string
	Classes     ClassSink
	Emit        func(Intent)
	Logger      *logging.Logger
}

// Controller tracks the single active drag of one drop surface. Methods
// must be called from one goroutine, normally the page loop.
type Controller struct {
	opts    Options
	state   State
	outcome Outcome
	source  string
	itemID  string
	targets map[string]struct{}
}

// New returns an idle controller.
func New(opts Options) *Controller {
	if opts.SourceClass == "" {
		opts.SourceClass = DefaultSourceClass
	}
	if opts.TargetClass == "" {
		opts.TargetClass = DefaultTargetClass
	}
	return &Controller{opts: opts, state: StateIdle, targets: make(map[string]struct{})}
}

// State returns the current state.
func (c *Controller) State() State { return c.state }

// Outcome returns how the most recent drag finished.
func (c *Controller) Outcome() Outcome { return c.outcome }

// Source returns the element id of the card being dragged.
func (c *Controller) Source() string { return c.source }

// SourceClass returns the affordance class of the dragged card.
func (c *Controller) SourceClass() string { return c.opts.SourceClass }

// TargetClass returns the affordance class of hovered drop targets.
func (c *Controller) TargetClass() string { return c.opts.TargetClass }

// DragStart begins dragging itemID from sourceElement. A drag already in
// progress, or one dropped but not yet ended, is abandoned.
func (c *Controller) DragStart(sourceElement, itemID string, dt *DataTransfer) {
	c.clearSource()
	c.clearTargets()
	dt.SetData(TransferType, itemID)
	c.state = StateDragging
	c.outcome = OutcomeNone
	c.source = sourceElement
	c.itemID = itemID
	c.setClass(sourceElement, c.opts.SourceClass, true)
}

// DragOver marks targetElement as a potential drop target. It always
// returns true: the host must suppress its default so the drop can happen.
func (c *Controller) DragOver(targetElement string) bool {
	if _, ok := c.targets[targetElement]; !ok {
		c.targets[targetElement] = struct{}{}
		c.setClass(targetElement, c.opts.TargetClass, true)
	}
	return true
}

// DragLeave clears the target affordance without changing state.
func (c *Controller) DragLeave(targetElement string) {
	if _, ok := c.targets[targetElement]; !ok {
		return
	}
	delete(c.targets, targetElement)
	c.setClass(targetElement, c.opts.TargetClass, false)
}

// Drop finishes a drag on targetElement whose status label is status. The
// intent is emitted only when both the card id and the status are present;
// otherwise the drop is discarded. Either way the drag is over: the
// controller returns to idle and only the source affordance waits for
// DragEnd.
func (c *Controller) Drop(targetElement, status string, dt *DataTransfer) (Intent, bool) {
	c.DragLeave(targetElement)

	id := strings.TrimSpace(dt.GetData(TransferType))
	if id == "" {
		id = c.itemID
	}
	status = strings.TrimSpace(status)
	if c.state == StateDragging {
		c.outcome = OutcomeDropped
	}
	c.state = StateIdle
	c.itemID = ""
	if id == "" || status == "" {
		c.opts.Logger.Debug(logging.CategoryKanban, "incomplete_intent", "", "drop discarded", map[string]any{
			"target": targetElement,
			"id":     id,
			"status": status,
		})
		return Intent{}, false
	}

	intent := Intent{ID: id, NewStatus: status}
	if c.opts.Emit != nil {
		c.opts.Emit(intent)
	}
	return intent, true
}

// DragEnd always clears the affordances and returns to idle.
func (c *Controller) DragEnd() {
	if c.state == StateDragging && c.outcome != OutcomeDropped {
		c.outcome = OutcomeCancelled
	}
	c.clearSource()
	c.clearTargets()
	c.state = StateIdle
	c.itemID = ""
}

// Reset abandons any drag without emitting, used when the surface goes away.
func (c *Controller) Reset() {
	c.DragEnd()
}

func (c *Controller) clearSource() {
	if c.source != "" {
		c.setClass(c.source, c.opts.SourceClass, false)
	}
	c.source = ""
}

func (c *Controller) clearTargets() {
	for id := range c.targets {
		c.setClass(id, c.opts.TargetClass, false)
	}
	c.targets = make(map[string]struct{})
}

func (c *Controller) setClass(elementID, class string, on bool) {
	if c.opts.Classes == nil || elementID == "" {
		return
	}
	c.opts.Classes.SetClass(elementID, class, on)
}
