// Package dom mirrors the host elements of a rendered page fragment on the
// server. Widgets, kanban cards and drop surfaces are found by their
// mount-contract attributes.
package dom

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/oklog/ulid/v2"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

const (
	widgetSelector  = "[data-widget-type], [widget-type]"
	cardSelector    = "[data-id][draggable]"
	surfaceSelector = "[data-status][data-drop-surface]"
)

// Element is a server-side copy of one host node.
type Element struct {
	mu      sync.RWMutex
	id      string
	tag     string
	attrs   map[string]string
	classes map[string]bool
	width   float64
	height  float64
}

// NewElement builds an element from an attribute map. A missing id falls
// back to the widget id, then to a generated one.
func NewElement(tag string, attrs map[string]string) *Element {
	el := &Element{tag: tag, attrs: make(map[string]string, len(attrs)), classes: make(map[string]bool)}
	for k, v := range attrs {
		el.attrs[strings.ToLower(k)] = v
	}
	for _, c := range strings.Fields(el.attrs["class"]) {
		el.classes[c] = true
	}
	el.id = el.attrs["id"]
	if el.id == "" {
		if wid, ok := widget.LookupAttr(el, widget.AttrWidgetID); ok && wid != "" {
			el.id = wid
		}
	}
	if el.id == "" {
		el.id = "lw-" + strings.ToLower(ulid.Make().String())
	}
	el.width = dimension(el, "width")
	el.height = dimension(el, "height")
	return el
}

func dimension(el *Element, name string) float64 {
	raw, ok := widget.LookupAttr(el, name)
	if !ok {
		return 0
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "px")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func (e *Element) ID() string  { return e.id }
func (e *Element) Tag() string { return e.tag }

// Attr returns the raw attribute value.
func (e *Element) Attr(name string) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.attrs[strings.ToLower(name)]
	return v, ok
}

// SetAttr replaces an attribute value.
func (e *Element) SetAttr(name, value string) {
	e.mu.Lock()
	e.attrs[strings.ToLower(name)] = value
	e.mu.Unlock()
}

// Size returns the last reported content box.
func (e *Element) Size() (float64, float64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.width, e.height
}

// SetSize records a size reported by the host.
func (e *Element) SetSize(width, height float64) {
	e.mu.Lock()
	e.width, e.height = width, height
	e.mu.Unlock()
}

// HasClass reports whether class is set.
func (e *Element) HasClass(class string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.classes[class]
}

// SetClass adds or removes a class.
func (e *Element) SetClass(class string, on bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if on {
		e.classes[class] = true
	} else {
		delete(e.classes, class)
	}
}

// Classes returns the class list in sorted order.
func (e *Element) Classes() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.classes))
	for c := range e.classes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Fragment holds the interesting elements of one parsed HTML fragment in
// document order.
type Fragment struct {
	Widgets  []*Element
	Cards    []*Element
	Surfaces []*Element
}

// Len counts every element in the fragment.
func (f *Fragment) Len() int {
	return len(f.Widgets) + len(f.Cards) + len(f.Surfaces)
}

// Parse reads an HTML fragment.
func Parse(r io.Reader) (*Fragment, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeMalformedInput, "parse html fragment")
	}
	return &Fragment{
		Widgets:  collect(doc, widgetSelector),
		Cards:    collect(doc, cardSelector),
		Surfaces: collect(doc, surfaceSelector),
	}, nil
}

// ParseString is Parse over a string.
func ParseString(html string) (*Fragment, error) {
	return Parse(strings.NewReader(html))
}

func collect(doc *goquery.Document, selector string) []*Element {
	var out []*Element
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		if node == nil {
			return
		}
		attrs := make(map[string]string, len(node.Attr))
		for _, a := range node.Attr {
			attrs[a.Key] = a.Val
		}
		out = append(out, NewElement(goquery.NodeName(s), attrs))
	})
	return out
}
