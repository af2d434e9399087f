// Package render defines the contract between widget adapters and the
// backend that actually draws them. Adapters describe what to draw as a Spec;
// a Backend turns the first Spec into a Resource and the Resource absorbs
// every later Spec in place.
package render

import (
	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
)

// Target is the drawing surface a resource is attached to.
type Target struct {
	ID     string  `json:"id"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Spec is a declarative description of a rendered widget.
type Spec interface {
	SpecKind() string
}

//go:generate mockgen -package=mock_render -destination=mock_render/mock_render.go github.com/odvcencio/livewidgets/pkg/render Backend,Resource

// Backend constructs rendering resources.
type Backend interface {
	Name() string
	Available() bool
	Construct(target Target, spec Spec) (Resource, error)
}

// Resource is a live rendering owned by exactly one binding.
type Resource interface {
	Update(spec Spec) error
	Resize(width, height float64) error
	Destroy()
}

// ErrUnavailable is returned by Construct when the backend cannot draw.
var ErrUnavailable = apperrors.New(apperrors.ErrCodeBackendUnavailable, "rendering backend unavailable")

// ErrReleased is returned by resource calls after Destroy.
var ErrReleased = apperrors.New(apperrors.ErrCodeResourceReleased, "rendering resource released")

// Usable reports whether b can construct resources.
func Usable(b Backend) bool {
	return b != nil && b.Available()
}

const (
	KindChart     = "chart"
	KindCanvas    = "canvas"
	KindMarkup    = "markup"
	KindBandwidth = "bandwidth"
	KindScalar    = "scalar"
	KindTable     = "table"
)

// Chart types understood by chart backends.
const (
	ChartLine = "line"
	ChartBar  = "bar"
	ChartPie  = "pie"
)

// Dataset is one plotted series.
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BorderColor     string    `json:"borderColor,omitempty"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
	Fill            bool      `json:"fill"`
	Tension         float64   `json:"tension,omitempty"`
	// Tooltips holds one pre-formatted label per data point.
	Tooltips []string `json:"tooltips,omitempty"`
}

// ChartOptions carries the presentational switches of a chart.
type ChartOptions struct {
	Title          string   `json:"title,omitempty"`
	ShowLegend     bool     `json:"showLegend"`
	LegendPosition string   `json:"legendPosition,omitempty"`
	BeginAtZero    bool     `json:"beginAtZero"`
	ShowGrid       bool     `json:"showGrid"`
	Animate        bool     `json:"animate"`
	Ticks          []string `json:"ticks,omitempty"`
}

// ChartSpec describes a line, bar or pie chart.
type ChartSpec struct {
	Type     string       `json:"type"`
	Labels   []string     `json:"labels"`
	Datasets []Dataset    `json:"datasets"`
	Options  ChartOptions `json:"options"`
}

func (ChartSpec) SpecKind() string { return KindChart }

// Cell is one filled rectangle on a canvas.
type Cell struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	W      float64 `json:"w"`
	H      float64 `json:"h"`
	Fill   string  `json:"fill"`
	Stroke string  `json:"stroke,omitempty"`
}

// CanvasSpec is an immediate-mode drawing.
type CanvasSpec struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Cells  []Cell  `json:"cells"`
}

func (CanvasSpec) SpecKind() string { return KindCanvas }

// MarkupSpec replaces the element's content with HTML.
type MarkupSpec struct {
	HTML string `json:"html"`
}

func (MarkupSpec) SpecKind() string { return KindMarkup }

// BandwidthSpec is a rolling chart plus summary figures.
type BandwidthSpec struct {
	Chart   ChartSpec `json:"chart"`
	Current string    `json:"current,omitempty"`
	Peak    string    `json:"peak,omitempty"`
	Average string    `json:"average,omitempty"`
}

func (BandwidthSpec) SpecKind() string { return KindBandwidth }

// ScalarSpec is a single formatted value, used by number cards and gauges.
type ScalarSpec struct {
	Title string  `json:"title,omitempty"`
	Text  string  `json:"text"`
	Value float64 `json:"value"`
	// Ratio is the gauge fill in [0,1]; nil for number cards.
	Ratio      *float64 `json:"ratio,omitempty"`
	Trend      string   `json:"trend,omitempty"`
	TrendClass string   `json:"trendClass,omitempty"`
}

func (ScalarSpec) SpecKind() string { return KindScalar }

// TableSpec is a table with its current sort.
type TableSpec struct {
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
	SortColumn int        `json:"sortColumn"`
	SortDir    string     `json:"sortDir,omitempty"`
}

func (TableSpec) SpecKind() string { return KindTable }
