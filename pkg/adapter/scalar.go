package adapter

import (
	"math"

	"github.com/odvcencio/livewidgets/pkg/animate"
	"github.com/odvcencio/livewidgets/pkg/logging"
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

// IntentDrillDown is emitted when a gauge is clicked.
const IntentDrillDown = "drill_down"

// DrillDown asks the server for detail behind a gauge metric.
type DrillDown struct {
	WidgetID string `json:"widget_id"`
	Metric   string `json:"metric"`
}

// TrendClass maps a trend keyword to its indicator class.
func TrendClass(trend string) string {
	switch trend {
	case "up":
		return "text-green-600"
	case "down":
		return "text-red-600"
	}
	return "text-gray-600"
}

// scalar shows one animated value. Number cards and gauges share it.
type scalar struct {
	base
	anim  *animate.Animator
	res   render.Resource
	trend string
	// ratio computes the gauge fill; nil for number cards.
	ratio func(v float64) *float64
}

func (s *scalar) initScalar(target render.Target, backend render.Backend, value float64, cfg widget.Config) (render.Resource, error) {
	s.cfg = cfg
	s.anim = animate.New(s.deps.Frames, cfg.Format(), cfg.Duration("duration"), s.onFrame)
	res, err := s.construct(target, backend, cfg, s.specFor(value, s.anim.Text(value)))
	if err != nil {
		return nil, err
	}
	s.res = res
	s.anim.Jump(value)
	return res, nil
}

func (s *scalar) Reconfigure(cfg widget.Config) {
	s.cfg = cfg
	if s.anim != nil {
		s.anim.SetFormat(cfg.Format())
		s.anim.SetDuration(cfg.Duration("duration"))
	}
}

// setValue animates from the displayed value to v.
func (s *scalar) setValue(res render.Resource, v float64) {
	s.res = res
	if s.anim == nil {
		return
	}
	s.anim.SetValue(v)
}

// refresh re-renders the current value without animating.
func (s *scalar) refresh(res render.Resource) error {
	s.res = res
	if s.anim == nil {
		return nil
	}
	v := s.anim.Value()
	return s.push(res, s.specFor(v, s.anim.Text(v)))
}

func (s *scalar) onFrame(v float64, text string) {
	next := s.specFor(v, text)
	if prev, ok := s.spec.(render.ScalarSpec); ok && sameScalar(prev, next) {
		return
	}
	if err := s.push(s.res, next); err != nil {
		s.deps.Logger.Warn(logging.CategoryAnimation, "frame_dropped", s.deps.WidgetID, err.Error(), nil)
	}
}

func (s *scalar) specFor(v float64, text string) render.ScalarSpec {
	spec := render.ScalarSpec{
		Title: s.cfg.String("title"),
		Text:  text,
		Value: v,
		Trend: s.trend,
	}
	if s.trend != "" {
		spec.TrendClass = TrendClass(s.trend)
	}
	if s.ratio != nil {
		spec.Ratio = s.ratio(v)
	}
	return spec
}

func sameScalar(a, b render.ScalarSpec) bool {
	if a.Text != b.Text || a.Trend != b.Trend || a.Title != b.Title {
		return false
	}
	if (a.Ratio == nil) != (b.Ratio == nil) {
		return false
	}
	return a.Ratio == nil || *a.Ratio == *b.Ratio
}

func (s *scalar) Dispose() {
	if s.anim != nil {
		s.anim.Stop()
	}
	s.res = nil
}

// numberCard is a big animated figure with a trend indicator.
type numberCard struct {
	scalar
}

func (n *numberCard) Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error) {
	nd, _ := data.(widget.NumberCardData)
	n.trend = nd.Trend
	value := 0.0
	if nd.CurrentValue != nil {
		value = *nd.CurrentValue
	}
	return n.initScalar(target, backend, value, cfg)
}

// ApplyUpdate animates to the new value. An update without a value only
// refreshes the trend.
func (n *numberCard) ApplyUpdate(res render.Resource, data widget.Data) error {
	nd, _ := data.(widget.NumberCardData)
	if nd.Trend != "" {
		n.trend = nd.Trend
	}
	if nd.CurrentValue == nil {
		return n.refresh(res)
	}
	n.setValue(res, *nd.CurrentValue)
	return nil
}

// gauge is a bounded scalar that drills down on click.
type gauge struct {
	scalar
}

func (g *gauge) Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error) {
	gd, _ := data.(widget.GaugeData)
	g.ratio = g.fill
	value := 0.0
	if gd.Value != nil {
		value = *gd.Value
	}
	return g.initScalar(target, backend, value, cfg)
}

func (g *gauge) ApplyUpdate(res render.Resource, data widget.Data) error {
	gd, _ := data.(widget.GaugeData)
	if gd.Value == nil {
		return g.refresh(res)
	}
	g.setValue(res, *gd.Value)
	return nil
}

// GaugeRatio places v between lo and hi, clamped to [0,1].
func GaugeRatio(v, lo, hi float64) float64 {
	if hi <= lo || math.IsNaN(v) {
		return 0
	}
	return clamp((v-lo)/(hi-lo), 0, 1)
}

func (g *gauge) fill(v float64) *float64 {
	r := GaugeRatio(v, g.cfg.Number("min"), g.cfg.Number("max"))
	return &r
}

// Interact emits a drill-down intent on click.
func (g *gauge) Interact(_ render.Resource, in widget.Interaction) error {
	if in.Type != widget.InteractClick {
		return nil
	}
	g.emit(IntentDrillDown, DrillDown{WidgetID: g.deps.WidgetID, Metric: g.cfg.String("metric")})
	return nil
}
