package adapter

import (
	"fmt"
	"math"

	"github.com/odvcencio/livewidgets/pkg/format"
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/subscription"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

const tickCount = 5

var piePalette = []string{
	"#3B82F6", "#EF4444", "#10B981", "#F59E0B",
	"#8B5CF6", "#F97316", "#EC4899", "#6366F1",
}

// ticks spreads tickCount labels across the value range.
func ticks(values []float64, beginAtZero bool, spec format.Spec) []string {
	if len(values) == 0 {
		return nil
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if beginAtZero && lo > 0 {
		lo = 0
	}
	if hi == lo {
		return []string{format.Axis(lo, spec)}
	}
	out := make([]string, tickCount)
	step := (hi - lo) / float64(tickCount-1)
	for i := range out {
		out[i] = format.Axis(lo+step*float64(i), spec)
	}
	return out
}

func tooltips(label string, values []float64, spec format.Spec) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = label + ": " + format.Axis(v, spec)
	}
	return out
}

// lineChart plots a single time series.
type lineChart struct {
	base
}

func (c *lineChart) Channels() []subscription.Key { return chartChannels() }

func (c *lineChart) Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error) {
	c.cfg = cfg
	return c.construct(target, backend, cfg, c.build(data, true))
}

func (c *lineChart) ApplyUpdate(res render.Resource, data widget.Data) error {
	return c.push(res, c.build(data, false))
}

func (c *lineChart) build(data widget.Data, animate bool) render.ChartSpec {
	line, _ := data.(widget.LineData)
	cfg := c.cfg
	layout := cfg.String("timeFormat")
	labels := make([]string, len(line.Points))
	values := make([]float64, len(line.Points))
	for i, p := range line.Points {
		if !p.Timestamp.IsZero() {
			labels[i] = p.Timestamp.Format(layout)
		}
		values[i] = p.Value
	}
	title := cfg.String("title")
	spec := cfg.Format()
	return render.ChartSpec{
		Type:   render.ChartLine,
		Labels: labels,
		Datasets: []render.Dataset{{
			Label:           title,
			Data:            values,
			BorderColor:     cfg.String("color"),
			BackgroundColor: []string{cfg.String("backgroundColor")},
			Fill:            cfg.Bool("fill"),
			Tension:         0.1,
			Tooltips:        tooltips(title, values, spec),
		}},
		Options: render.ChartOptions{
			Title:       title,
			ShowLegend:  cfg.Bool("showLegend"),
			BeginAtZero: cfg.Bool("beginAtZero"),
			ShowGrid:    cfg.Bool("showGrid"),
			Animate:     animate,
			Ticks:       ticks(values, cfg.Bool("beginAtZero"), spec),
		},
	}
}

// barChart plots one dataset per configured category.
type barChart struct {
	base
	labels []string
	series map[string][]float64
}

func (c *barChart) Channels() []subscription.Key { return chartChannels() }

func (c *barChart) Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error) {
	c.cfg = cfg
	c.series = make(map[string][]float64)
	c.merge(data)
	return c.construct(target, backend, cfg, c.build(true))
}

// ApplyUpdate replaces labels and only those series present in data.
func (c *barChart) ApplyUpdate(res render.Resource, data widget.Data) error {
	c.merge(data)
	return c.push(res, c.build(false))
}

func (c *barChart) merge(data widget.Data) {
	bar, _ := data.(widget.BarData)
	if c.series == nil {
		c.series = make(map[string][]float64)
	}
	c.labels = bar.Labels
	for _, s := range bar.Series {
		c.series[s.Name] = s.Data
	}
}

func (c *barChart) build(animate bool) render.ChartSpec {
	cfg := c.cfg
	spec := cfg.Format()
	categories := cfg.Strings("categories")
	colors := cfg.Strings("colors")
	var all []float64
	datasets := make([]render.Dataset, len(categories))
	for i, category := range categories {
		color := fmt.Sprintf("hsl(%d, 70%%, 50%%)", i*60)
		if i < len(colors) {
			color = colors[i]
		}
		values := append([]float64{}, c.series[category]...)
		all = append(all, values...)
		datasets[i] = render.Dataset{
			Label:           category,
			Data:            values,
			BackgroundColor: []string{color},
			Tooltips:        tooltips(category, values, spec),
		}
	}
	return render.ChartSpec{
		Type:     render.ChartBar,
		Labels:   append([]string{}, c.labels...),
		Datasets: datasets,
		Options: render.ChartOptions{
			Title:       cfg.String("title"),
			ShowLegend:  len(categories) > 1,
			BeginAtZero: true,
			ShowGrid:    cfg.Bool("showGrid"),
			Animate:     animate,
			Ticks:       ticks(all, true, spec),
		},
	}
}

// pieChart renders label shares.
type pieChart struct {
	base
}

func (c *pieChart) Channels() []subscription.Key { return chartChannels() }

func (c *pieChart) Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error) {
	c.cfg = cfg
	return c.construct(target, backend, cfg, c.build(data, true))
}

func (c *pieChart) ApplyUpdate(res render.Resource, data widget.Data) error {
	return c.push(res, c.build(data, false))
}

// PieShares returns each value's share of the total, one decimal place.
func PieShares(values []float64) []string {
	total := 0.0
	for _, v := range values {
		total += v
	}
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = format.Share(v, total)
	}
	return out
}

func (c *pieChart) build(data widget.Data, animate bool) render.ChartSpec {
	pie, _ := data.(widget.PieData)
	cfg := c.cfg
	spec := cfg.Format()
	values := pie.Values()
	shares := PieShares(values)
	labels := make([]string, len(pie.Slices))
	tips := make([]string, len(pie.Slices))
	for i, s := range pie.Slices {
		labels[i] = s.Label
		tips[i] = fmt.Sprintf("%s: %s (%s)", s.Label, format.Axis(s.Value, spec), shares[i])
	}
	palette := cfg.Strings("colors")
	if len(palette) == 0 {
		palette = piePalette
	}
	return render.ChartSpec{
		Type:   render.ChartPie,
		Labels: labels,
		Datasets: []render.Dataset{{
			Data:            values,
			BackgroundColor: palette,
			BorderColor:     "#ffffff",
			Tooltips:        tips,
		}},
		Options: render.ChartOptions{
			Title:          cfg.String("title"),
			ShowLegend:     true,
			LegendPosition: cfg.String("legendPosition"),
			Animate:        animate,
		},
	}
}
