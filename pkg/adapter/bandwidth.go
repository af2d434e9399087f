package adapter

import (
	"strconv"

	"github.com/odvcencio/livewidgets/pkg/format"
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/subscription"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

// BandwidthWindow is the number of samples a bandwidth monitor shows.
const BandwidthWindow = 60

// RollingWindow is a fixed-length sample buffer. Pushing shifts the oldest
// value out.
type RollingWindow struct {
	values []float64
	pushed int
	sum    float64
	peak   float64
}

// NewRollingWindow returns a window of size n filled with zeros.
func NewRollingWindow(n int) *RollingWindow {
	if n <= 0 {
		n = 1
	}
	return &RollingWindow{values: make([]float64, n)}
}

// Push appends v, discarding the oldest value.
func (w *RollingWindow) Push(v float64) {
	copy(w.values, w.values[1:])
	w.values[len(w.values)-1] = v
	w.pushed++
	w.sum += v
	if w.pushed == 1 || v > w.peak {
		w.peak = v
	}
}

// Values returns a copy of the window, oldest first.
func (w *RollingWindow) Values() []float64 {
	return append([]float64(nil), w.values...)
}

// Len is always the window size.
func (w *RollingWindow) Len() int { return len(w.values) }

// Pushed counts every value ever pushed.
func (w *RollingWindow) Pushed() int { return w.pushed }

// Latest returns the newest value.
func (w *RollingWindow) Latest() float64 { return w.values[len(w.values)-1] }

// Peak returns the largest value ever pushed.
func (w *RollingWindow) Peak() float64 { return w.peak }

// Average returns the mean of every value ever pushed.
func (w *RollingWindow) Average() float64 {
	if w.pushed == 0 {
		return 0
	}
	return w.sum / float64(w.pushed)
}

// bandwidthMonitor streams throughput samples into a rolling chart.
type bandwidthMonitor struct {
	base
	window  *RollingWindow
	current *float64
	peak    *float64
	average *float64
}

func (b *bandwidthMonitor) Channels() []subscription.Key {
	return []subscription.Key{
		subscription.Scoped(EventWidgetUpdate),
		subscription.Scoped(EventBandwidthUpdate),
	}
}

func (b *bandwidthMonitor) Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error) {
	b.cfg = cfg
	b.absorb(data)
	return b.construct(target, backend, cfg, b.build(true))
}

// ApplyUpdate pushes every new sample through the window and redraws
// without animation.
func (b *bandwidthMonitor) ApplyUpdate(res render.Resource, data widget.Data) error {
	b.absorb(data)
	return b.push(res, b.build(false))
}

// Window exposes the rolling buffer.
func (b *bandwidthMonitor) Window() *RollingWindow { return b.window }

func (b *bandwidthMonitor) absorb(data widget.Data) {
	bw, _ := data.(widget.BandwidthData)
	for _, s := range bw.Samples {
		b.window.Push(s.Value)
	}
	if bw.Current != nil {
		b.current = bw.Current
	} else if len(bw.Samples) > 0 {
		b.current = nil
	}
	if bw.Peak != nil {
		b.peak = bw.Peak
	}
	if bw.Average != nil {
		b.average = bw.Average
	}
}

func perSecond(v float64) string { return format.FormatBytes(v) + "/s" }

func (b *bandwidthMonitor) build(animate bool) render.BandwidthSpec {
	values := b.window.Values()
	labels := make([]string, len(values))
	for i := range labels {
		labels[i] = strconv.Itoa(len(values)-i) + "s"
	}
	tips := make([]string, len(values))
	for i, v := range values {
		tips[i] = perSecond(v)
	}
	bytesSpec := format.Spec{Kind: format.Bytes}

	current := b.window.Latest()
	if b.current != nil {
		current = *b.current
	}
	peak, average := b.window.Peak(), b.window.Average()
	if b.peak != nil && *b.peak > peak {
		peak = *b.peak
	}
	if b.average != nil {
		average = *b.average
	}

	return render.BandwidthSpec{
		Chart: render.ChartSpec{
			Type:   render.ChartLine,
			Labels: labels,
			Datasets: []render.Dataset{{
				Label:           "Bandwidth",
				Data:            values,
				BorderColor:     "#3b82f6",
				BackgroundColor: []string{"rgba(59, 130, 246, 0.1)"},
				Fill:            true,
				Tension:         0.4,
				Tooltips:        tips,
			}},
			Options: render.ChartOptions{
				Title:       b.cfg.String("title"),
				BeginAtZero: true,
				ShowGrid:    b.cfg.Bool("showGrid"),
				Animate:     animate,
				Ticks:       ticks(values, true, bytesSpec),
			},
		},
		Current: perSecond(current),
		Peak:    perSecond(peak),
		Average: perSecond(average),
	}
}
