package adapter

import (
	"fmt"
	"math"

	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

// Canvas size used when the host reports none.
const (
	DefaultCanvasWidth  = 300
	DefaultCanvasHeight = 150
)

const heatmapStroke = "rgba(156, 163, 175, 0.3)"

// heatmap draws a value matrix as coloured cells.
type heatmap struct {
	base
}

func (h *heatmap) Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error) {
	h.cfg = cfg
	h.target = target
	return h.construct(target, backend, cfg, h.build(data))
}

func (h *heatmap) ApplyUpdate(res render.Resource, data widget.Data) error {
	return h.push(res, h.build(data))
}

// HeatColor maps an intensity in [0,1] onto a blue to red ramp. Values
// outside the range are clamped.
func HeatColor(t float64) string {
	if math.IsNaN(t) {
		t = 0
	}
	t = math.Min(math.Max(t, 0), 1)
	r := math.Round(255 * t)
	b := math.Round(255 * (1 - t))
	return fmt.Sprintf("rgb(%d, 100, %d)", int(r), int(b))
}

func (h *heatmap) normalize(v float64) float64 {
	if !h.cfg.Has("min") && !h.cfg.Has("max") {
		return v
	}
	lo, hi := 0.0, 1.0
	if h.cfg.Has("min") {
		lo = h.cfg.Number("min")
	}
	if h.cfg.Has("max") {
		hi = h.cfg.Number("max")
	}
	if hi == lo {
		return 0
	}
	return (v - lo) / (hi - lo)
}

func (h *heatmap) build(data widget.Data) render.CanvasSpec {
	hm, _ := data.(widget.HeatmapData)
	width, height := h.target.Width, h.target.Height
	if width <= 0 {
		width = DefaultCanvasWidth
	}
	if height <= 0 {
		height = DefaultCanvasHeight
	}

	cols := len(hm.XAxisLabels)
	if cols == 0 && len(hm.Values) > 0 {
		cols = len(hm.Values[0])
	}
	if cols == 0 {
		cols = 1
	}
	rows := len(hm.YAxisLabels)
	if rows == 0 {
		rows = len(hm.Values)
	}
	if rows == 0 {
		rows = 1
	}
	cw, ch := width/float64(cols), height/float64(rows)

	spec := render.CanvasSpec{Width: width, Height: height}
	for i, row := range hm.Values {
		for j, v := range row {
			spec.Cells = append(spec.Cells, render.Cell{
				X:      float64(j) * cw,
				Y:      float64(i) * ch,
				W:      cw,
				H:      ch,
				Fill:   HeatColor(h.normalize(v)),
				Stroke: heatmapStroke,
			})
		}
	}
	return spec
}
