package adapter

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/render/mock_render"
	"github.com/odvcencio/livewidgets/pkg/render/rendertest"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

type frameReq struct {
	fn        func(time.Time)
	cancelled bool
}

type manualFrames struct {
	pending []*frameReq
}

func (m *manualFrames) RequestFrame(fn func(time.Time)) func() {
	req := &frameReq{fn: fn}
	m.pending = append(m.pending, req)
	return func() { req.cancelled = true }
}

func (m *manualFrames) drain(start time.Time, step time.Duration) {
	now := start
	for i := 0; i < 200 && len(m.pending) > 0; i++ {
		batch := m.pending
		m.pending = nil
		for _, req := range batch {
			if !req.cancelled {
				req.fn(now)
			}
		}
		now = now.Add(step)
	}
}

func mustData(t *testing.T, kind widget.Kind, raw string) widget.Data {
	t.Helper()
	d, err := widget.DecodeData(kind, []byte(raw))
	require.NoError(t, err)
	return d
}

func mustConfig(t *testing.T, raw string) widget.Config {
	t.Helper()
	cfg, err := widget.ParseConfig([]byte(raw))
	require.NoError(t, err)
	return cfg
}

var samplePayloads = map[widget.Kind][2]string{
	widget.KindLineChart:        {`[{"timestamp":"2024-05-01T10:00:00Z","value":1}]`, `[{"timestamp":1714557660000,"value":2}]`},
	widget.KindBarChart:         {`{"labels":["a"],"series":[{"name":"default","data":[1]}]}`, `{"labels":["a","b"]}`},
	widget.KindPieChart:         {`{"a":1,"b":2}`, `{}`},
	widget.KindHeatmap:          {`{"values":[[0,1],[0.5,0.2]]}`, `{"values":[]}`},
	widget.KindNetworkMap:       {`{"nodes":[{"id":"a","name":"A","x":1,"y":2}]}`, `{"nodes":[]}`},
	widget.KindBandwidthMonitor: {`{"current_bandwidth":10}`, `{"bandwidth":2048}`},
	widget.KindServiceStatus:    {`[{"name":"api","status":"online"}]`, `[]`},
	widget.KindNumberCard:       {`{"current_value":5}`, `{"trend":"up"}`},
	widget.KindTable:            {`{"rows":[{"a":"1"}]}`, `{"rows":[]}`},
	widget.KindGauge:            {`{"value":50}`, `{"value":75}`},
}

func TestEveryKindKeepsExactlyOneResource(t *testing.T) {
	for _, kind := range widget.Kinds {
		t.Run(string(kind), func(t *testing.T) {
			rec := rendertest.NewRecorder()
			a, err := New(kind, Deps{WidgetID: "w"})
			require.NoError(t, err)
			payloads := samplePayloads[kind]

			res, err := a.Initialize(render.Target{ID: "w"}, rec, mustData(t, kind, payloads[0]), widget.Config{})
			require.NoError(t, err)
			for _, raw := range []string{payloads[1], "", payloads[0]} {
				require.NoError(t, a.ApplyUpdate(res, mustData(t, kind, raw)))
			}
			assert.Len(t, rec.Resources(), 1)
			assert.Equal(t, 1, rec.Live())
			assert.NotNil(t, a.Spec())
			assert.NotEmpty(t, a.Channels())
			a.Dispose()
		})
	}
}

func TestUnknownKind(t *testing.T) {
	_, err := New(widget.Kind("sparkline"), Deps{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknownWidget))
}

func TestUnavailableBackend(t *testing.T) {
	a, _ := New(widget.KindLineChart, Deps{WidgetID: "w"})
	res, err := a.Initialize(render.Target{ID: "w"}, rendertest.Unavailable{}, widget.LineData{}, widget.Config{})
	assert.Nil(t, res)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBackendUnavailable))

	_, err = a.Initialize(render.Target{ID: "w"}, nil, widget.LineData{}, widget.Config{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBackendUnavailable))
}

func TestConstructFailureIsWrapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mock_render.NewMockBackend(ctrl)
	backend.EXPECT().Available().Return(true)
	backend.EXPECT().Name().Return("mock").AnyTimes()
	backend.EXPECT().Construct(gomock.Any(), gomock.Any()).Return(nil, errors.New("no canvas"))

	a, _ := New(widget.KindPieChart, Deps{WidgetID: "pie"})
	_, err := a.Initialize(render.Target{ID: "pie"}, backend, widget.PieData{}, widget.Config{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeBackendUnavailable))
}

func TestUpdateOnReleasedResource(t *testing.T) {
	ctrl := gomock.NewController(t)
	backend := mock_render.NewMockBackend(ctrl)
	res := mock_render.NewMockResource(ctrl)
	backend.EXPECT().Available().Return(true)
	backend.EXPECT().Construct(render.Target{ID: "t"}, gomock.AssignableToTypeOf(render.TableSpec{})).Return(res, nil)
	res.EXPECT().Update(gomock.Any()).Return(render.ErrReleased)

	a, _ := New(widget.KindTable, Deps{WidgetID: "t"})
	got, err := a.Initialize(render.Target{ID: "t"}, backend, widget.TableData{}, widget.Config{})
	require.NoError(t, err)
	err = a.ApplyUpdate(got, widget.TableData{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeResourceReleased))
}

func TestLineChartUsesConfig(t *testing.T) {
	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindLineChart, Deps{WidgetID: "cpu"})
	cfg := mustConfig(t, `{"title":"CPU","format":"percentage","showGrid":false,"timeFormat":"15:04"}`)
	_, err := a.Initialize(render.Target{ID: "cpu"}, rec, mustData(t, widget.KindLineChart, `[{"timestamp":"2024-05-01T10:30:00Z","value":42.3}]`), cfg)
	require.NoError(t, err)

	spec := rec.Last().Latest().(render.ChartSpec)
	assert.Equal(t, render.ChartLine, spec.Type)
	assert.Equal(t, []string{"10:30"}, spec.Labels)
	assert.Equal(t, "CPU", spec.Datasets[0].Label)
	assert.Equal(t, []string{"CPU: 42.3%"}, spec.Datasets[0].Tooltips)
	assert.False(t, spec.Options.ShowGrid)
	assert.True(t, spec.Options.Animate)

	require.NoError(t, a.ApplyUpdate(rec.Last(), widget.LineData{}))
	assert.False(t, rec.Last().Latest().(render.ChartSpec).Options.Animate, "updates redraw without animation")
}

func TestBarUpdateKeepsAbsentSeries(t *testing.T) {
	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindBarChart, Deps{WidgetID: "bar"})
	cfg := mustConfig(t, `{"categories":["sales","costs"],"colors":["#111"]}`)
	initial := mustData(t, widget.KindBarChart, `{"labels":["q1"],"series":[{"name":"sales","data":[1]},{"name":"costs","data":[2]}]}`)
	res, err := a.Initialize(render.Target{ID: "bar"}, rec, initial, cfg)
	require.NoError(t, err)

	require.NoError(t, a.ApplyUpdate(res, mustData(t, widget.KindBarChart, `{"labels":["q1"],"series":[{"name":"sales","data":[{"y":9}]}]}`)))
	spec := rec.Last().Latest().(render.ChartSpec)
	require.Len(t, spec.Datasets, 2)
	assert.Equal(t, []float64{9}, spec.Datasets[0].Data)
	assert.Equal(t, []float64{2}, spec.Datasets[1].Data)
	assert.Equal(t, []string{"#111"}, spec.Datasets[0].BackgroundColor)
	assert.Equal(t, []string{"hsl(60, 70%, 50%)"}, spec.Datasets[1].BackgroundColor)
	assert.True(t, spec.Options.ShowLegend)
}

func TestPieShares(t *testing.T) {
	assert.Equal(t, []string{"10.0%", "30.0%", "60.0%"}, PieShares([]float64{10, 30, 60}))
	assert.Equal(t, []string{"0.0%", "0.0%"}, PieShares([]float64{0, 0}))

	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindPieChart, Deps{WidgetID: "pie"})
	_, err := a.Initialize(render.Target{ID: "pie"}, rec, mustData(t, widget.KindPieChart, `{"x":10,"y":30,"z":60}`), widget.Config{})
	require.NoError(t, err)
	spec := rec.Last().Latest().(render.ChartSpec)
	assert.Equal(t, []string{"x", "y", "z"}, spec.Labels)
	assert.Equal(t, "x: 10 (10.0%)", spec.Datasets[0].Tooltips[0])
	assert.Equal(t, "right", spec.Options.LegendPosition)
}

func TestBandwidthWindowHoldsLatestSixty(t *testing.T) {
	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindBandwidthMonitor, Deps{WidgetID: "net"})
	res, err := a.Initialize(render.Target{ID: "net"}, rec, widget.BandwidthData{}, widget.Config{})
	require.NoError(t, err)

	initial := rec.Last().Latest().(render.BandwidthSpec)
	assert.Len(t, initial.Chart.Datasets[0].Data, BandwidthWindow)
	assert.Equal(t, "60s", initial.Chart.Labels[0])

	for i := 1; i <= 75; i++ {
		v := float64(i)
		require.NoError(t, a.ApplyUpdate(res, widget.BandwidthData{Samples: []widget.Point{{Value: v}}}))
	}
	window := a.(*bandwidthMonitor).Window().Values()
	require.Len(t, window, BandwidthWindow)
	assert.Equal(t, 16.0, window[0])
	assert.Equal(t, 75.0, window[59])

	spec := rec.Last().Latest().(render.BandwidthSpec)
	assert.Equal(t, "75 B/s", spec.Current)
	assert.Equal(t, "75 B/s", spec.Peak)
	assert.False(t, spec.Chart.Options.Animate)
}

func TestRollingWindow(t *testing.T) {
	w := NewRollingWindow(3)
	assert.Equal(t, []float64{0, 0, 0}, w.Values())
	w.Push(1)
	w.Push(2)
	w.Push(3)
	w.Push(4)
	assert.Equal(t, []float64{2, 3, 4}, w.Values())
	assert.Equal(t, 3, w.Len())
	assert.Equal(t, 2.5, w.Average())
	assert.Equal(t, 4.0, w.Peak())
}

func TestHeatmapCells(t *testing.T) {
	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindHeatmap, Deps{WidgetID: "hm"})
	data := mustData(t, widget.KindHeatmap, `{"values":[[0,1],[2,-1]],"xAxisLabels":["a","b"],"yAxisLabels":["r1","r2"]}`)
	_, err := a.Initialize(render.Target{ID: "hm", Width: 200, Height: 100}, rec, data, widget.Config{})
	require.NoError(t, err)

	spec := rec.Last().Latest().(render.CanvasSpec)
	require.Len(t, spec.Cells, 4)
	assert.Equal(t, render.Cell{X: 100, Y: 0, W: 100, H: 50, Fill: "rgb(255, 100, 0)", Stroke: heatmapStroke}, spec.Cells[1])
	assert.Equal(t, "rgb(0, 100, 255)", spec.Cells[0].Fill)
	assert.Equal(t, "rgb(255, 100, 0)", spec.Cells[2].Fill, "clamped above")
	assert.Equal(t, "rgb(0, 100, 255)", spec.Cells[3].Fill, "clamped below")
}

func TestHeatmapDefaultsAndNormalization(t *testing.T) {
	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindHeatmap, Deps{WidgetID: "hm"})
	data := mustData(t, widget.KindHeatmap, `{"values":[[50]]}`)
	_, err := a.Initialize(render.Target{ID: "hm"}, rec, data, mustConfig(t, `{"min":0,"max":100}`))
	require.NoError(t, err)
	spec := rec.Last().Latest().(render.CanvasSpec)
	assert.Equal(t, float64(DefaultCanvasWidth), spec.Width)
	assert.Equal(t, "rgb(128, 100, 128)", spec.Cells[0].Fill)
}

func TestNetworkMapMarkup(t *testing.T) {
	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindNetworkMap, Deps{WidgetID: "net"})
	res, err := a.Initialize(render.Target{ID: "net"}, rec, widget.NetworkData{}, widget.Config{})
	require.NoError(t, err)
	assert.Contains(t, rec.Last().Latest().(render.MarkupSpec).HTML, "Network Map")

	data := mustData(t, widget.KindNetworkMap, `{
		"nodes":[{"id":"r","name":"<Core>","type":"router","x":10,"y":20},{"id":"s","name":"Edge","x":50,"y":50}],
		"connections":[
			{"from":"r","to":"s","status":"online","directed":true},
			{"from":"r","to":{"x":90,"y":90},"status":"offline"},
			{"from":"r","to":"ghost","status":"online"}
		]}`)
	require.NoError(t, a.ApplyUpdate(res, data))
	html := rec.Last().Latest().(render.MarkupSpec).HTML

	assert.Equal(t, 2, strings.Count(html, "<line "))
	assert.Contains(t, html, `stroke="#10b981"`)
	assert.Contains(t, html, `stroke-dasharray="5,5"`)
	assert.Contains(t, html, `marker-end="url(#arrow-net)"`)
	assert.Contains(t, html, "&lt;Core&gt;")
	assert.Contains(t, html, "bg-primary")
}

func TestServiceTiers(t *testing.T) {
	assert.Equal(t, TierSuccess, StatusTier("Online"))
	assert.Equal(t, TierWarning, StatusTier("degraded"))
	assert.Equal(t, TierError, StatusTier("offline"))
	assert.Equal(t, TierNeutral, StatusTier("maintenance"))
	assert.Equal(t, TierSuccess, UptimeTier(99))
	assert.Equal(t, TierWarning, UptimeTier(95))
	assert.Equal(t, TierError, UptimeTier(94.9))

	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindServiceStatus, Deps{WidgetID: "svc"})
	data := mustData(t, widget.KindServiceStatus, `{"services":[{"name":"db","status":"online","uptime":96.5,"response_time":12}]}`)
	_, err := a.Initialize(render.Target{ID: "svc"}, rec, data, widget.Config{})
	require.NoError(t, err)
	html := rec.Last().Latest().(render.MarkupSpec).HTML
	assert.Contains(t, html, "text-success")
	assert.Contains(t, html, "ONLINE")
	assert.Contains(t, html, "bg-warning")
	assert.Contains(t, html, "12ms")
	assert.Contains(t, html, "96.5%")
}

func TestNumberCardAnimatesToTarget(t *testing.T) {
	frames := &manualFrames{}
	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindNumberCard, Deps{WidgetID: "rev", Frames: frames})
	cfg := mustConfig(t, `{"format":"currency","duration":100}`)
	res, err := a.Initialize(render.Target{ID: "rev"}, rec, mustData(t, widget.KindNumberCard, `{"current_value":10}`), cfg)
	require.NoError(t, err)
	assert.Equal(t, "$10.00", rec.Last().Latest().(render.ScalarSpec).Text)

	require.NoError(t, a.ApplyUpdate(res, mustData(t, widget.KindNumberCard, `{"current_value":1234.5,"trend":"up"}`)))
	frames.drain(time.Unix(0, 0), 16*time.Millisecond)

	final := rec.Last().Latest().(render.ScalarSpec)
	assert.Equal(t, "$1,234.50", final.Text)
	assert.Equal(t, 1234.5, final.Value)
	assert.Equal(t, "text-green-600", final.TrendClass)

	var prev float64
	for _, s := range rec.Last().Specs {
		v := s.(render.ScalarSpec).Value
		assert.GreaterOrEqual(t, v, prev)
		prev = v
	}
}

func TestNumberCardDisposeStopsFrames(t *testing.T) {
	frames := &manualFrames{}
	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindNumberCard, Deps{WidgetID: "n", Frames: frames})
	res, _ := a.Initialize(render.Target{ID: "n"}, rec, widget.NumberCardData{}, widget.Config{})
	v := 100.0
	require.NoError(t, a.ApplyUpdate(res, widget.NumberCardData{CurrentValue: &v}))
	count := len(rec.Last().Specs)

	a.Dispose()
	frames.drain(time.Unix(0, 0), 50*time.Millisecond)
	assert.Len(t, rec.Last().Specs, count)
}

func TestGaugeDrillDown(t *testing.T) {
	var intents []DrillDown
	emit := func(name string, payload any) {
		assert.Equal(t, IntentDrillDown, name)
		intents = append(intents, payload.(DrillDown))
	}
	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindGauge, Deps{WidgetID: "g1", Emit: emit})
	res, err := a.Initialize(render.Target{ID: "g1"}, rec, mustData(t, widget.KindGauge, `{"value":150}`), mustConfig(t, `{"min":50,"max":250}`))
	require.NoError(t, err)

	spec := rec.Last().Latest().(render.ScalarSpec)
	require.NotNil(t, spec.Ratio)
	assert.Equal(t, 0.5, *spec.Ratio)

	ia, ok := a.(Interactive)
	require.True(t, ok)
	require.NoError(t, ia.Interact(res, widget.Interaction{Type: widget.InteractClick}))
	require.NoError(t, ia.Interact(res, widget.Interaction{Type: widget.InteractSort}))
	assert.Equal(t, []DrillDown{{WidgetID: "g1", Metric: "gauge_value"}}, intents)
}

func TestGaugeRatioClamps(t *testing.T) {
	assert.Equal(t, 0.0, GaugeRatio(-5, 0, 100))
	assert.Equal(t, 1.0, GaugeRatio(500, 0, 100))
	assert.Equal(t, 0.0, GaugeRatio(5, 10, 10))
}

func TestTableSortSurvivesUpdates(t *testing.T) {
	rec := rendertest.NewRecorder()
	a, _ := New(widget.KindTable, Deps{WidgetID: "t"})
	data := mustData(t, widget.KindTable, `{"columns":["host","load"],"rows":[{"host":"b","load":"10"},{"host":"a","load":"2"}]}`)
	res, err := a.Initialize(render.Target{ID: "t"}, rec, data, widget.Config{})
	require.NoError(t, err)

	ia := a.(Interactive)
	require.NoError(t, ia.Interact(res, widget.Interaction{Type: widget.InteractSort, Column: 1}))
	spec := rec.Last().Latest().(render.TableSpec)
	assert.Equal(t, [][]string{{"a", "2"}, {"b", "10"}}, spec.Rows)
	assert.Equal(t, 1, spec.SortColumn)

	update := mustData(t, widget.KindTable, `{"rows":[{"host":"c","load":"30"},{"host":"d","load":"4"}]}`)
	require.NoError(t, a.ApplyUpdate(res, update))
	spec = rec.Last().Latest().(render.TableSpec)
	assert.Equal(t, [][]string{{"d", "4"}, {"c", "30"}}, spec.Rows)
	assert.Equal(t, "asc", spec.SortDir)

	require.NoError(t, ia.Interact(res, widget.Interaction{Type: widget.InteractSort, Column: 9}))
	assert.Len(t, rec.Last().Specs, 3)
}

func TestRowCellsFallsBackToPosition(t *testing.T) {
	row := widget.Row{{Key: "h", Value: "db"}, {Key: "l", Value: "1"}}
	assert.Equal(t, []string{"db", "1"}, RowCells(row, []string{"Host", "Load"}))
	assert.Equal(t, []string{"1", "db"}, RowCells(row, []string{"l", "h"}))
	assert.Equal(t, []string{"db", "1"}, RowCells(row, nil))
}
