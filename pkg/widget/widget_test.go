package widget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/format"
)

type attrElement struct {
	id    string
	attrs map[string]string
}

func (e attrElement) ID() string { return e.id }
func (e attrElement) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}
func (e attrElement) Size() (float64, float64) { return 0, 0 }

func TestParseKindAliases(t *testing.T) {
	cases := map[string]Kind{
		"line_chart":           KindLineChart,
		"LineChart":            KindLineChart,
		"bandwidth-monitor":    KindBandwidthMonitor,
		"ServiceStatusMonitor": KindServiceStatus,
		"number_card":          KindNumberCard,
	}
	for in, want := range cases {
		got, ok := ParseKind(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseKind("sparkline")
	assert.False(t, ok)
}

func TestIsChart(t *testing.T) {
	assert.True(t, KindLineChart.IsChart())
	assert.True(t, KindBandwidthMonitor.IsChart())
	assert.False(t, KindTable.IsChart())
	assert.False(t, KindHeatmap.IsChart())
}

func TestLookupAttrPrefersDataPrefix(t *testing.T) {
	el := attrElement{id: "w", attrs: map[string]string{
		"data-widget-id": "from-data",
		"widget-id":      "bare",
		"map-data":       `{"nodes":[]}`,
	}}
	v, ok := LookupAttr(el, AttrWidgetID)
	require.True(t, ok)
	assert.Equal(t, "from-data", v)

	v, ok = LookupData(el, KindNetworkMap)
	require.True(t, ok)
	assert.Equal(t, `{"nodes":[]}`, v)

	_, ok = LookupData(el, KindLineChart)
	assert.False(t, ok)
}

func TestConfigDefaultsAndPresence(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"showGrid": false, "beginAtZero": true, "format": "currency", "mystery": 7}`))
	require.NoError(t, err)

	assert.False(t, cfg.Bool("showGrid"), "explicit false must win over default true")
	assert.True(t, cfg.Bool("beginAtZero"))
	assert.False(t, cfg.Bool("showLegend"))
	assert.Equal(t, "Metric", cfg.String("title"))
	assert.Equal(t, format.Spec{Kind: format.Currency, Symbol: "$"}, cfg.Format())
	assert.True(t, cfg.Has("mystery"))
}

func TestConfigInvalidValuesFallBack(t *testing.T) {
	cfg := NewConfig(map[string]any{
		"format":         "roman",
		"legendPosition": "middle",
		"color":          "not a color!",
		"showLegend":     "yes",
		"duration":       0.0,
		"categories":     []any{"cpu", 3},
	})

	assert.Equal(t, "number", cfg.String("format"))
	assert.Equal(t, "right", cfg.String("legendPosition"))
	assert.Equal(t, "rgb(59, 130, 246)", cfg.String("color"))
	assert.False(t, cfg.Bool("showLegend"))
	assert.Equal(t, 0.0, cfg.Number("duration"), "explicit zero must be honoured")
	assert.Equal(t, []string{"default"}, cfg.Strings("categories"))
}

func TestParseConfigMalformed(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"title":`))
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMalformedInput))
	assert.Equal(t, "Metric", cfg.String("title"))

	cfg, err = ParseConfig(nil)
	require.NoError(t, err)
	assert.False(t, cfg.Has("title"))
}

func TestConfigEqual(t *testing.T) {
	a := NewConfig(map[string]any{"title": "CPU"})
	b := NewConfig(map[string]any{"title": "CPU"})
	c := NewConfig(map[string]any{"title": "RAM"})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.True(t, Config{}.Equal(NewConfig(nil)))
}
