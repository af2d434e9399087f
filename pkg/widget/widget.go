// Package widget defines the typed widget model shared by bindings and
// adapters: widget kinds, the host element contract, the config map and the
// kind-specific data shapes decoded from element attributes.
package widget

import "strings"

// Kind identifies which rendering adapter serves a widget.
type Kind string

const (
	KindLineChart        Kind = "line_chart"
	KindBarChart         Kind = "bar_chart"
	KindPieChart         Kind = "pie_chart"
	KindHeatmap          Kind = "heatmap"
	KindNetworkMap       Kind = "network_map"
	KindBandwidthMonitor Kind = "bandwidth_monitor"
	KindServiceStatus    Kind = "service_status"
	KindNumberCard       Kind = "number_card"
	KindTable            Kind = "table"
	KindGauge            Kind = "gauge"
)

// Kinds lists every supported kind.
var Kinds = []Kind{
	KindLineChart,
	KindBarChart,
	KindPieChart,
	KindHeatmap,
	KindNetworkMap,
	KindBandwidthMonitor,
	KindServiceStatus,
	KindNumberCard,
	KindTable,
	KindGauge,
}

var kindAliases = map[string]Kind{
	"linechart":            KindLineChart,
	"barchart":             KindBarChart,
	"piechart":             KindPieChart,
	"heatmap":              KindHeatmap,
	"networkmap":           KindNetworkMap,
	"bandwidthmonitor":     KindBandwidthMonitor,
	"servicestatus":        KindServiceStatus,
	"servicestatusmonitor": KindServiceStatus,
	"numbercard":           KindNumberCard,
	"table":                KindTable,
	"gauge":                KindGauge,
}

// ParseKind accepts snake_case names ("line_chart") as well as the
// CamelCase hook names ("LineChart", "ServiceStatusMonitor").
func ParseKind(raw string) (Kind, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "", "-", "", " ", "").Replace(key)
	k, ok := kindAliases[key]
	return k, ok
}

// IsChart reports whether the kind owns a chart instance that must follow
// container resizes.
func (k Kind) IsChart() bool {
	switch k {
	case KindLineChart, KindBarChart, KindPieChart, KindBandwidthMonitor:
		return true
	}
	return false
}

func (k Kind) String() string { return string(k) }

// Mount-contract attribute names. Hosts may prefix them with "data-".
const (
	AttrWidgetID   = "widget-id"
	AttrWidgetType = "widget-type"
	AttrChartData  = "chart-data"
	AttrConfig     = "config"
	AttrStatus     = "status"
	AttrItemID     = "id"
	AttrSurface    = "drop-surface"
	AttrFormat     = "format"
)

// legacy per-kind data attributes accepted when chart-data is absent
var dataAliases = map[Kind]string{
	KindNetworkMap:       "map-data",
	KindBandwidthMonitor: "bandwidth-data",
	KindServiceStatus:    "service-data",
	KindTable:            "table-data",
}

// Element is the host-owned node a widget binds to. Bindings hold it
// without owning it.
type Element interface {
	ID() string
	Attr(name string) (string, bool)
	Size() (width, height float64)
}

// LookupAttr resolves a mount-contract attribute, preferring the
// "data-" prefixed form.
func LookupAttr(el Element, name string) (string, bool) {
	if el == nil {
		return "", false
	}
	if v, ok := el.Attr("data-" + name); ok {
		return v, true
	}
	return el.Attr(name)
}

// LookupData returns the serialized data attribute for a widget kind.
func LookupData(el Element, kind Kind) (string, bool) {
	if v, ok := LookupAttr(el, AttrChartData); ok {
		return v, true
	}
	if alias, ok := dataAliases[kind]; ok {
		return LookupAttr(el, alias)
	}
	return "", false
}

// Instance is one widget definition bound to a host element.
type Instance struct {
	ID     string
	Kind   Kind
	Config Config
	Data   Data
}

// Interaction types forwarded from the host to adapters.
const (
	InteractClick = "click"
	InteractSort  = "sort"
)

// Interaction is a user action on a mounted widget.
type Interaction struct {
	Type   string `json:"type"`
	Column int    `json:"column,omitempty"`
}
