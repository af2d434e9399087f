package widget

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
)

// Data is the kind-specific payload a widget renders.
type Data interface {
	WidgetKind() Kind
}

// Point is one time-series sample.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// UnmarshalJSON accepts RFC 3339 strings or epoch milliseconds.
func (p *Point) UnmarshalJSON(raw []byte) error {
	var wire struct {
		Timestamp json.RawMessage `json:"timestamp"`
		Value     float64         `json:"value"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}
	p.Value = wire.Value
	p.Timestamp = parseTimestamp(wire.Timestamp)
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err == nil {
		return time.UnixMilli(int64(ms)).UTC()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// LineData is an ordered series for line charts.
type LineData struct {
	Points []Point
}

func (LineData) WidgetKind() Kind { return KindLineChart }

// BandwidthData carries rolling-window samples and summary figures. Nil
// summary fields were not present in the payload.
type BandwidthData struct {
	Samples []Point
	Current *float64
	Peak    *float64
	Average *float64
}

func (BandwidthData) WidgetKind() Kind { return KindBandwidthMonitor }

// BarSeries is one named bar series.
type BarSeries struct {
	Name string
	Data []float64
}

// BarData holds category labels and named series.
type BarData struct {
	Labels []string
	Series []BarSeries
}

func (BarData) WidgetKind() Kind { return KindBarChart }

// SeriesByName returns the named series, if present.
func (d BarData) SeriesByName(name string) (BarSeries, bool) {
	for _, s := range d.Series {
		if s.Name == name {
			return s, true
		}
	}
	return BarSeries{}, false
}

// Slice is one pie segment.
type Slice struct {
	Label string
	Value float64
}

// PieData preserves the label order of the source object.
type PieData struct {
	Slices []Slice
}

func (PieData) WidgetKind() Kind { return KindPieChart }

// Values returns the slice values in order.
func (d PieData) Values() []float64 {
	out := make([]float64, len(d.Slices))
	for i, s := range d.Slices {
		out[i] = s.Value
	}
	return out
}

// HeatmapData is a row-major value matrix with optional axis labels.
type HeatmapData struct {
	Values      [][]float64 `json:"values"`
	XAxisLabels []string    `json:"xAxisLabels"`
	YAxisLabels []string    `json:"yAxisLabels"`
}

func (HeatmapData) WidgetKind() Kind { return KindHeatmap }

// LinkStatus is the state of a network connection.
type LinkStatus string

const (
	LinkOnline  LinkStatus = "online"
	LinkOffline LinkStatus = "offline"
)

// Node is a network-map vertex positioned by percentage coordinates.
type Node struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Type string  `json:"type"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// Endpoint references a node by id or carries explicit coordinates.
type Endpoint struct {
	NodeID   string
	X, Y     float64
	HasPoint bool
}

// UnmarshalJSON accepts "node-id" or {"x":..,"y":..}.
func (e *Endpoint) UnmarshalJSON(raw []byte) error {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		*e = Endpoint{NodeID: id}
		return nil
	}
	var pt struct {
		X  *float64 `json:"x"`
		Y  *float64 `json:"y"`
		ID string   `json:"id"`
	}
	if err := json.Unmarshal(raw, &pt); err != nil {
		return err
	}
	*e = Endpoint{NodeID: pt.ID}
	if pt.X != nil && pt.Y != nil {
		e.X, e.Y, e.HasPoint = *pt.X, *pt.Y, true
	}
	return nil
}

// Edge connects two endpoints.
type Edge struct {
	From     Endpoint   `json:"from"`
	To       Endpoint   `json:"to"`
	Status   LinkStatus `json:"status"`
	Directed bool       `json:"directed"`
}

// NetworkData is the topology drawn by the network map.
type NetworkData struct {
	Nodes       []Node `json:"nodes"`
	Connections []Edge `json:"connections"`
}

func (NetworkData) WidgetKind() Kind { return KindNetworkMap }

// Service is one row of the service-status panel.
type Service struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Status       string   `json:"status"`
	ResponseTime *float64 `json:"response_time,omitempty"`
	Uptime       *float64 `json:"uptime,omitempty"`
}

// ServiceData lists monitored services.
type ServiceData struct {
	Services []Service
}

func (ServiceData) WidgetKind() Kind { return KindServiceStatus }

// NumberCardData is a scalar with an optional trend.
type NumberCardData struct {
	CurrentValue *float64 `json:"current_value"`
	Trend        string   `json:"trend"`
}

func (NumberCardData) WidgetKind() Kind { return KindNumberCard }

// GaugeData is a single gauge reading.
type GaugeData struct {
	Value *float64 `json:"value"`
}

func (GaugeData) WidgetKind() Kind { return KindGauge }

// Cell is one keyed table value.
type Cell struct {
	Key   string
	Value string
}

// Row is an ordered row mapping.
type Row []Cell

// TableData holds column headers and rows.
type TableData struct {
	Columns []string
	Rows    []Row
}

func (TableData) WidgetKind() Kind { return KindTable }

// Empty returns the zero data value for a kind.
func Empty(kind Kind) Data {
	switch kind {
	case KindLineChart:
		return LineData{}
	case KindBarChart:
		return BarData{}
	case KindPieChart:
		return PieData{}
	case KindHeatmap:
		return HeatmapData{}
	case KindNetworkMap:
		return NetworkData{}
	case KindBandwidthMonitor:
		return BandwidthData{}
	case KindServiceStatus:
		return ServiceData{}
	case KindNumberCard:
		return NumberCardData{}
	case KindTable:
		return TableData{}
	case KindGauge:
		return GaugeData{}
	}
	return nil
}

// DecodeData parses a serialized payload for kind. Blank input yields the
// empty value without error; malformed input yields the empty value and a
// MALFORMED_INPUT error.
func DecodeData(kind Kind, raw []byte) (Data, error) {
	empty := Empty(kind)
	if empty == nil {
		return nil, apperrors.New(apperrors.ErrCodeUnknownWidget, "unknown widget kind").WithContext("kind", string(kind))
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return empty, nil
	}
	data, err := decode(kind, trimmed)
	if err != nil {
		return empty, apperrors.Wrapf(err, apperrors.ErrCodeMalformedInput, "decode %s data", kind)
	}
	return data, nil
}

func decode(kind Kind, raw []byte) (Data, error) {
	switch kind {
	case KindLineChart:
		var points []Point
		if err := json.Unmarshal(raw, &points); err != nil {
			return nil, err
		}
		return LineData{Points: points}, nil
	case KindBandwidthMonitor:
		return decodeBandwidth(raw)
	case KindBarChart:
		return decodeBar(raw)
	case KindPieChart:
		return decodePie(raw)
	case KindHeatmap:
		var d HeatmapData
		err := json.Unmarshal(raw, &d)
		return d, err
	case KindNetworkMap:
		var d NetworkData
		err := json.Unmarshal(raw, &d)
		return d, err
	case KindServiceStatus:
		return decodeServices(raw)
	case KindNumberCard:
		var d NumberCardData
		err := json.Unmarshal(raw, &d)
		return d, err
	case KindGauge:
		var d GaugeData
		err := json.Unmarshal(raw, &d)
		return d, err
	case KindTable:
		return decodeTable(raw)
	}
	return nil, fmt.Errorf("unsupported kind %q", kind)
}

func decodeBandwidth(raw []byte) (Data, error) {
	var wire struct {
		Samples   []Point  `json:"samples"`
		Current   *float64 `json:"current_bandwidth"`
		Peak      *float64 `json:"peak_bandwidth"`
		Average   *float64 `json:"average_bandwidth"`
		Bandwidth *float64 `json:"bandwidth"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	d := BandwidthData{Samples: wire.Samples, Current: wire.Current, Peak: wire.Peak, Average: wire.Average}
	if wire.Bandwidth != nil {
		d.Samples = append(d.Samples, Point{Value: *wire.Bandwidth})
	}
	return d, nil
}

func decodeBar(raw []byte) (Data, error) {
	var wire struct {
		Labels []string `json:"labels"`
		Series []struct {
			Name string            `json:"name"`
			Data []json.RawMessage `json:"data"`
		} `json:"series"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	d := BarData{Labels: wire.Labels}
	for _, s := range wire.Series {
		series := BarSeries{Name: s.Name, Data: make([]float64, 0, len(s.Data))}
		for _, item := range s.Data {
			series.Data = append(series.Data, barValue(item))
		}
		d.Series = append(d.Series, series)
	}
	return d, nil
}

// barValue accepts a bare number or a {"y": n} point.
func barValue(raw json.RawMessage) float64 {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var pt struct {
		Y float64 `json:"y"`
	}
	_ = json.Unmarshal(raw, &pt)
	return pt.Y
}

func decodePie(raw []byte) (Data, error) {
	pairs, err := orderedObject(raw)
	if err != nil {
		return nil, err
	}
	var (
		labels []string
		values []float64
		d      PieData
	)
	for _, p := range pairs {
		var n float64
		if err := json.Unmarshal(p.value, &n); err == nil {
			d.Slices = append(d.Slices, Slice{Label: p.key, Value: n})
			continue
		}
		switch p.key {
		case "labels":
			_ = json.Unmarshal(p.value, &labels)
		case "values":
			_ = json.Unmarshal(p.value, &values)
		}
	}
	if len(d.Slices) == 0 && len(labels) > 0 {
		for i, label := range labels {
			v := 0.0
			if i < len(values) {
				v = values[i]
			}
			d.Slices = append(d.Slices, Slice{Label: label, Value: v})
		}
	}
	return d, nil
}

func decodeServices(raw []byte) (Data, error) {
	if raw[0] == '[' {
		var services []Service
		if err := json.Unmarshal(raw, &services); err != nil {
			return nil, err
		}
		return ServiceData{Services: services}, nil
	}
	var wire struct {
		Services []Service `json:"services"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	return ServiceData{Services: wire.Services}, nil
}

func decodeTable(raw []byte) (Data, error) {
	var wire struct {
		Columns []string          `json:"columns"`
		Rows    []json.RawMessage `json:"rows"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, err
	}
	d := TableData{Columns: wire.Columns}
	for _, rawRow := range wire.Rows {
		pairs, err := orderedObject(rawRow)
		if err != nil {
			return nil, err
		}
		row := make(Row, 0, len(pairs))
		for _, p := range pairs {
			row = append(row, Cell{Key: p.key, Value: cellText(p.value)})
		}
		d.Rows = append(d.Rows, row)
	}
	if len(d.Columns) == 0 && len(d.Rows) > 0 {
		for _, c := range d.Rows[0] {
			d.Columns = append(d.Columns, c.Key)
		}
	}
	return d, nil
}

func cellText(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(string(raw))
	}
}

type pair struct {
	key   string
	value json.RawMessage
}

// orderedObject decodes a JSON object keeping member order.
func orderedObject(raw []byte) ([]pair, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var pairs []pair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", keyTok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair{key: key, value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return pairs, nil
}
