package widget

import (
	"bytes"
	"encoding/json"
	"reflect"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/format"
)

type fieldType int

const (
	fieldString fieldType = iota
	fieldNumber
	fieldBool
	fieldColor
	fieldEnum
	fieldStrings
)

type fieldSpec struct {
	typ    fieldType
	def    any
	values []string
}

// configFields documents every recognised key and its default. Keys outside
// this table are kept but only reachable through Raw.
var configFields = map[string]fieldSpec{
	"title":           {typ: fieldString, def: "Metric"},
	"showLegend":      {typ: fieldBool, def: false},
	"beginAtZero":     {typ: fieldBool, def: false},
	"showGrid":        {typ: fieldBool, def: true},
	"fill":            {typ: fieldBool, def: false},
	"format":          {typ: fieldEnum, def: "number", values: []string{"number", "percentage", "currency", "bytes"}},
	"currency":        {typ: fieldString, def: format.DefaultCurrencySymbol},
	"color":           {typ: fieldColor, def: "rgb(59, 130, 246)"},
	"backgroundColor": {typ: fieldColor, def: "rgba(59, 130, 246, 0.1)"},
	"legendPosition":  {typ: fieldEnum, def: "right", values: []string{"top", "bottom", "left", "right"}},
	"timeFormat":      {typ: fieldString, def: "15:04:05"},
	"duration":        {typ: fieldNumber, def: 500.0},
	"metric":          {typ: fieldString, def: "gauge_value"},
	"min":             {typ: fieldNumber, def: 0.0},
	"max":             {typ: fieldNumber, def: 100.0},
	"categories":      {typ: fieldStrings, def: []string{"default"}},
	"colors":          {typ: fieldStrings, def: []string{}},
}

var colorPattern = regexp.MustCompile(`^(#([0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})|(rgb|rgba|hsl|hsla)\([^()]*\)|[a-zA-Z]+)$`)

// Config is a widget's declarative configuration. Lookups fall back to the
// documented default when a key is absent or holds an invalid value; an
// explicit false or 0 is always honoured.
type Config struct {
	values map[string]any
}

// NewConfig wraps a decoded map.
func NewConfig(values map[string]any) Config {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Config{values: copied}
}

// ParseConfig decodes a config attribute. Blank input yields an empty
// config; malformed input yields an empty config and a MALFORMED_INPUT error.
func ParseConfig(raw []byte) (Config, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Config{}, nil
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return Config{}, apperrors.Wrap(err, apperrors.ErrCodeMalformedInput, "decode widget config")
	}
	return Config{values: values}, nil
}

// Has reports whether key was explicitly set.
func (c Config) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Raw returns a copy of the underlying map.
func (c Config) Raw() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Equal reports whether two configs hold the same values.
func (c Config) Equal(other Config) bool {
	if len(c.values) == 0 && len(other.values) == 0 {
		return true
	}
	return reflect.DeepEqual(c.values, other.values)
}

func (c Config) lookup(key string, want fieldType) (any, bool) {
	v, ok := c.values[key]
	if !ok {
		return nil, false
	}
	spec, known := configFields[key]
	typ := want
	if known {
		typ = spec.typ
	}
	switch typ {
	case fieldString:
		s, ok := v.(string)
		return s, ok
	case fieldNumber:
		n, ok := v.(float64)
		return n, ok
	case fieldBool:
		b, ok := v.(bool)
		return b, ok
	case fieldColor:
		s, ok := v.(string)
		if !ok || !colorPattern.MatchString(strings.TrimSpace(s)) {
			return nil, false
		}
		return strings.TrimSpace(s), true
	case fieldEnum:
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		s = strings.ToLower(strings.TrimSpace(s))
		for _, allowed := range spec.values {
			if s == allowed {
				return s, true
			}
		}
		return nil, false
	case fieldStrings:
		items, ok := v.([]any)
		if !ok {
			return nil, false
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func defaultOf[T any](key string) T {
	var zero T
	spec, ok := configFields[key]
	if !ok {
		return zero
	}
	if v, ok := spec.def.(T); ok {
		return v
	}
	return zero
}

// String returns a string-typed (string, color or enum) field.
func (c Config) String(key string) string {
	typ := fieldString
	if spec, ok := configFields[key]; ok {
		typ = spec.typ
	}
	if v, ok := c.lookup(key, typ); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return defaultOf[string](key)
}

// Bool returns a boolean field.
func (c Config) Bool(key string) bool {
	if v, ok := c.lookup(key, fieldBool); ok {
		return v.(bool)
	}
	return defaultOf[bool](key)
}

// Number returns a numeric field.
func (c Config) Number(key string) float64 {
	if v, ok := c.lookup(key, fieldNumber); ok {
		return v.(float64)
	}
	return defaultOf[float64](key)
}

// Strings returns a string-list field.
func (c Config) Strings(key string) []string {
	if v, ok := c.lookup(key, fieldStrings); ok {
		return v.([]string)
	}
	def := defaultOf[[]string](key)
	return append([]string(nil), def...)
}

// Duration reads a millisecond count.
func (c Config) Duration(key string) time.Duration {
	ms := c.Number(key)
	if ms < 0 {
		ms = 0
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// Format returns the display format for the widget's values.
func (c Config) Format() format.Spec {
	kind, _ := format.ParseKind(c.String("format"))
	return format.Spec{Kind: kind, Symbol: c.String("currency")}
}
