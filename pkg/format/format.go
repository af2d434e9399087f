// Package format renders numeric widget values for display: grouped numbers,
// percentages, currency amounts, binary byte sizes and pie-slice shares.
package format

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Kind selects a display format.
type Kind string

const (
	Number     Kind = "number"
	Percentage Kind = "percentage"
	Currency   Kind = "currency"
	Bytes      Kind = "bytes"
)

// DefaultCurrencySymbol is used when a widget does not configure one.
const DefaultCurrencySymbol = "$"

// ParseKind maps a config value to a Kind. Unknown values report false.
func ParseKind(raw string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case Number:
		return Number, true
	case Percentage:
		return Percentage, true
	case Currency:
		return Currency, true
	case Bytes:
		return Bytes, true
	}
	return Number, false
}

// Spec pairs a format kind with its currency symbol.
type Spec struct {
	Kind   Kind
	Symbol string
}

func (s Spec) symbol() string {
	if s.Symbol == "" {
		return DefaultCurrencySymbol
	}
	return s.Symbol
}

func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

// Value formats a scalar display value (number cards, gauges). Numbers are
// rounded to whole units and grouped by thousands.
func Value(v float64, spec Spec) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	switch spec.Kind {
	case Percentage:
		return fmt.Sprintf("%.1f%%", v)
	case Currency:
		return spec.symbol() + printer().Sprintf("%.2f", v)
	case Bytes:
		return FormatBytes(v)
	default:
		return printer().Sprintf("%d", int64(math.Round(v)))
	}
}

// Axis formats chart tick and tooltip values. Unlike Value, plain numbers
// keep up to two fraction digits.
func Axis(v float64, spec Spec) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	switch spec.Kind {
	case Number, "":
		s := printer().Sprintf("%.2f", v)
		s = strings.TrimRight(s, "0")
		return strings.TrimSuffix(s, ".")
	default:
		return Value(v, spec)
	}
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count with 1024-based units: "0 B", "512 B",
// "1.5 KB", "1.0 MB".
func FormatBytes(v float64) string {
	if math.IsNaN(v) || v == 0 {
		return "0 B"
	}
	if v < 0 {
		return "-" + FormatBytes(-v)
	}
	i := 0
	scaled := v
	for scaled >= 1024 && i < len(byteUnits)-1 {
		scaled /= 1024
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d B", int64(math.Round(v)))
	}
	return fmt.Sprintf("%.1f %s", scaled, byteUnits[i])
}

// Share renders value as a percentage of total with one decimal place.
// A zero total yields "0.0%".
func Share(value, total float64) string {
	if total == 0 || math.IsNaN(total) || math.IsNaN(value) {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", value/total*100)
}
