// Package tablesort orders table rows by a column. Cells that both read as
// numbers compare numerically; anything else compares with English
// collation. Sorting is stable and only moves rows, never cell text.
package tablesort

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Direction is the sort order.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// leadingNumber matches a decimal number at the start of a cell, so that
// "12 ms" reads as 12.
var leadingNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseNumber reads the leading decimal number of s.
func ParseNumber(s string) (float64, bool) {
	m := leadingNumber.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Compare orders two cell texts: numerically when both parse, otherwise by
// collation.
func Compare(col *collate.Collator, a, b string) int {
	if x, ok := ParseNumber(a); ok {
		if y, ok := ParseNumber(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return col.CompareString(a, b)
}

// SortFunc stably reorders rows in place by the text key returns for each.
func SortFunc[R any](rows []R, key func(R) string, dir Direction) {
	col := collate.New(language.English)
	slices.SortStableFunc(rows, func(a, b R) int {
		c := Compare(col, key(a), key(b))
		if dir == Descending {
			return -c
		}
		return c
	})
}

// Sort stably reorders rows by the cell at column. Rows missing the column
// compare as empty text.
func Sort(rows [][]string, column int, dir Direction) {
	SortFunc(rows, func(r []string) string {
		if column < 0 || column >= len(r) {
			return ""
		}
		return r[column]
	}, dir)
}

// Sorter remembers the active column and direction of an interactive table.
type Sorter struct {
	Column int
	Dir    Direction
}

// NewSorter returns a sorter with no active column.
func NewSorter() *Sorter {
	return &Sorter{Column: -1, Dir: Ascending}
}

// Click handles a header click: a new column sorts ascending, a repeated
// click on the active column reverses direction.
func (s *Sorter) Click(rows [][]string, column int) {
	if column == s.Column {
		if s.Dir == Ascending {
			s.Dir = Descending
		} else {
			s.Dir = Ascending
		}
	} else {
		s.Column, s.Dir = column, Ascending
	}
	Sort(rows, s.Column, s.Dir)
}

// Apply re-applies the active sort, e.g. after new rows arrive.
func (s *Sorter) Apply(rows [][]string) {
	if s.Column < 0 {
		return
	}
	Sort(rows, s.Column, s.Dir)
}

// Active reports whether a column is selected.
func (s *Sorter) Active() bool { return s.Column >= 0 }
