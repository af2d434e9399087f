package adapter

import (
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/tablesort"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

// table renders rows and keeps the user's sort across data updates.
type table struct {
	base
	columns []string
	rows    [][]string
	sorter  *tablesort.Sorter
}

func (t *table) Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error) {
	t.cfg = cfg
	t.sorter = tablesort.NewSorter()
	t.load(data)
	return t.construct(target, backend, cfg, t.build())
}

// ApplyUpdate replaces the rows and re-applies the active sort.
func (t *table) ApplyUpdate(res render.Resource, data widget.Data) error {
	t.load(data)
	return t.push(res, t.build())
}

// Interact handles header clicks.
func (t *table) Interact(res render.Resource, in widget.Interaction) error {
	if in.Type != widget.InteractSort || in.Column < 0 || in.Column >= len(t.columns) {
		return nil
	}
	t.sorter.Click(t.rows, in.Column)
	return t.push(res, t.build())
}

func (t *table) load(data widget.Data) {
	td, _ := data.(widget.TableData)
	if len(td.Columns) > 0 {
		t.columns = td.Columns
	}
	t.rows = make([][]string, 0, len(td.Rows))
	for _, row := range td.Rows {
		t.rows = append(t.rows, RowCells(row, t.columns))
	}
	if t.sorter == nil {
		t.sorter = tablesort.NewSorter()
	}
	t.sorter.Apply(t.rows)
}

// RowCells lays a keyed row out in column order. A column that matches no
// key takes the cell at the same position.
func RowCells(row widget.Row, columns []string) []string {
	if len(columns) == 0 {
		out := make([]string, len(row))
		for i, c := range row {
			out[i] = c.Value
		}
		return out
	}
	out := make([]string, len(columns))
	for i, col := range columns {
		found := false
		for _, c := range row {
			if c.Key == col {
				out[i], found = c.Value, true
				break
			}
		}
		if !found && i < len(row) {
			out[i] = row[i].Value
		}
	}
	return out
}

func (t *table) build() render.TableSpec {
	rows := make([][]string, len(t.rows))
	for i, r := range t.rows {
		rows[i] = append([]string(nil), r...)
	}
	spec := render.TableSpec{
		Columns:    append([]string(nil), t.columns...),
		Rows:       rows,
		SortColumn: -1,
	}
	if t.sorter.Active() {
		spec.SortColumn = t.sorter.Column
		spec.SortDir = string(t.sorter.Dir)
	}
	return spec
}
