// Package export writes a page's widgets to an XLSX workbook: a summary
// sheet plus one data sheet per mounted widget, with native charts for the
// chart kinds.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mattn/go-runewidth"
	"github.com/xuri/excelize/v2"

	"github.com/odvcencio/livewidgets/pkg/engine"
	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/render"
)

// SummarySheet is the first sheet of every workbook.
const SummarySheet = "Widgets"

const (
	maxSheetName = 31
	minColWidth  = 8
	maxColWidth  = 60
)

var summaryHeader = []any{"Element", "Widget", "Kind", "Title", "State", "Sheet"}

type sheetWriter struct {
	f      *excelize.File
	name   string
	widths map[int]int
	bold   int
}

// Workbook builds a workbook for widgets. The caller closes the file.
func Workbook(widgets []engine.WidgetState) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		_ = f.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExport, "naming summary sheet")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeExport, "creating header style")
	}

	summary := &sheetWriter{f: f, name: SummarySheet, widths: map[int]int{}, bold: bold}
	if err := summary.header(1, summaryHeader); err != nil {
		_ = f.Close()
		return nil, err
	}

	used := map[string]bool{strings.ToLower(SummarySheet): true}
	for i, w := range widgets {
		sheet := ""
		if w.Spec != nil {
			sheet = uniqueSheetName(w.WidgetID, w.ElementID, used)
			if _, err := f.NewSheet(sheet); err != nil {
				_ = f.Close()
				return nil, apperrors.Wrap(err, apperrors.ErrCodeExport, "adding sheet").WithContext("sheet", sheet)
			}
			sw := &sheetWriter{f: f, name: sheet, widths: map[int]int{}, bold: bold}
			if err := sw.spec(w.Spec); err != nil {
				_ = f.Close()
				return nil, apperrors.Wrap(err, apperrors.ErrCodeExport, "writing widget sheet").WithContext("element", w.ElementID)
			}
			if err := sw.fitColumns(); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
		row := []any{w.ElementID, w.WidgetID, string(w.Kind), w.Title, string(w.State), sheet}
		if err := summary.row(i+2, row); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	if err := summary.fitColumns(); err != nil {
		_ = f.Close()
		return nil, err
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write streams the workbook for widgets to w.
func Write(w io.Writer, widgets []engine.WidgetState) error {
	f, err := Workbook(widgets)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeExport, "writing workbook")
	}
	return nil
}

func (s *sheetWriter) spec(spec render.Spec) error {
	switch v := spec.(type) {
	case render.ChartSpec:
		return s.chart(v, 1)
	case render.BandwidthSpec:
		if err := s.chart(v.Chart, 1); err != nil {
			return err
		}
		next := len(v.Chart.Labels) + 3
		return s.pairs(next, [][2]string{{"Current", v.Current}, {"Peak", v.Peak}, {"Average", v.Average}})
	case render.ScalarSpec:
		pairs := [][2]string{{"Title", v.Title}, {"Text", v.Text}}
		if err := s.pairs(1, pairs); err != nil {
			return err
		}
		if err := s.row(3, []any{"Value", v.Value}); err != nil {
			return err
		}
		next := 4
		if v.Ratio != nil {
			if err := s.row(next, []any{"Ratio", *v.Ratio}); err != nil {
				return err
			}
			next++
		}
		if v.Trend != "" {
			return s.pairs(next, [][2]string{{"Trend", v.Trend}})
		}
		return nil
	case render.TableSpec:
		header := make([]any, len(v.Columns))
		for i, c := range v.Columns {
			header[i] = c
		}
		if err := s.header(1, header); err != nil {
			return err
		}
		for i, r := range v.Rows {
			cells := make([]any, len(r))
			for j, c := range r {
				cells[j] = c
			}
			if err := s.row(i+2, cells); err != nil {
				return err
			}
		}
		return nil
	case render.CanvasSpec:
		if err := s.header(1, []any{"X", "Y", "W", "H", "Fill", "Stroke"}); err != nil {
			return err
		}
		for i, c := range v.Cells {
			if err := s.row(i+2, []any{c.X, c.Y, c.W, c.H, c.Fill, c.Stroke}); err != nil {
				return err
			}
		}
		return nil
	case render.MarkupSpec:
		text, err := markupText(v.HTML)
		if err != nil {
			return err
		}
		return s.pairs(1, [][2]string{{"Text", text}})
	}
	return fmt.Errorf("unsupported spec kind %q", spec.SpecKind())
}

// chart writes labels down column A and one column per dataset, then
// anchors a native chart to the right of the data.
func (s *sheetWriter) chart(c render.ChartSpec, top int) error {
	header := []any{"Label"}
	for _, ds := range c.Datasets {
		header = append(header, ds.Label)
	}
	if err := s.header(top, header); err != nil {
		return err
	}
	for i, label := range c.Labels {
		cells := []any{label}
		for _, ds := range c.Datasets {
			if i < len(ds.Data) {
				cells = append(cells, ds.Data[i])
			} else {
				cells = append(cells, nil)
			}
		}
		if err := s.row(top+i+1, cells); err != nil {
			return err
		}
	}
	if len(c.Labels) == 0 || len(c.Datasets) == 0 {
		return nil
	}

	first, last := top+1, top+len(c.Labels)
	quoted := "'" + strings.ReplaceAll(s.name, "'", "''") + "'"
	var series []excelize.ChartSeries
	for i := range c.Datasets {
		col, err := excelize.ColumnNumberToName(i + 2)
		if err != nil {
			return err
		}
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("%s!$%s$%d", quoted, col, top),
			Categories: fmt.Sprintf("%s!$A$%d:$A$%d", quoted, first, last),
			Values:     fmt.Sprintf("%s!$%s$%d:$%s$%d", quoted, col, first, col, last),
		})
		if c.Type == render.ChartPie {
			break
		}
	}
	anchorCol, err := excelize.ColumnNumberToName(len(c.Datasets) + 3)
	if err != nil {
		return err
	}
	chart := &excelize.Chart{
		Type:   chartType(c.Type),
		Series: series,
		Legend: excelize.ChartLegend{Position: legendPosition(c.Options)},
	}
	if c.Options.Title != "" {
		chart.Title = []excelize.RichTextRun{{Text: c.Options.Title}}
	}
	return s.f.AddChart(s.name, fmt.Sprintf("%s%d", anchorCol, top), chart)
}

func chartType(t string) excelize.ChartType {
	switch t {
	case render.ChartBar:
		return excelize.Col
	case render.ChartPie:
		return excelize.Pie
	default:
		return excelize.Line
	}
}

func legendPosition(o render.ChartOptions) string {
	if !o.ShowLegend {
		return "none"
	}
	switch o.LegendPosition {
	case "top", "bottom", "left", "right":
		return o.LegendPosition
	}
	return "bottom"
}

func (s *sheetWriter) pairs(top int, kv [][2]string) error {
	for i, p := range kv {
		if err := s.row(top+i, []any{p[0], p[1]}); err != nil {
			return err
		}
	}
	return nil
}

func (s *sheetWriter) header(row int, cells []any) error {
	if err := s.row(row, cells); err != nil {
		return err
	}
	if len(cells) == 0 {
		return nil
	}
	end, err := excelize.CoordinatesToCellName(len(cells), row)
	if err != nil {
		return err
	}
	return s.f.SetCellStyle(s.name, fmt.Sprintf("A%d", row), end, s.bold)
}

func (s *sheetWriter) row(row int, cells []any) error {
	if len(cells) == 0 {
		return nil
	}
	if err := s.f.SetSheetRow(s.name, fmt.Sprintf("A%d", row), &cells); err != nil {
		return err
	}
	for i, c := range cells {
		if c == nil {
			continue
		}
		if w := runewidth.StringWidth(fmt.Sprint(c)); w > s.widths[i+1] {
			s.widths[i+1] = w
		}
	}
	return nil
}

func (s *sheetWriter) fitColumns() error {
	for col, w := range s.widths {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return err
		}
		width := float64(w + 2)
		if width < minColWidth {
			width = minColWidth
		}
		if width > maxColWidth {
			width = maxColWidth
		}
		if err := s.f.SetColWidth(s.name, name, name, width); err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeExport, "sizing column").WithContext("sheet", s.name)
		}
	}
	return nil
}

func markupText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// uniqueSheetName derives a valid, unused sheet name from the widget id.
func uniqueSheetName(widgetID, elementID string, used map[string]bool) string {
	base := sanitizeSheetName(widgetID)
	if base == "" {
		base = sanitizeSheetName(elementID)
	}
	if base == "" {
		base = "Widget"
	}
	name := base
	for n := 2; used[strings.ToLower(name)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		trimmed := []rune(base)
		if len(trimmed)+len(suffix) > maxSheetName {
			trimmed = trimmed[:maxSheetName-len(suffix)]
		}
		name = string(trimmed) + suffix
	}
	used[strings.ToLower(name)] = true
	return name
}

func sanitizeSheetName(raw string) string {
	clean := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(raw))
	clean = strings.Trim(clean, "'")
	if r := []rune(clean); len(r) > maxSheetName {
		clean = string(r[:maxSheetName])
	}
	return clean
}
