package dom

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

const fragment = `
<section>
  <div id="cpu" data-widget-id="cpu-1" data-widget-type="line_chart"
       data-chart-data='[{"timestamp":1,"value":2}]' data-config='{"title":"CPU"}'
       width="400" height="200px"></div>
  <div widget-id="net" widget-type="NetworkMap" map-data='{"nodes":[]}'></div>
  <ul>
    <li data-status="todo" data-drop-surface id="col-todo">
      <div data-id="task-7" draggable="true" class="card shadow">Fix</div>
    </li>
    <li data-status="done" data-drop-surface id="col-done"></li>
  </ul>
</section>`

func TestParseFindsMountContract(t *testing.T) {
	frag, err := ParseString(fragment)
	require.NoError(t, err)
	require.Len(t, frag.Widgets, 2)
	require.Len(t, frag.Cards, 1)
	require.Len(t, frag.Surfaces, 2)
	assert.Equal(t, 5, frag.Len())

	cpu := frag.Widgets[0]
	assert.Equal(t, "cpu", cpu.ID())
	assert.Equal(t, "div", cpu.Tag())
	w, h := cpu.Size()
	assert.Equal(t, 400.0, w)
	assert.Equal(t, 200.0, h)
	raw, ok := widget.LookupData(cpu, widget.KindLineChart)
	require.True(t, ok)
	assert.Equal(t, `[{"timestamp":1,"value":2}]`, raw)

	net := frag.Widgets[1]
	assert.Equal(t, "net", net.ID(), "widget id doubles as element id")
	raw, ok = widget.LookupData(net, widget.KindNetworkMap)
	require.True(t, ok)
	assert.Equal(t, `{"nodes":[]}`, raw)

	card := frag.Cards[0]
	assert.True(t, strings.HasPrefix(card.ID(), "lw-"))
	id, _ := widget.LookupAttr(card, widget.AttrItemID)
	assert.Equal(t, "task-7", id)
	assert.Equal(t, []string{"card", "shadow"}, card.Classes())

	status, _ := widget.LookupAttr(frag.Surfaces[1], widget.AttrStatus)
	assert.Equal(t, "done", status)
}

func TestElementClassesAndSize(t *testing.T) {
	el := NewElement("div", map[string]string{"ID": "x", "data-width": "bogus"})
	assert.Equal(t, "x", el.ID())
	w, _ := el.Size()
	assert.Zero(t, w)

	el.SetClass("opacity-50", true)
	assert.True(t, el.HasClass("opacity-50"))
	el.SetClass("opacity-50", false)
	assert.False(t, el.HasClass("opacity-50"))

	el.SetSize(10, 20)
	w, h := el.Size()
	assert.Equal(t, 10.0, w)
	assert.Equal(t, 20.0, h)

	el.SetAttr("data-config", `{}`)
	v, ok := el.Attr("DATA-CONFIG")
	assert.True(t, ok)
	assert.Equal(t, `{}`, v)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, assert.AnError }

func TestParseReaderError(t *testing.T) {
	_, err := Parse(failingReader{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMalformedInput))
}
