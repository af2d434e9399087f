package adapter

import (
	"bytes"
	"html/template"
	"unicode/utf8"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

// Link stroke styles.
const (
	LinkOnlineColor  = "#10b981"
	LinkOfflineColor = "#ef4444"
	LinkOfflineDash  = "5,5"
)

var networkTemplate = template.Must(template.New("network").Parse(`
{{- if not .Nodes -}}
<div class="flex items-center justify-center h-full text-base-content/60"><div class="text-center">Network Map</div></div>
{{- else -}}
<div class="relative h-full p-4">
<div class="network-nodes">
{{- range .Nodes}}
<div class="network-node absolute transform -translate-x-1/2 -translate-y-1/2" data-node-id="{{.ID}}" style="left: {{.X}}%; top: {{.Y}}%;">
<div class="relative"><div class="w-8 h-8 {{.Class}} rounded-full flex items-center justify-center text-white text-xs font-bold">{{.Initial}}</div>
<div class="absolute -bottom-6 left-1/2 transform -translate-x-1/2 text-xs whitespace-nowrap">{{.Name}}</div></div>
</div>
{{- end}}
</div>
<svg class="absolute inset-0 pointer-events-none" style="z-index: -1;">
<defs><marker id="{{.MarkerID}}" viewBox="0 0 10 10" refX="10" refY="5" markerWidth="6" markerHeight="6" orient="auto-start-reverse"><path d="M 0 0 L 10 5 L 0 10 z"/></marker></defs>
{{- range .Links}}
<line x1="{{.X1}}%" y1="{{.Y1}}%" x2="{{.X2}}%" y2="{{.Y2}}%" stroke="{{.Stroke}}" stroke-width="2" stroke-dasharray="{{.Dash}}"{{if .Directed}} marker-end="url(#{{$.MarkerID}})"{{end}}/>
{{- end}}
</svg>
</div>
{{- end}}`))

type nodeView struct {
	ID, Name, Initial, Class string
	X, Y                     float64
}

type linkView struct {
	X1, Y1, X2, Y2 float64
	Stroke, Dash   string
	Directed       bool
}

type networkView struct {
	MarkerID string
	Nodes    []nodeView
	Links    []linkView
}

// LinkStyle returns the stroke colour and dash pattern for a link status.
func LinkStyle(status widget.LinkStatus) (stroke, dash string) {
	if status == widget.LinkOnline {
		return LinkOnlineColor, "0"
	}
	return LinkOfflineColor, LinkOfflineDash
}

// networkMap positions nodes by percentage and joins them with SVG lines.
type networkMap struct {
	base
}

func (n *networkMap) Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error) {
	n.cfg = cfg
	spec, err := n.build(data)
	if err != nil {
		return nil, err
	}
	return n.construct(target, backend, cfg, spec)
}

func (n *networkMap) ApplyUpdate(res render.Resource, data widget.Data) error {
	spec, err := n.build(data)
	if err != nil {
		return err
	}
	return n.push(res, spec)
}

func (n *networkMap) build(data widget.Data) (render.MarkupSpec, error) {
	nd, _ := data.(widget.NetworkData)
	view := networkView{MarkerID: "arrow-" + n.deps.WidgetID}
	index := make(map[string]widget.Node, len(nd.Nodes))
	for _, node := range nd.Nodes {
		index[node.ID] = node
		class := "bg-secondary"
		if node.Type == "router" {
			class = "bg-primary"
		}
		initial := ""
		if r, size := utf8.DecodeRuneInString(node.Name); size > 0 {
			initial = string(r)
		}
		view.Nodes = append(view.Nodes, nodeView{ID: node.ID, Name: node.Name, Initial: initial, Class: class, X: node.X, Y: node.Y})
	}
	for _, edge := range nd.Connections {
		x1, y1, ok1 := resolve(edge.From, index)
		x2, y2, ok2 := resolve(edge.To, index)
		if !ok1 || !ok2 {
			continue
		}
		stroke, dash := LinkStyle(edge.Status)
		view.Links = append(view.Links, linkView{X1: x1, Y1: y1, X2: x2, Y2: y2, Stroke: stroke, Dash: dash, Directed: edge.Directed})
	}

	var buf bytes.Buffer
	if err := networkTemplate.Execute(&buf, view); err != nil {
		return render.MarkupSpec{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "render network map").WithContext("widget", n.deps.WidgetID)
	}
	return render.MarkupSpec{HTML: buf.String()}, nil
}

func resolve(ep widget.Endpoint, nodes map[string]widget.Node) (x, y float64, ok bool) {
	if ep.HasPoint {
		return ep.X, ep.Y, true
	}
	node, ok := nodes[ep.NodeID]
	if !ok {
		return 0, 0, false
	}
	return node.X, node.Y, true
}
