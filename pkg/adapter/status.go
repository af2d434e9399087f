package adapter

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
	"github.com/odvcencio/livewidgets/pkg/render"
	"github.com/odvcencio/livewidgets/pkg/widget"
)

// Tier is a severity bucket used to colour status indicators.
type Tier string

const (
	TierSuccess Tier = "success"
	TierWarning Tier = "warning"
	TierError   Tier = "error"
	TierNeutral Tier = "neutral"
)

// StatusTier buckets a service status string.
func StatusTier(status string) Tier {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "online":
		return TierSuccess
	case "degraded":
		return TierWarning
	case "offline":
		return TierError
	}
	return TierNeutral
}

// UptimeTier buckets an uptime percentage, independently of status.
func UptimeTier(uptime float64) Tier {
	switch {
	case uptime >= 99:
		return TierSuccess
	case uptime >= 95:
		return TierWarning
	}
	return TierError
}

var statusTemplate = template.Must(template.New("status").Parse(`<div class="space-y-2">
{{- range .}}
<div class="p-3 bg-base-100 rounded-lg border border-base-300">
<div class="flex items-center justify-between">
<div class="flex items-center gap-3"><div class="w-2 h-2 rounded-full bg-{{.Tier}}"></div>
<div><div class="font-medium text-sm">{{.Name}}</div>{{if .Description}}<div class="text-xs text-base-content/60">{{.Description}}</div>{{end}}</div></div>
<div class="text-right"><div class="text-xs font-medium text-{{.Tier}}">{{.Status}}</div>{{if .ResponseTime}}<div class="text-xs text-base-content/60">{{.ResponseTime}}ms</div>{{end}}</div>
</div>
{{- if .HasUptime}}
<div class="mt-2"><div class="flex items-center justify-between text-xs text-base-content/60 mb-1"><span>Uptime</span><span>{{.Uptime}}%</span></div>
<div class="progress w-full h-1 bg-base-200"><div class="progress-bar bg-{{.UptimeTier}}" style="width: {{.UptimeWidth}}%"></div></div></div>
{{- end}}
</div>
{{- end}}
</div>`))

type serviceView struct {
	Name, Description, Status string
	Tier                      Tier
	ResponseTime              string
	HasUptime                 bool
	Uptime                    string
	UptimeWidth               float64
	UptimeTier                Tier
}

// serviceStatus lists services with status and uptime indicators.
type serviceStatus struct {
	base
}

func (s *serviceStatus) Initialize(target render.Target, backend render.Backend, data widget.Data, cfg widget.Config) (render.Resource, error) {
	s.cfg = cfg
	spec, err := s.build(data)
	if err != nil {
		return nil, err
	}
	return s.construct(target, backend, cfg, spec)
}

func (s *serviceStatus) ApplyUpdate(res render.Resource, data widget.Data) error {
	spec, err := s.build(data)
	if err != nil {
		return err
	}
	return s.push(res, spec)
}

func (s *serviceStatus) build(data widget.Data) (render.MarkupSpec, error) {
	sd, _ := data.(widget.ServiceData)
	views := make([]serviceView, 0, len(sd.Services))
	for _, svc := range sd.Services {
		v := serviceView{
			Name:        svc.Name,
			Description: svc.Description,
			Status:      strings.ToUpper(svc.Status),
			Tier:        StatusTier(svc.Status),
		}
		if svc.ResponseTime != nil && *svc.ResponseTime != 0 {
			v.ResponseTime = strconv.FormatFloat(*svc.ResponseTime, 'f', -1, 64)
		}
		if svc.Uptime != nil {
			v.HasUptime = true
			v.Uptime = strconv.FormatFloat(*svc.Uptime, 'f', -1, 64)
			v.UptimeWidth = clamp(*svc.Uptime, 0, 100)
			v.UptimeTier = UptimeTier(*svc.Uptime)
		}
		views = append(views, v)
	}
	var buf bytes.Buffer
	if err := statusTemplate.Execute(&buf, views); err != nil {
		return render.MarkupSpec{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "render service status").WithContext("widget", s.deps.WidgetID)
	}
	return render.MarkupSpec{HTML: buf.String()}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
