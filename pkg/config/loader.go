package config

import (
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
)

// loadAndMerge loads a YAML file and merges it into the config.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var override Config
	if err := yaml.Unmarshal(data, &override); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeConfigParse, "parsing YAML").WithContext("path", path)
	}

	mergeConfigs(cfg, &override, raw)
	return nil
}

// mergeConfigs merges override into base. Booleans only override when the
// key is present in the file, so an explicit false wins over a true default.
func mergeConfigs(base, override *Config, raw map[string]any) {
	if override == nil {
		return
	}

	if override.Server.Addr != "" {
		base.Server.Addr = override.Server.Addr
	}
	if len(override.Server.AllowedOrigins) > 0 {
		base.Server.AllowedOrigins = append([]string(nil), override.Server.AllowedOrigins...)
	}
	if override.Server.MaxBodyBytes != 0 {
		base.Server.MaxBodyBytes = override.Server.MaxBodyBytes
	}

	if override.Render.FrameRate != 0 {
		base.Render.FrameRate = override.Render.FrameRate
	}
	if boolFieldSet(raw, "render", "disabled") {
		base.Render.Disabled = override.Render.Disabled
	}

	if override.Kanban.SourceClass != "" {
		base.Kanban.SourceClass = override.Kanban.SourceClass
	}
	if override.Kanban.TargetClass != "" {
		base.Kanban.TargetClass = override.Kanban.TargetClass
	}

	if override.Bus.Driver != "" {
		base.Bus.Driver = override.Bus.Driver
	}
	if override.Bus.URL != "" {
		base.Bus.URL = override.Bus.URL
	}
	if override.Bus.Name != "" {
		base.Bus.Name = override.Bus.Name
	}
	if override.Bus.Timeout != 0 {
		base.Bus.Timeout = override.Bus.Timeout
	}

	if boolFieldSet(raw, "telemetry", "metrics") {
		base.Telemetry.Metrics = override.Telemetry.Metrics
	}
	if boolFieldSet(raw, "telemetry", "tracing") {
		base.Telemetry.Tracing = override.Telemetry.Tracing
	}
	if override.Telemetry.TraceOutput != "" {
		base.Telemetry.TraceOutput = override.Telemetry.TraceOutput
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Dir != "" {
		base.Logging.Dir = override.Logging.Dir
	}

	if boolFieldSet(raw, "limits", "max_connections") {
		base.Limits.MaxConnections = override.Limits.MaxConnections
	}
	if override.Limits.MessagesPerSecond != 0 {
		base.Limits.MessagesPerSecond = override.Limits.MessagesPerSecond
	}
	if override.Limits.Burst != 0 {
		base.Limits.Burst = override.Limits.Burst
	}
}

// boolFieldSet reports whether the key path exists in the raw document.
func boolFieldSet(raw map[string]any, path ...string) bool {
	if len(path) == 0 || raw == nil {
		return false
	}
	current := any(raw)
	for _, key := range path {
		m, ok := current.(map[string]any)
		if !ok {
			return false
		}
		val, ok := m[key]
		if !ok {
			return false
		}
		current = val
	}
	return true
}
