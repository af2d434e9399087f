// Package config loads livewidgets settings from YAML files and the
// environment.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
)

// Bus drivers.
const (
	BusDriverMemory = "memory"
	BusDriverNATS   = "nats"
)

// Config is the complete livewidgets configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Render    RenderConfig    `yaml:"render"`
	Kanban    KanbanConfig    `yaml:"kanban"`
	Bus       BusConfig       `yaml:"bus"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Limits    LimitsConfig    `yaml:"limits"`
}

// ServerConfig configures the HTTP and websocket listener.
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// MaxBodyBytes caps mount and update request bodies.
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// RenderConfig controls the page frame clock and rendering backend.
type RenderConfig struct {
	FrameRate int `yaml:"frame_rate"`
	// Disabled mounts every widget degraded, e.g. for headless event relays.
	Disabled bool `yaml:"disabled"`
}

// KanbanConfig names the drag feedback classes.
type KanbanConfig struct {
	SourceClass string `yaml:"source_class"`
	TargetClass string `yaml:"target_class"`
}

// BusConfig selects the message bus for host events and intents.
type BusConfig struct {
	Driver  string        `yaml:"driver"`
	URL     string        `yaml:"url"`
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig toggles tracing and metrics.
type TelemetryConfig struct {
	Metrics bool `yaml:"metrics"`
	Tracing bool `yaml:"tracing"`
	// TraceOutput is "stdout", "stderr" or a file path.
	TraceOutput string `yaml:"trace_output"`
}

// LoggingConfig configures the structured event log.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// LimitsConfig bounds client traffic.
type LimitsConfig struct {
	MaxConnections    int     `yaml:"max_connections"`
	MessagesPerSecond float64 `yaml:"messages_per_second"`
	Burst             int     `yaml:"burst"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         "127.0.0.1:4680",
			MaxBodyBytes: 1 << 20,
		},
		Render: RenderConfig{
			FrameRate: 60,
		},
		Kanban: KanbanConfig{
			SourceClass: "dragging",
			TargetClass: "drag-over",
		},
		Bus: BusConfig{
			Driver:  BusDriverMemory,
			URL:     "nats://127.0.0.1:4222",
			Name:    "livewidgets",
			Timeout: 10 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Metrics:     true,
			TraceOutput: "stderr",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Limits: LimitsConfig{
			MaxConnections:    256,
			MessagesPerSecond: 120,
			Burst:             240,
		},
	}
}

// Load loads configuration from default locations with proper precedence:
// defaults, then ~/.livewidgets/config.yaml, then ./.livewidgets/config.yaml,
// then LIVEWIDGETS_* environment variables.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	if home != "" {
		userConfigPath := filepath.Join(home, ".livewidgets", "config.yaml")
		if err := loadAndMerge(cfg, userConfigPath); err != nil && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "loading user config").WithContext("path", userConfigPath)
		}
	}

	projectConfigPath := filepath.Join(".", ".livewidgets", "config.yaml")
	if err := loadAndMerge(cfg, projectConfigPath); err != nil && !os.IsNotExist(err) {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "loading project config").WithContext("path", projectConfigPath)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := loadAndMerge(cfg, path); err != nil {
		if apperrors.IsCode(err, apperrors.ErrCodeConfigParse) {
			return nil, err
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeConfigLoad, "loading config").WithContext("path", path)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LIVEWIDGETS_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("LIVEWIDGETS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = splitCommaList(v)
	}
	if v, ok := envInt("LIVEWIDGETS_FRAME_RATE"); ok {
		cfg.Render.FrameRate = v
	}
	if v, ok := envBool("LIVEWIDGETS_RENDER_DISABLED"); ok {
		cfg.Render.Disabled = v
	}
	if v := os.Getenv("LIVEWIDGETS_KANBAN_SOURCE_CLASS"); v != "" {
		cfg.Kanban.SourceClass = v
	}
	if v := os.Getenv("LIVEWIDGETS_KANBAN_TARGET_CLASS"); v != "" {
		cfg.Kanban.TargetClass = v
	}
	if v := os.Getenv("LIVEWIDGETS_BUS_DRIVER"); v != "" {
		cfg.Bus.Driver = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("LIVEWIDGETS_NATS_URL"); v != "" {
		cfg.Bus.URL = v
		if os.Getenv("LIVEWIDGETS_BUS_DRIVER") == "" {
			cfg.Bus.Driver = BusDriverNATS
		}
	}
	if v, ok := envBool("LIVEWIDGETS_METRICS"); ok {
		cfg.Telemetry.Metrics = v
	}
	if v, ok := envBool("LIVEWIDGETS_TRACING"); ok {
		cfg.Telemetry.Tracing = v
	}
	if v := os.Getenv("LIVEWIDGETS_TRACE_OUTPUT"); v != "" {
		cfg.Telemetry.TraceOutput = v
	}
	if v := os.Getenv("LIVEWIDGETS_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LIVEWIDGETS_LOG_DIR"); v != "" {
		cfg.Logging.Dir = v
	}
	if v, ok := envInt("LIVEWIDGETS_MAX_CONNECTIONS"); ok {
		cfg.Limits.MaxConnections = v
	}
}

func splitCommaList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func envBool(key string) (bool, bool) {
	val := os.Getenv(key)
	if val == "" {
		return false, false
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	default:
		return false, false
	}
}

func envInt(key string) (int, bool) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	invalid := func(field string, value any, msg string) error {
		return apperrors.New(apperrors.ErrCodeConfigInvalid, msg).WithContext("field", field).WithContext("value", value)
	}

	if strings.TrimSpace(c.Server.Addr) == "" {
		return invalid("server.addr", c.Server.Addr, "listen address is required")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return invalid("server.max_body_bytes", c.Server.MaxBodyBytes, "max body bytes must be positive")
	}
	if c.Render.FrameRate < 1 || c.Render.FrameRate > 240 {
		return invalid("render.frame_rate", c.Render.FrameRate, "frame rate must be between 1 and 240")
	}
	if strings.TrimSpace(c.Kanban.SourceClass) == "" || strings.ContainsAny(c.Kanban.SourceClass, " \t") {
		return invalid("kanban.source_class", c.Kanban.SourceClass, "source class must be a single class name")
	}
	if strings.TrimSpace(c.Kanban.TargetClass) == "" || strings.ContainsAny(c.Kanban.TargetClass, " \t") {
		return invalid("kanban.target_class", c.Kanban.TargetClass, "target class must be a single class name")
	}

	switch strings.ToLower(c.Bus.Driver) {
	case BusDriverMemory:
	case BusDriverNATS:
		if strings.TrimSpace(c.Bus.URL) == "" {
			return invalid("bus.url", c.Bus.URL, "nats driver requires a url")
		}
	default:
		return invalid("bus.driver", c.Bus.Driver, fmt.Sprintf("invalid bus driver (valid: %s, %s)", BusDriverMemory, BusDriverNATS))
	}
	if c.Bus.Timeout < 0 {
		return invalid("bus.timeout", c.Bus.Timeout, "bus timeout must not be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(strings.TrimSpace(c.Logging.Level))] {
		return invalid("logging.level", c.Logging.Level, "invalid log level (valid: debug, info, warn, error)")
	}

	if c.Limits.MaxConnections < 0 {
		return invalid("limits.max_connections", c.Limits.MaxConnections, "max connections must not be negative")
	}
	if c.Limits.MessagesPerSecond <= 0 {
		return invalid("limits.messages_per_second", c.Limits.MessagesPerSecond, "message rate must be positive")
	}
	if c.Limits.Burst < 1 {
		return invalid("limits.burst", c.Limits.Burst, "burst must be at least 1")
	}
	return nil
}

// ValidationWarnings reports settings that are valid but likely unintended.
func (c *Config) ValidationWarnings() []string {
	var warnings []string
	if !isLoopbackBindAddress(c.Server.Addr) && len(c.Server.AllowedOrigins) == 0 {
		warnings = append(warnings, fmt.Sprintf("server.addr %s is not loopback and no allowed_origins are set; websocket clients from any origin are rejected", c.Server.Addr))
	}
	if c.Render.Disabled {
		warnings = append(warnings, "render.disabled is set; every widget mounts degraded")
	}
	if c.Limits.MaxConnections == 0 {
		warnings = append(warnings, "limits.max_connections is 0; websocket connections are unlimited")
	}
	return warnings
}

func isLoopbackBindAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return false
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "":
		return false
	case "localhost":
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
