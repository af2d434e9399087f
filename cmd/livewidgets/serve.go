package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odvcencio/livewidgets/pkg/bus"
	"github.com/odvcencio/livewidgets/pkg/config"
	"github.com/odvcencio/livewidgets/pkg/engine"
	"github.com/odvcencio/livewidgets/pkg/ipc"
	"github.com/odvcencio/livewidgets/pkg/logging"
	"github.com/odvcencio/livewidgets/pkg/telemetry"
)

// openBusFn allows tests to share an in-memory bus with the server.
var openBusFn = openBus

func runServeCommand(args []string, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	configFile := fs.String("config", "", "path to a config file (default: ~/.livewidgets and ./.livewidgets)")
	bind := fs.String("bind", "", "address to bind (overrides server.addr)")
	noRender := fs.Bool("no-render", false, "mount every widget degraded")
	var allowedOrigins []string
	fs.Var(&stringListValue{target: &allowedOrigins}, "allow-origin", "additional allowed Origin (repeatable, accepts comma-separated list)")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, exitUsage)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return withExitCode(err, exitUsage)
	}
	if strings.TrimSpace(*bind) != "" {
		cfg.Server.Addr = strings.TrimSpace(*bind)
	}
	if *noRender {
		cfg.Render.Disabled = true
	}
	cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, allowedOrigins...)
	if err := cfg.Validate(); err != nil {
		return withExitCode(err, exitUsage)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return serve(ctx, cfg, stderr)
}

// serve runs the HTTP server and the bus event relay until ctx is done or
// either of them fails.
func serve(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	logger, err := logging.NewFileLogger(stderr, cfg.Logging.Dir)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger.SetMinLevel(logging.ParseLevel(cfg.Logging.Level))
	for _, warning := range cfg.ValidationWarnings() {
		logger.Warn(logging.CategoryConfig, "config_warning", "", warning, nil)
	}

	if cfg.Telemetry.Tracing {
		out, closeOut, err := traceOutput(cfg.Telemetry.TraceOutput, stderr)
		if err != nil {
			return err
		}
		defer closeOut()
		tp, err := telemetry.NewTracerProvider("livewidgets", version, out)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = tp.Shutdown(shutdownCtx)
		}()
	}

	msgBus, err := openBusFn(cfg.Bus)
	if err != nil {
		return err
	}
	defer msgBus.Close()

	hub := ipc.NewHub()
	manager := engine.NewManager(ctx, engine.Options{
		FrameRate:        cfg.Render.FrameRate,
		Frames:           hub,
		Intents:          bus.NewIntentPublisher(msgBus),
		SourceClass:      cfg.Kanban.SourceClass,
		TargetClass:      cfg.Kanban.TargetClass,
		DisableRendering: cfg.Render.Disabled,
		Logger:           logger,
	})
	defer manager.Close()

	server := ipc.NewServer(ipc.Config{
		BindAddress:       cfg.Server.Addr,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MaxBodyBytes:      cfg.Server.MaxBodyBytes,
		MaxConnections:    cfg.Limits.MaxConnections,
		MessagesPerSecond: cfg.Limits.MessagesPerSecond,
		Burst:             cfg.Limits.Burst,
		Metrics:           cfg.Telemetry.Metrics,
		Version:           version,
		LogOutput:         stderr,
	}, manager, hub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		sub, err := bus.SubscribeEvents(gctx, msgBus, manager.HandleEvent, func(subject string, err error) {
			logger.Warn(logging.CategoryTransport, "malformed_event", "", err.Error(), map[string]any{"subject": subject})
		})
		if err != nil {
			return fmt.Errorf("subscribe events: %w", err)
		}
		logger.Info(logging.CategoryTransport, "bus_subscribed", "", sub.Subject(), map[string]any{"driver": cfg.Bus.Driver})
		<-gctx.Done()
		return sub.Unsubscribe()
	})
	return g.Wait()
}

func openBus(cfg config.BusConfig) (bus.MessageBus, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.BusDriverNATS:
		b, err := bus.NewNATSBus(bus.Config{URL: cfg.URL, Name: cfg.Name, Timeout: cfg.Timeout})
		if err != nil {
			return nil, withExitCode(err, exitBusUnavailable)
		}
		return b, nil
	default:
		return bus.NewMemoryBus(), nil
	}
}

// traceOutput resolves the span exporter destination.
func traceOutput(dest string, stderr io.Writer) (io.Writer, func(), error) {
	switch strings.TrimSpace(dest) {
	case "", "stderr":
		return stderr, func() {}, nil
	case "stdout":
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
