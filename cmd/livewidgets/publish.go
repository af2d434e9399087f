package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/odvcencio/livewidgets/pkg/bus"
	"github.com/odvcencio/livewidgets/pkg/config"
	"github.com/odvcencio/livewidgets/pkg/engine"
)

func runPublishCommand(args []string) error {
	fs := newFlagSet("publish", os.Stderr)
	configFile := fs.String("config", "", "path to a config file")
	page := fs.String("page", "", "target page id")
	channel := fs.String("channel", "", "update channel, e.g. widget_update:cpu")
	timeout := fs.Duration("timeout", 5*time.Second, "publish timeout")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, exitUsage)
	}
	if fs.NArg() != 1 {
		return withExitCode(fmt.Errorf("usage: livewidgets publish --page <id> --channel <channel> <json|->"), exitUsage)
	}

	payload, err := readPayload(fs.Arg(0), os.Stdin)
	if err != nil {
		return withExitCode(err, exitUsage)
	}
	if !engine.ValidPageID(*page) {
		return withExitCode(fmt.Errorf("invalid page id %q", *page), exitUsage)
	}
	if strings.TrimSpace(*channel) == "" {
		return withExitCode(fmt.Errorf("--channel is required"), exitUsage)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return withExitCode(err, exitUsage)
	}
	if cfg.Bus.Driver != config.BusDriverNATS {
		return withExitCode(fmt.Errorf("publish needs the nats bus driver (bus.driver is %q)", cfg.Bus.Driver), exitUsage)
	}
	msgBus, err := openBusFn(cfg.Bus)
	if err != nil {
		return err
	}
	defer msgBus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	return bus.PublishEvent(ctx, msgBus, *page, bus.Event{Channel: *channel, Payload: payload})
}

// readPayload returns arg as JSON, reading stdin when arg is "-".
func readPayload(arg string, stdin io.Reader) (json.RawMessage, error) {
	raw := []byte(arg)
	if arg == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		raw = data
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	return json.RawMessage(raw), nil
}
