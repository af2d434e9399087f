package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/odvcencio/livewidgets/pkg/logging"
)

// runLogsCommand prints the most recent error events written under the
// configured log directory.
func runLogsCommand(args []string, stdout io.Writer) error {
	flags := newFlagSet("logs", os.Stderr)
	configFile := flags.String("config", "", "path to a config file")
	count := flags.Int("n", 20, "number of events to show")
	if err := flags.Parse(args); err != nil {
		return withExitCode(err, exitUsage)
	}
	if *count <= 0 {
		return withExitCode(fmt.Errorf("-n must be positive"), exitUsage)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return withExitCode(err, exitUsage)
	}
	if strings.TrimSpace(cfg.Logging.Dir) == "" {
		return withExitCode(fmt.Errorf("logging.dir is not set; error events are only kept on stderr"), exitUsage)
	}

	events, err := logging.ReadRecentEvents(filepath.Join(cfg.Logging.Dir, "errors.jsonl"), *count)
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(stdout, "no errors logged")
		return nil
	}
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Fprintln(stdout, formatEvent(ev))
	}
	return nil
}

func formatEvent(ev logging.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s/%s", ev.Timestamp.UTC().Format(time.RFC3339), ev.Level, ev.Category, ev.EventType)
	if ev.PageID != "" {
		fmt.Fprintf(&b, " page=%s", ev.PageID)
	}
	if ev.WidgetID != "" {
		fmt.Fprintf(&b, " widget=%s", ev.WidgetID)
	}
	if ev.Message != "" {
		fmt.Fprintf(&b, " %s", ev.Message)
	}
	return b.String()
}
