// Command livewidgets serves live dashboard pages: it mounts widget
// fragments, streams render frames to browsers over websockets and relays
// update events and intents over the message bus.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/odvcencio/livewidgets/pkg/config"
)

// Version information - set via ldflags during build
var (
	version   = "0.1.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return exitUsage
	}

	var err error
	switch args[0] {
	case "serve":
		err = runServeCommand(args[1:], stderr)
	case "publish":
		err = runPublishCommand(args[1:])
	case "config":
		err = runConfigCommand(args[1:], stdout)
	case "logs":
		err = runLogsCommand(args[1:], stdout)
	case "version", "--version", "-v":
		printVersion(stdout)
		return exitOK
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		printUsage(stderr)
		return exitUsage
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCodeForError(err)
	}
	return exitOK
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: livewidgets <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve      Serve dashboard pages over HTTP and websockets")
	fmt.Fprintln(w, "  publish    Publish an update event to a page over the bus")
	fmt.Fprintln(w, "  config     Show or validate the effective configuration")
	fmt.Fprintln(w, "  logs       Show recent error events from the log directory")
	fmt.Fprintln(w, "  version    Show version information")
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "livewidgets %s\n", version)
	if commit != "unknown" {
		fmt.Fprintf(w, "  Commit:     %s\n", commit)
	}
	if buildDate != "unknown" {
		fmt.Fprintf(w, "  Built:      %s\n", buildDate)
	}
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
}

// loadConfig reads path, or the default locations when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}
