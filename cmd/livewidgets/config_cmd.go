package main

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

func runConfigCommand(args []string, stdout io.Writer) error {
	subCmd := "show"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		subCmd = args[0]
		args = args[1:]
	}

	fs := newFlagSet("config "+subCmd, os.Stderr)
	configFile := fs.String("config", "", "path to a config file")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, exitUsage)
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return withExitCode(err, exitUsage)
	}

	switch subCmd {
	case "show":
		enc := yaml.NewEncoder(stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		for _, warning := range cfg.ValidationWarnings() {
			fmt.Fprintf(stdout, "# warning: %s\n", warning)
		}
		return nil
	case "validate":
		fmt.Fprintln(stdout, "config ok")
		for _, warning := range cfg.ValidationWarnings() {
			fmt.Fprintf(stdout, "warning: %s\n", warning)
		}
		return nil
	default:
		return withExitCode(fmt.Errorf("unknown config subcommand %q (valid: show, validate)", subCmd), exitUsage)
	}
}
