package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledmap.transitboard.org/internal/appconf"
)

// options are the command-line overrides applied on top of the config file.
type options struct {
	configPath string
	env        string
	interval   time.Duration
	dryRun     bool
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("ledmap", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", appconf.DefaultPath, "Path to the YAML configuration file")
	fs.StringVar(&opts.env, "env", "", "Environment (development|test|production), overrides the config file")
	fs.DurationVar(&opts.interval, "interval", 0, "Refresh interval, overrides refresh.interval_ms")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Drive an in-memory display instead of the hardware")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.interval < 0 {
		return opts, errors.New("-interval must not be negative")
	}
	return opts, nil
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts options) (appconf.Config, error) {
	cfg, err := appconf.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.env != "" {
		cfg.Env = appconf.Env(opts.env)
	}
	if opts.interval > 0 {
		cfg.Refresh.IntervalMS = int(opts.interval / time.Millisecond)
	}
	if opts.dryRun {
		cfg.Display.Driver = "memory"
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", opts.configPath, err)
	}
	return cfg, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ledmap:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		stop()
		os.Exit(1)
	}
}
