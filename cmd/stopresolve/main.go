// Command stopresolve writes the stop table skeleton for the routes in the
// route list, ready for channel numbers to be filled in by hand.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"ledmap.transitboard.org/internal/appconf"
	"ledmap.transitboard.org/internal/ledtable"
	"ledmap.transitboard.org/internal/logging"
	"ledmap.transitboard.org/internal/metadata"
	"ledmap.transitboard.org/internal/routes"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitDiagnostics = 2
)

type options struct {
	configPath string
	out        string
	merge      string
	gtfsPath   string
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("stopresolve", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", appconf.DefaultPath, "Path to the YAML configuration file")
	fs.StringVar(&opts.out, "out", "", "Output CSV (default: stop_table from the config)")
	fs.StringVar(&opts.merge, "merge", "", "Existing stop table whose channel assignments are kept")
	fs.StringVar(&opts.gtfsPath, "gtfs", "", "Resolve routes from a static GTFS zip instead of Transitland")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 1 when nothing could be written, 2 when
// the table was written but some routes did not resolve.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	cfg, err := appconf.LoadResolver(opts.configPath)
	if err != nil {
		fmt.Fprintln(stderr, "stopresolve:", err)
		return exitFailure
	}
	logger := logging.NewLogger(string(cfg.Env), cfg.LogLevel, stdout).With(slog.String("component", "stopresolve"))

	out := opts.out
	if out == "" {
		out = cfg.StopTable
	}

	lines, err := routes.LoadLines(cfg.Lines)
	if err != nil {
		logging.LogError(logger, "failed to load route list", err, slog.String("path", cfg.Lines))
		return exitFailure
	}

	var existing *ledtable.Table
	if opts.merge != "" {
		existing, err = ledtable.LoadCSV(opts.merge)
		if err != nil {
			logging.LogError(logger, "failed to load table to merge", err, slog.String("path", opts.merge))
			return exitFailure
		}
	}

	source, err := newSource(opts, cfg, logger)
	if err != nil {
		logging.LogError(logger, "failed to open metadata source", err)
		return exitFailure
	}

	result, err := metadata.Resolve(ctx, source, lines, logger)
	if err != nil {
		logging.LogError(logger, "stop resolution interrupted", err)
		return exitFailure
	}

	rows := result.Rows
	if existing != nil {
		var report metadata.MergeReport
		rows, report = metadata.MergeAssignments(rows, existing)
		logging.LogOperation(logger, "assignments_merged",
			slog.Int("carried", report.Carried),
			slog.Any("dropped", report.Dropped))
	}

	if err := ledtable.SaveCSV(out, rows, logger); err != nil {
		logging.LogError(logger, "failed to write stop table", err, slog.String("path", out))
		return exitFailure
	}
	logging.LogOperation(logger, "stop_table_written",
		slog.String("path", out),
		slog.Int("stops", len(rows)),
		slog.Int("failed_routes", len(result.Diagnostics)))

	if len(result.Diagnostics) > 0 {
		for _, d := range result.Diagnostics {
			fmt.Fprintf(stderr, "check the route id for %s: %v\n", d.Key, d.Err)
		}
		return exitDiagnostics
	}
	return exitOK
}

func newSource(opts options, cfg appconf.Config, logger *slog.Logger) (metadata.Source, error) {
	if opts.gtfsPath != "" {
		return metadata.LoadStaticSource(opts.gtfsPath)
	}
	return metadata.NewTransitlandClient(metadata.TransitlandConfig{
		URL:     cfg.Transitland.URL,
		APIKey:  cfg.Transitland.APIKey,
		Timeout: cfg.TransitlandTimeout(),
		Retries: cfg.Transitland.Retries,
	}, &http.Client{}, logger), nil
}
