package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ledmap.transitboard.org/internal/app"
	"ledmap.transitboard.org/internal/appconf"
	"ledmap.transitboard.org/internal/display"
	"ledmap.transitboard.org/internal/feed"
	"ledmap.transitboard.org/internal/ledtable"
	"ledmap.transitboard.org/internal/logging"
	"ledmap.transitboard.org/internal/notify"
	"ledmap.transitboard.org/internal/refresh"
	"ledmap.transitboard.org/internal/restapi"
	"ledmap.transitboard.org/internal/routes"
)

const shutdownTimeout = 10 * time.Second

// run wires the daemon and blocks until ctx is cancelled. Startup failures are
// returned before the display is touched.
func run(ctx context.Context, cfg appconf.Config, logOutput io.Writer) error {
	started := time.Now()
	logger := logging.NewLogger(string(cfg.Env), cfg.LogLevel, logOutput)
	slog.SetDefault(logger)

	lines, err := routes.LoadLines(cfg.Lines)
	if err != nil {
		logging.LogError(logger, "failed to load route list", err, slog.String("path", cfg.Lines))
		return err
	}
	filter := routes.FilterFromLines(lines)

	table, err := ledtable.LoadCSV(cfg.StopTable)
	if err != nil {
		logging.LogError(logger, "failed to load stop table", err, slog.String("path", cfg.StopTable))
		return err
	}
	wired, unassigned, placeholder := table.Counts()
	logging.LogOperation(logger, "stop_table_loaded",
		slog.String("path", cfg.StopTable),
		slog.Int("wired", wired),
		slog.Int("unassigned", unassigned),
		slog.Int("placeholder", placeholder),
		slog.Any("routes", filter.IDs()))

	device, err := display.Open(cfg.DisplayDeviceConfig(), logger.With(slog.String("component", "display")))
	if err != nil {
		logging.LogError(logger, "failed to open display", err, slog.String("driver", cfg.Display.Driver))
		return err
	}
	defer logging.SafeCloseWithLogging(device, logger, "display_device")

	if err := table.CheckCapacity(device.Channels()); err != nil {
		logging.LogError(logger, "stop table does not fit the display", err)
		return err
	}

	feedClient, err := feed.NewClient(cfg.FeedClientConfig(filter.IDs()), &http.Client{})
	if err != nil {
		logging.LogError(logger, "invalid feed configuration", err)
		return err
	}

	loop := refresh.New(feedClient, table, filter, device, refresh.Config{
		Interval:   cfg.RefreshInterval(),
		Brightness: uint16(cfg.Display.Brightness),
	}, logger)

	monitor, closeNotifiers, err := newMonitor(cfg, loop, logger)
	if err != nil {
		logging.LogError(logger, "failed to set up notifications", err)
		return err
	}
	defer closeNotifiers()

	var srv *http.Server
	if cfg.Status.Addr != "" {
		api := restapi.NewRestAPI(&app.Application{
			Config:  cfg,
			Logger:  logger,
			Status:  loop,
			Stops:   table,
			Started: started,
		})
		defer api.Stop()
		srv = &http.Server{
			Addr:         cfg.Status.Addr,
			Handler:      api.Routes(),
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
		}
		go func() {
			logger.Info("starting status server", "addr", srv.Addr, "env", cfg.Env)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.LogError(logger, "status server failed", err)
			}
		}()
	}

	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		monitor.Run(ctx)
	}()

	logging.LogOperation(logger, "ledmap_started",
		slog.String("feed", feedClient.URL()),
		slog.String("driver", cfg.Display.Driver),
		slog.Duration("interval", cfg.RefreshInterval()))

	loopErr := loop.Run(ctx)
	<-monitorDone

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.LogError(logger, "status server shutdown failed", err)
		}
		cancel()
	}

	if loopErr != nil {
		return fmt.Errorf("blank display on shutdown: %w", loopErr)
	}
	logging.LogOperation(logger, "ledmap_stopped")
	return nil
}

// newMonitor builds the alert monitor with the enabled notifiers. The
// returned func releases notifier connections.
func newMonitor(cfg appconf.Config, loop *refresh.Loop, logger *slog.Logger) (*notify.Monitor, func(), error) {
	var notifiers []notify.Notifier
	var publisher notify.StatusPublisher
	closeFn := func() {}

	if g := cfg.Notify.Gotify; g.Enabled {
		notifiers = append(notifiers, notify.NewGotify(g.URL, g.Token, g.Priority, &http.Client{Timeout: 10 * time.Second}, logger))
	}
	if m := cfg.Notify.MQTT; m.Enabled {
		client, err := notify.NewMQTT(notify.MQTTConfig{
			Broker:   m.Broker,
			ClientID: m.ClientID,
			Topic:    m.Topic,
			Username: m.Username,
			Password: m.Password,
		}, logger)
		if err != nil {
			return nil, closeFn, err
		}
		notifiers = append(notifiers, client)
		publisher = client
		closeFn = client.Close
	}

	monitor := notify.NewMonitor(loop, notify.MonitorConfig{
		DegradedAfter: cfg.Notify.DegradedAfter,
	}, logger, publisher, notifiers...)
	return monitor, closeFn, nil
}
