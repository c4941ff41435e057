package notify

import (
	"context"
	"log/slog"
	"time"

	"ledmap.transitboard.org/internal/logging"
	"ledmap.transitboard.org/internal/refresh"
)

const (
	DefaultPollInterval  = time.Second
	DefaultDegradedAfter = 3
	deliveryTimeout      = 10 * time.Second
)

// StatusSource is satisfied by *refresh.Loop.
type StatusSource interface {
	Status() refresh.TickStatus
}

// MonitorConfig tunes a Monitor.
type MonitorConfig struct {
	// DegradedAfter is the number of consecutive degraded ticks that raise an alert.
	DegradedAfter int
	PollInterval  time.Duration
}

// Monitor turns tick statuses into status publications and alert events.
type Monitor struct {
	source        StatusSource
	publisher     StatusPublisher
	notifiers     []Notifier
	degradedAfter int
	pollInterval  time.Duration
	logger        *slog.Logger

	lastTick uint64
	alerted  bool
}

// NewMonitor creates a monitor. publisher may be nil.
func NewMonitor(source StatusSource, config MonitorConfig, logger *slog.Logger, publisher StatusPublisher, notifiers ...Notifier) *Monitor {
	if config.DegradedAfter <= 0 {
		config.DegradedAfter = DefaultDegradedAfter
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		source:        source,
		publisher:     publisher,
		notifiers:     notifiers,
		degradedAfter: config.DegradedAfter,
		pollInterval:  config.PollInterval,
		logger:        logger.With(slog.String("component", "notify")),
	}
}

// Run polls the status source until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check handles the latest status if it belongs to a tick not seen before.
func (m *Monitor) Check(ctx context.Context) {
	status := m.source.Status()
	if status.Tick == 0 || status.Tick == m.lastTick {
		return
	}
	m.lastTick = status.Tick

	if m.publisher != nil {
		pctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		if err := m.publisher.PublishStatus(pctx, status); err != nil {
			logging.LogError(m.logger, "failed to publish status", err,
				slog.Uint64("tick", status.Tick))
		}
		cancel()
	}

	switch {
	case !m.alerted && status.ConsecutiveDegraded >= m.degradedAfter:
		m.alerted = true
		m.dispatch(ctx, degradedEvent(status))
	case m.alerted && !status.Outcome.Degraded():
		m.alerted = false
		m.dispatch(ctx, recoveredEvent(status))
	}
}

// Alerted reports whether a degraded alert is outstanding.
func (m *Monitor) Alerted() bool {
	return m.alerted
}

func (m *Monitor) dispatch(ctx context.Context, event Event) {
	logging.LogOperation(m.logger, "alert_"+string(event.Kind),
		slog.Uint64("tick", event.Status.Tick),
		slog.String("message", event.Message))

	for _, n := range m.notifiers {
		nctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		if err := n.Notify(nctx, event); err != nil {
			logging.LogError(m.logger, "failed to deliver alert", err,
				slog.String("kind", string(event.Kind)))
		}
		cancel()
	}
}
