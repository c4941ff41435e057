// Package refresh keeps the LED map in step with the vehicle feed.
//
// Each tick fetches a snapshot, resolves tracked vehicles to channels,
// applies the difference against the previous tick and then holds for the
// configured interval.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ledmap.transitboard.org/internal/display"
	"ledmap.transitboard.org/internal/feed"
	"ledmap.transitboard.org/internal/ledtable"
	"ledmap.transitboard.org/internal/logging"
)

// DefaultInterval is the time held between ticks.
const DefaultInterval = 10 * time.Second

// Fetcher returns the current vehicle snapshot.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) ([]feed.Observation, error)
}

// StopResolver maps a stop to its channel.
type StopResolver interface {
	Resolve(stopID string) (ledtable.Channel, bool)
	Channels() []ledtable.Channel
}

// RouteFilter decides which routes are shown.
type RouteFilter interface {
	IsTracked(routeID string) bool
}

// Config holds the loop's tunables.
type Config struct {
	Interval   time.Duration
	Brightness uint16
}

// Loop is the display refresh state machine. Tick and Run must be called
// from a single goroutine; Status and State may be called from any.
type Loop struct {
	fetcher    Fetcher
	stops      StopResolver
	routes     RouteFilter
	driver     display.Driver
	logger     *slog.Logger
	interval   time.Duration
	brightness uint16

	// lit is the intended display state after the last apply.
	lit map[int]struct{}
	// suspect holds channels that may be lit on the hardware after a failed
	// apply; non-nil means the next apply resynchronises everything.
	suspect map[int]struct{}

	tick                uint64
	consecutiveDegraded int
	lastSuccess         time.Time

	mu     sync.RWMutex
	state  State
	status TickStatus
}

// New wires a loop. A nil logger uses slog.Default.
func New(fetcher Fetcher, stops StopResolver, routes RouteFilter, driver display.Driver, config Config, logger *slog.Logger) *Loop {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.Brightness == 0 {
		config.Brightness = display.DefaultBrightness
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		fetcher:    fetcher,
		stops:      stops,
		routes:     routes,
		driver:     driver,
		logger:     logger.With(slog.String("component", "refresh_loop")),
		interval:   config.Interval,
		brightness: config.Brightness,
		lit:        map[int]struct{}{},
		state:      StateIdle,
	}
}

// Run ticks until ctx is cancelled, then blanks the display. Cancellation is
// observed between ticks; an apply in progress always completes.
func (l *Loop) Run(ctx context.Context) error {
	logging.LogOperation(l.logger, "refresh_loop_started",
		slog.Duration("interval", l.interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.LogOperation(l.logger, "refresh_loop_stopping")
			err := l.Blank()
			l.setState(StateStopped)
			return err
		case <-timer.C:
		}

		if ctx.Err() != nil {
			continue
		}
		l.Tick(ctx)
		timer.Reset(l.interval)
	}
}

// Tick runs one fetch, resolve and apply cycle and returns its status.
func (l *Loop) Tick(ctx context.Context) TickStatus {
	l.tick++
	status := TickStatus{Tick: l.tick, Started: time.Now()}

	l.setState(StateFetching)
	observations, err := l.fetcher.FetchSnapshot(logging.WithLogger(ctx, l.logger))
	if err != nil {
		l.degraded(&status, OutcomeFeedDegraded, err)
		logging.LogError(l.logger, "vehicle feed unavailable, keeping display", err,
			slog.Uint64("tick", status.Tick),
			slog.Int("consecutive_degraded", status.ConsecutiveDegraded))
		return l.finish(status)
	}

	l.setState(StateResolving)
	candidate := l.resolve(observations, &status)

	l.setState(StateApplying)
	turnOn, turnOff, err := l.apply(candidate)
	status.TurnedOn, status.TurnedOff = turnOn, turnOff
	l.lit = candidate
	status.Lit = sortedChannels(candidate)

	if err != nil {
		l.degraded(&status, OutcomeDriverDegraded, err)
		logging.LogError(l.logger, "display driver failed, will resync next tick", err,
			slog.Uint64("tick", status.Tick),
			slog.String("component", "display"))
		return l.finish(status)
	}

	status.Outcome = OutcomeApplied
	l.consecutiveDegraded = 0
	l.lastSuccess = time.Now()
	status.LastSuccess = l.lastSuccess

	l.logger.Debug("tick_applied",
		slog.Uint64("tick", status.Tick),
		slog.Int("observations", status.Observations),
		slog.Int("tracked", status.Tracked),
		slog.Int("skipped_untracked", status.SkippedUntracked),
		slog.Int("skipped_unmapped", status.SkippedUnmapped),
		slog.Any("on", turnOn),
		slog.Any("off", turnOff))
	return l.finish(status)
}

// resolve turns observations into the deduplicated set of channels to light.
func (l *Loop) resolve(observations []feed.Observation, status *TickStatus) map[int]struct{} {
	candidate := map[int]struct{}{}
	status.Observations = len(observations)

	for _, obs := range observations {
		if !l.routes.IsTracked(obs.RouteID) {
			status.SkippedUntracked++
			continue
		}
		status.Tracked++

		ch, ok := l.stops.Resolve(obs.StopID)
		if !ok || !ch.Drivable() {
			status.SkippedUnmapped++
			continue
		}
		candidate[int(ch)] = struct{}{}
	}
	return candidate
}

// apply issues offs then ons for the difference between the intended state
// and candidate, followed by exactly one flush.
func (l *Loop) apply(candidate map[int]struct{}) (turnOn, turnOff []int, err error) {
	previous := l.lit
	resync := l.suspect != nil
	if resync {
		previous = l.suspect
	}

	for ch := range previous {
		if _, keep := candidate[ch]; !keep {
			turnOff = append(turnOff, ch)
		}
	}
	for ch := range candidate {
		if _, already := previous[ch]; !already || resync {
			turnOn = append(turnOn, ch)
		}
	}
	sort.Ints(turnOff)
	sort.Ints(turnOn)

	var errs []error
	for _, ch := range turnOff {
		if err := l.driver.Set(ch, display.Off); err != nil {
			errs = append(errs, fmt.Errorf("set channel %d off: %w", ch, err))
		}
	}
	for _, ch := range turnOn {
		if err := l.driver.Set(ch, l.brightness); err != nil {
			errs = append(errs, fmt.Errorf("set channel %d on: %w", ch, err))
		}
	}
	if err := l.driver.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}

	if len(errs) > 0 {
		// Anything touched this tick or lit before may now be on.
		suspect := map[int]struct{}{}
		for ch := range previous {
			suspect[ch] = struct{}{}
		}
		for ch := range candidate {
			suspect[ch] = struct{}{}
		}
		l.suspect = suspect
		return turnOn, turnOff, errors.Join(errs...)
	}

	l.suspect = nil
	return turnOn, turnOff, nil
}

// Blank turns off every table channel and every lit channel, flushes once
// and clears the display state.
func (l *Loop) Blank() error {
	channels := map[int]struct{}{}
	for _, ch := range l.stops.Channels() {
		channels[int(ch)] = struct{}{}
	}
	for ch := range l.lit {
		channels[ch] = struct{}{}
	}
	for ch := range l.suspect {
		channels[ch] = struct{}{}
	}

	var errs []error
	for _, ch := range sortedChannels(channels) {
		if err := l.driver.Set(ch, display.Off); err != nil {
			errs = append(errs, fmt.Errorf("set channel %d off: %w", ch, err))
		}
	}
	if err := l.driver.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		logging.LogError(l.logger, "failed to blank display", err,
			slog.String("component", "display"))
		return err
	}

	l.lit = map[int]struct{}{}
	l.suspect = nil
	l.mu.Lock()
	l.status.Lit = []int{}
	l.mu.Unlock()
	logging.LogOperation(l.logger, "display_blanked", slog.Int("channels", len(channels)))
	return nil
}

func (l *Loop) degraded(status *TickStatus, outcome Outcome, err error) {
	l.consecutiveDegraded++
	status.Outcome = outcome
	status.Error = err.Error()
	status.ConsecutiveDegraded = l.consecutiveDegraded
	status.LastSuccess = l.lastSuccess
	if status.Lit == nil {
		status.Lit = sortedChannels(l.lit)
	}
}

func (l *Loop) finish(status TickStatus) TickStatus {
	status.Finished = time.Now()
	status.State = StateHolding
	if status.TurnedOn == nil {
		status.TurnedOn = []int{}
	}
	if status.TurnedOff == nil {
		status.TurnedOff = []int{}
	}

	l.mu.Lock()
	l.state = StateHolding
	l.status = status.clone()
	l.mu.Unlock()
	return status
}

func (l *Loop) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// State returns the current phase.
func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Status returns a copy of the last finished tick.
func (l *Loop) Status() TickStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := l.status.clone()
	s.State = l.state
	return s
}

// Lit returns the intended display state in ascending order. Not safe to
// call concurrently with Tick.
func (l *Loop) Lit() []int {
	return sortedChannels(l.lit)
}

// Interval returns the hold time between ticks.
func (l *Loop) Interval() time.Duration {
	return l.interval
}

func sortedChannels(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for ch := range set {
		out = append(out, ch)
	}
	sort.Ints(out)
	return out
}
