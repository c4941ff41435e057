package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ledmap.transitboard.org/internal/refresh"
)

type stubSource struct {
	mu     sync.Mutex
	status refresh.TickStatus
}

func (s *stubSource) Status() refresh.TickStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *stubSource) set(status refresh.TickStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, event Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) kinds() []EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []EventKind
	for _, e := range n.events {
		out = append(out, e.Kind)
	}
	return out
}

type recordingPublisher struct {
	ticks []uint64
}

func (p *recordingPublisher) PublishStatus(_ context.Context, status refresh.TickStatus) error {
	p.ticks = append(p.ticks, status.Tick)
	return nil
}

func degradedTick(tick uint64, consecutive int) refresh.TickStatus {
	return refresh.TickStatus{
		Tick:                tick,
		Outcome:             refresh.OutcomeFeedDegraded,
		Error:               "vehicle feed unavailable: HTTP 503",
		ConsecutiveDegraded: consecutive,
	}
}

func appliedTick(tick uint64) refresh.TickStatus {
	return refresh.TickStatus{Tick: tick, Outcome: refresh.OutcomeApplied, Lit: []int{4, 7}}
}

func TestMonitorAlertsAfterThreshold(t *testing.T) {
	source := &stubSource{}
	notifier := &recordingNotifier{}
	publisher := &recordingPublisher{}
	monitor := NewMonitor(source, MonitorConfig{DegradedAfter: 2}, nil, publisher, notifier)
	ctx := context.Background()

	steps := []refresh.TickStatus{
		appliedTick(1),
		degradedTick(2, 1),
		degradedTick(3, 2),
		degradedTick(4, 3),
		appliedTick(5),
		appliedTick(6),
	}
	for _, s := range steps {
		source.set(s)
		monitor.Check(ctx)
	}

	assert.Equal(t, []EventKind{EventDegraded, EventRecovered}, notifier.kinds())
	assert.Equal(t, uint64(3), notifier.events[0].Status.Tick)
	assert.Contains(t, notifier.events[0].Message, "2 consecutive degraded ticks")
	assert.Contains(t, notifier.events[1].Message, "2 stops lit")
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6}, publisher.ticks)
	assert.False(t, monitor.Alerted())
}

func TestMonitorIgnoresRepeatedAndEmptyStatus(t *testing.T) {
	source := &stubSource{}
	publisher := &recordingPublisher{}
	monitor := NewMonitor(source, MonitorConfig{}, nil, publisher)

	monitor.Check(context.Background())
	source.set(appliedTick(1))
	monitor.Check(context.Background())
	monitor.Check(context.Background())

	assert.Equal(t, []uint64{1}, publisher.ticks)
}

func TestMonitorCatchesUpOnMissedTicks(t *testing.T) {
	source := &stubSource{}
	notifier := &recordingNotifier{}
	monitor := NewMonitor(source, MonitorConfig{DegradedAfter: 3}, nil, nil, notifier)

	source.set(degradedTick(9, 5))
	monitor.Check(context.Background())

	assert.Equal(t, []EventKind{EventDegraded}, notifier.kinds())
	assert.True(t, monitor.Alerted())
}

func TestMonitorKeepsGoingWhenANotifierFails(t *testing.T) {
	source := &stubSource{}
	failing := &recordingNotifier{err: errors.New("unreachable")}
	working := &recordingNotifier{}
	monitor := NewMonitor(source, MonitorConfig{DegradedAfter: 1}, nil, nil, failing, working)

	source.set(degradedTick(1, 1))
	monitor.Check(context.Background())

	assert.Len(t, failing.kinds(), 1)
	assert.Equal(t, []EventKind{EventDegraded}, working.kinds())
}

func TestMonitorRun(t *testing.T) {
	source := &stubSource{}
	notifier := &recordingNotifier{}
	monitor := NewMonitor(source, MonitorConfig{DegradedAfter: 1, PollInterval: time.Millisecond}, nil, nil, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		monitor.Run(ctx)
		close(done)
	}()

	source.set(degradedTick(1, 1))
	require.Eventually(t, func() bool {
		return len(notifier.kinds()) == 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
