// Package notify raises alerts when the display stops following the feed.
//
// Notification is a read-only side path: a Monitor samples the refresh
// loop's published status and never calls back into the loop.
package notify

import (
	"context"
	"fmt"
	"time"

	"ledmap.transitboard.org/internal/refresh"
)

// EventKind distinguishes alert transitions.
type EventKind string

const (
	EventDegraded  EventKind = "degraded"
	EventRecovered EventKind = "recovered"
)

// Event is a single alert.
type Event struct {
	Kind    EventKind          `json:"kind"`
	Title   string             `json:"title"`
	Message string             `json:"message"`
	Time    time.Time          `json:"time"`
	Status  refresh.TickStatus `json:"status"`
}

// Notifier delivers alert events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// StatusPublisher receives every new tick status.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, status refresh.TickStatus) error
}

func degradedEvent(status refresh.TickStatus) Event {
	return Event{
		Kind:  EventDegraded,
		Title: "LED map degraded",
		Message: fmt.Sprintf("%d consecutive degraded ticks (%s): %s",
			status.ConsecutiveDegraded, status.Outcome, status.Error),
		Time:   status.Finished,
		Status: status,
	}
}

func recoveredEvent(status refresh.TickStatus) Event {
	return Event{
		Kind:    EventRecovered,
		Title:   "LED map recovered",
		Message: fmt.Sprintf("tick %d applied, %d stops lit", status.Tick, len(status.Lit)),
		Time:    status.Finished,
		Status:  status,
	}
}
