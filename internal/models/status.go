package models

import (
	"time"

	"ledmap.transitboard.org/internal/refresh"
)

// DisplayStatus is the /status entry.
type DisplayStatus struct {
	Healthy             bool     `json:"healthy"`
	State               string   `json:"state"`
	Tick                uint64   `json:"tick"`
	Outcome             string   `json:"outcome"`
	LastTickTime        int64    `json:"lastTickTime"`
	LastSuccessTime     int64    `json:"lastSuccessTime"`
	TickDurationMs      int64    `json:"tickDurationMs"`
	Observations        int      `json:"observations"`
	Tracked             int      `json:"tracked"`
	SkippedUntracked    int      `json:"skippedUntracked"`
	SkippedUnmapped     int      `json:"skippedUnmapped"`
	Lit                 []int    `json:"lit"`
	LitCount            int      `json:"litCount"`
	TurnedOn            []int    `json:"turnedOn"`
	TurnedOff           []int    `json:"turnedOff"`
	ConsecutiveDegraded int      `json:"consecutiveDegraded"`
	LastError           string   `json:"lastError,omitempty"`
	Stops               StopInfo `json:"stops"`
	UptimeSeconds       int64    `json:"uptimeSeconds"`
}

// StopInfo summarises the stop table.
type StopInfo struct {
	Wired       int `json:"wired"`
	Unassigned  int `json:"unassigned"`
	Placeholder int `json:"placeholder"`
}

// NewDisplayStatus renders a tick status. Times are epoch milliseconds, zero
// when unknown.
func NewDisplayStatus(status refresh.TickStatus, healthy bool, stops StopInfo, uptime time.Duration) DisplayStatus {
	var duration int64
	if !status.Started.IsZero() && !status.Finished.IsZero() {
		duration = status.Finished.Sub(status.Started).Milliseconds()
	}
	lit := nonNil(status.Lit)

	return DisplayStatus{
		Healthy:             healthy,
		State:               string(status.State),
		Tick:                status.Tick,
		Outcome:             string(status.Outcome),
		LastTickTime:        epochMillis(status.Finished),
		LastSuccessTime:     epochMillis(status.LastSuccess),
		TickDurationMs:      duration,
		Observations:        status.Observations,
		Tracked:             status.Tracked,
		SkippedUntracked:    status.SkippedUntracked,
		SkippedUnmapped:     status.SkippedUnmapped,
		Lit:                 lit,
		LitCount:            len(lit),
		TurnedOn:            nonNil(status.TurnedOn),
		TurnedOff:           nonNil(status.TurnedOff),
		ConsecutiveDegraded: status.ConsecutiveDegraded,
		LastError:           status.Error,
		Stops:               stops,
		UptimeSeconds:       int64(uptime / time.Second),
	}
}

func nonNil(channels []int) []int {
	if channels == nil {
		return []int{}
	}
	return channels
}

func epochMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
