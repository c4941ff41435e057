package refresh

import "time"

// State is the phase of the refresh loop.
type State string

const (
	StateIdle      State = "idle"
	StateFetching  State = "fetching"
	StateResolving State = "resolving"
	StateApplying  State = "applying"
	StateHolding   State = "holding"
	StateStopped   State = "stopped"
)

// Outcome classifies a finished tick.
type Outcome string

const (
	OutcomeNone Outcome = ""
	// OutcomeApplied means the display converged on the snapshot.
	OutcomeApplied Outcome = "applied"
	// OutcomeFeedDegraded means no snapshot was available; the display was left as is.
	OutcomeFeedDegraded Outcome = "feed_degraded"
	// OutcomeDriverDegraded means the hardware rejected a command and may be out of sync.
	OutcomeDriverDegraded Outcome = "driver_degraded"
)

// Degraded reports whether the outcome needs attention.
func (o Outcome) Degraded() bool {
	return o == OutcomeFeedDegraded || o == OutcomeDriverDegraded
}

// TickStatus is the published result of the most recent tick. Values handed
// out by Loop.Status are copies and safe to keep.
type TickStatus struct {
	Tick     uint64    `json:"tick"`
	State    State     `json:"state"`
	Outcome  Outcome   `json:"outcome"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	Observations     int `json:"observations"`
	Tracked          int `json:"tracked"`
	SkippedUntracked int `json:"skippedUntracked"`
	SkippedUnmapped  int `json:"skippedUnmapped"`

	Lit       []int `json:"lit"`
	TurnedOn  []int `json:"turnedOn"`
	TurnedOff []int `json:"turnedOff"`

	Error               string    `json:"error,omitempty"`
	ConsecutiveDegraded int       `json:"consecutiveDegraded"`
	LastSuccess         time.Time `json:"lastSuccess"`
}

func (s TickStatus) clone() TickStatus {
	s.Lit = cloneInts(s.Lit)
	s.TurnedOn = cloneInts(s.TurnedOn)
	s.TurnedOff = cloneInts(s.TurnedOff)
	return s
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}
