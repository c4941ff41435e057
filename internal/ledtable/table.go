// Package ledtable maps transit stop identifiers to display channels.
//
// A table is built once at startup from the rows produced by the offline
// resolution step and filled in by hand with the real wiring. Two channel
// values are reserved: Unassigned for stops that have not been wired yet and
// Placeholder for stops that are intentionally not on the display.
package ledtable

import (
	"fmt"
	"sort"
)

// Channel is the index of a physical display element.
type Channel int

const (
	// Placeholder marks a stop that is deliberately absent from the display.
	Placeholder Channel = -1
	// Unassigned marks a stop with no wiring yet.
	Unassigned Channel = 0
)

// Drivable reports whether the channel addresses real hardware.
func (c Channel) Drivable() bool {
	return c > Unassigned
}

func (c Channel) String() string {
	switch c {
	case Placeholder:
		return "placeholder"
	case Unassigned:
		return "unassigned"
	default:
		return fmt.Sprintf("%d", int(c))
	}
}

// Row is one record of the stop table.
type Row struct {
	StopID   string
	StopName string
	Channel  Channel
	// Line is the 1-based source line, zero when the row was not read from a file.
	Line int
}

// Table is an immutable stop to channel mapping.
type Table struct {
	rows       map[string]Row
	order      []string
	byChannel  map[Channel]string
	maxChannel Channel
}

// Build validates rows and returns the resulting table.
//
// A stop listed twice with the same channel is collapsed. A stop listed twice
// with different channels fails with a DuplicateStopError, and a drivable
// channel claimed by two stops fails with a DuplicateChannelError.
func Build(rows []Row) (*Table, error) {
	t := &Table{
		rows:      make(map[string]Row, len(rows)),
		order:     make([]string, 0, len(rows)),
		byChannel: make(map[Channel]string),
	}

	for _, row := range rows {
		if row.StopID == "" {
			return nil, &InvalidRowError{Line: row.Line, Reason: "empty stop_id"}
		}
		if row.Channel < Placeholder {
			return nil, &InvalidRowError{
				Line:   row.Line,
				Reason: fmt.Sprintf("led_id %d for stop %q is below %d", int(row.Channel), row.StopID, int(Placeholder)),
			}
		}

		if existing, ok := t.rows[row.StopID]; ok {
			if existing.Channel != row.Channel {
				return nil, &DuplicateStopError{
					StopID: row.StopID,
					First:  existing.Channel,
					Second: row.Channel,
					Line:   row.Line,
				}
			}
			continue
		}

		if row.Channel.Drivable() {
			if other, taken := t.byChannel[row.Channel]; taken {
				return nil, &DuplicateChannelError{
					Channel:    row.Channel,
					FirstStop:  other,
					SecondStop: row.StopID,
					Line:       row.Line,
				}
			}
			t.byChannel[row.Channel] = row.StopID
			if row.Channel > t.maxChannel {
				t.maxChannel = row.Channel
			}
		}

		t.rows[row.StopID] = row
		t.order = append(t.order, row.StopID)
	}

	return t, nil
}

// Resolve returns the channel for stopID. The boolean is false when the stop
// is not in the table, which is expected for stops outside the curated list.
func (t *Table) Resolve(stopID string) (Channel, bool) {
	row, ok := t.rows[stopID]
	if !ok {
		return Unassigned, false
	}
	return row.Channel, true
}

// Lookup returns the full row for stopID.
func (t *Table) Lookup(stopID string) (Row, bool) {
	row, ok := t.rows[stopID]
	return row, ok
}

// Len returns the number of distinct stops.
func (t *Table) Len() int {
	return len(t.rows)
}

// Rows returns the rows in first-seen order.
func (t *Table) Rows() []Row {
	out := make([]Row, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.rows[id])
	}
	return out
}

// Channels returns every drivable channel in ascending order.
func (t *Table) Channels() []Channel {
	out := make([]Channel, 0, len(t.byChannel))
	for ch := range t.byChannel {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Counts summarises how many stops are wired, unassigned and excluded.
func (t *Table) Counts() (wired, unassigned, placeholder int) {
	for _, row := range t.rows {
		switch {
		case row.Channel.Drivable():
			wired++
		case row.Channel == Unassigned:
			unassigned++
		default:
			placeholder++
		}
	}
	return wired, unassigned, placeholder
}

// CheckCapacity fails when a wired channel does not fit a display with the
// given number of channels (valid indices are 0..channels-1).
func (t *Table) CheckCapacity(channels int) error {
	if int(t.maxChannel) >= channels {
		return &CapacityError{
			Channel:  t.maxChannel,
			StopID:   t.byChannel[t.maxChannel],
			Channels: channels,
		}
	}
	return nil
}
