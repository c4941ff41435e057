package ledtable

import "fmt"

// DuplicateStopError reports a stop assigned to two different channels.
type DuplicateStopError struct {
	StopID string
	First  Channel
	Second Channel
	Line   int
}

func (e *DuplicateStopError) Error() string {
	return fmt.Sprintf("%sstop %q assigned to both led %s and led %s", linePrefix(e.Line), e.StopID, e.First, e.Second)
}

// DuplicateChannelError reports two stops wired to the same physical channel.
type DuplicateChannelError struct {
	Channel    Channel
	FirstStop  string
	SecondStop string
	Line       int
}

func (e *DuplicateChannelError) Error() string {
	return fmt.Sprintf("%sled %s assigned to both stop %q and stop %q", linePrefix(e.Line), e.Channel, e.FirstStop, e.SecondStop)
}

// InvalidRowError reports a row that cannot be part of any table.
type InvalidRowError struct {
	Line   int
	Reason string
}

func (e *InvalidRowError) Error() string {
	return linePrefix(e.Line) + e.Reason
}

// CapacityError reports a wired channel beyond what the display can drive.
type CapacityError struct {
	Channel  Channel
	StopID   string
	Channels int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("stop %q uses led %s but the display only has %d channels", e.StopID, e.Channel, e.Channels)
}

func linePrefix(line int) string {
	if line <= 0 {
		return ""
	}
	return fmt.Sprintf("line %d: ", line)
}
