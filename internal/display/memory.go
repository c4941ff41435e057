package display

import (
	"log/slog"
	"sync"

	"ledmap.transitboard.org/internal/logging"
)

// Memory is an in-process device used for dry runs. Staged levels become
// visible through Committed only after Flush.
type Memory struct {
	mu        sync.Mutex
	staged    []uint16
	committed []uint16
	flushes   int
	logger    *slog.Logger
}

// NewMemory creates a device with the given number of channels. A nil
// logger disables flush logging.
func NewMemory(channels int, logger *slog.Logger) *Memory {
	return &Memory{
		staged:    make([]uint16, channels),
		committed: make([]uint16, channels),
		logger:    logger,
	}
}

func (m *Memory) Set(channel int, level uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if channel < 0 || channel >= len(m.staged) {
		return &ChannelRangeError{Channel: channel, Channels: len(m.staged)}
	}
	m.staged[channel] = level
	return nil
}

func (m *Memory) Flush() error {
	m.mu.Lock()
	copy(m.committed, m.staged)
	m.flushes++
	lit := m.litLocked()
	m.mu.Unlock()

	if m.logger != nil {
		logging.LogOperation(m.logger, "display_flush",
			slog.String("component", "display"),
			slog.Any("lit", lit))
	}
	return nil
}

func (m *Memory) Channels() int {
	return len(m.staged)
}

func (m *Memory) Close() error {
	return nil
}

// Committed returns a copy of the levels at the last flush.
func (m *Memory) Committed() []uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]uint16, len(m.committed))
	copy(out, m.committed)
	return out
}

// Lit returns the channels that were non-zero at the last flush.
func (m *Memory) Lit() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.litLocked()
}

// Flushes returns how many times Flush was called.
func (m *Memory) Flushes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flushes
}

func (m *Memory) litLocked() []int {
	lit := []int{}
	for ch, level := range m.committed {
		if level != Off {
			lit = append(lit, ch)
		}
	}
	return lit
}
