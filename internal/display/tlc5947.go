package display

import (
	"errors"
	"fmt"
	"io"
)

const (
	// ChannelsPerBoard is the number of PWM outputs on one TLC5947.
	ChannelsPerBoard = 24

	bitsPerChannel = 12
	bytesPerBoard  = ChannelsPerBoard * bitsPerChannel / 8
)

// Latch is the XLAT line of the TLC5947 chain.
type Latch interface {
	SetValue(value int) error
}

// TLC5947 drives a daisy chain of TLC5947 24-channel PWM boards. Levels are
// shifted out over SPI and latched into the outputs with a pulse on XLAT.
type TLC5947 struct {
	bus     io.Writer
	latch   Latch
	levels  []uint16
	frame   []byte
	closers []io.Closer
}

// NewTLC5947 wraps an already opened bus and latch.
func NewTLC5947(bus io.Writer, latch Latch, boards int) (*TLC5947, error) {
	if boards <= 0 {
		return nil, fmt.Errorf("tlc5947: need at least one board, got %d", boards)
	}
	return &TLC5947{
		bus:    bus,
		latch:  latch,
		levels: make([]uint16, boards*ChannelsPerBoard),
		frame:  make([]byte, boards*bytesPerBoard),
	}, nil
}

func (d *TLC5947) Set(channel int, level uint16) error {
	if channel < 0 || channel >= len(d.levels) {
		return &ChannelRangeError{Channel: channel, Channels: len(d.levels)}
	}
	if level > MaxBrightness {
		level = MaxBrightness
	}
	d.levels[channel] = level
	return nil
}

// Flush shifts the whole frame out and pulses the latch.
func (d *TLC5947) Flush() error {
	d.encode()

	n, err := d.bus.Write(d.frame)
	if err != nil {
		return fmt.Errorf("tlc5947: write frame: %w", err)
	}
	if n != len(d.frame) {
		return fmt.Errorf("tlc5947: short write %d of %d bytes", n, len(d.frame))
	}

	if err := d.latch.SetValue(1); err != nil {
		return fmt.Errorf("tlc5947: raise latch: %w", err)
	}
	if err := d.latch.SetValue(0); err != nil {
		return fmt.Errorf("tlc5947: lower latch: %w", err)
	}
	return nil
}

// encode packs the levels MSB first, last channel first, two channels per
// three bytes, which is the order the shift register chain expects.
func (d *TLC5947) encode() {
	pos := 0
	for ch := len(d.levels) - 1; ch > 0; ch -= 2 {
		hi, lo := d.levels[ch], d.levels[ch-1]
		d.frame[pos] = byte(hi >> 4)
		d.frame[pos+1] = byte(hi&0x0f)<<4 | byte(lo>>8)
		d.frame[pos+2] = byte(lo)
		pos += 3
	}
}

func (d *TLC5947) Channels() int {
	return len(d.levels)
}

func (d *TLC5947) Close() error {
	var errs []error
	for _, c := range d.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
