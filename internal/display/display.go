// Package display drives the LED map hardware.
//
// Drivers are dumb sinks: Set stages a channel level and Flush commits all
// staged levels to the hardware at once.
package display

import (
	"fmt"
	"log/slog"
)

const (
	// Off is the level of a dark channel.
	Off uint16 = 0
	// DefaultBrightness is the single "on" intensity used for lit stops.
	DefaultBrightness uint16 = 2048
	// MaxBrightness is the largest 12-bit PWM level.
	MaxBrightness uint16 = 4095
)

// Driver is the sink the refresh loop writes to.
type Driver interface {
	Set(channel int, level uint16) error
	Flush() error
}

// Device is a driver that knows its size and owns resources.
type Device interface {
	Driver
	Channels() int
	Close() error
}

// ChannelRangeError reports a channel outside the device.
type ChannelRangeError struct {
	Channel  int
	Channels int
}

func (e *ChannelRangeError) Error() string {
	return fmt.Sprintf("channel %d out of range [0, %d)", e.Channel, e.Channels)
}

const (
	KindTLC5947 = "tlc5947"
	KindMemory  = "memory"
)

// Config selects and parameterises a device.
type Config struct {
	Kind       string
	Boards     int
	SPIDevice  string
	SPISpeedHz int
	LatchChip  string
	LatchLine  int
}

// Open builds the device described by config.
func Open(config Config, logger *slog.Logger) (Device, error) {
	switch config.Kind {
	case KindTLC5947:
		return OpenTLC5947(config)
	case KindMemory:
		return NewMemory(config.Boards*ChannelsPerBoard, logger), nil
	default:
		return nil, fmt.Errorf("unknown display driver %q", config.Kind)
	}
}
