//go:build linux

package display

import (
	"fmt"
	"io"

	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"
)

const defaultSPISpeedHz = 1000000

// OpenTLC5947 opens the spidev node and the latch GPIO line from config.
func OpenTLC5947(config Config) (*TLC5947, error) {
	speed := config.SPISpeedHz
	if speed <= 0 {
		speed = defaultSPISpeedHz
	}
	bus, err := openSPI(config.SPIDevice, speed)
	if err != nil {
		return nil, err
	}

	line, err := gpiocdev.RequestLine(config.LatchChip, config.LatchLine,
		gpiocdev.AsOutput(0), gpiocdev.WithConsumer("ledmap-latch"))
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("tlc5947: request latch %s:%d: %w", config.LatchChip, config.LatchLine, err)
	}

	d, err := NewTLC5947(bus, line, config.Boards)
	if err != nil {
		_ = line.Close()
		_ = bus.Close()
		return nil, err
	}
	d.closers = []io.Closer{line, bus}
	return d, nil
}

// SPI_IOC_WR_MAX_SPEED_HZ from linux/spi/spidev.h.
const spiIOCWrMaxSpeedHz = 0x40046b04

// spiDevice writes frames to a Linux spidev node. Each write is one
// half-duplex transfer with chip select held for its duration.
type spiDevice struct {
	fd   int
	path string
}

func openSPI(path string, speedHz int) (*spiDevice, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("spidev: open %s: %w", path, err)
	}
	if err := unix.IoctlSetPointerInt(fd, spiIOCWrMaxSpeedHz, speedHz); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("spidev: set speed on %s: %w", path, err)
	}
	return &spiDevice{fd: fd, path: path}, nil
}

func (s *spiDevice) Write(p []byte) (int, error) {
	n, err := unix.Write(s.fd, p)
	if err != nil {
		return n, fmt.Errorf("spidev: write %s: %w", s.path, err)
	}
	return n, nil
}

func (s *spiDevice) Close() error {
	return unix.Close(s.fd)
}
