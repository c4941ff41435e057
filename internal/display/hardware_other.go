//go:build !linux

package display

import "errors"

// OpenTLC5947 is only available on Linux, where spidev and the GPIO
// character device exist.
func OpenTLC5947(config Config) (*TLC5947, error) {
	return nil, errors.New("tlc5947: hardware driver requires linux")
}
