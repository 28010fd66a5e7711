// Package serialport opens a serial device as the byte source and sink of
// a link. Ports are opened 8N1.
package serialport

import (
	"errors"
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultBaudRate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

var ErrNoDevice = errors.New("serialport: no device configured")

type Config struct {
	Device   string
	BaudRate int
	// ReadTimeout bounds each Read so a poller can observe cancellation.
	// Zero selects DefaultReadTimeout.
	ReadTimeout time.Duration
}

func (c Config) mode() *serial.Mode {
	baud := c.BaudRate
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens the configured port. A read that times out returns (0, nil).
func Open(c Config) (serial.Port, error) {
	if c.Device == "" {
		return nil, ErrNoDevice
	}

	port, err := serial.Open(c.Device, c.mode())
	if err != nil {
		return nil, fmt.Errorf("serial open %s: %w", c.Device, err)
	}

	timeout := c.ReadTimeout
	if timeout <= 0 {
		timeout = DefaultReadTimeout
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial set read timeout: %w", err)
	}
	return port, nil
}

// List returns the serial ports present on the system.
func List() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("serial list: %w", err)
	}
	return ports, nil
}
