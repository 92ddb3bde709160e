// Package serial connects the host to the firmware bus bridge over a serial
// port.
package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is the byte stream the bridge client talks over. Tests substitute an
// in-memory implementation.
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	Device      string // e.g. "/dev/ttyACM0", "COM3"
	Baud        int    // USB CDC ignores this
	ReadTimeout int    // milliseconds; 0 blocks
}

// DefaultConfig returns the configuration used by the bridge firmware
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 20, // short reads let the client poll its deadline
	}
}

// Open opens the device described by cfg. *serial.Port already provides
// Read, Write, Close and Flush.
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return port, nil
}
