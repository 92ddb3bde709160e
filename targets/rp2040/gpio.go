//go:build rp2040

package main

import (
	"errors"
	"gobus/core"
	"machine"
)

const rp2040GPIOCount = 30

var errInvalidPin = errors.New("invalid GPIO pin")

// RPGPIODriver implements core.GPIODriver for chip-select lines.
// RP2040 pins map directly to GPIO numbers.
type RPGPIODriver struct {
	configured uint32 // bit per pin
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{}
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	if pin >= rp2040GPIOCount {
		return errInvalidPin
	}
	if d.configured&(1<<pin) != 0 {
		return nil
	}
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configured |= 1 << pin
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	if err := d.ConfigureOutput(pin); err != nil {
		return err
	}
	machine.Pin(pin).Set(value)
	return nil
}

// GetPin reads the current pin state
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	if pin >= rp2040GPIOCount {
		return false, errInvalidPin
	}
	return machine.Pin(pin).Get(), nil
}
