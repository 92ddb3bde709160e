//go:build rp2040

package main

import (
	"errors"
	"gobus/core"
	"machine"
)

var (
	errI2CBus           = errors.New("unsupported I2C bus ID")
	errI2CNotConfigured = errors.New("I2C bus not configured")
)

// RPI2CDriver implements core.I2CDriver on TinyGo's machine.I2C.
// Callers serialize through a SharedI2C, so the driver keeps no lock.
type RPI2CDriver struct {
	buses [2]*machine.I2C
}

// NewRPI2CDriver constructs the driver
func NewRPI2CDriver() *RPI2CDriver {
	return &RPI2CDriver{}
}

// ConfigureBus initializes a specific I2C bus with the given frequency.
// A second call only updates the baud rate.
func (d *RPI2CDriver) ConfigureBus(bus core.I2CBusID, frequencyHz uint32) error {
	if int(bus) >= len(d.buses) {
		return errI2CBus
	}
	if i2c := d.buses[bus]; i2c != nil {
		return i2c.SetBaudRate(frequencyHz)
	}

	// Default pins: I2C0 SDA=GP4 SCL=GP5, I2C1 SDA=GP6 SCL=GP7
	i2c := machine.I2C0
	if bus == 1 {
		i2c = machine.I2C1
	}
	if err := i2c.Configure(machine.I2CConfig{Frequency: frequencyHz}); err != nil {
		return err
	}
	d.buses[bus] = i2c
	return nil
}

// Write transmits data to a device at the given address on the specified bus.
func (d *RPI2CDriver) Write(bus core.I2CBusID, addr core.I2CAddress, data []byte) error {
	i2c, err := d.get(bus)
	if err != nil {
		return err
	}
	return i2c.Tx(uint16(addr), data, nil)
}

// Read fills buf, writing regData first with a restart in between
func (d *RPI2CDriver) Read(bus core.I2CBusID, addr core.I2CAddress, regData []byte, buf []byte) error {
	i2c, err := d.get(bus)
	if err != nil {
		return err
	}
	if len(regData) == 0 {
		regData = nil
	}
	return i2c.Tx(uint16(addr), regData, buf)
}

func (d *RPI2CDriver) get(bus core.I2CBusID) (*machine.I2C, error) {
	if int(bus) >= len(d.buses) || d.buses[bus] == nil {
		return nil, errI2CNotConfigured
	}
	return d.buses[bus], nil
}
