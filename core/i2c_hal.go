package core

import (
	"errors"

	"tinygo.org/x/drivers"
)

// I2CBusID identifies a specific I2C bus (e.g., I2C0, I2C1).
type I2CBusID uint8

// I2CAddress is a 7-bit I2C device address.
type I2CAddress uint8

// I2CDriver is the abstract I2C interface that platform code implements.
type I2CDriver interface {
	// ConfigureBus initializes a specific I2C bus with the given frequency.
	// Returns error if bus ID is invalid or configuration fails.
	ConfigureBus(bus I2CBusID, frequencyHz uint32) error

	// Write transmits data to a device at the given address on the specified bus.
	Write(bus I2CBusID, addr I2CAddress, data []byte) error

	// Read fills buf from a device, writing regData first when it is
	// non-empty (repeated start in between).
	Read(bus I2CBusID, addr I2CAddress, regData []byte, buf []byte) error
}

// Global singleton used by core code.
var i2cDriver I2CDriver

// SetI2CDriver is called by target-specific code to register its driver.
func SetI2CDriver(d I2CDriver) {
	i2cDriver = d
}

// GetI2C returns the registered driver or nil
func GetI2C() I2CDriver {
	return i2cDriver
}

var errNoI2CDriver = errors.New("I2C driver not configured")

// I2CHALBus adapts one HAL bus to drivers.I2C for NewSharedI2C
type I2CHALBus struct {
	driver I2CDriver
	bus    I2CBusID
}

var _ drivers.I2C = (*I2CHALBus)(nil)

// NewI2CHALBus configures bus through the registered I2C driver
func NewI2CHALBus(bus I2CBusID, frequencyHz uint32) (*I2CHALBus, error) {
	if i2cDriver == nil {
		return nil, errNoI2CDriver
	}
	if err := i2cDriver.ConfigureBus(bus, frequencyHz); err != nil {
		return nil, err
	}
	return &I2CHALBus{driver: i2cDriver, bus: bus}, nil
}

// Tx implements drivers.I2C
func (h *I2CHALBus) Tx(addr uint16, w, r []byte) error {
	if len(r) == 0 {
		return h.driver.Write(h.bus, I2CAddress(addr), w)
	}
	return h.driver.Read(h.bus, I2CAddress(addr), w, r)
}
