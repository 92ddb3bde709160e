package core

import (
	"errors"

	"tinygo.org/x/drivers"
)

// SPIBusID identifies a hardware SPI bus configuration
type SPIBusID uint8

// SPIMode represents SPI clock polarity and phase (0-3)
// Mode 0: CPOL=0, CPHA=0 (clock idle low, sample on rising edge)
// Mode 1: CPOL=0, CPHA=1 (clock idle low, sample on falling edge)
// Mode 2: CPOL=1, CPHA=0 (clock idle high, sample on falling edge)
// Mode 3: CPOL=1, CPHA=1 (clock idle high, sample on rising edge)
type SPIMode uint8

// SPIConfig holds the configuration for an SPI bus
type SPIConfig struct {
	BusID SPIBusID // Hardware bus identifier
	Mode  SPIMode  // SPI mode (0-3)
	Rate  uint32   // Clock rate in Hz
}

// SPIDriver is the abstract SPI interface that platform code implements.
// Core code reaches it only through a HALBus owned by a SharedSPI.
type SPIDriver interface {
	// ConfigureBus sets up a hardware SPI bus with specified parameters
	// Returns an opaque bus handle and any error
	ConfigureBus(config SPIConfig) (interface{}, error)

	// Transfer performs a bidirectional SPI transfer
	// Sends txData and receives rxData simultaneously
	// The busHandle is the value returned by ConfigureBus
	Transfer(busHandle interface{}, txData []byte, rxData []byte) error
}

var spiDriver SPIDriver

// SetSPIDriver is called by target-specific code to register its hardware SPI driver
func SetSPIDriver(d SPIDriver) {
	spiDriver = d
}

var errNoSPIDriver = errors.New("SPI driver not configured")

// HALBus adapts a configured HAL bus handle to drivers.SPI so it can be
// handed to NewSharedSPI.
type HALBus struct {
	driver SPIDriver
	handle interface{}
	config SPIConfig
	zeros  [32]byte
	sink   [32]byte
}

var _ drivers.SPI = (*HALBus)(nil)

// NewHALBus configures config.BusID through the registered SPI driver
func NewHALBus(config SPIConfig) (*HALBus, error) {
	if spiDriver == nil {
		return nil, errNoSPIDriver
	}
	return NewHALBusWith(spiDriver, config)
}

// NewHALBusWith configures a bus on an explicit driver
func NewHALBusWith(d SPIDriver, config SPIConfig) (*HALBus, error) {
	handle, err := d.ConfigureBus(config)
	if err != nil {
		return nil, err
	}
	return &HALBus{driver: d, handle: handle, config: config}, nil
}

// Config returns the configuration the bus was opened with
func (h *HALBus) Config() SPIConfig {
	return h.config
}

// Tx implements drivers.SPI. The HAL wants equal-length buffers, so the
// shorter side is made up from scratch in chunks: zeros are clocked out
// past the end of w and bytes read past the end of r are discarded.
func (h *HALBus) Tx(w, r []byte) error {
	total := max(len(w), len(r))
	for off := 0; off < total; {
		n := total - off
		tx, rx := h.zeros[:], h.sink[:]
		if off < len(w) {
			tx = w[off:]
		}
		if off < len(r) {
			rx = r[off:]
		}
		n = min(n, len(tx), len(rx))
		if err := h.driver.Transfer(h.handle, tx[:n], rx[:n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}

// Transfer implements drivers.SPI
func (h *HALBus) Transfer(b byte) (byte, error) {
	tx := [1]byte{b}
	var rx [1]byte
	err := h.driver.Transfer(h.handle, tx[:], rx[:])
	return rx[0], err
}
