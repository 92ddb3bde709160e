//go:build rp2040

package main

import (
	"errors"
	"gobus/core"
	"machine"
)

// spiPins is one pin group a hardware SPI block can be routed to
type spiPins struct {
	spi  *machine.SPI
	sck  machine.Pin
	mosi machine.Pin
	miso machine.Pin
}

// SPI bus pin groups. Bus IDs index this table.
var rp2040SPIBuses = [...]spiPins{
	{machine.SPI0, machine.GPIO2, machine.GPIO3, machine.GPIO0},
	{machine.SPI0, machine.GPIO6, machine.GPIO7, machine.GPIO4},
	{machine.SPI0, machine.GPIO18, machine.GPIO19, machine.GPIO16},
	{machine.SPI0, machine.GPIO22, machine.GPIO23, machine.GPIO20},
	{machine.SPI0, machine.GPIO2, machine.GPIO3, machine.GPIO4},
	{machine.SPI1, machine.GPIO10, machine.GPIO11, machine.GPIO8},
	{machine.SPI1, machine.GPIO14, machine.GPIO15, machine.GPIO12},
	{machine.SPI1, machine.GPIO26, machine.GPIO27, machine.GPIO24},
	{machine.SPI1, machine.GPIO10, machine.GPIO11, machine.GPIO12},
}

var (
	errSPIBus    = errors.New("invalid SPI bus ID")
	errSPIMode   = errors.New("invalid SPI mode")
	errSPIHandle = errors.New("invalid SPI bus handle")
)

// RP2040SPIDriver implements core.SPIDriver on TinyGo's machine.SPI.
// Transfers are serialized by the SharedSPI that owns the bus handle.
type RP2040SPIDriver struct {
	configured [len(rp2040SPIBuses)]*spiInstance
}

// spiInstance is the handle ConfigureBus returns
type spiInstance struct {
	spi  *machine.SPI
	mode core.SPIMode
	rate uint32
}

// NewRP2040SPIDriver creates a new RP2040 SPI driver
func NewRP2040SPIDriver() *RP2040SPIDriver {
	return &RP2040SPIDriver{}
}

// ConfigureBus routes and configures a hardware SPI block. Asking again
// with the same mode and rate returns the existing handle.
func (d *RP2040SPIDriver) ConfigureBus(config core.SPIConfig) (interface{}, error) {
	if int(config.BusID) >= len(rp2040SPIBuses) {
		return nil, errSPIBus
	}
	if config.Mode > 3 {
		return nil, errSPIMode
	}
	if inst := d.configured[config.BusID]; inst != nil &&
		inst.mode == config.Mode && inst.rate == config.Rate {
		return inst, nil
	}

	pins := rp2040SPIBuses[config.BusID]
	err := pins.spi.Configure(machine.SPIConfig{
		Frequency: config.Rate,
		SCK:       pins.sck,
		SDO:       pins.mosi,
		SDI:       pins.miso,
		Mode:      uint8(config.Mode),
	})
	if err != nil {
		return nil, err
	}

	inst := &spiInstance{spi: pins.spi, mode: config.Mode, rate: config.Rate}
	d.configured[config.BusID] = inst
	return inst, nil
}

// Transfer runs one full-duplex transfer on a handle from ConfigureBus
func (d *RP2040SPIDriver) Transfer(busHandle interface{}, txData []byte, rxData []byte) error {
	inst, ok := busHandle.(*spiInstance)
	if !ok {
		return errSPIHandle
	}
	if len(txData) != len(rxData) {
		return errors.New("tx and rx buffer lengths must match")
	}
	return inst.spi.Tx(txData, rxData)
}
