//go:build rp2040 && piospi

package main

import (
	"machine"

	"tinygo.org/x/drivers"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

// newBridgeBus opens the bridge SPI bus on a PIO state machine, leaving
// both hardware SPI blocks free. Pins match the hardware bus table entry.
func newBridgeBus() (drivers.SPI, error) {
	sm, err := pio.PIO0.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	pins := rp2040SPIBuses[bridgeSPIBus]
	return piolib.NewSPI(sm, machine.SPIConfig{
		Frequency: bridgeSPIRate,
		SCK:       pins.sck,
		SDO:       pins.mosi,
		SDI:       pins.miso,
		Mode:      0,
	})
}
