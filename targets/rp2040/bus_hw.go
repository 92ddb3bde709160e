//go:build rp2040 && !piospi

package main

import (
	"gobus/core"

	"tinygo.org/x/drivers"
)

// newBridgeBus opens the bridge SPI bus on the hardware SPI0 block
func newBridgeBus() (drivers.SPI, error) {
	core.SetSPIDriver(NewRP2040SPIDriver())
	return core.NewHALBus(core.SPIConfig{
		BusID: bridgeSPIBus,
		Mode:  0,
		Rate:  bridgeSPIRate,
	})
}
