//go:build tinygo

package core

import "runtime/interrupt"

// platformHalt masks interrupts for good and parks the core.
// A watchdog, if running, will reset the chip.
func platformHalt() {
	interrupt.Disable()
	for {
	}
}

// callerLine reports no location: the firmware image carries no line tables.
func callerLine(skip int, pcs []uintptr) (string, int) {
	return "", 0
}
