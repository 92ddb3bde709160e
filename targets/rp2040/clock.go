//go:build rp2040

package main

import (
	"gobus/core"
	"runtime/volatile"
	"unsafe"
)

// RP2040 timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// ticksPerUS scales the 1MHz hardware timer to core.TimerFreq
const ticksPerUS = core.TimerFreq / 1000000

// GetHardwareUptime reads the full 64-bit RP2040 hardware timer
func GetHardwareUptime() uint64 {
	// High, low, high again to catch a rollover between the reads
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// systemTicks is the core time source: the hardware timer scaled to
// core.TimerFreq. It only reads registers, so interrupt handlers may call it.
func systemTicks() uint32 {
	return uint32(GetHardwareUptime() * ticksPerUS)
}
