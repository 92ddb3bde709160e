//go:build tinygo

package core

import "sync/atomic"

// Updated by the target's clock code (SetTime) from the hardware timer.
var systemTicksValue atomic.Uint32

func getSystemTicks() uint32 {
	return systemTicksValue.Load()
}

func setSystemTicks(ticks uint32) {
	systemTicksValue.Store(ticks)
}
