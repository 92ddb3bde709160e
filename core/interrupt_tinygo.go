//go:build tinygo

package core

import "runtime/interrupt"

// tinygoInterrupts masks interrupts through the TinyGo runtime
type tinygoInterrupts struct{}

func platformInterrupts() InterruptController {
	return tinygoInterrupts{}
}

// Disable disables interrupts and returns the previous state
func (tinygoInterrupts) Disable() InterruptState {
	return InterruptState(interrupt.Disable())
}

// Restore restores the interrupt state
func (tinygoInterrupts) Restore(state InterruptState) {
	interrupt.Restore(interrupt.State(state))
}
