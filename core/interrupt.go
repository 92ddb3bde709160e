package core

// InterruptState is the saved interrupt-enable state returned by Disable.
// Its meaning is platform specific; core code only hands it back to Restore.
type InterruptState uintptr

// InterruptController is the platform primitive pair behind critical sections.
// Platform code can replace the default with SetInterruptController.
type InterruptController interface {
	// Disable masks interrupts on the current core and returns the prior state
	Disable() InterruptState

	// Restore puts the interrupt mask back to a state returned by Disable
	Restore(state InterruptState)
}

var interruptController InterruptController = platformInterrupts()

// SetInterruptController is called by target-specific code (or tests) to
// register its interrupt primitives. Must not be called inside a critical section.
func SetInterruptController(c InterruptController) {
	if c == nil {
		c = platformInterrupts()
	}
	interruptController = c
}
