package core

import "sync/atomic"

// AtomicFlag is a single lock bit that is never observed torn.
// TestAndSet and Clear are the only mutation paths.
type AtomicFlag interface {
	// TestAndSet sets the flag and reports whether it was already set
	TestAndSet() bool

	// Clear resets the flag
	Clear()

	// IsSet reads the flag without changing it
	IsSet() bool
}

// HardwareFlag uses the CPU's atomic swap and never masks interrupts
type HardwareFlag struct {
	v atomic.Uint32
}

func (f *HardwareFlag) TestAndSet() bool {
	return f.v.Swap(1) != 0
}

func (f *HardwareFlag) Clear() {
	f.v.Store(0)
}

func (f *HardwareFlag) IsSet() bool {
	return f.v.Load() != 0
}

// EmulatedFlag is for cores without atomic read-modify-write instructions.
// Every access runs inside a critical section, so an interrupt can never
// split the read from the write.
type EmulatedFlag struct {
	set bool
}

func (f *EmulatedFlag) TestAndSet() bool {
	cs := EnterCritical()
	prev := f.set
	f.set = true
	cs.Exit()
	return prev
}

func (f *EmulatedFlag) Clear() {
	cs := EnterCritical()
	f.set = false
	cs.Exit()
}

func (f *EmulatedFlag) IsSet() bool {
	cs := EnterCritical()
	v := f.set
	cs.Exit()
	return v
}
