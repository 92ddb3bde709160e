package core

// noCopy may be added to structs which must not be copied after first use.
// It is picked up by the -copylocks checker of go vet.
//
// It must not be embedded, due to the Lock and Unlock methods.
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Nesting state for the current core. Only touched with interrupts masked.
var critical struct {
	depth uint32
	saved InterruptState
}

// CriticalSection is the token for a region that runs with interrupts masked.
// Sections nest: the interrupt state saved by the outermost EnterCritical is
// put back only when that outermost token exits.
type CriticalSection struct {
	_       noCopy
	entered bool
}

// EnterCritical masks interrupts and returns the token for the region.
// It cannot fail.
func EnterCritical() CriticalSection {
	state := interruptController.Disable()
	if critical.depth == 0 {
		critical.saved = state
	}
	critical.depth++
	return CriticalSection{entered: true}
}

// Exit leaves the region. Calling Exit again on the same token does nothing.
func (cs *CriticalSection) Exit() {
	if !cs.entered {
		return
	}
	cs.entered = false

	if critical.depth == 0 {
		RecordEvent(EvtCriticalUnderflow, 0, 0, 0)
		Fatal("critical section exit without matching enter")
		return
	}
	critical.depth--
	if critical.depth == 0 {
		interruptController.Restore(critical.saved)
	}
}

// Critical runs fn with interrupts masked
func Critical(fn func()) {
	cs := EnterCritical()
	defer cs.Exit()
	fn()
}

// CriticalDepth returns the current nesting depth (0 outside any section)
func CriticalDepth() uint32 {
	return critical.depth
}

// InCritical reports whether the caller is inside a critical section
func InCritical() bool {
	return critical.depth != 0
}
