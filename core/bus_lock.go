package core

import "sync/atomic"

// BusStats are running counters for one shared bus
type BusStats struct {
	Borrows   uint32 // successful TryBorrow calls
	Releases  uint32 // borrows released
	Contended uint32 // TryBorrow calls that found the bus locked
}

// BusOption configures a shared bus at construction
type BusOption func(*busLock)

// WithBusID tags the bus in event records and diagnostics
func WithBusID(id uint8) BusOption {
	return func(l *busLock) { l.id = id }
}

// WithFlag overrides the lock bit variant chosen for this build
func WithFlag(f AtomicFlag) BusOption {
	return func(l *busLock) {
		if f != nil {
			l.locked = f
		}
	}
}

// WithAbort routes this bus's fatal conditions to p instead of the
// process-wide policy
func WithAbort(p *AbortPolicy) BusOption {
	return func(l *busLock) { l.abort = p }
}

// busLock is the lock bit and bookkeeping shared by the SPI and I2C handles.
// acquire is the only path that sets the bit, release the only one that clears it.
type busLock struct {
	id     uint8
	locked AtomicFlag
	abort  *AbortPolicy

	borrows   atomic.Uint32
	releases  atomic.Uint32
	contended atomic.Uint32
}

func (l *busLock) init(opts []BusOption) {
	for _, opt := range opts {
		opt(l)
	}
	if l.locked == nil {
		l.locked = NewAtomicFlag()
	}
}

func (l *busLock) acquire() error {
	if l.locked.TestAndSet() {
		n := l.contended.Add(1)
		RecordEvent(EvtContended, l.id, n, 0)
		return ErrAlreadyBorrowed
	}
	n := l.borrows.Add(1)
	RecordEvent(EvtBorrow, l.id, n, 0)
	return nil
}

func (l *busLock) release() {
	n := l.releases.Add(1)
	RecordEvent(EvtRelease, l.id, n, 0)
	l.locked.Clear()
}

func (l *busLock) fatal(reason string) {
	p := l.abort
	if p == nil {
		p = abortPolicy
	}
	p.fatal(reason, int(l.id), 3)
}

func (l *busLock) stats() BusStats {
	return BusStats{
		Borrows:   l.borrows.Load(),
		Releases:  l.releases.Load(),
		Contended: l.contended.Load(),
	}
}

// lease is the release half of a borrow. The zero value is released.
type lease struct {
	_    noCopy
	lock *busLock
	bus  uint8 // kept after release for event records
}

// Release gives the bus back. Releasing twice is a no-op.
func (l *lease) Release() {
	lock := l.lock
	if lock == nil {
		return
	}
	l.lock = nil
	lock.release()
}

// Active reports whether the borrow still holds the bus
func (l *lease) Active() bool {
	return l.lock != nil
}

func (l *lease) check() error {
	if l.lock == nil {
		RecordEvent(EvtReleasedUse, l.bus, 0, 0)
		return ErrReleased
	}
	return nil
}
