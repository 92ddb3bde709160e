package core

import "tinygo.org/x/drivers"

// SharedSPI owns one physical SPI bus and the lock bit guarding it.
// Drivers never see the bus directly: they borrow it, or talk through an
// SPIDevice that borrows on every transaction.
type SharedSPI struct {
	lock    busLock
	bus     drivers.SPI
	devices []*SPIDevice
}

// NewSharedSPI takes exclusive ownership of bus
func NewSharedSPI(bus drivers.SPI, opts ...BusOption) *SharedSPI {
	s := &SharedSPI{bus: bus}
	s.lock.init(opts)
	return s
}

// TryBorrow returns an exclusive borrow of the bus, or ErrAlreadyBorrowed
// if one is live. It never waits. The borrow must be released.
func (s *SharedSPI) TryBorrow() (SPIBorrow, error) {
	if err := s.lock.acquire(); err != nil {
		return SPIBorrow{}, err
	}
	return s.borrow(), nil
}

// MustBorrow is TryBorrow for callers that treat contention as fatal
func (s *SharedSPI) MustBorrow() SPIBorrow {
	if err := s.lock.acquire(); err != nil {
		s.lock.fatal("SPI bus borrowed reentrantly")
	}
	return s.borrow()
}

func (s *SharedSPI) borrow() SPIBorrow {
	return SPIBorrow{lease: lease{lock: &s.lock, bus: s.lock.id}, bus: s.bus}
}

// WithBorrow runs fn with the bus borrowed and releases it afterwards.
// fn must not keep b.
func (s *SharedSPI) WithBorrow(fn func(b *SPIBorrow) error) error {
	b, err := s.TryBorrow()
	if err != nil {
		return err
	}
	defer b.Release()
	return fn(&b)
}

// Locked reports whether a borrow is live
func (s *SharedSPI) Locked() bool {
	return s.lock.locked.IsSet()
}

// ID returns the bus id used in diagnostics
func (s *SharedSPI) ID() uint8 {
	return s.lock.id
}

// Stats returns the bus counters
func (s *SharedSPI) Stats() BusStats {
	return s.lock.stats()
}

// DeselectAll drives every chip select on this bus to its inactive level.
// It does not borrow the bus, so it is safe from a halt hook.
func (s *SharedSPI) DeselectAll() {
	for _, d := range s.devices {
		_ = d.deselect()
	}
}

// SPIBorrow is the exclusive access token for a SharedSPI. It satisfies
// drivers.SPI. Transactions reach the bus in the order they are issued.
type SPIBorrow struct {
	lease
	bus drivers.SPI
}

var _ drivers.SPI = (*SPIBorrow)(nil)

// Tx transmits w and receives into r at the same time (see drivers.SPI)
func (b *SPIBorrow) Tx(w, r []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	return b.bus.Tx(w, r)
}

// Transfer exchanges a single byte
func (b *SPIBorrow) Transfer(c byte) (byte, error) {
	if err := b.check(); err != nil {
		return 0, err
	}
	return b.bus.Transfer(c)
}

// Read clocks len(buf) bytes in while sending zeros
func (b *SPIBorrow) Read(buf []byte) error {
	return b.Tx(nil, buf)
}

// Write clocks buf out and discards what comes back
func (b *SPIBorrow) Write(buf []byte) error {
	return b.Tx(buf, nil)
}
