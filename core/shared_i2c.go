package core

import "tinygo.org/x/drivers"

// SharedI2C owns one physical I2C bus and its lock bit. Devices are told
// apart by address, so there is no chip select to manage.
type SharedI2C struct {
	lock busLock
	bus  drivers.I2C

	// Register framing for the current borrow; there is only ever one
	scratch [16]byte
}

// NewSharedI2C takes exclusive ownership of bus
func NewSharedI2C(bus drivers.I2C, opts ...BusOption) *SharedI2C {
	s := &SharedI2C{bus: bus}
	s.lock.init(opts)
	return s
}

// TryBorrow returns an exclusive borrow of the bus or ErrAlreadyBorrowed
func (s *SharedI2C) TryBorrow() (I2CBorrow, error) {
	if err := s.lock.acquire(); err != nil {
		return I2CBorrow{}, err
	}
	return s.borrow(), nil
}

// MustBorrow is TryBorrow for callers that treat contention as fatal
func (s *SharedI2C) MustBorrow() I2CBorrow {
	if err := s.lock.acquire(); err != nil {
		s.lock.fatal("I2C bus borrowed reentrantly")
	}
	return s.borrow()
}

func (s *SharedI2C) borrow() I2CBorrow {
	return I2CBorrow{lease: lease{lock: &s.lock, bus: s.lock.id}, bus: s.bus, scratch: &s.scratch}
}

// WithBorrow runs fn with the bus borrowed and releases it afterwards
func (s *SharedI2C) WithBorrow(fn func(b *I2CBorrow) error) error {
	b, err := s.TryBorrow()
	if err != nil {
		return err
	}
	defer b.Release()
	return fn(&b)
}

// Locked reports whether a borrow is live
func (s *SharedI2C) Locked() bool {
	return s.lock.locked.IsSet()
}

// ID returns the bus id used in diagnostics
func (s *SharedI2C) ID() uint8 {
	return s.lock.id
}

// Stats returns the bus counters
func (s *SharedI2C) Stats() BusStats {
	return s.lock.stats()
}

// I2CBorrow is the exclusive access token for a SharedI2C.
// It satisfies drivers.I2C.
type I2CBorrow struct {
	lease
	bus     drivers.I2C
	scratch *[16]byte
}

var _ drivers.I2C = (*I2CBorrow)(nil)

// Tx performs one I2C transaction with the device at addr
func (b *I2CBorrow) Tx(addr uint16, w, r []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	return b.bus.Tx(addr, w, r)
}

// ReadRegister reads len(buf) bytes starting at register reg. It does not
// allocate, so it is usable from an interrupt handler.
func (b *I2CBorrow) ReadRegister(addr uint8, reg uint8, buf []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	b.scratch[0] = reg
	return b.bus.Tx(uint16(addr), b.scratch[:1], buf)
}

// WriteRegister writes data starting at register reg. Writes of up to 15
// bytes do not allocate.
func (b *I2CBorrow) WriteRegister(addr uint8, reg uint8, data []byte) error {
	if err := b.check(); err != nil {
		return err
	}
	var w []byte
	if len(data) < len(b.scratch) {
		w = b.scratch[:len(data)+1]
	} else {
		w = make([]byte, len(data)+1)
	}
	w[0] = reg
	copy(w[1:], data)
	return b.bus.Tx(uint16(addr), w, nil)
}
