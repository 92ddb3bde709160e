//go:build avr || rp2040 || nrf51 || atsamd21 || nonatomic

package core

// ARMv6-M and AVR cores have no exclusive load/store, so the lock bit is
// guarded by masking interrupts instead.
const HasAtomics = false

// NewAtomicFlag returns the flag variant for this build
func NewAtomicFlag() AtomicFlag {
	return &EmulatedFlag{}
}
