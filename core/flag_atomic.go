//go:build !(avr || rp2040 || nrf51 || atsamd21 || nonatomic)

package core

// HasAtomics reports whether NewAtomicFlag uses hardware atomics on this build
const HasAtomics = true

// NewAtomicFlag returns the flag variant for this build
func NewAtomicFlag() AtomicFlag {
	return &HardwareFlag{}
}
