//go:build rp2040

package main

import (
	"machine"
)

// InitUSB configures USB CDC. On RP2040 machine.Serial is the USB port,
// not a UART; descriptors come from the TinyGo runtime.
func InitUSB() {
	_ = machine.Serial.Configure(machine.UARTConfig{})
}

// USBRead drains buffered bytes into buf and returns how many were read
func USBRead(buf []byte) int {
	n := 0
	for n < len(buf) && machine.Serial.Buffered() > 0 {
		b, err := machine.Serial.ReadByte()
		if err != nil {
			break
		}
		buf[n] = b
		n++
	}
	return n
}

// USBWriteBytes writes data to USB
func USBWriteBytes(data []byte) (int, error) {
	return machine.Serial.Write(data)
}
