//go:build rp2040

package main

import (
	"machine"
)

var debugUART *machine.UART

// InitDebugUART sets up UART0 on GP0 (TX) / GP1 (RX) at 115200 and returns
// a core.DebugWriter. USB carries bridge frames, so log lines go here.
func InitDebugUART() func(string) {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO0,
		RX:       machine.GPIO1,
	})
	if err != nil {
		return nil
	}
	debugUART = uart
	return debugPrintln
}

func debugPrintln(s string) {
	if debugUART == nil {
		return
	}
	// Byte at a time so a fatal report from an interrupt never allocates
	for i := 0; i < len(s); i++ {
		debugUART.WriteByte(s[i])
	}
	debugUART.WriteByte('\r')
	debugUART.WriteByte('\n')
}
