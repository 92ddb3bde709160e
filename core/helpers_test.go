package core

import (
	"fmt"
	"runtime"
	"strings"
	"testing"
)

// resetCore puts the package globals into a known state for one test
func resetCore(t *testing.T) *SimInterrupts {
	t.Helper()
	sim := NewSimInterrupts()
	SetInterruptController(sim)
	critical.depth = 0
	critical.saved = 0
	ClearEventRing()
	SetEventsEnabled(true)
	SetTimeSource(nil)
	SetTime(0)
	SetGPIODriver(nil)
	SetSPIDriver(nil)
	timerList = nil

	t.Cleanup(func() {
		SetInterruptController(nil)
		critical.depth = 0
		SetAbortPolicy(nil)
		SetGPIODriver(nil)
		SetSPIDriver(nil)
		SetDebugWriter(nil)
		SetDebugEnabled(false)
		SetTimeSource(nil)
		timerList = nil
	})
	return sim
}

// haltingPolicy returns a policy whose halt ends the calling goroutine, and
// the slice its reports are collected in
func haltingPolicy() (*AbortPolicy, *[]string) {
	var lines []string
	p := NewAbortPolicy(func(s string) { lines = append(lines, strings.Clone(s)) }, runtime.Goexit)
	return p, &lines
}

// runUntilHalt runs fn on its own goroutine and waits for it to finish or
// be halted. It reports whether fn returned normally.
func runUntilHalt(fn func()) bool {
	done := make(chan bool)
	go func() {
		returned := false
		defer func() { done <- returned }()
		fn()
		returned = true
	}()
	return <-done
}

// fakeSPI records transactions. Received bytes are the complement of the
// transmitted ones, or fill when nothing is transmitted.
type fakeSPI struct {
	log    *[]string
	fill   byte
	err    error
	during func() // called in the middle of every transaction
	calls  int
}

func (f *fakeSPI) Tx(w, r []byte) error {
	f.calls++
	if f.during != nil {
		f.during()
	}
	if f.log != nil {
		*f.log = append(*f.log, fmt.Sprintf("tx %x", w))
	}
	for i := range r {
		if i < len(w) {
			r[i] = ^w[i]
		} else {
			r[i] = f.fill
		}
	}
	return f.err
}

func (f *fakeSPI) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := f.Tx([]byte{b}, r[:])
	return r[0], err
}

// mockGPIO records pin writes into the same log as the bus
type mockGPIO struct {
	log        *[]string
	level      map[GPIOPin]bool
	configured map[GPIOPin]bool
}

func newMockGPIO(log *[]string) *mockGPIO {
	return &mockGPIO{
		log:        log,
		level:      make(map[GPIOPin]bool),
		configured: make(map[GPIOPin]bool),
	}
}

func (m *mockGPIO) ConfigureOutput(pin GPIOPin) error {
	m.configured[pin] = true
	return nil
}

func (m *mockGPIO) SetPin(pin GPIOPin, value bool) error {
	if !m.configured[pin] {
		return fmt.Errorf("pin %d not configured", pin)
	}
	m.level[pin] = value
	if m.log != nil {
		level := 0
		if value {
			level = 1
		}
		*m.log = append(*m.log, fmt.Sprintf("cs%d=%d", pin, level))
	}
	return nil
}

func (m *mockGPIO) GetPin(pin GPIOPin) (bool, error) {
	return m.level[pin], nil
}

func equalLog(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("log mismatch:\n got %q\nwant %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("log mismatch at %d:\n got %q\nwant %q", i, got, want)
		}
	}
}
