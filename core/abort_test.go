package core

import (
	"errors"
	"runtime"
	"strings"
	"testing"
)

func TestAbortPolicyFatal(t *testing.T) {
	resetCore(t)
	p, lines := haltingPolicy()

	var hookRan bool
	p.OnHalt(func() { hookRan = true })

	if p.State() != AbortRunning {
		t.Fatalf("New policy state %v", p.State())
	}

	s := NewSharedSPI(&fakeSPI{}, WithBusID(2))
	b, _ := s.TryBorrow()
	b.Release()

	if runUntilHalt(func() { p.Fatal("sensor bus wedged") }) {
		t.Fatal("Fatal returned")
	}

	if p.State() != AbortHalted {
		t.Errorf("Expected %v, got %v", AbortHalted, p.State())
	}
	if p.Reason() != "sensor bus wedged" {
		t.Errorf("Unexpected reason %q", p.Reason())
	}
	if !hookRan {
		t.Error("Halt hook did not run")
	}

	if len(*lines) == 0 {
		t.Fatal("Nothing reported")
	}
	first := (*lines)[0]
	if !strings.HasPrefix(first, "FATAL: sensor bus wedged at ") || !strings.Contains(first, "abort_test.go:") {
		t.Errorf("Unexpected report line %q", first)
	}
	out := strings.Join(*lines, "\n")
	for _, want := range []string{"[BUS] === Event Ring Dump ===", "[BUS] BORROW bus=2", "[BUS] RELEASE bus=2", "[BUS] FATAL"} {
		if !strings.Contains(out, want) {
			t.Errorf("Report missing %q:\n%s", want, out)
		}
	}
}

func TestAbortPolicySecondFatal(t *testing.T) {
	resetCore(t)
	p, lines := haltingPolicy()
	hooks := 0
	p.OnHalt(func() { hooks++ })

	runUntilHalt(func() { p.Fatal("first") })
	reported := len(*lines)

	if runUntilHalt(func() { p.Fatal("second") }) {
		t.Fatal("Second Fatal returned")
	}
	if len(*lines) != reported {
		t.Errorf("Second Fatal reported again: %q", (*lines)[reported:])
	}
	if hooks != 1 {
		t.Errorf("Hooks ran %d times", hooks)
	}
	if p.Reason() != "first" {
		t.Errorf("Reason changed to %q", p.Reason())
	}
}

func TestGlobalFatalUsesDebugWriter(t *testing.T) {
	resetCore(t)
	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, strings.Clone(s)) })

	halted := 0
	SetAbortPolicy(NewAbortPolicy(nil, func() {
		halted++
		runtime.Goexit()
	}))

	if runUntilHalt(func() { Fatal("no GPIO") }) {
		t.Fatal("Fatal returned")
	}
	if halted != 1 {
		t.Errorf("Halt called %d times", halted)
	}
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "FATAL: no GPIO") {
		t.Errorf("Report not sent to debug writer: %q", lines)
	}
	if GetAbortPolicy().State() != AbortHalted {
		t.Error("Global policy not halted")
	}
}

func TestMustGPIOWithoutDriver(t *testing.T) {
	resetCore(t)
	p, _ := haltingPolicy()
	SetAbortPolicy(p)

	if runUntilHalt(func() { MustGPIO() }) {
		t.Fatal("MustGPIO returned without a driver")
	}
	if p.Reason() != "GPIO driver not configured" {
		t.Errorf("Unexpected reason %q", p.Reason())
	}
}

var errTestHalt = errors.New("halted")

func TestFatalReportDoesNotAllocate(t *testing.T) {
	resetCore(t)
	var lines, located int
	p := NewAbortPolicy(func(s string) {
		lines++
		if strings.Contains(s, "abort_test.go:") {
			located++
		}
	}, func() { panic(errTestHalt) })
	s := NewSharedSPI(&fakeSPI{}, WithBusID(9), WithAbort(p))
	b := s.MustBorrow()

	// Contention on a live borrow, through the report and hooks, to the halt
	allocs := testing.AllocsPerRun(20, func() {
		p.state.Store(uint32(AbortRunning))
		defer func() {
			if r := recover(); r != errTestHalt {
				panic(r)
			}
		}()
		s.MustBorrow()
	})
	b.Release()

	if allocs != 0 {
		t.Errorf("Fatal path allocated %.1f times", allocs)
	}
	if lines == 0 || located == 0 {
		t.Errorf("Report incomplete: %d lines, %d with a location", lines, located)
	}
	if got := p.Reason(); got != "SPI bus borrowed reentrantly (bus 9)" {
		t.Errorf("Unexpected reason %q", got)
	}
}

func TestAbortStateString(t *testing.T) {
	testCases := []struct {
		state AbortState
		want  string
	}{
		{AbortRunning, "running"},
		{AbortHalted, "halted"},
		{AbortState(9), "unknown"},
	}
	for _, tc := range testCases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("%d.String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
