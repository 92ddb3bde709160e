package core

import "sync/atomic"

// AbortState is the state of an AbortPolicy
type AbortState uint32

const (
	AbortRunning AbortState = iota
	AbortHalted             // terminal
)

func (s AbortState) String() string {
	switch s {
	case AbortRunning:
		return "running"
	case AbortHalted:
		return "halted"
	default:
		return "unknown"
	}
}

// AbortPolicy handles unrecoverable conditions. A fatal condition moves it
// from Running to Halted, reports the reason and location through the sink,
// runs the halt hooks and stops the execution context. Nothing unwinds.
//
// The report is formatted into storage owned by the policy, so Fatal can
// run from an interrupt handler without allocating. Sink lines are only
// valid for the duration of the sink call.
type AbortPolicy struct {
	state atomic.Uint32
	sink  DebugWriter
	halt  func()
	hooks []func()

	reason lineBuf
	line   lineBuf
	pcs    [1]uintptr
}

// noBus marks a fatal condition that is not tied to a shared bus
const noBus = -1

// NewAbortPolicy creates a policy. A nil sink reports through the global
// debug writer; a nil halt uses the platform halt.
func NewAbortPolicy(sink DebugWriter, halt func()) *AbortPolicy {
	if halt == nil {
		halt = platformHalt
	}
	return &AbortPolicy{sink: sink, halt: halt}
}

// OnHalt registers a hook that runs after the report and before the halt,
// e.g. to park chip-select lines. Hooks must not borrow a bus.
func (p *AbortPolicy) OnHalt(hook func()) {
	p.hooks = append(p.hooks, hook)
}

// State returns the current state
func (p *AbortPolicy) State() AbortState {
	return AbortState(p.state.Load())
}

// Reason returns the reason passed to the first Fatal call
func (p *AbortPolicy) Reason() string {
	if p.State() != AbortHalted {
		return ""
	}
	return p.reason.String()
}

// Fatal halts the execution context. It never returns.
func (p *AbortPolicy) Fatal(reason string) {
	p.fatal(reason, noBus, 2)
}

// fatal is the funnel behind Fatal. skip counts frames above fatal to the
// reported caller; bus is appended to the reason unless it is noBus.
func (p *AbortPolicy) fatal(reason string, bus int, skip int) {
	if p.state.CompareAndSwap(uint32(AbortRunning), uint32(AbortHalted)) {
		p.reason.reset().str(reason)
		var busID uint8
		if bus != noBus {
			busID = uint8(bus)
			p.reason.str(" (bus ").int(bus).str(")")
		}
		RecordEvent(EvtFatal, busID, 0, 0)

		w := p.sink
		if w == nil {
			w = debugPrintln
		}
		p.line.reset().str("FATAL: ").str(p.reason.String())
		if file, line := callerLine(skip+1, p.pcs[:]); file != "" {
			p.line.str(" at ").str(file).str(":").int(line)
		}
		w(p.line.String())
		dumpEventRing(w, &p.line)

		for _, hook := range p.hooks {
			hook()
		}
	}

	p.halt()
	// A halt primitive must not return; park here if it does.
	select {}
}

var abortPolicy = NewAbortPolicy(nil, nil)

// SetAbortPolicy installs the process-wide policy used by Fatal
func SetAbortPolicy(p *AbortPolicy) {
	if p == nil {
		p = NewAbortPolicy(nil, nil)
	}
	abortPolicy = p
}

// GetAbortPolicy returns the process-wide policy
func GetAbortPolicy() *AbortPolicy {
	return abortPolicy
}

// Fatal is the single funnel for unrecoverable conditions. It never returns.
func Fatal(reason string) {
	abortPolicy.fatal(reason, noBus, 2)
}
