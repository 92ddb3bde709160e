package core

// DebugWriter is a function type for writing debug messages. The string may
// alias a reused buffer; a writer that keeps it must copy it.
type DebugWriter func(string)

// BusEvent captures a bus lock transition for post-mortem analysis
type BusEvent struct {
	EventType uint8  // Event type code
	BusID     uint8  // Bus the event belongs to
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtBorrow            = 1 // TryBorrow succeeded (v1 = borrow count)
	EvtRelease           = 2 // Borrow released (v1 = release count)
	EvtContended         = 3 // TryBorrow found the bus locked (v1 = contended count)
	EvtReleasedUse       = 4 // Transaction attempted on a released borrow
	EvtCriticalUnderflow = 5 // Critical section exit without enter
	EvtFatal             = 6 // Abort policy halted the core
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool = false

	// Event capture ring buffer (non-blocking, for post-mortem)
	eventRing     [EventRingSize]BusEvent
	eventRingHead uint8
	eventsEnabled bool = true
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	if writer == nil {
		writer = func(s string) {}
	}
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetEventsEnabled turns bus event capture on or off
func SetEventsEnabled(enabled bool) {
	eventsEnabled = enabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled {
		debugPrintln(msg)
	}
}

// RecordEvent captures a bus event in the ring buffer.
// Safe from interrupt context; never blocks.
func RecordEvent(eventType, busID uint8, value1, value2 uint32) {
	if !eventsEnabled {
		return
	}
	cs := EnterCritical()
	idx := eventRingHead
	eventRing[idx] = BusEvent{
		EventType: eventType,
		BusID:     busID,
		Clock:     GetTime(),
		Value1:    value1,
		Value2:    value2,
	}
	eventRingHead = (idx + 1) % EventRingSize
	cs.Exit()
}

// RecentEvents copies the ring into dst from oldest to newest and returns
// the number of events written
func RecentEvents(dst []BusEvent) int {
	cs := EnterCritical()
	defer cs.Exit()

	n := 0
	start := eventRingHead
	for i := uint8(0); i < EventRingSize && n < len(dst); i++ {
		evt := eventRing[(start+i)%EventRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		dst[n] = evt
		n++
	}
	return n
}

// EventName returns the short name used in dumps
func EventName(eventType uint8) string {
	switch eventType {
	case EvtBorrow:
		return "BORROW"
	case EvtRelease:
		return "RELEASE"
	case EvtContended:
		return "CONTENDED"
	case EvtReleasedUse:
		return "RELEASED_USE!"
	case EvtCriticalUnderflow:
		return "CS_UNDERFLOW!"
	case EvtFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// DumpEventRing outputs the event ring through the debug writer
func DumpEventRing() {
	var line lineBuf
	dumpEventRing(debugPrintln, &line)
}

// dumpEventRing formats each event into line, so a caller that owns line
// can dump the ring without allocating. w sees line's storage.
func dumpEventRing(w DebugWriter, line *lineBuf) {
	if w == nil {
		return
	}

	var events [EventRingSize]BusEvent
	n := RecentEvents(events[:])

	w("[BUS] === Event Ring Dump ===")
	for i := 0; i < n; i++ {
		evt := &events[i]
		line.reset().str("[BUS] ").str(EventName(evt.EventType)).
			str(" bus=").uint(uint64(evt.BusID)).
			str(" clock=").uint(uint64(evt.Clock)).
			str(" v1=").uint(uint64(evt.Value1)).
			str(" v2=").uint(uint64(evt.Value2))
		w(line.String())
	}
	w("[BUS] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	cs := EnterCritical()
	for i := range eventRing {
		eventRing[i] = BusEvent{}
	}
	eventRingHead = 0
	cs.Exit()
}
