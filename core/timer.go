package core

// Timer frequencies for common MCUs
const (
	TimerFreq = 12000000 // 12MHz default timer frequency
)

var timeSource func() uint32

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	if src := timeSource; src != nil {
		return src()
	}
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration).
// It has no effect while a time source is installed.
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// SetTimeSource makes GetTime read a free-running counter, already scaled
// to TimerFreq, instead of the clock set by SetTime. src must be safe to
// call from interrupt handlers. nil goes back to SetTime.
func SetTimeSource(src func() uint32) {
	timeSource = src
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32((uint64(us) * TimerFreq) / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32((uint64(ticks) * 1000000) / TimerFreq)
}

// TimerIsBefore reports whether tick a comes before b, allowing for wraparound
func TimerIsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
