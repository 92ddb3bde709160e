package core

import (
	"math"
	"time"
)

// Delay pauses the caller on a clock with a fixed tick rate. Msec and Usec
// are the two clocks drivers usually ask for; the zero value counts
// microseconds.
type Delay struct {
	hz uint32
}

// Msec returns the millisecond clock
func Msec() Delay {
	return Delay{hz: 1000}
}

// Usec returns the microsecond clock
func Usec() Delay {
	return Delay{hz: 1000000}
}

// Hz returns the tick rate
func (d Delay) Hz() uint32 {
	if d.hz == 0 {
		return 1000000
	}
	return d.hz
}

var sleep = time.Sleep

// SleepTicks yields the goroutine for ticks of this clock
func (d Delay) SleepTicks(ticks uint32) {
	if ticks == 0 {
		return
	}
	sleep(time.Duration(uint64(ticks) * uint64(time.Second) / uint64(d.Hz())))
}

// SpinTicks busy-waits on the system clock for ticks of this clock. It
// blocks everything at lower priority; use it only for very short delays.
func (d Delay) SpinTicks(ticks uint32) {
	hz := uint64(d.Hz())
	spin((uint64(ticks)*TimerFreq + hz - 1) / hz)
}

// Sleep pauses for dur, rounded up to whole ticks. Durations too long for
// one SleepTicks are slept in pieces.
func (d Delay) Sleep(dur time.Duration) {
	if dur <= 0 {
		return
	}
	hz := uint64(d.Hz())
	secs := uint64(dur / time.Second)
	frac := uint64(dur % time.Second)
	ticks := secs*hz + (frac*hz+uint64(time.Second)-1)/uint64(time.Second)
	for ticks > math.MaxUint32 {
		d.SleepTicks(math.MaxUint32)
		ticks -= math.MaxUint32
	}
	d.SleepTicks(uint32(ticks))
}

// DelayMs pauses for ms milliseconds
func (d Delay) DelayMs(ms uint32) {
	d.Sleep(time.Duration(ms) * time.Millisecond)
}

// DelayUs pauses for us microseconds
func (d Delay) DelayUs(us uint32) {
	d.Sleep(time.Duration(us) * time.Microsecond)
}

// SleepTicks yields the goroutine for ticks of the system clock
func SleepTicks(ticks uint32) {
	Delay{hz: TimerFreq}.SleepTicks(ticks)
}

// spinChunk keeps each wait well inside the wraparound window of TimerIsBefore
const spinChunk = 1 << 30

// SpinTicks busy-waits until ticks of the system clock have passed. GetTime
// must advance on its own, so targets install a time source first.
func SpinTicks(ticks uint32) {
	spin(uint64(ticks))
}

func spin(ticks uint64) {
	for ticks > 0 {
		n := uint32(min(ticks, spinChunk))
		deadline := GetTime() + n
		for TimerIsBefore(GetTime(), deadline) {
		}
		ticks -= uint64(n)
	}
}
