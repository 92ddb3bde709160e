package core

// Timer represents a scheduled event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

var timerList *Timer

// ScheduleTimer adds a timer to the schedule. Safe from interrupt context.
func ScheduleTimer(t *Timer) {
	cs := EnterCritical()
	defer cs.Exit()

	// Insert timer in sorted order
	insertTimer(t)
}

// CancelTimer removes t from the schedule if it is queued
func CancelTimer(t *Timer) {
	cs := EnterCritical()
	defer cs.Exit()

	if timerList == t {
		timerList = t.Next
		t.Next = nil
		return
	}
	for cur := timerList; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return
		}
	}
}

// insertTimer inserts a timer in sorted order by WakeTime
func insertTimer(t *Timer) {
	if timerList == nil || TimerIsBefore(t.WakeTime, timerList.WakeTime) {
		t.Next = timerList
		timerList = t
		return
	}

	current := timerList
	for current.Next != nil && !TimerIsBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// DispatchTimers runs every timer due at now. Handlers run with interrupts
// masked, so they may TryBorrow a bus but must not wait for one.
func DispatchTimers(now uint32) {
	cs := EnterCritical()
	defer cs.Exit()

	for timerList != nil && !TimerIsBefore(now, timerList.WakeTime) {
		timer := timerList
		timerList = timer.Next
		timer.Next = nil // Clear Next pointer to avoid circular references

		if timer.Handler(timer) == SF_RESCHEDULE {
			insertTimer(timer)
		}
	}
}

// ProcessTimers dispatches timers due at the current system time
func ProcessTimers() {
	DispatchTimers(GetTime())
}
