//go:build !tinygo

package core

// SimInterrupts models a single core's interrupt-enable bit on regular Go.
// There are no hardware interrupts here, so handlers are raised explicitly
// with Raise and run either immediately (interrupts enabled) or when the
// mask is restored. It assumes one execution context, like the hardware.
type SimInterrupts struct {
	enabled bool
	pending []func()
	fired   uint32
}

// NewSimInterrupts returns a controller with interrupts enabled
func NewSimInterrupts() *SimInterrupts {
	return &SimInterrupts{enabled: true}
}

func platformInterrupts() InterruptController {
	return NewSimInterrupts()
}

// Disable masks interrupts and reports whether they were enabled
func (c *SimInterrupts) Disable() InterruptState {
	prev := c.enabled
	c.enabled = false
	if prev {
		return 1
	}
	return 0
}

// Restore sets the mask back and runs any handler raised while masked
func (c *SimInterrupts) Restore(state InterruptState) {
	c.enabled = state != 0
	if c.enabled {
		c.drain()
	}
}

// Enabled reports whether interrupts are currently enabled
func (c *SimInterrupts) Enabled() bool {
	return c.enabled
}

// Pending returns the number of handlers waiting for interrupts to be enabled
func (c *SimInterrupts) Pending() int {
	return len(c.pending)
}

// Fired returns how many handlers have run so far
func (c *SimInterrupts) Fired() uint32 {
	return c.fired
}

// Raise signals an interrupt. The handler runs now if interrupts are enabled,
// otherwise it is latched until the next Restore that enables them.
// Handlers run with interrupts masked, as on a Cortex-M without nesting.
func (c *SimInterrupts) Raise(isr func()) {
	if !c.enabled {
		c.pending = append(c.pending, isr)
		return
	}
	c.run(isr)
}

func (c *SimInterrupts) run(isr func()) {
	c.enabled = false
	c.fired++
	isr()
	c.enabled = true
}

func (c *SimInterrupts) drain() {
	for len(c.pending) > 0 && c.enabled {
		isr := c.pending[0]
		c.pending = c.pending[1:]
		c.run(isr)
	}
}
