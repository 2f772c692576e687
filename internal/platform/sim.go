package platform

import (
	"runtime"
	"sync/atomic"
)

// SimCore is a software model of a single execution unit. Halt primitives
// block on an internal wake channel; the wake-control register, polling mark
// and run latch are plain atomics so tests can observe them from other
// goroutines.
type SimCore struct {
	id int

	wakeCh chan WakeEvent

	wakeControl atomic.Uint64
	pollingMark atomic.Bool
	pending     atomic.Int64
	priority    atomic.Int32
	runLatch    atomic.Bool
	fence       atomic.Uint64

	explicitWakes atomic.Int64
}

// NewSimCore returns a core with the run latch set and every wake cause
// enabled, matching the reset state of the real register.
func NewSimCore(id int) *SimCore {
	c := &SimCore{
		id:     id,
		wakeCh: make(chan WakeEvent, 16),
	}
	c.runLatch.Store(true)
	c.wakeControl.Store(WakeMediated | WakeCauseMask)
	return c
}

// ID implements Core.
func (c *SimCore) ID() int { return c.id }

// WorkPending implements Core.
func (c *SimCore) WorkPending() bool { return c.pending.Load() > 0 }

// SetPollingMark implements Core.
func (c *SimCore) SetPollingMark(on bool) { c.pollingMark.Store(on) }

// MemoryFence implements Core. Atomics in Go are sequentially consistent, so
// bumping a counter is a full ordering point.
func (c *SimCore) MemoryFence() { c.fence.Add(1) }

// SetPriority implements Core. The very-low hint yields the goroutine so a
// spinning simulated core stays polite under the race detector.
func (c *SimCore) SetPriority(p Priority) {
	c.priority.Store(int32(p))
	if p == PriorityVeryLow {
		runtime.Gosched()
	}
}

// SetRunLatch implements Core.
func (c *SimCore) SetRunLatch(on bool) { c.runLatch.Store(on) }

// HaltUntilWake implements Core.
func (c *SimCore) HaltUntilWake() {
	<-c.wakeCh
}

// DeepHalt implements Core. Events masked off by the wake-control register
// are consumed and discarded without resuming the core.
func (c *SimCore) DeepHalt() {
	for ev := range c.wakeCh {
		ctl := c.wakeControl.Load()
		switch ev {
		case WakeExternalInterrupt:
			if ctl&WakeCauseExternal != 0 {
				return
			}
		case WakeTimer:
			if ctl&WakeCauseTimer != 0 {
				return
			}
		}
	}
}

// WakeControl implements Core.
func (c *SimCore) WakeControl() uint64 { return c.wakeControl.Load() }

// SetWakeControl implements Core.
func (c *SimCore) SetWakeControl(v uint64) { c.wakeControl.Store(v) }

// Wake delivers a hardware wake event to the core. If the event buffer is
// full a wake is already pending and the new event is dropped.
func (c *SimCore) Wake(ev WakeEvent) {
	select {
	case c.wakeCh <- ev:
	default:
	}
}

// QueueWork makes work pending for the core, following the remote-wake
// protocol: if the core advertises the polling mark the spin loop will
// notice the work on its own, otherwise an explicit external interrupt is
// sent.
func (c *SimCore) QueueWork() {
	c.pending.Add(1)
	if !c.pollingMark.Load() {
		c.explicitWakes.Add(1)
		c.Wake(WakeExternalInterrupt)
	}
}

// TakeWork consumes one pending work item, reporting whether any was queued.
func (c *SimCore) TakeWork() bool {
	for {
		n := c.pending.Load()
		if n == 0 {
			return false
		}
		if c.pending.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// PollingMark reports the current fast-wake hint.
func (c *SimCore) PollingMark() bool { return c.pollingMark.Load() }

// Priority reports the last execution-priority hint.
func (c *SimCore) Priority() Priority { return Priority(c.priority.Load()) }

// RunLatch reports whether cycle accounting is running.
func (c *SimCore) RunLatch() bool { return c.runLatch.Load() }

// ExplicitWakes reports how many remote work submissions had to send an
// explicit wake event.
func (c *SimCore) ExplicitWakes() int64 { return c.explicitWakes.Load() }

var _ Core = (*SimCore)(nil)
