// Package platform abstracts the per-core hardware surface the idle driver
// touches: the wake-control register, the halt primitives, the run latch and
// the execution-priority hints. A simulated implementation suitable for tests
// and the idlesim tool lives in this package as well.
package platform

// Phase is the system lifecycle phase. The idle driver only ever reads it.
type Phase int

const (
	PhaseBooting Phase = iota
	PhaseScheduling
	PhaseRunning
)

// PhaseSource reports the current lifecycle phase.
type PhaseSource interface {
	Phase() Phase
}

// PhaseFunc adapts a function to PhaseSource.
type PhaseFunc func() Phase

func (f PhaseFunc) Phase() Phase {
	if f == nil {
		return PhaseRunning
	}
	return f()
}

// Priority is the execution-priority hint a core presents to the processor
// while spinning. Lower priorities yield pipeline resources to sibling
// threads.
type Priority int

const (
	PriorityMedium Priority = iota
	PriorityLow
	PriorityVeryLow
)

// WakeEvent identifies the hardware event class that resumed a halted core.
type WakeEvent int

const (
	WakeExternalInterrupt WakeEvent = iota
	WakeTimer
)

// Core is the hardware surface of a single execution unit, as seen from the
// core's own idle context. The remote-wake side (delivering wake events,
// queueing work) is implementation-specific.
type Core interface {
	ID() int

	// WorkPending reports whether runnable work is queued for the core.
	WorkPending() bool

	// SetPollingMark publishes the fast-wake hint: while set, a remote
	// core queueing work may skip the explicit wake event.
	SetPollingMark(on bool)

	// MemoryFence orders the preceding stores (in particular a cleared
	// polling mark) before any subsequent remote wake decision.
	MemoryFence()

	SetPriority(p Priority)

	// SetRunLatch pauses (false) or resumes (true) the cycle-accounting
	// latch for the core.
	SetRunLatch(on bool)

	// HaltUntilWake blocks until any wake event arrives. Used by the
	// light-sleep state; no register state is altered.
	HaltUntilWake()

	// DeepHalt blocks until a wake event permitted by the current
	// wake-control register value arrives. Events masked off by the
	// register are discarded.
	DeepHalt()

	WakeControl() uint64
	SetWakeControl(v uint64)
}

// TopologyListener receives core hotplug transitions from an external
// topology manager. The idle driver implements it; the manager owns the
// subscription mechanics.
type TopologyListener interface {
	OnCoreOnline(id int)
	OnCoreOffline(id int)
}
