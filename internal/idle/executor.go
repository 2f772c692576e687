package idle

import (
	"time"

	"github.com/tinyrange/cpuidle/internal/platform"
)

// snoozeLoop spins at reduced execution priority until work is pending or
// the advisory timeout has passed. The polling mark lets a remote core skip
// the explicit wake while the loop is running; the fence on exit guarantees
// the cleared mark is visible before any remote wake decision, closing the
// lost-wakeup window.
func (d *Driver) snoozeLoop(dev *CoreDevice, index int) int {
	core := dev.core

	core.SetPollingMark(true)
	core.SetRunLatch(false)

	deadline := time.Now().Add(d.PollTimeout(dev, index))
	for !core.WorkPending() {
		core.SetPriority(platform.PriorityLow)
		core.SetPriority(platform.PriorityVeryLow)
		if time.Now().After(deadline) {
			break
		}
	}

	core.SetPriority(platform.PriorityMedium)
	core.SetRunLatch(true)
	core.SetPollingMark(false)
	core.MemoryFence()
	return index
}

// napLoop halts until any wake event. Register state is untouched.
func (d *Driver) napLoop(dev *CoreDevice, index int) int {
	core := dev.core

	core.SetRunLatch(false)
	core.HaltUntilWake()
	core.SetRunLatch(true)
	return index
}

// fastSleepLoop enters the deepest state: the wake-control register is
// rewritten so only external interrupts resume the core, and the saved value
// is restored on every resume path. Before the system reaches the running
// phase the routine is a no-op.
func (d *Driver) fastSleepLoop(dev *CoreDevice, index int) int {
	if d.phase.Phase() < platform.PhaseRunning {
		return index
	}

	core := dev.core

	old := core.WakeControl()
	defer core.SetWakeControl(old)

	core.SetWakeControl(platform.DeepSleepWakeControl(old))
	core.DeepHalt()
	return index
}
