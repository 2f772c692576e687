package idle

import (
	"testing"
	"time"

	"github.com/tinyrange/cpuidle/internal/platform"
)

type enterResult struct {
	index int
	err   error
}

func enterAsync(drv *Driver, coreID, index int) chan enterResult {
	done := make(chan enterResult, 1)
	go func() {
		idx, err := drv.Enter(coreID, index)
		done <- enterResult{idx, err}
	}()
	return done
}

func mustResume(t *testing.T, done chan enterResult, want int) {
	t.Helper()
	select {
	case res := <-done:
		if res.err != nil {
			t.Fatalf("Enter: %v", res.err)
		}
		if res.index != want {
			t.Fatalf("resumed index %d, want %d", res.index, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("core did not resume")
	}
}

func TestSnoozeExitsWhenWorkArrives(t *testing.T) {
	// A long default timeout so only pending work can end the loop.
	drv, cores := newTestDriver(t, PlatformCapability{}, 1,
		WithDefaultPollTimeout(10*time.Second))
	core := cores[0]

	done := enterAsync(drv, 0, 0)
	waitUntil(t, "polling mark", core.PollingMark)

	// The mark is up, so queueing work must not need an explicit wake.
	core.QueueWork()
	mustResume(t, done, 0)

	if n := core.ExplicitWakes(); n != 0 {
		t.Errorf("expected the polling mark to absorb the wake, got %d explicit wakes", n)
	}
	if core.PollingMark() {
		t.Errorf("polling mark still set after resume")
	}
	if core.Priority() != platform.PriorityMedium {
		t.Errorf("priority not restored: %v", core.Priority())
	}
	if !core.RunLatch() {
		t.Errorf("run latch not restored")
	}
}

func TestSnoozeAdvisoryDeadline(t *testing.T) {
	drv, cores := newTestDriver(t, napSleepCap, 1)

	// No work ever arrives; the advisory bound (the nap residency, 100us)
	// ends the loop.
	idx, err := drv.Enter(0, 0)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if idx != 0 {
		t.Fatalf("resumed index %d, want 0", idx)
	}
	if cores[0].PollingMark() {
		t.Fatalf("polling mark still set after timeout exit")
	}
}

func TestNapHaltsUntilWake(t *testing.T) {
	drv, cores := newTestDriver(t, napSleepCap, 1)
	core := cores[0]

	done := enterAsync(drv, 0, 1)
	waitUntil(t, "run latch paused", func() bool { return !core.RunLatch() })

	// Nap resumes on any wake source.
	core.Wake(platform.WakeTimer)
	mustResume(t, done, 1)

	if !core.RunLatch() {
		t.Errorf("run latch not resumed after nap")
	}
	if ctl := core.WakeControl(); ctl != platform.WakeMediated|platform.WakeCauseMask {
		t.Errorf("nap altered the wake-control register: %#x", ctl)
	}
}

func TestFastSleepRegisterRoundTrip(t *testing.T) {
	for _, start := range []uint64{
		0,
		platform.WakeMediated | platform.WakeCauseMask,
		0xdeadbeef_00000000 | platform.WakeCauseTimer,
	} {
		drv, cores := newTestDriver(t, napSleepCap, 1)
		core := cores[0]
		core.SetWakeControl(start)

		done := enterAsync(drv, 0, 2)
		waitUntil(t, "deep-sleep register write", func() bool {
			return core.WakeControl() == platform.DeepSleepWakeControl(start)
		})

		// Timer events are masked off in the deepest state.
		core.Wake(platform.WakeTimer)
		select {
		case res := <-done:
			t.Fatalf("start %#x: timer event resumed the core: %+v", start, res)
		case <-time.After(10 * time.Millisecond):
		}

		core.Wake(platform.WakeExternalInterrupt)
		mustResume(t, done, 2)

		if got := core.WakeControl(); got != start {
			t.Fatalf("register not restored: got %#x, want %#x", got, start)
		}
	}
}

func TestFastSleepBeforeRunningIsNoop(t *testing.T) {
	drv, cores := newTestDriver(t, napSleepCap, 1,
		WithPhaseSource(platform.PhaseFunc(func() platform.Phase {
			return platform.PhaseBooting
		})))
	core := cores[0]

	const sentinel = 0xa5a5_5a5a
	core.SetWakeControl(sentinel)

	// Returns synchronously: no halt was issued, so no wake is needed.
	idx, err := drv.Enter(0, 2)
	if err != nil {
		t.Fatalf("Enter: %v", err)
	}
	if idx != 2 {
		t.Fatalf("resumed index %d, want 2", idx)
	}
	if got := core.WakeControl(); got != sentinel {
		t.Fatalf("register touched before running phase: %#x", got)
	}
}
