package cpuidle_test

import (
	"errors"
	"testing"
	"time"

	"github.com/tinyrange/cpuidle"
)

// TestEndToEnd drives the public surface the way an external governor would:
// probe from a capability descriptor, dispatch a few states, take a core
// through a hotplug cycle.
func TestEndToEnd(t *testing.T) {
	cores := []*cpuidle.SimCore{
		cpuidle.NewSimCore(0),
		cpuidle.NewSimCore(1),
	}

	drv, err := cpuidle.NewDriver(cpuidle.PlatformCapability{
		Flags:     []uint32{cpuidle.FlagNap | cpuidle.FlagFastSleep},
		LatencyNS: []uint32{10000},
	}, []cpuidle.Core{cores[0], cores[1]})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	if drv.StateCount() != 3 {
		t.Fatalf("expected 3 states, got %d", drv.StateCount())
	}
	for i := 1; i < drv.StateCount(); i++ {
		if drv.Table().State(i).ExitLatency < drv.Table().State(i-1).ExitLatency {
			t.Fatalf("exit latency not non-decreasing at slot %d", i)
		}
	}

	// Polling ends on its own at the advisory bound.
	if idx, err := drv.Enter(0, 0); err != nil || idx != 0 {
		t.Fatalf("polling entry: (%d, %v)", idx, err)
	}

	// Deep sleep resumes on an external interrupt and restores the
	// wake-control register.
	before := cores[1].WakeControl()
	done := make(chan int, 1)
	go func() {
		idx, _ := drv.Enter(1, 2)
		done <- idx
	}()
	for cores[1].WakeControl() == before {
		time.Sleep(100 * time.Microsecond)
	}
	cores[1].Wake(cpuidle.WakeExternalInterrupt)
	select {
	case idx := <-done:
		if idx != 2 {
			t.Fatalf("deep sleep resumed index %d", idx)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("deep sleep never resumed")
	}
	if cores[1].WakeControl() != before {
		t.Fatalf("wake-control register not restored")
	}

	drv.OnCoreOffline(0)
	if _, err := drv.Enter(0, 0); !errors.Is(err, cpuidle.ErrCoreOffline) {
		t.Fatalf("offline core accepted dispatch: %v", err)
	}
	drv.OnCoreOnline(0)
	if _, err := drv.Enter(0, 0); err != nil {
		t.Fatalf("re-enabled core rejected dispatch: %v", err)
	}
}
