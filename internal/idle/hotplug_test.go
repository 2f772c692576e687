package idle

import (
	"errors"
	"sync"
	"testing"
)

func TestHotplugToggleEligibility(t *testing.T) {
	drv, _ := newTestDriver(t, napSleepCap, 2)

	drv.OnCoreOffline(0)
	if _, err := drv.Enter(0, 0); !errors.Is(err, ErrCoreOffline) {
		t.Fatalf("offline core accepted dispatch: %v", err)
	}
	// The sibling is unaffected.
	if _, err := drv.Enter(1, 0); err != nil {
		t.Fatalf("core 1 dispatch: %v", err)
	}

	drv.OnCoreOnline(0)
	if _, err := drv.Enter(0, 0); err != nil {
		t.Fatalf("re-enabled core rejected dispatch: %v", err)
	}
}

func TestHotplugUnknownCoreIsNoop(t *testing.T) {
	drv, _ := newTestDriver(t, napSleepCap, 1)

	// Cores without a device record are acknowledged, not errors.
	drv.OnCoreOnline(17)
	drv.OnCoreOffline(17)
	drv.HandleEvent(TopologyEvent(1234), 0)

	if !drv.Device(0).Participating() {
		t.Fatalf("unrelated events changed core 0 participation")
	}
}

func TestHandleEventDispatch(t *testing.T) {
	drv, _ := newTestDriver(t, napSleepCap, 1)

	drv.HandleEvent(CoreOffline, 0)
	if drv.Device(0).Participating() {
		t.Fatalf("CoreOffline event did not disable the core")
	}
	drv.HandleEvent(CoreOnline, 0)
	if !drv.Device(0).Participating() {
		t.Fatalf("CoreOnline event did not enable the core")
	}
}

func TestHotplugConcurrentStress(t *testing.T) {
	drv, _ := newTestDriver(t, napSleepCap, 2)

	const rounds = 2000
	var wg sync.WaitGroup
	wg.Add(3)

	// Two cores toggled concurrently; each ends on a known value.
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			drv.OnCoreOffline(0)
			drv.OnCoreOnline(0)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			drv.OnCoreOnline(1)
			drv.OnCoreOffline(1)
		}
	}()
	// Concurrent dispatch decisions and selector reads race against the
	// toggles without corrupting anything.
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, _ = drv.Enter(0, 0)
			drv.PollTimeout(drv.Device(1), 0)
		}
	}()

	wg.Wait()

	if !drv.Device(0).Participating() {
		t.Errorf("core 0 should end participating")
	}
	if drv.Device(1).Participating() {
		t.Errorf("core 1 should end offline")
	}
}
