package idle

import "github.com/tinyrange/cpuidle/internal/platform"

// TopologyEvent identifies a core topology transition delivered by an
// external topology manager.
type TopologyEvent int

const (
	CoreOnline TopologyEvent = iota
	CoreOffline
)

// OnCoreOnline implements platform.TopologyListener: the core resumes taking
// idle dispatches. Cores without a device record are acknowledged as no-ops.
func (d *Driver) OnCoreOnline(id int) { d.setParticipation(id, true) }

// OnCoreOffline implements platform.TopologyListener: the core stops taking
// idle dispatches.
func (d *Driver) OnCoreOffline(id int) { d.setParticipation(id, false) }

// HandleEvent folds an arbitrary topology event onto the online/offline
// effects. Unrecognized events are acknowledged as no-ops, not errors.
func (d *Driver) HandleEvent(ev TopologyEvent, id int) {
	switch ev {
	case CoreOnline:
		d.OnCoreOnline(id)
	case CoreOffline:
		d.OnCoreOffline(id)
	}
}

// setParticipation flips a core's dispatch eligibility under the exclusion
// lock, so no dispatch decision for the core runs concurrently with the
// change.
func (d *Driver) setParticipation(id int, on bool) {
	d.hotplugMu.Lock()
	defer d.hotplugMu.Unlock()

	dev := d.devices[id]
	if dev == nil || d.table == nil {
		return
	}
	dev.participating.Store(on)
}

// DisableState disables (or re-enables) a state slot table-wide. The
// selector skips disabled slots when computing the polling timeout.
func (d *Driver) DisableState(index int, disabled bool) {
	if index <= 0 || index >= d.table.Len() {
		return
	}
	d.hotplugMu.Lock()
	defer d.hotplugMu.Unlock()
	d.table.setStateDisabled(index, disabled)
}

// DisableCoreState disables (or re-enables) a state slot for one core.
func (d *Driver) DisableCoreState(coreID, index int, disabled bool) {
	if index <= 0 {
		return
	}
	d.hotplugMu.Lock()
	defer d.hotplugMu.Unlock()

	dev := d.devices[coreID]
	if dev == nil || index >= d.table.Len() {
		return
	}
	dev.stateDisabled[index].Store(disabled)
}

var _ platform.TopologyListener = (*Driver)(nil)
