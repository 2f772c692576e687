package idle

import "time"

// PollTimeout computes the advisory bound on the polling loop for a core
// about to enter the state at index: the target residency of the nearest
// deeper state still enabled for that core. Polling longer than that would
// cost more than simply entering the deeper state. If no deeper state is
// enabled the configured default applies.
//
// Enable flags are read without the hotplug lock; a transient stale read
// only skews an advisory duration.
func (d *Driver) PollTimeout(dev *CoreDevice, index int) time.Duration {
	if d.table.Len() <= 1 {
		return d.defaultPollTimeout
	}
	for i := index + 1; i < d.table.Len(); i++ {
		if d.table.StateDisabled(i) || dev.StateDisabled(i) {
			continue
		}
		return time.Duration(d.table.State(i).TargetResidency) * time.Microsecond
	}
	return d.defaultPollTimeout
}
