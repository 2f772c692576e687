package platform

// Wake-control register bits. The layout follows the platform's
// power-management control register: a mask of wake-cause enables plus a
// mediated-interrupt bit that must be clear while the core is in its deepest
// state.
const (
	// WakeMediated requires a secondary interrupt-enable condition before
	// a mediated external interrupt can wake the core.
	WakeMediated uint64 = 1 << 11

	// Wake-cause enable bits. Each bit allows one event class to resume a
	// core from a power-saving state.
	WakeCauseMachineCheck uint64 = 1 << 12
	WakeCauseTimer        uint64 = 1 << 13
	WakeCauseExternal     uint64 = 1 << 14

	WakeCauseMask = WakeCauseExternal | WakeCauseTimer | WakeCauseMachineCheck
)

// DeepSleepWakeControl derives the register value written for the deepest
// idle state from the saved value v: mediated wake and all cause enables are
// cleared, then external-interrupt wake alone is re-enabled. Timer events do
// not resume the core from this state.
func DeepSleepWakeControl(v uint64) uint64 {
	v &^= WakeMediated | WakeCauseMask
	v |= WakeCauseExternal
	return v
}
