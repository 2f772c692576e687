// Package idle implements the platform idle-state driver: the ordered state
// table built from the platform capability descriptor, the polling-timeout
// selector, the three state entry routines and the hotplug coordination of
// per-core participation.
package idle

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// MaxStates is the fixed capacity of the state table.
const MaxStates = 8

// StateKind selects the entry routine for a state. Dispatch is an exhaustive
// switch over these values.
type StateKind int

const (
	StatePolling StateKind = iota
	StateLightSleep
	StateDeepSleep
)

func (k StateKind) String() string {
	switch k {
	case StatePolling:
		return "polling"
	case StateLightSleep:
		return "light-sleep"
	case StateDeepSleep:
		return "deep-sleep"
	default:
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
}

// Descriptor describes one idle state. Descriptors are immutable once the
// probe has placed them in the table.
type Descriptor struct {
	Name string

	// ExitLatency is the time in microseconds to return to full operation.
	ExitLatency uint32

	// TargetResidency is the minimum idle duration in microseconds that
	// justifies entering the state.
	TargetResidency uint32

	TimeValid  bool
	TimerStops bool

	Kind StateKind
}

// ErrTableFull reports an insert into a table that already holds MaxStates
// entries.
var ErrTableFull = errors.New("idle: state table full")

// StateTable is the ordered catalog of available idle states. Slot 0 is
// always the polling state; deeper states follow in ascending exit-latency
// order. Descriptors never change after construction; the per-slot disable
// flags are toggled by the hotplug coordinator and read lock-free by the
// selector.
type StateTable struct {
	descs    [MaxStates]Descriptor
	disabled [MaxStates]atomic.Bool
	count    int
}

// NewStateTable returns a table holding only the polling state.
func NewStateTable() *StateTable {
	t := &StateTable{}
	t.descs[0] = Descriptor{
		Name:      "snooze",
		TimeValid: true,
		Kind:      StatePolling,
	}
	t.count = 1
	return t
}

// Append adds a descriptor to the next free slot. It returns ErrTableFull
// instead of writing past the table's capacity.
func (t *StateTable) Append(d Descriptor) error {
	if t.count >= MaxStates {
		return fmt.Errorf("idle: append %q: %w", d.Name, ErrTableFull)
	}
	t.descs[t.count] = d
	t.count++
	return nil
}

// Len reports the number of populated slots.
func (t *StateTable) Len() int { return t.count }

// State returns the descriptor in slot i. The caller is responsible for
// i < Len().
func (t *StateTable) State(i int) Descriptor { return t.descs[i] }

// StateDisabled reports whether slot i is disabled table-wide.
func (t *StateTable) StateDisabled(i int) bool { return t.disabled[i].Load() }

func (t *StateTable) setStateDisabled(i int, disabled bool) {
	t.disabled[i].Store(disabled)
}
