package idle

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinyrange/cpuidle/internal/metrics"
	"github.com/tinyrange/cpuidle/internal/platform"
)

// DefaultPollTimeout bounds the polling loop when no deeper state is enabled.
// It matches one scheduler tick on the reference platform.
const DefaultPollTimeout = 10 * time.Millisecond

var (
	ErrUnknownCore   = errors.New("idle: no device for core")
	ErrCoreOffline   = errors.New("idle: core not participating")
	ErrBadStateIndex = errors.New("idle: state index out of range")
)

// CoreDevice is the per-core dispatch record: the hardware handle, the
// participation flag toggled by hotplug transitions and the per-core state
// disable flags.
type CoreDevice struct {
	core platform.Core

	participating atomic.Bool
	stateDisabled [MaxStates]atomic.Bool
}

// Core returns the hardware handle backing the device.
func (d *CoreDevice) Core() platform.Core { return d.core }

// Participating reports whether the core takes idle dispatches.
func (d *CoreDevice) Participating() bool { return d.participating.Load() }

// StateDisabled reports whether slot i is disabled for this core.
func (d *CoreDevice) StateDisabled(i int) bool { return d.stateDisabled[i].Load() }

// Driver owns the single state table and the per-core devices for one
// system. Construct it once at startup and share it by reference; there is
// no package-level state.
type Driver struct {
	logger *slog.Logger
	rec    metrics.Recorder
	phase  platform.PhaseSource

	table              *StateTable
	defaultPollTimeout time.Duration

	// hotplugMu serializes participation changes against the dispatch
	// eligibility check in Enter. Hotplug transitions are rare, so one
	// coarse lock covers every core.
	hotplugMu sync.RWMutex
	devices   map[int]*CoreDevice
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) { d.logger = logger }
}

// WithRecorder sets the metrics recorder observing completed entries.
func WithRecorder(rec metrics.Recorder) Option {
	return func(d *Driver) { d.rec = rec }
}

// WithPhaseSource sets the lifecycle phase source consulted before deep
// sleep. The default reports the running phase.
func WithPhaseSource(src platform.PhaseSource) Option {
	return func(d *Driver) { d.phase = src }
}

// WithDefaultPollTimeout overrides the polling-loop bound used when no
// deeper state is enabled.
func WithDefaultPollTimeout(timeout time.Duration) Option {
	return func(d *Driver) { d.defaultPollTimeout = timeout }
}

// NewDriver probes the capability descriptor and builds the driver for the
// given cores. Only cores present here ever receive dispatches; cores that
// are possible but not yet hot-added have no device record. A capability
// descriptor overflowing the state table is truncated with a warning rather
// than failing construction.
func NewDriver(cap PlatformCapability, cores []platform.Core, opts ...Option) (*Driver, error) {
	d := &Driver{
		logger:             slog.Default(),
		rec:                metrics.NopRecorder{},
		phase:              platform.PhaseFunc(nil),
		defaultPollTimeout: DefaultPollTimeout,
		devices:            make(map[int]*CoreDevice, len(cores)),
	}
	for _, opt := range opts {
		opt(d)
	}

	table, err := Probe(cap, d.logger)
	if err != nil && !errors.Is(err, ErrTableFull) {
		return nil, err
	}
	d.table = table

	for _, core := range cores {
		if core == nil {
			return nil, fmt.Errorf("idle: nil core")
		}
		if _, exists := d.devices[core.ID()]; exists {
			return nil, fmt.Errorf("idle: duplicate core id %d", core.ID())
		}
		dev := &CoreDevice{core: core}
		dev.participating.Store(true)
		d.devices[core.ID()] = dev
	}

	d.logger.Info("idle: driver ready",
		"states", table.Len(), "cores", len(d.devices))
	return d, nil
}

// StateCount reports the number of registered states.
func (d *Driver) StateCount() int { return d.table.Len() }

// Table returns the driver's state table.
func (d *Driver) Table() *StateTable { return d.table }

// Device returns the dispatch record for a core, or nil if the core has no
// device.
func (d *Driver) Device(coreID int) *CoreDevice {
	d.hotplugMu.RLock()
	defer d.hotplugMu.RUnlock()
	return d.devices[coreID]
}

// Enter runs the entry routine for the given state on the given core and
// blocks until the core resumes. It returns the state index actually used,
// which for every routine is the index it was given; the error reports
// dispatch rejections only, never entry failures.
func (d *Driver) Enter(coreID, index int) (int, error) {
	d.hotplugMu.RLock()
	dev := d.devices[coreID]
	eligible := dev != nil && dev.participating.Load()
	d.hotplugMu.RUnlock()

	if dev == nil {
		return index, fmt.Errorf("%w: %d", ErrUnknownCore, coreID)
	}
	if !eligible {
		return index, fmt.Errorf("%w: %d", ErrCoreOffline, coreID)
	}
	if index < 0 || index >= d.table.Len() {
		return index, fmt.Errorf("%w: %d of %d", ErrBadStateIndex, index, d.table.Len())
	}

	st := d.table.State(index)
	start := time.Now()

	var resumed int
	switch st.Kind {
	case StatePolling:
		resumed = d.snoozeLoop(dev, index)
	case StateLightSleep:
		resumed = d.napLoop(dev, index)
	case StateDeepSleep:
		resumed = d.fastSleepLoop(dev, index)
	default:
		resumed = index
	}

	d.rec.ObserveEntry(st.Name, time.Since(start))
	return resumed, nil
}
