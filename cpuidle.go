// Package cpuidle implements an idle-state driver for a simulated server
// platform: it builds the ordered table of supported low-power states from
// the platform's capability descriptor, computes the advisory polling
// timeout, executes the state entry/exit sequences (including the
// wake-control register round-trip for the deepest state) and coordinates
// per-core participation as cores go on- and offline.
//
// An external governor picks state indices; this package performs the
// transitions and hands the resumed index back.
package cpuidle

import (
	"github.com/tinyrange/cpuidle/internal/idle"
	"github.com/tinyrange/cpuidle/internal/metrics"
	"github.com/tinyrange/cpuidle/internal/platform"
)

// -----------------------------------------------------------------------------
// Type Aliases - These re-export types from internal packages
// -----------------------------------------------------------------------------

// Driver owns the state table and per-core dispatch records for one system.
type Driver = idle.Driver

// Descriptor describes one idle state.
type Descriptor = idle.Descriptor

// StateTable is the fixed-capacity ordered catalog of idle states.
type StateTable = idle.StateTable

// StateKind selects the entry routine for a state.
type StateKind = idle.StateKind

// PlatformCapability is the parsed flag/latency capability descriptor.
type PlatformCapability = idle.PlatformCapability

// CoreDevice is the per-core dispatch record.
type CoreDevice = idle.CoreDevice

// TopologyEvent identifies a core topology transition.
type TopologyEvent = idle.TopologyEvent

// Option configures a Driver.
type Option = idle.Option

// Core is the per-core hardware surface the driver drives.
type Core = platform.Core

// SimCore is the software core model used by tests and idlesim.
type SimCore = platform.SimCore

// Phase is the system lifecycle phase.
type Phase = platform.Phase

// PhaseSource reports the current lifecycle phase.
type PhaseSource = platform.PhaseSource

// PhaseFunc adapts a function to PhaseSource.
type PhaseFunc = platform.PhaseFunc

// TopologyListener is the hotplug subscription interface the Driver
// implements.
type TopologyListener = platform.TopologyListener

// Recorder observes completed idle-state entries.
type Recorder = metrics.Recorder

// WakeEvent identifies the hardware event class that resumed a halted core.
type WakeEvent = platform.WakeEvent

// Wake event classes.
const (
	WakeExternalInterrupt = platform.WakeExternalInterrupt
	WakeTimer             = platform.WakeTimer
)

// State table capacity and capability flag bits.
const (
	MaxStates     = idle.MaxStates
	FlagNap       = idle.FlagNap
	FlagFastSleep = idle.FlagFastSleep
)

// State kinds.
const (
	StatePolling    = idle.StatePolling
	StateLightSleep = idle.StateLightSleep
	StateDeepSleep  = idle.StateDeepSleep
)

// Lifecycle phases.
const (
	PhaseBooting    = platform.PhaseBooting
	PhaseScheduling = platform.PhaseScheduling
	PhaseRunning    = platform.PhaseRunning
)

// Topology events.
const (
	CoreOnline  = idle.CoreOnline
	CoreOffline = idle.CoreOffline
)

// DefaultPollTimeout bounds the polling loop when no deeper state is enabled.
const DefaultPollTimeout = idle.DefaultPollTimeout

// Common sentinel errors.
var (
	ErrTableFull     = idle.ErrTableFull
	ErrUnknownCore   = idle.ErrUnknownCore
	ErrCoreOffline   = idle.ErrCoreOffline
	ErrBadStateIndex = idle.ErrBadStateIndex
)

// Constructors and options.
var (
	NewDriver  = idle.NewDriver
	Probe      = idle.Probe
	NewSimCore = platform.NewSimCore

	WithLogger             = idle.WithLogger
	WithRecorder           = idle.WithRecorder
	WithPhaseSource        = idle.WithPhaseSource
	WithDefaultPollTimeout = idle.WithDefaultPollTimeout

	NewPrometheusRecorder = metrics.NewPrometheusRecorder
)
