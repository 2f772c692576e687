// Package opal extracts the idle-state capability descriptor from a platform
// device tree. The firmware publishes two parallel u32 arrays under a fixed
// power-management node; anything missing degrades to the zero capability,
// which the probe treats as polling-only.
package opal

import (
	"fmt"
	"log/slog"

	"github.com/tinyrange/cpuidle/internal/fdt"
	"github.com/tinyrange/cpuidle/internal/idle"
)

const (
	// PowerMgtPath is the device-tree path of the power-management node,
	// relative to the root node.
	PowerMgtPath = "ibm,opal/power-mgt"

	PropStateFlags     = "ibm,cpu-idle-state-flags"
	PropStateLatencies = "ibm,cpu-idle-state-latencies-ns"
)

// ReadCapability locates the power-management node in an FDT blob and
// returns the parallel flag/latency arrays. A missing node or property
// yields the zero capability with a warning; only a malformed blob is an
// error.
func ReadCapability(blob []byte, logger *slog.Logger) (idle.PlatformCapability, error) {
	if logger == nil {
		logger = slog.Default()
	}

	root, err := fdt.Parse(blob)
	if err != nil {
		return idle.PlatformCapability{}, fmt.Errorf("opal: parse device tree: %w", err)
	}

	node := root.Lookup(PowerMgtPath)
	if node == nil {
		logger.Warn("opal: power-mgt node not found", "path", PowerMgtPath)
		return idle.PlatformCapability{}, nil
	}

	flags := node.Properties[PropStateFlags].AsU32()
	if len(flags) == 0 {
		logger.Warn("opal: missing idle-state flags property", "property", PropStateFlags)
		return idle.PlatformCapability{}, nil
	}
	latencies := node.Properties[PropStateLatencies].AsU32()
	if len(latencies) == 0 {
		logger.Warn("opal: missing idle-state latencies property", "property", PropStateLatencies)
		return idle.PlatformCapability{}, nil
	}

	return idle.PlatformCapability{Flags: flags, LatencyNS: latencies}, nil
}

// CapabilityNode returns a device-tree root carrying the capability
// descriptor at the conventional path.
func CapabilityNode(cap idle.PlatformCapability) fdt.Node {
	powerMgt := fdt.Node{Name: "power-mgt"}
	if len(cap.Flags) > 0 || len(cap.LatencyNS) > 0 {
		powerMgt.Properties = make(map[string]fdt.Property)
	}
	if len(cap.Flags) > 0 {
		powerMgt.Properties[PropStateFlags] = fdt.Property{U32: cap.Flags}
	}
	if len(cap.LatencyNS) > 0 {
		powerMgt.Properties[PropStateLatencies] = fdt.Property{U32: cap.LatencyNS}
	}
	return fdt.Node{
		Name: "",
		Children: []fdt.Node{
			{Name: "ibm,opal", Children: []fdt.Node{powerMgt}},
		},
	}
}

// BuildBlob serializes the capability descriptor into an FDT blob, the
// inverse of ReadCapability.
func BuildBlob(cap idle.PlatformCapability) ([]byte, error) {
	return fdt.Build(CapabilityNode(cap))
}
