package idle

import (
	"log/slog"
)

// Capability flag bits reported by the platform for each optional idle
// state. Both may be set in a single flag word.
const (
	FlagNap       uint32 = 0x00010000
	FlagFastSleep uint32 = 0x00020000
)

// PlatformCapability is the parsed platform capability descriptor: two
// parallel arrays, one flag word and one wakeup latency (nanoseconds) per
// optional state. A missing array or a length mismatch is a valid degenerate
// input.
type PlatformCapability struct {
	Flags     []uint32
	LatencyNS []uint32
}

// Probe builds the state table from the platform capability descriptor. The
// polling state is always present; every recognized flag word contributes
// its latency classes on top. Malformed capability input degrades to the
// polling-only table with a warning. If the platform reports more states
// than the table can hold, Probe truncates and returns the usable table
// together with an error wrapping ErrTableFull.
func Probe(cap PlatformCapability, logger *slog.Logger) (*StateTable, error) {
	if logger == nil {
		logger = slog.Default()
	}

	table := NewStateTable()

	if len(cap.Flags) == 0 || len(cap.LatencyNS) == 0 {
		logger.Warn("idle: platform capability absent, polling state only")
		return table, nil
	}
	if len(cap.Flags) != len(cap.LatencyNS) {
		logger.Warn("idle: capability array length mismatch, polling state only",
			"flags", len(cap.Flags), "latencies", len(cap.LatencyNS))
		return table, nil
	}

	for i, flags := range cap.Flags {
		latencyNS := cap.LatencyNS[i]

		// Exit latency is reported in microseconds; target residency
		// uses the platform's fixed 10x heuristic.
		exitLatency := latencyNS / 1000
		targetResidency := latencyNS / 100

		if flags&FlagNap != 0 {
			err := table.Append(Descriptor{
				Name:            "Nap",
				ExitLatency:     exitLatency,
				TargetResidency: targetResidency,
				TimeValid:       true,
				Kind:            StateLightSleep,
			})
			if err != nil {
				logger.Warn("idle: capability reports more states than the table holds, truncating",
					"entry", i, "err", err)
				return table, err
			}
		}

		if flags&FlagFastSleep != 0 {
			err := table.Append(Descriptor{
				Name:            "FastSleep",
				ExitLatency:     exitLatency,
				TargetResidency: targetResidency,
				TimeValid:       true,
				TimerStops:      true,
				Kind:            StateDeepSleep,
			})
			if err != nil {
				logger.Warn("idle: capability reports more states than the table holds, truncating",
					"entry", i, "err", err)
				return table, err
			}
		}
	}

	return table, nil
}
