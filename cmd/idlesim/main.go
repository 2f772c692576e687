// Command idlesim runs the idle-state driver against simulated cores: a
// trivial ladder governor picks states, a waker injects work and timer
// events, and optional hotplug churn exercises the coordinator. Useful for
// eyeballing state distribution and for soak runs under the race detector.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"fortio.org/safecast"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/tinyrange/cpuidle/internal/idle"
	"github.com/tinyrange/cpuidle/internal/metrics"
	"github.com/tinyrange/cpuidle/internal/opal"
	"github.com/tinyrange/cpuidle/internal/platform"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "idlesim: %v\n", err)
		os.Exit(1)
	}
}

// config is the YAML platform description.
type config struct {
	States struct {
		Flags       []int64 `yaml:"flags"`
		LatenciesNS []int64 `yaml:"latencies_ns"`
	} `yaml:"states"`
	DefaultPollTimeout string `yaml:"default_poll_timeout"`
}

func (c *config) pollTimeout() (time.Duration, error) {
	if c.DefaultPollTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.DefaultPollTimeout)
}

func (c *config) capability() (idle.PlatformCapability, error) {
	var cap idle.PlatformCapability
	for _, v := range c.States.Flags {
		w, err := safecast.Conv[uint32](v)
		if err != nil {
			return cap, fmt.Errorf("flag word %#x: %w", v, err)
		}
		cap.Flags = append(cap.Flags, w)
	}
	for _, v := range c.States.LatenciesNS {
		ns, err := safecast.Conv[uint32](v)
		if err != nil {
			return cap, fmt.Errorf("latency %d: %w", v, err)
		}
		cap.LatencyNS = append(cap.LatencyNS, ns)
	}
	return cap, nil
}

func run() error {
	configPath := flag.String("config", "", "YAML platform description")
	fdtPath := flag.String("fdt", "", "Read the capability descriptor from an FDT blob")
	writeFDT := flag.String("write-fdt", "", "Write the capability descriptor as an FDT blob and exit")
	cores := flag.Int("cores", 4, "Number of simulated cores")
	duration := flag.Duration("duration", 5*time.Second, "Simulation length")
	bench := flag.Int("bench", 0, "Run a fixed number of idle cycles per core with a progress bar")
	hotplug := flag.Bool("hotplug", false, "Cycle a core offline and online during the run")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg := config{}
	// Default platform: one nap-class and one fastsleep-class state.
	cfg.States.Flags = []int64{0x00010000, 0x00020000}
	cfg.States.LatenciesNS = []int64{10000, 100000}
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("parse %s: %w", *configPath, err)
		}
	}

	cap, err := cfg.capability()
	if err != nil {
		return err
	}

	if *fdtPath != "" {
		blob, err := os.ReadFile(*fdtPath)
		if err != nil {
			return err
		}
		if cap, err = opal.ReadCapability(blob, logger); err != nil {
			return err
		}
	}

	if *writeFDT != "" {
		blob, err := opal.BuildBlob(cap)
		if err != nil {
			return err
		}
		return os.WriteFile(*writeFDT, blob, 0o644)
	}

	reg := prometheus.NewRegistry()
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				slog.Error("metrics server", "err", err)
			}
		}()
	}

	var phase atomic.Int32
	phase.Store(int32(platform.PhaseBooting))

	simCores := make([]*platform.SimCore, *cores)
	coreIfaces := make([]platform.Core, *cores)
	for i := range simCores {
		simCores[i] = platform.NewSimCore(i)
		coreIfaces[i] = simCores[i]
	}

	opts := []idle.Option{
		idle.WithLogger(logger),
		idle.WithRecorder(metrics.NewPrometheusRecorder(reg)),
		idle.WithPhaseSource(platform.PhaseFunc(func() platform.Phase {
			return platform.Phase(phase.Load())
		})),
	}
	pollTimeout, err := cfg.pollTimeout()
	if err != nil {
		return fmt.Errorf("default_poll_timeout: %w", err)
	}
	if pollTimeout > 0 {
		opts = append(opts, idle.WithDefaultPollTimeout(pollTimeout))
	}

	drv, err := idle.NewDriver(cap, coreIfaces, opts...)
	if err != nil {
		return err
	}
	for i := 0; i < drv.StateCount(); i++ {
		st := drv.Table().State(i)
		logger.Info("state", "index", i, "name", st.Name,
			"exit_latency_us", st.ExitLatency, "target_residency_us", st.TargetResidency)
	}

	// The platform finishes booting shortly after the driver registers;
	// until then deep sleep is a no-op.
	go func() {
		time.Sleep(50 * time.Millisecond)
		phase.Store(int32(platform.PhaseRunning))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var bar *progressbar.ProgressBar
	if *bench > 0 {
		bar = progressbar.Default(int64(*bench * *cores), "idle cycles")
	}

	var cycles [idle.MaxStates]atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	for i := range simCores {
		core := simCores[i]
		g.Go(func() error {
			rng := rand.New(rand.NewSource(int64(core.ID()) + 1))
			for n := 0; ; n++ {
				if gctx.Err() != nil {
					return nil
				}
				if *bench > 0 && n >= *bench {
					return nil
				}

				expected := time.Duration(rng.Intn(2000)) * time.Microsecond
				index := pickState(drv, core.ID(), expected)
				resumed, err := drv.Enter(core.ID(), index)
				if err != nil {
					// Offline cores sit out until the next transition.
					time.Sleep(time.Millisecond)
					continue
				}
				cycles[resumed].Add(1)
				if bar != nil {
					_ = bar.Add(1)
				}
				core.TakeWork()
			}
		})
	}

	// Waker: queue work or fire timer events at the cores so halted states
	// resume. Runs until every core loop has exited.
	wakerStop := make(chan struct{})
	go func() {
		rng := rand.New(rand.NewSource(99))
		for {
			select {
			case <-time.After(time.Duration(100+rng.Intn(900)) * time.Microsecond):
			case <-wakerStop:
				return
			}
			core := simCores[rng.Intn(len(simCores))]
			if rng.Intn(4) == 0 {
				core.Wake(platform.WakeTimer)
			} else {
				core.QueueWork()
			}
		}
	}()

	if *hotplug {
		go func() {
			victim := len(simCores) - 1
			for ctx.Err() == nil {
				time.Sleep(250 * time.Millisecond)
				drv.OnCoreOffline(victim)
				time.Sleep(250 * time.Millisecond)
				drv.OnCoreOnline(victim)
			}
		}()
	}

	err = g.Wait()
	cancel()
	close(wakerStop)

	for i := 0; i < drv.StateCount(); i++ {
		logger.Info("cycles", "state", drv.Table().State(i).Name, "count", cycles[i].Load())
	}
	return err
}

// pickState is a deliberately simple ladder governor: the deepest enabled
// state whose target residency fits the expected idle duration.
func pickState(drv *idle.Driver, coreID int, expected time.Duration) int {
	dev := drv.Device(coreID)
	if dev == nil {
		return 0
	}
	best := 0
	for i := 1; i < drv.StateCount(); i++ {
		if drv.Table().StateDisabled(i) || dev.StateDisabled(i) {
			continue
		}
		residency := time.Duration(drv.Table().State(i).TargetResidency) * time.Microsecond
		if residency <= expected {
			best = i
		}
	}
	return best
}
