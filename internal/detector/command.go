package detector

import (
	"fmt"
	"time"

	"github.com/xaoc-labs/modcore/internal/core"
	"github.com/xaoc-labs/modcore/internal/monitoring"
)

// CommandConfig holds the command detector's window and thresholds.
type CommandConfig struct {
	// WindowCapacity: max entries retained per user
	WindowCapacity int

	// Interval: lookback used by the rate and repeat checks
	Interval time.Duration

	// MaxPerInterval: more invocations than this inside Interval is a burst
	MaxPerInterval int

	// MaxIdentical: one command repeated this often inside Interval is abuse
	MaxIdentical int

	// Retention: sweep horizon; entries older than this are evicted
	Retention time.Duration
}

// DefaultCommandConfig returns the standard command detector tuning.
func DefaultCommandConfig() CommandConfig {
	return CommandConfig{
		WindowCapacity: 20,
		Interval:       60 * time.Second,
		MaxPerInterval: 10,
		MaxIdentical:   5,
		Retention:      10 * time.Minute,
	}
}

// CommandDetector classifies command invocations against a per-user sliding
// window, catching both overall invocation floods and a single command
// hammered repeatedly.
type CommandDetector struct {
	config  CommandConfig
	clock   core.Clock
	windows *shardedWindows
}

// NewCommandDetector creates a command detector. Zero-valued config fields
// fall back to defaults.
func NewCommandDetector(clock core.Clock, cfg CommandConfig) *CommandDetector {
	def := DefaultCommandConfig()
	if cfg.WindowCapacity == 0 {
		cfg.WindowCapacity = def.WindowCapacity
	}
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxPerInterval == 0 {
		cfg.MaxPerInterval = def.MaxPerInterval
	}
	if cfg.MaxIdentical == 0 {
		cfg.MaxIdentical = def.MaxIdentical
	}
	if cfg.Retention == 0 {
		cfg.Retention = def.Retention
	}
	if clock == nil {
		clock = core.SystemClock()
	}
	return &CommandDetector{
		config:  cfg,
		clock:   clock,
		windows: newShardedWindows(cfg.WindowCapacity),
	}
}

// Evaluate records the invocation in the user's window and classifies it.
// Rate is checked before repetition; first match wins. Returns nil when
// clean.
func (d *CommandDetector) Evaluate(key core.Key, commandName string) *Violation {
	now := d.clock.Now()

	var v *Violation
	d.windows.withWindow(key, func(w *window) {
		w.add(entry{at: now, value: commandName})
		recent := w.since(now.Add(-d.config.Interval))

		if len(recent) > d.config.MaxPerInterval {
			v = &Violation{
				Reason: "rate",
				Detail: fmt.Sprintf("%d commands in %s", len(recent), d.config.Interval),
			}
			return
		}

		counts := make(map[string]int, len(recent))
		for _, e := range recent {
			counts[e.value]++
			if counts[e.value] >= d.config.MaxIdentical {
				v = &Violation{
					Reason: "repeat",
					Detail: fmt.Sprintf("command %q repeated %d times", e.value, counts[e.value]),
				}
				return
			}
		}
	})
	return v
}

// Sweep evicts entries older than the retention horizon and drops empty
// windows.
func (d *CommandDetector) Sweep() int {
	cutoff := d.clock.Now().Add(-d.config.Retention)
	evicted, tracked := d.windows.sweep(cutoff)
	monitoring.DetectorSweepEvictions.WithLabelValues("command").Add(float64(evicted))
	monitoring.DetectorWindowUsers.WithLabelValues("command").Set(float64(tracked))
	return evicted
}

// TrackedUsers returns how many users currently hold a live window.
func (d *CommandDetector) TrackedUsers() int {
	return d.windows.trackedUsers()
}
