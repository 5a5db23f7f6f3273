package detector

import (
	"fmt"
	"strings"
	"time"

	"github.com/xaoc-labs/modcore/internal/core"
	"github.com/xaoc-labs/modcore/internal/monitoring"
)

// MessageConfig holds the message detector's window and thresholds.
type MessageConfig struct {
	// WindowCapacity: max entries retained per user
	WindowCapacity int

	// Interval: lookback used by the rate and duplicate checks
	Interval time.Duration

	// MaxPerInterval: more messages than this inside Interval is a burst
	MaxPerInterval int

	// MaxIdentical: this many identical recent messages is duplicate spam
	MaxIdentical int

	// MentionThreshold: more mentions than this in one message is a flood
	MentionThreshold int

	// MaxNewlines: more newlines than this in one message is a flood
	MaxNewlines int

	// Retention: sweep horizon; entries older than this are evicted
	Retention time.Duration
}

// DefaultMessageConfig returns the standard message detector tuning.
func DefaultMessageConfig() MessageConfig {
	return MessageConfig{
		WindowCapacity:   10,
		Interval:         5 * time.Second,
		MaxPerInterval:   5,
		MaxIdentical:     3,
		MentionThreshold: 5,
		MaxNewlines:      30,
		Retention:        10 * time.Minute,
	}
}

// MessageDetector classifies inbound messages against a per-user sliding
// window. Detection is stateful across calls: the window records every
// event regardless of outcome.
type MessageDetector struct {
	config  MessageConfig
	clock   core.Clock
	windows *shardedWindows
}

// NewMessageDetector creates a message detector. Zero-valued config fields
// fall back to defaults.
func NewMessageDetector(clock core.Clock, cfg MessageConfig) *MessageDetector {
	def := DefaultMessageConfig()
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
	if cfg.MentionThreshold == 0 {
		cfg.MentionThreshold = def.MentionThreshold
	}
	if cfg.MaxNewlines == 0 {
		cfg.MaxNewlines = def.MaxNewlines
	}
	if cfg.Retention == 0 {
		cfg.Retention = def.Retention
	}
	if clock == nil {
		clock = core.SystemClock()
	}
	return &MessageDetector{
		config:  cfg,
		clock:   clock,
		windows: newShardedWindows(cfg.WindowCapacity),
	}
}

// Evaluate records the message in the user's window and classifies it.
// Checks run in a fixed order and the first match wins, so a single event
// is never penalized under multiple rules. Returns nil when clean.
func (d *MessageDetector) Evaluate(key core.Key, content string, mentionCount int) *Violation {
	now := d.clock.Now()
	normalized := strings.ToLower(content)

	var v *Violation
	d.windows.withWindow(key, func(w *window) {
		w.add(entry{at: now, value: normalized})
		recent := w.since(now.Add(-d.config.Interval))

		if len(recent) > d.config.MaxPerInterval {
			v = &Violation{
				Reason: "rate",
				Detail: fmt.Sprintf("%d messages in %s", len(recent), d.config.Interval),
			}
			return
		}

		if len(recent) >= d.config.MaxIdentical && allIdentical(recent) {
			v = &Violation{
				Reason: "duplicate",
				Detail: fmt.Sprintf("same message repeated %d times", len(recent)),
			}
			return
		}

		if mentionCount > d.config.MentionThreshold {
			v = &Violation{
				Reason: "mention_flood",
				Detail: fmt.Sprintf("%d mentions in one message", mentionCount),
			}
			return
		}

		if strings.Count(content, "\n") > d.config.MaxNewlines {
			v = &Violation{
				Reason: "newline_flood",
				Detail: "message contains excessive newlines",
			}
		}
	})
	return v
}

// allIdentical reports whether every entry carries the same non-empty value.
func allIdentical(entries []entry) bool {
	first := entries[0].value
	if first == "" {
		return false
	}
	for _, e := range entries[1:] {
		if e.value != first {
			return false
		}
	}
	return true
}

// Sweep evicts entries older than the retention horizon and drops empty
// windows, bounding memory independent of the decay schedule.
func (d *MessageDetector) Sweep() int {
	cutoff := d.clock.Now().Add(-d.config.Retention)
	evicted, tracked := d.windows.sweep(cutoff)
	monitoring.DetectorSweepEvictions.WithLabelValues("message").Add(float64(evicted))
	monitoring.DetectorWindowUsers.WithLabelValues("message").Set(float64(tracked))
	return evicted
}

// TrackedUsers returns how many users currently hold a live window.
func (d *MessageDetector) TrackedUsers() int {
	return d.windows.trackedUsers()
}
