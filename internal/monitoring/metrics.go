// Package monitoring holds the Prometheus metrics for the moderation core.
// Metrics are registered once at package init; components increment them
// directly.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Violation metrics
	ViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modcore_violations_total",
			Help: "Total violations recorded, by violation kind",
		},
		[]string{"kind"},
	)

	HighRiskSignalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modcore_high_risk_signals_total",
			Help: "Times a user's score crossed the quarantine threshold",
		},
	)

	// Decay metrics
	DecaySweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modcore_decay_sweeps_total",
			Help: "Completed heat decay sweeps",
		},
	)

	DecayedUsersTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modcore_decayed_users_total",
			Help: "User states reduced by decay sweeps",
		},
	)

	TrackedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "modcore_tracked_users",
			Help: "Distinct (community, user) risk states currently tracked",
		},
	)

	// Detector metrics
	DetectorWindowUsers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "modcore_detector_window_users",
			Help: "Users with a live sliding window, by detector",
		},
		[]string{"detector"},
	)

	DetectorSweepEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modcore_detector_sweep_evictions_total",
			Help: "Window entries evicted by the periodic sweep, by detector",
		},
		[]string{"detector"},
	)

	// Containment metrics
	QuarantinesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modcore_quarantines_total",
			Help: "Quarantine attempts, by outcome",
		},
		[]string{"outcome"},
	)

	ReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modcore_releases_total",
			Help: "Release attempts, by outcome",
		},
		[]string{"outcome"},
	)

	// Action metrics
	ActionsEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modcore_actions_emitted_total",
			Help: "Action requests handed to the platform layer, by kind",
		},
		[]string{"kind"},
	)
)
