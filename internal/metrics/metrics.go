// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics registers the Prometheus instrumentation exposed by the
// rating engine: round progression, pairing latency, catalog scan duration,
// and the convergence detector's composite progress score.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CurrentRound tracks the session coordinator's round counter.
	CurrentRound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selectrank_current_round",
			Help: "Current round number held by the session coordinator",
		},
	)

	// PairingDuration measures how long NextPair's selection policy takes
	// to produce a candidate pair, from classification through the
	// shortlist scoring pass.
	PairingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selectrank_pairing_duration_seconds",
			Help:    "Duration of pair selection in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)

	// PairingRelaxations counts how often the selector had to relax the
	// recency or pair-history filter to find an eligible pair.
	PairingRelaxations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selectrank_pairing_relaxations_total",
			Help: "Total number of times the pairing policy relaxed a recency filter",
		},
		[]string{"filter"}, // "pair_recency", "image_recency"
	)

	// ChoicesRecorded counts committed choices by outcome.
	ChoicesRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selectrank_choices_recorded_total",
			Help: "Total number of choices committed, by outcome",
		},
		[]string{"outcome"}, // "LEFT", "RIGHT", "SKIP"
	)

	// CommitRetries counts choice commits that needed at least one retry,
	// labeled by whether they finally succeeded or exhausted the budget.
	CommitRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "selectrank_commit_retries_total",
			Help: "Total number of choice commits that needed retries, by final result",
		},
		[]string{"result"}, // "succeeded", "exhausted"
	)

	// ScanDuration measures full catalog scans.
	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selectrank_scan_duration_seconds",
			Help:    "Duration of catalog scans in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
	)

	// ScanFilesAccepted, Skipped, Rejected, Reused track the outcome
	// breakdown of the most recent catalog scan.
	ScanFilesAccepted = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selectrank_scan_files_accepted",
			Help: "Number of image files accepted in the last catalog scan",
		},
	)

	ScanFilesSkipped = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selectrank_scan_files_skipped",
			Help: "Number of image files skipped (too large, unreadable) in the last catalog scan",
		},
	)

	ScanFilesRejected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selectrank_scan_files_rejected",
			Help: "Number of files rejected (magic bytes do not match extension) in the last catalog scan",
		},
	)

	ScanFilesReused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selectrank_scan_files_reused",
			Help: "Number of files whose digest was served from the memoization cache",
		},
	)

	// ConvergenceProgress is the composite 0-100 progress score last
	// reported by the convergence detector.
	ConvergenceProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selectrank_convergence_progress",
			Help: "Composite convergence progress score, 0-100",
		},
	)

	// ConvergenceCoverage, Confidence, Stability track the detector's
	// independent component metrics, each in [0, 1].
	ConvergenceCoverage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selectrank_convergence_coverage",
			Help: "Fraction of images with at least the minimum exposure count",
		},
	)

	ConvergenceConfidence = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selectrank_convergence_confidence",
			Help: "Fraction of the top-K ranking whose sigma has decayed below threshold",
		},
	)

	ConvergenceStability = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selectrank_convergence_stability",
			Help: "Top-K rank stability across the retained history window",
		},
	)

	// PortfolioReady is 1 once the composite predicate is satisfied, 0
	// otherwise.
	PortfolioReady = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "selectrank_portfolio_ready",
			Help: "1 if the portfolio_ready predicate currently holds, else 0",
		},
	)
)

// RecordPairing observes a pairing-selection duration.
func RecordPairing(duration time.Duration) {
	PairingDuration.Observe(duration.Seconds())
}

// RecordPairingRelaxation counts one filter relaxation during selection.
func RecordPairingRelaxation(filter string) {
	PairingRelaxations.WithLabelValues(filter).Inc()
}

// RecordChoice counts a committed choice by its outcome label.
func RecordChoice(outcome string) {
	ChoicesRecorded.WithLabelValues(outcome).Inc()
}

// RecordCommitRetry records whether a choice commit eventually succeeded
// after retrying against the store's circuit breaker.
func RecordCommitRetry(succeeded bool) {
	if succeeded {
		CommitRetries.WithLabelValues("succeeded").Inc()
		return
	}
	CommitRetries.WithLabelValues("exhausted").Inc()
}

// RecordScan observes a catalog scan's duration and outcome breakdown.
func RecordScan(duration time.Duration, accepted, skipped, rejected, reused int) {
	ScanDuration.Observe(duration.Seconds())
	ScanFilesAccepted.Set(float64(accepted))
	ScanFilesSkipped.Set(float64(skipped))
	ScanFilesRejected.Set(float64(rejected))
	ScanFilesReused.Set(float64(reused))
}

// RecordConvergence publishes the latest progress report's gauges.
func RecordConvergence(progress, coverage, confidence, stability float64, ready bool) {
	ConvergenceProgress.Set(progress)
	ConvergenceCoverage.Set(coverage)
	ConvergenceConfidence.Set(confidence)
	ConvergenceStability.Set(stability)
	if ready {
		PortfolioReady.Set(1)
	} else {
		PortfolioReady.Set(0)
	}
}

// SetCurrentRound publishes the coordinator's round counter.
func SetCurrentRound(round int) {
	CurrentRound.Set(float64(round))
}
