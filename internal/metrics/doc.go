// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package metrics registers the Prometheus collectors the rating engine
exposes: round progression, pairing-selection latency and relaxations,
committed-choice counts, commit-retry outcomes, catalog scan duration and
outcome breakdown, and the convergence detector's component metrics plus
its composite progress score.

Every RecordX helper wraps a promauto-registered collector and is called
at the point where the value it reports is already computed: most from
internal/session.Coordinator, RecordPairingRelaxation from
internal/pairing and RecordCommitRetry from internal/ratingstore. This
package holds no application state of its own.
*/
package metrics
