// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ratingstore owns the only three tables this module writes:
// images (current posterior per digest), choices (append-only comparison
// log), and app_state (single-row coordinator snapshot). Callers compute
// rating updates with internal/ratingengine and hand the result to
// Store.CommitChoice, which writes several rows in one transaction. Reset
// clears all three tables and AllImages reads every image row; the other
// methods read or upsert a single row.
package ratingstore
