// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package ratingstore

// schema creates the three tables this module persists to: images (one
// row per digest, the current posterior), choices (append-only log of
// every committed comparison), and app_state (the single-row snapshot of
// the coordinator's round counter and ring buffers).
const schema = `
CREATE TABLE IF NOT EXISTS images (
	digest              TEXT PRIMARY KEY,
	mu                  DOUBLE NOT NULL,
	sigma               DOUBLE NOT NULL,
	exposures           INTEGER NOT NULL DEFAULT 0,
	likes               INTEGER NOT NULL DEFAULT 0,
	unlikes             INTEGER NOT NULL DEFAULT 0,
	skips               INTEGER NOT NULL DEFAULT 0,
	last_seen_round     INTEGER NOT NULL DEFAULT 0,
	next_eligible_round INTEGER NOT NULL DEFAULT 0,
	created_at          TIMESTAMP NOT NULL DEFAULT current_timestamp
);

CREATE TABLE IF NOT EXISTS choices (
	round               INTEGER PRIMARY KEY,
	left_digest         TEXT NOT NULL,
	right_digest        TEXT NOT NULL,
	outcome             TEXT NOT NULL,
	ts                  TIMESTAMP NOT NULL DEFAULT current_timestamp,
	left_mu_before      DOUBLE NOT NULL,
	left_mu_after       DOUBLE NOT NULL,
	right_mu_before     DOUBLE NOT NULL,
	right_mu_after      DOUBLE NOT NULL,
	left_sigma_before   DOUBLE NOT NULL,
	left_sigma_after    DOUBLE NOT NULL,
	right_sigma_before  DOUBLE NOT NULL,
	right_sigma_after   DOUBLE NOT NULL
);

CREATE TABLE IF NOT EXISTS app_state (
	id       INTEGER PRIMARY KEY,
	round    INTEGER NOT NULL,
	snapshot BLOB NOT NULL
);
`

// appStateRowID is the fixed primary key of the single app_state row this
// module ever writes; there is exactly one coordinator per database.
const appStateRowID = 0
