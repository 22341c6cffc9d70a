// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog is the sole producer of digest identity for this
// module: every other package only ever sees a models.Digest, never a
// filesystem path.
//
// A scan has three phases: walk (cheap, sequential, enforces MaxFiles
// before any hashing starts), hash (bounded worker pool, cache-aware,
// cancellable between chunks), and merge (deterministic digest-order
// reconciliation against the catalog's existing entries). A scan that
// aborts at any phase leaves previously recorded entries untouched.
package catalog
