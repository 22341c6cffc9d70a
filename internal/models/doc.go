// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package models defines the value types shared by the catalog, rating,
// pairing, convergence, and session packages: ImageRecord (a posterior plus
// its pool-eligibility bookkeeping), ChoiceRecord (a committed pairwise
// outcome with its before/after posteriors), CatalogEntry and ScanResult
// (filesystem-to-digest bookkeeping), and the small value types (Digest,
// Outcome, Pool, Pair, RankedImage, ProgressReport) that stitch them
// together. None of these types hold behavior beyond small derived queries
// like PoolOf and ConfidenceInterval; persistence and computation live in
// their owning packages.
package models
