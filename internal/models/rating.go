// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "time"

// Digest is a 256-bit content hash, hex-encoded to 64 lowercase
// characters, identifying an image by its bytes. It is the sole
// cross-component identifier; filesystem paths are never passed between
// packages.
type Digest string

// Outcome is the result of one pairwise comparison.
type Outcome string

const (
	OutcomeLeft  Outcome = "LEFT"
	OutcomeRight Outcome = "RIGHT"
	OutcomeSkip  Outcome = "SKIP"
)

// Valid reports whether o is one of the three recognized outcomes.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeLeft, OutcomeRight, OutcomeSkip:
		return true
	default:
		return false
	}
}

// Pool classifies an image's current eligibility for selection.
type Pool string

const (
	PoolUnseen          Pool = "UNSEEN"
	PoolActive          Pool = "ACTIVE"
	PoolSkippedEligible Pool = "SKIPPED_ELIGIBLE"
	PoolSkippedCooldown Pool = "SKIPPED_COOLDOWN"
)

// ImageRecord is the per-image posterior state the rating store persists
// and the pairing/convergence engines read, keyed by Digest.
type ImageRecord struct {
	Digest            Digest
	Mu                float64
	Sigma             float64
	Exposures         int
	Likes             int
	Unlikes           int
	Skips             int
	LastSeenRound     int
	NextEligibleRound int
	CreatedAt         time.Time
}

// PoolOf classifies the image's eligibility at the given round. A
// SKIPPED_COOLDOWN image is only reachable via NextEligibleRound >
// round; an image with NextEligibleRound == 0 has never been skipped and
// so can never land in SKIPPED_ELIGIBLE, regardless of round.
func (r ImageRecord) PoolOf(round int) Pool {
	if r.NextEligibleRound > round {
		return PoolSkippedCooldown
	}
	if r.Exposures == 0 {
		return PoolUnseen
	}
	if r.NextEligibleRound > 0 && r.Skips > 0 {
		return PoolSkippedEligible
	}
	return PoolActive
}

// ConfidenceInterval returns the 95% normal-approximation interval
// [mu-1.96*sigma, mu+1.96*sigma], the same interval the convergence
// detector's boundary-gap computation derives on its own.
func (r ImageRecord) ConfidenceInterval() (lower, upper float64) {
	const z = 1.96
	return r.Mu - z*r.Sigma, r.Mu + z*r.Sigma
}

// Pair is an unordered pair of digests, normalized so that A <= B
// lexicographically. Normalizing on construction lets the recent-pairs
// ring buffer compare two Pair values with ==, independent of which slot
// (left/right) each digest was shown in.
type Pair struct {
	A, B Digest
}

// NewPair builds a normalized Pair from two digests shown in either
// left/right order.
func NewPair(x, y Digest) Pair {
	if x <= y {
		return Pair{A: x, B: y}
	}
	return Pair{A: y, B: x}
}

// Has reports whether d is one of the pair's two digests.
func (p Pair) Has(d Digest) bool {
	return p.A == d || p.B == d
}

// ChoiceRecord is one committed comparison: the pair shown, the outcome,
// and a before/after snapshot of both images' posteriors for audit and
// offline replay.
type ChoiceRecord struct {
	Round       int
	LeftDigest  Digest
	RightDigest Digest
	Outcome     Outcome
	Timestamp   time.Time

	LeftMuBefore, LeftMuAfter          float64
	RightMuBefore, RightMuAfter        float64
	LeftSigmaBefore, LeftSigmaAfter    float64
	RightSigmaBefore, RightSigmaAfter  float64
}

// RankedImage is one entry in a top-K ranking snapshot: just enough to
// detect a rank swap between rounds without re-reading the full
// ImageRecord.
type RankedImage struct {
	Digest Digest
	Mu     float64
	Sigma  float64
}

// CatalogEntry is the filesystem-to-digest mapping the Content Catalog
// maintains: where a digest's bytes currently live on disk, and the
// (size, mtime) fingerprint used to detect whether a cached digest is
// still valid.
type CatalogEntry struct {
	Digest Digest
	Path   string
	Size   int64
	MTime  time.Time
}

// ScanResult summarizes one completed Catalog.Scan call.
type ScanResult struct {
	Accepted       int
	Skipped        int
	Rejected       int
	Reused         int
	Duration       time.Duration
	PresentDigests []Digest
	NewDigests     []Digest
}

// ProgressReport is the convergence detector's output: the four
// independent metrics plus the composite progress score, quality label,
// and portfolio-readiness predicate.
type ProgressReport struct {
	Progress       float64
	PortfolioReady bool
	Quality        string
	Coverage       float64
	Confidence     float64
	BoundaryGap    float64
	Stability      float64
}
