// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package convergence computes the four independent metrics — coverage,
// confidence, boundary gap, and stability — that together describe how
// close the rating engine is to a settled top-K portfolio, plus the
// composite progress score and portfolio_ready predicate the outer
// layer polls. Detector holds no posteriors of its own: every call takes
// the current image set and a rolling window of past top-K snapshots,
// and returns a fresh report.
package convergence

import (
	"sort"

	"github.com/lensloop/selectrank/internal/config"
	"github.com/lensloop/selectrank/internal/models"
)

// Detector computes convergence metrics from the tunables in
// config.ConvergenceConfig.
type Detector struct {
	targetTopK           int
	minExposuresPerImage int
	sigmaConfidentMax    float64
}

// New builds a Detector from the convergence section of the loaded
// configuration.
func New(cfg config.ConvergenceConfig) *Detector {
	return &Detector{
		targetTopK:           cfg.TargetTopK,
		minExposuresPerImage: cfg.MinExposuresPerImage,
		sigmaConfidentMax:    cfg.SigmaConfidentMax,
	}
}

// Rank sorts images by mu descending, tie-broken by lower sigma then
// lower digest, and returns the projection the top_k_history ring
// buffer stores.
func (d *Detector) Rank(images []models.ImageRecord) []models.RankedImage {
	sorted := append([]models.ImageRecord(nil), images...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Mu != b.Mu {
			return a.Mu > b.Mu
		}
		if a.Sigma != b.Sigma {
			return a.Sigma < b.Sigma
		}
		return a.Digest < b.Digest
	})

	out := make([]models.RankedImage, len(sorted))
	for i, img := range sorted {
		out[i] = models.RankedImage{Digest: img.Digest, Mu: img.Mu, Sigma: img.Sigma}
	}
	return out
}

// TopK returns the first k entries of a ranking, or the whole ranking if
// it has fewer than k entries.
func TopK(ranking []models.RankedImage, k int) []models.RankedImage {
	if k >= len(ranking) {
		return ranking
	}
	return ranking[:k]
}

// Report computes a full ProgressReport from the current image set and
// the coordinator's top_k_history ring buffer contents (oldest first).
// An empty catalog, or one where every image has zero exposures,
// reports Progress=0 rather than letting the weighted terms produce a
// misleadingly nonzero score.
func (d *Detector) Report(images []models.ImageRecord, history [][]models.RankedImage) models.ProgressReport {
	if len(images) == 0 {
		return models.ProgressReport{Quality: qualityLabel(0)}
	}

	totalExposures := 0
	for _, img := range images {
		totalExposures += img.Exposures
	}
	if totalExposures == 0 {
		return models.ProgressReport{Quality: qualityLabel(0)}
	}

	ranking := d.Rank(images)
	topK := TopK(ranking, d.targetTopK)

	coverage := d.coverage(images)
	confidence := d.confidence(topK)
	boundaryGap := d.boundaryGap(ranking)
	stability := d.stability(history)
	exposureTerm := d.exposureTerm(images)

	progress := 100 * clamp01(0.30*coverage+0.25*exposureTerm+0.25*confidence+0.20*stability)

	ready := coverage >= 0.95 && confidence >= 0.90 && boundaryGap > 0 && stability >= 0.95

	return models.ProgressReport{
		Progress:       progress,
		PortfolioReady: ready,
		Quality:        qualityLabel(progress),
		Coverage:       coverage,
		Confidence:     confidence,
		BoundaryGap:    boundaryGap,
		Stability:      stability,
	}
}

// coverage is the fraction of images with at least minExposuresPerImage
// exposures.
func (d *Detector) coverage(images []models.ImageRecord) float64 {
	covered := 0
	for _, img := range images {
		if img.Exposures >= d.minExposuresPerImage {
			covered++
		}
	}
	return float64(covered) / float64(len(images))
}

// confidence is the fraction of the top-K ranking whose sigma has
// decayed to sigmaConfidentMax or below.
func (d *Detector) confidence(topK []models.RankedImage) float64 {
	if len(topK) == 0 {
		return 0
	}
	confident := 0
	for _, img := range topK {
		if img.Sigma <= d.sigmaConfidentMax {
			confident++
		}
	}
	return float64(confident) / float64(len(topK))
}

// boundaryGap is CI_lower(K) - CI_upper(K+1): positive means the K-th
// ranked image's lower confidence bound already exceeds the (K+1)-th
// image's upper bound, so the top-K boundary is settled.
func (d *Detector) boundaryGap(ranking []models.RankedImage) float64 {
	k := d.targetTopK
	if k <= 0 || k > len(ranking) || k == len(ranking) {
		return 0
	}
	const z = 1.96
	last := ranking[k-1]
	next := ranking[k]
	lastLower := last.Mu - z*last.Sigma
	nextUpper := next.Mu + z*next.Sigma
	return lastLower - nextUpper
}

// exposureTerm is min(1, mean_exposures/target_exposures) with
// target_exposures fixed at 10.
func (d *Detector) exposureTerm(images []models.ImageRecord) float64 {
	const targetExposures = 10
	total := 0
	for _, img := range images {
		total += img.Exposures
	}
	mean := float64(total) / float64(len(images))
	return clamp01(mean / targetExposures)
}

// stability is 1 - swaps/max_swaps over the retained history window:
// every rank that enters or leaves the top-K set between two
// consecutive snapshots counts as one swap. A history with fewer than
// two snapshots is perfectly stable by convention — there is nothing yet
// to have changed.
func (d *Detector) stability(history [][]models.RankedImage) float64 {
	if len(history) < 2 {
		return 1
	}

	maxSwaps := 2 * d.targetTopK
	totalSwaps, rounds := 0, 0
	for i := 1; i < len(history); i++ {
		prev := digestSet(history[i-1])
		cur := digestSet(history[i])
		totalSwaps += symmetricDifferenceSize(prev, cur)
		rounds++
	}
	if rounds == 0 || maxSwaps == 0 {
		return 1
	}
	meanSwaps := float64(totalSwaps) / float64(rounds)
	return clamp01(1 - meanSwaps/float64(maxSwaps))
}

func digestSet(ranking []models.RankedImage) map[models.Digest]bool {
	set := make(map[models.Digest]bool, len(ranking))
	for _, r := range ranking {
		set[r.Digest] = true
	}
	return set
}

func symmetricDifferenceSize(a, b map[models.Digest]bool) int {
	count := 0
	for d := range a {
		if !b[d] {
			count++
		}
	}
	for d := range b {
		if !a[d] {
			count++
		}
	}
	return count
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// qualityLabel maps a 0-100 progress score to its UI label.
func qualityLabel(progress float64) string {
	switch {
	case progress >= 90:
		return "excellent"
	case progress >= 75:
		return "very good"
	case progress >= 50:
		return "good"
	case progress >= 25:
		return "fair"
	default:
		return "early"
	}
}
