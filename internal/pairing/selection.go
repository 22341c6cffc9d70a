// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pairing chooses the next pair of images to show a human judge.
// Every call reclassifies the catalog into eligibility pools from
// scratch, since eligibility depends on the current round, then applies
// a six-step selection policy that balances unseen-image coverage,
// skip-resurfacing, exploration, and information-theoretic partnering.
// Selector is CPU-only: it never performs I/O and never mutates an
// ImageRecord, so a caller can simulate a pairing decision without
// touching the database.
package pairing

import (
	"math/rand/v2"
	"sort"

	"github.com/lensloop/selectrank/internal/config"
	"github.com/lensloop/selectrank/internal/coreerr"
	"github.com/lensloop/selectrank/internal/metrics"
	"github.com/lensloop/selectrank/internal/models"
)

// maxPairRetries bounds how many times Selector redraws both slots while
// trying to avoid a recently-shown pair before giving up and relaxing
// the recency filters one step.
const maxPairRetries = 20

// RecencyView is the read-only slice of AppState the selector consults
// for recency suppression. The coordinator passes a snapshot rather than
// the live ring buffers so Selector never needs a lock of its own.
type RecencyView struct {
	RecentImages []models.Digest
	RecentPairs  []models.Pair
}

// Selector implements the pool classification and six-step selection
// policy: skip-injection, unseen priority, sigma-weighted active
// sampling, epsilon-greedy exploration, information-theoretic
// partnering, and unseen-calibration.
type Selector struct {
	cfg config.PairingConfig
}

// New builds a Selector from the pairing section of the loaded
// configuration.
func New(cfg config.PairingConfig) *Selector {
	return &Selector{cfg: cfg}
}

// NextPair chooses the next pair to show at round, given every image the
// catalog currently knows about and the coordinator's recency state. It
// never returns a pair with identical digests in both slots.
func (s *Selector) NextPair(images []models.ImageRecord, round int, recency RecencyView, rng *rand.Rand) (models.Pair, error) {
	p := classify(images, round)
	eligible := p.eligible()
	if len(eligible) < 2 {
		return models.Pair{}, coreerr.ErrNotEnoughImages
	}

	imageFilter, pairFilter := true, true
	for attempt := 0; attempt < 3; attempt++ {
		pair, ok := s.selectOnce(p, eligible, recency, imageFilter, pairFilter, rng)
		if ok {
			return pair, nil
		}
		// Relax the pair-recency filter first, then the image-recency
		// filter, before giving up.
		switch {
		case pairFilter:
			pairFilter = false
			metrics.RecordPairingRelaxation("pair_recency")
		case imageFilter:
			imageFilter = false
			metrics.RecordPairingRelaxation("image_recency")
		default:
			return models.Pair{}, coreerr.ErrNotEnoughImages
		}
	}
	return models.Pair{}, coreerr.ErrNotEnoughImages
}

func (s *Selector) selectOnce(p pools, eligible []models.ImageRecord, recency RecencyView, imageFilter, pairFilter bool, rng *rand.Rand) (models.Pair, bool) {
	recentImages := make(map[models.Digest]bool, len(recency.RecentImages))
	if imageFilter {
		for _, d := range recency.RecentImages {
			recentImages[d] = true
		}
	}
	recentPairs := make(map[models.Pair]bool, len(recency.RecentPairs))
	if pairFilter {
		for _, pr := range recency.RecentPairs {
			recentPairs[pr] = true
		}
	}

	pool := filterRecent(eligible, recentImages)
	if len(pool) < 2 {
		return models.Pair{}, false
	}
	unseen := filterRecent(p.unseen, recentImages)
	active := filterRecent(p.active, recentImages)
	skippedEligible := filterRecent(p.skippedEligible, recentImages)

	for i := 0; i < maxPairRetries; i++ {
		slotA, fromUnseen := pickSlotA(unseen, active, skippedEligible, s.cfg, rng)
		if slotA.Digest == "" {
			// Every filtered pool was empty; fall back to the whole pool.
			slotA = pool[rng.IntN(len(pool))]
			fromUnseen = slotA.Exposures == 0
		}

		candidates := without(pool, slotA.Digest)
		if len(candidates) == 0 {
			return models.Pair{}, false
		}

		slotB := s.pickSlotB(slotA, candidates, active, fromUnseen, rng)
		if slotB.Digest == "" || slotB.Digest == slotA.Digest {
			continue
		}

		pair := models.NewPair(slotA.Digest, slotB.Digest)
		if recentPairs[pair] {
			continue
		}
		return pair, true
	}
	return models.Pair{}, false
}

// pickSlotA implements steps 2-3 of the selection policy: skip-injection,
// then unseen priority, then sigma-weighted active sampling.
func pickSlotA(unseen, active, skippedEligible []models.ImageRecord, cfg config.PairingConfig, rng *rand.Rand) (models.ImageRecord, bool) {
	if len(skippedEligible) > 0 && rng.Float64() < cfg.SkipInjectProbability {
		return skippedEligible[rng.IntN(len(skippedEligible))], false
	}
	if len(unseen) > 0 {
		return unseen[rng.IntN(len(unseen))], true
	}
	if len(active) > 0 {
		return weightedBySigma(active, rng), false
	}
	return models.ImageRecord{}, false
}

// pickSlotB implements steps 4-6: epsilon-greedy exploration, the
// information-theoretic shortlist, and the UNSEEN-calibration special
// case.
func (s *Selector) pickSlotB(slotA models.ImageRecord, candidates, active []models.ImageRecord, fromUnseen bool, rng *rand.Rand) models.ImageRecord {
	if fromUnseen && len(active) > 0 {
		if b, ok := calibrationPartner(active, slotA.Digest); ok {
			return b
		}
	}

	if rng.Float64() < s.cfg.EpsilonGreedy {
		return candidates[rng.IntN(len(candidates))]
	}

	shortlist := topKBySigma(candidates, s.cfg.ShortlistK)
	if len(shortlist) == 0 {
		return models.ImageRecord{}
	}
	return bestPartner(shortlist, slotA, s.cfg.PartnerScoreAlpha)
}

// weightedBySigma samples one image from active with probability
// proportional to its sigma, preferring the least-certain images.
func weightedBySigma(active []models.ImageRecord, rng *rand.Rand) models.ImageRecord {
	total := 0.0
	for _, img := range active {
		total += img.Sigma
	}
	if total <= 0 {
		return active[rng.IntN(len(active))]
	}
	r := rng.Float64() * total
	for _, img := range active {
		r -= img.Sigma
		if r <= 0 {
			return img
		}
	}
	return active[len(active)-1]
}

// bestPartner scores every shortlist candidate by
// sigma - alpha*|mu_b-mu_a| and returns the argmax, tie-broken by lower
// exposures then lower digest.
func bestPartner(shortlist []models.ImageRecord, slotA models.ImageRecord, alpha float64) models.ImageRecord {
	best := shortlist[0]
	bestScore := partnerScore(best, slotA, alpha)
	for _, c := range shortlist[1:] {
		score := partnerScore(c, slotA, alpha)
		if score > bestScore || (score == bestScore && lessTieBreak(c, best)) {
			best, bestScore = c, score
		}
	}
	return best
}

func partnerScore(candidate, slotA models.ImageRecord, alpha float64) float64 {
	gap := candidate.Mu - slotA.Mu
	if gap < 0 {
		gap = -gap
	}
	return candidate.Sigma - alpha*gap
}

func lessTieBreak(a, b models.ImageRecord) bool {
	if a.Exposures != b.Exposures {
		return a.Exposures < b.Exposures
	}
	return a.Digest < b.Digest
}

// calibrationPartner implements step 6: when slot A is a fresh, unseen
// image, force slot B to an active image near the median mu of the
// active pool whose sigma sits in the pool's top tercile, producing a
// maximally informative calibration comparison.
func calibrationPartner(active []models.ImageRecord, excludeDigest models.Digest) (models.ImageRecord, bool) {
	pool := without(active, excludeDigest)
	if len(pool) == 0 {
		return models.ImageRecord{}, false
	}

	bySigma := append([]models.ImageRecord(nil), pool...)
	sort.Slice(bySigma, func(i, j int) bool { return bySigma[i].Sigma < bySigma[j].Sigma })
	tercileStart := (len(bySigma) * 2) / 3
	topTercile := bySigma[tercileStart:]
	if len(topTercile) == 0 {
		topTercile = bySigma
	}

	byMu := append([]models.ImageRecord(nil), topTercile...)
	sort.Slice(byMu, func(i, j int) bool { return byMu[i].Mu < byMu[j].Mu })

	medianMu := medianOf(pool)
	best := byMu[0]
	bestDist := absFloat(best.Mu - medianMu)
	for _, c := range byMu[1:] {
		dist := absFloat(c.Mu - medianMu)
		if dist < bestDist {
			best, bestDist = c, dist
		}
	}
	return best, true
}

func medianOf(images []models.ImageRecord) float64 {
	mus := make([]float64, len(images))
	for i, img := range images {
		mus[i] = img.Mu
	}
	sort.Float64s(mus)
	n := len(mus)
	if n%2 == 1 {
		return mus[n/2]
	}
	return (mus[n/2-1] + mus[n/2]) / 2
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func filterRecent(images []models.ImageRecord, recent map[models.Digest]bool) []models.ImageRecord {
	if len(recent) == 0 {
		out := make([]models.ImageRecord, len(images))
		copy(out, images)
		return out
	}
	out := make([]models.ImageRecord, 0, len(images))
	for _, img := range images {
		if !recent[img.Digest] {
			out = append(out, img)
		}
	}
	return out
}

func without(images []models.ImageRecord, digest models.Digest) []models.ImageRecord {
	out := make([]models.ImageRecord, 0, len(images))
	for _, img := range images {
		if img.Digest != digest {
			out = append(out, img)
		}
	}
	return out
}
