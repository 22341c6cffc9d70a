// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package pairing

import "github.com/lensloop/selectrank/internal/models"

// pools is the per-round classification of the catalog's images,
// computed fresh on every selection call since eligibility depends on
// the current round.
type pools struct {
	unseen          []models.ImageRecord
	active          []models.ImageRecord
	skippedEligible []models.ImageRecord
}

// classify partitions images into the three selectable pools at round,
// dropping anything in skip cooldown entirely.
func classify(images []models.ImageRecord, round int) pools {
	var p pools
	for _, img := range images {
		switch img.PoolOf(round) {
		case models.PoolUnseen:
			p.unseen = append(p.unseen, img)
		case models.PoolActive:
			p.active = append(p.active, img)
		case models.PoolSkippedEligible:
			p.skippedEligible = append(p.skippedEligible, img)
		case models.PoolSkippedCooldown:
			// excluded from selection entirely
		}
	}
	return p
}

// eligible returns every image in the union of the three selectable
// pools, without recency filtering applied.
func (p pools) eligible() []models.ImageRecord {
	out := make([]models.ImageRecord, 0, len(p.unseen)+len(p.active)+len(p.skippedEligible))
	out = append(out, p.unseen...)
	out = append(out, p.active...)
	out = append(out, p.skippedEligible...)
	return out
}

// restrictTo filters images down to the digests present in allowed.
func restrictTo(images []models.ImageRecord, allowed map[models.Digest]bool) []models.ImageRecord {
	out := make([]models.ImageRecord, 0, len(images))
	for _, img := range images {
		if allowed[img.Digest] {
			out = append(out, img)
		}
	}
	return out
}

func digestSet(images []models.ImageRecord) map[models.Digest]bool {
	set := make(map[models.Digest]bool, len(images))
	for _, img := range images {
		set[img.Digest] = true
	}
	return set
}
