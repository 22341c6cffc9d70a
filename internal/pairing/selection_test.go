// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package pairing

import (
	"math/rand/v2"
	"testing"

	"github.com/lensloop/selectrank/internal/config"
	"github.com/lensloop/selectrank/internal/coreerr"
	"github.com/lensloop/selectrank/internal/models"
)

func testConfig() config.PairingConfig {
	return config.PairingConfig{
		EpsilonGreedy:         0.10,
		SkipInjectProbability: 0.30,
		RecentImagesWindow:    64,
		RecentPairsWindow:     128,
		ShortlistK:            64,
		PartnerScoreAlpha:     0.01,
	}
}

func testRNG() *rand.Rand {
	return rand.New(rand.NewPCG(1, 1))
}

func unseenImages(n int) []models.ImageRecord {
	out := make([]models.ImageRecord, n)
	for i := range out {
		out[i] = models.ImageRecord{Digest: models.Digest(string(rune('a' + i))), Mu: 1500, Sigma: 350}
	}
	return out
}

func TestNextPair_FewerThanTwoEligibleReturnsNotEnoughImages(t *testing.T) {
	t.Parallel()

	s := New(testConfig())
	_, err := s.NextPair(unseenImages(1), 0, RecencyView{}, testRNG())
	if code, _ := coreerr.CodeOf(err); code != coreerr.CodeNotEnoughImages {
		t.Fatalf("err = %v, want NotEnoughImages", err)
	}
}

func TestNextPair_NeverReturnsSameDigestTwice(t *testing.T) {
	t.Parallel()

	s := New(testConfig())
	images := unseenImages(10)
	rng := testRNG()
	for i := 0; i < 200; i++ {
		pair, err := s.NextPair(images, 0, RecencyView{}, rng)
		if err != nil {
			t.Fatalf("NextPair() error: %v", err)
		}
		if pair.A == pair.B {
			t.Fatalf("NextPair() returned identical digests in both slots: %v", pair)
		}
	}
}

func TestNextPair_ExcludesCooldownImages(t *testing.T) {
	t.Parallel()

	s := New(testConfig())
	images := []models.ImageRecord{
		{Digest: "a", Mu: 1500, Sigma: 350, Exposures: 1, NextEligibleRound: 100},
		{Digest: "b", Mu: 1500, Sigma: 350, Exposures: 1},
		{Digest: "c", Mu: 1500, Sigma: 350, Exposures: 1},
	}
	rng := testRNG()
	for i := 0; i < 50; i++ {
		pair, err := s.NextPair(images, 10, RecencyView{}, rng)
		if err != nil {
			t.Fatalf("NextPair() error: %v", err)
		}
		if pair.A == "a" || pair.B == "a" {
			t.Fatalf("NextPair() surfaced a cooldown image: %v", pair)
		}
	}
}

func TestNextPair_RelaxesRecencyWhenExhausted(t *testing.T) {
	t.Parallel()

	s := New(testConfig())
	images := unseenImages(2)
	recency := RecencyView{
		RecentImages: []models.Digest{"a", "b"},
	}
	// With only two eligible images and both recency-suppressed, the
	// selector must relax the image-recency filter rather than fail.
	pair, err := s.NextPair(images, 0, recency, testRNG())
	if err != nil {
		t.Fatalf("NextPair() error: %v, want a relaxed-recency fallback pair", err)
	}
	if pair.A == pair.B {
		t.Fatalf("NextPair() returned identical digests: %v", pair)
	}
}

func TestClassify_PoolAssignment(t *testing.T) {
	t.Parallel()

	images := []models.ImageRecord{
		{Digest: "unseen", Exposures: 0},
		{Digest: "active", Exposures: 3, NextEligibleRound: 0},
		{Digest: "skip-eligible", Exposures: 3, Skips: 1, NextEligibleRound: 5},
		{Digest: "cooldown", Exposures: 3, Skips: 1, NextEligibleRound: 50},
	}
	p := classify(images, 10)

	if len(p.unseen) != 1 || p.unseen[0].Digest != "unseen" {
		t.Errorf("unseen pool = %+v", p.unseen)
	}
	if len(p.active) != 1 || p.active[0].Digest != "active" {
		t.Errorf("active pool = %+v", p.active)
	}
	if len(p.skippedEligible) != 1 || p.skippedEligible[0].Digest != "skip-eligible" {
		t.Errorf("skippedEligible pool = %+v", p.skippedEligible)
	}
	for _, img := range p.eligible() {
		if img.Digest == "cooldown" {
			t.Error("cooldown image must never appear in the eligible union")
		}
	}
}

func TestTopKBySigma_ReturnsHighestSigmaCandidates(t *testing.T) {
	t.Parallel()

	images := []models.ImageRecord{
		{Digest: "low", Sigma: 10},
		{Digest: "mid", Sigma: 50},
		{Digest: "high", Sigma: 90},
	}
	top := topKBySigma(images, 2)
	if len(top) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(top))
	}
	seen := map[models.Digest]bool{}
	for _, img := range top {
		seen[img.Digest] = true
	}
	if !seen["high"] || !seen["mid"] {
		t.Errorf("topKBySigma dropped the two highest-sigma candidates: %+v", top)
	}
}
