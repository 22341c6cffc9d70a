// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import "testing"

func TestOutcomeValid(t *testing.T) {
	t.Parallel()

	for _, o := range []Outcome{OutcomeLeft, OutcomeRight, OutcomeSkip} {
		if !o.Valid() {
			t.Errorf("Outcome(%q).Valid() = false, want true", o)
		}
	}
	if Outcome("MAYBE").Valid() {
		t.Error(`Outcome("MAYBE").Valid() = true, want false`)
	}
}

func TestImageRecordPoolOf(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		rec  ImageRecord
		round int
		want  Pool
	}{
		{"never seen", ImageRecord{Exposures: 0}, 0, PoolUnseen},
		{"active, never skipped", ImageRecord{Exposures: 5}, 10, PoolActive},
		{"cooldown in effect", ImageRecord{Exposures: 5, Skips: 1, NextEligibleRound: 20}, 10, PoolSkippedCooldown},
		{"cooldown expired, skip-eligible", ImageRecord{Exposures: 5, Skips: 1, NextEligibleRound: 5}, 10, PoolSkippedEligible},
	}
	for _, c := range cases {
		if got := c.rec.PoolOf(c.round); got != c.want {
			t.Errorf("%s: PoolOf(%d) = %v, want %v", c.name, c.round, got, c.want)
		}
	}
}

func TestImageRecordConfidenceInterval(t *testing.T) {
	t.Parallel()

	rec := ImageRecord{Mu: 1500, Sigma: 100}
	lower, upper := rec.ConfidenceInterval()
	if lower != 1500-1.96*100 || upper != 1500+1.96*100 {
		t.Errorf("ConfidenceInterval() = (%v, %v), want (%v, %v)", lower, upper, 1500-1.96*100, 1500+1.96*100)
	}
}

func TestNewPairNormalizes(t *testing.T) {
	t.Parallel()

	p1 := NewPair("b", "a")
	p2 := NewPair("a", "b")
	if p1 != p2 {
		t.Errorf("NewPair order dependence: %+v != %+v", p1, p2)
	}
	if !p1.Has("a") || !p1.Has("b") || p1.Has("c") {
		t.Errorf("Has() incorrect for %+v", p1)
	}
}
