// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package convergence

import (
	"testing"

	"github.com/lensloop/selectrank/internal/config"
	"github.com/lensloop/selectrank/internal/models"
)

func testConfig() config.ConvergenceConfig {
	return config.ConvergenceConfig{
		TargetTopK:           4,
		MinExposuresPerImage: 5,
		SigmaConfidentMax:    90,
		StabilityWindow:      120,
		TopKHistoryWindow:    120,
	}
}

func TestReport_EmptyCatalogIsZeroProgress(t *testing.T) {
	t.Parallel()

	d := New(testConfig())
	report := d.Report(nil, nil)

	if report.Progress != 0 {
		t.Errorf("Progress = %v, want 0 for an empty catalog", report.Progress)
	}
	if report.PortfolioReady {
		t.Error("PortfolioReady = true for an empty catalog")
	}
	if report.Quality != "early" {
		t.Errorf("Quality = %q, want %q", report.Quality, "early")
	}
}

func TestReport_ZeroExposuresIsZeroProgress(t *testing.T) {
	t.Parallel()

	d := New(testConfig())
	images := []models.ImageRecord{
		{Digest: "a", Mu: 1500, Sigma: 350},
		{Digest: "b", Mu: 1500, Sigma: 350},
	}
	report := d.Report(images, nil)

	if report.Progress != 0 {
		t.Errorf("Progress = %v, want 0 when every image has zero exposures", report.Progress)
	}
}

func TestRank_OrdersByMuDescThenSigmaThenDigest(t *testing.T) {
	t.Parallel()

	d := New(testConfig())
	images := []models.ImageRecord{
		{Digest: "z", Mu: 1500, Sigma: 100},
		{Digest: "a", Mu: 1500, Sigma: 100},
		{Digest: "b", Mu: 1600, Sigma: 50},
	}
	ranking := d.Rank(images)

	want := []models.Digest{"b", "a", "z"}
	for i, w := range want {
		if ranking[i].Digest != w {
			t.Errorf("ranking[%d].Digest = %q, want %q", i, ranking[i].Digest, w)
		}
	}
}

func TestStability_FewerThanTwoSnapshotsIsPerfectlyStable(t *testing.T) {
	t.Parallel()

	d := New(testConfig())
	if s := d.stability(nil); s != 1 {
		t.Errorf("stability(nil) = %v, want 1", s)
	}
	history := [][]models.RankedImage{{{Digest: "a"}}}
	if s := d.stability(history); s != 1 {
		t.Errorf("stability(one snapshot) = %v, want 1", s)
	}
}

func TestStability_IdenticalTopKIsPerfectlyStable(t *testing.T) {
	t.Parallel()

	d := New(testConfig())
	snap := []models.RankedImage{{Digest: "a"}, {Digest: "b"}}
	history := [][]models.RankedImage{snap, snap, snap}
	if s := d.stability(history); s != 1 {
		t.Errorf("stability(identical snapshots) = %v, want 1", s)
	}
}

func TestStability_FullTurnoverIsZero(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.TargetTopK = 2
	d := New(cfg)
	history := [][]models.RankedImage{
		{{Digest: "a"}, {Digest: "b"}},
		{{Digest: "c"}, {Digest: "d"}},
	}
	if s := d.stability(history); s != 0 {
		t.Errorf("stability(full turnover) = %v, want 0", s)
	}
}

func TestBoundaryGap_PositiveWhenBoundaryIsClean(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.TargetTopK = 1
	d := New(cfg)
	ranking := []models.RankedImage{
		{Digest: "a", Mu: 2000, Sigma: 10},
		{Digest: "b", Mu: 1000, Sigma: 10},
	}
	if g := d.boundaryGap(ranking); g <= 0 {
		t.Errorf("boundaryGap = %v, want > 0 for a wide separation", g)
	}
}

func TestBoundaryGap_NegativeWhenContested(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.TargetTopK = 1
	d := New(cfg)
	ranking := []models.RankedImage{
		{Digest: "a", Mu: 1505, Sigma: 100},
		{Digest: "b", Mu: 1495, Sigma: 100},
	}
	if g := d.boundaryGap(ranking); g >= 0 {
		t.Errorf("boundaryGap = %v, want < 0 for overlapping confidence intervals", g)
	}
}

func TestQualityLabel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		progress float64
		want     string
	}{
		{95, "excellent"},
		{80, "very good"},
		{60, "good"},
		{30, "fair"},
		{10, "early"},
	}
	for _, c := range cases {
		if got := qualityLabel(c.progress); got != c.want {
			t.Errorf("qualityLabel(%v) = %q, want %q", c.progress, got, c.want)
		}
	}
}
