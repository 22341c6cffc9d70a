// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package corestate

import (
	"testing"

	"github.com/lensloop/selectrank/internal/models"
)

func TestAppState_MarshalUnmarshalRoundTrip(t *testing.T) {
	t.Parallel()

	state := NewAppState(4, 4, 4)
	state.Round = 7
	state.RecentImages.Push(models.Digest("aaa"))
	state.RecentImages.Push(models.Digest("bbb"))
	state.RecentPairs.Push(models.NewPair("aaa", "bbb"))
	state.TopKHistory.Push([]models.RankedImage{{Digest: "aaa", Mu: 1600, Sigma: 80}})

	data, err := state.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error: %v", err)
	}

	restored := NewAppState(4, 4, 4)
	if err := restored.UnmarshalJSON(data); err != nil {
		t.Fatalf("UnmarshalJSON() error: %v", err)
	}

	if restored.Round != 7 {
		t.Errorf("Round = %d, want 7", restored.Round)
	}
	imgs := restored.RecentImages.Snapshot()
	if len(imgs) != 2 || imgs[0] != "aaa" || imgs[1] != "bbb" {
		t.Errorf("RecentImages = %v, want [aaa bbb]", imgs)
	}
	pairs := restored.RecentPairs.Snapshot()
	if len(pairs) != 1 || pairs[0].A != "aaa" || pairs[0].B != "bbb" {
		t.Errorf("RecentPairs = %v, want one pair aaa/bbb", pairs)
	}
	history := restored.TopKHistory.Snapshot()
	if len(history) != 1 || len(history[0]) != 1 || history[0][0].Digest != "aaa" {
		t.Errorf("TopKHistory = %v, want one entry with digest aaa", history)
	}
}

func TestAppState_UnmarshalEmptySnapshot(t *testing.T) {
	t.Parallel()

	state := NewAppState(4, 4, 4)
	if err := state.UnmarshalJSON([]byte(`{"round":0,"recent_images":[],"recent_pairs":[],"top_k_history":[]}`)); err != nil {
		t.Fatalf("UnmarshalJSON() error: %v", err)
	}
	if state.Round != 0 {
		t.Errorf("Round = %d, want 0", state.Round)
	}
	if state.RecentImages.Len() != 0 {
		t.Errorf("RecentImages.Len() = %d, want 0", state.RecentImages.Len())
	}
}
