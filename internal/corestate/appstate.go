// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package corestate

import (
	"github.com/goccy/go-json"

	"github.com/lensloop/selectrank/internal/models"
)

// AppState is the coordinator's working memory: the monotonic round
// counter plus the three bounded ring buffers that back recency
// suppression and stability detection. It is serialized into the
// app_state table on every committed round so a restart resumes exactly
// where the previous process left off.
type AppState struct {
	Round        int
	RecentImages *RingBuffer[models.Digest]
	RecentPairs  *RingBuffer[models.Pair]
	TopKHistory  *RingBuffer[[]models.RankedImage]
}

// NewAppState builds an AppState with the given window sizes.
func NewAppState(recentImagesWindow, recentPairsWindow, topKHistoryWindow int) *AppState {
	return &AppState{
		RecentImages: NewRingBuffer[models.Digest](recentImagesWindow),
		RecentPairs:  NewRingBuffer[models.Pair](recentPairsWindow),
		TopKHistory:  NewRingBuffer[[]models.RankedImage](topKHistoryWindow),
	}
}

// snapshot is the JSON-serializable projection of AppState persisted to
// the app_state table.
type snapshot struct {
	Round        int                    `json:"round"`
	RecentImages []models.Digest        `json:"recent_images"`
	RecentPairs  []models.Pair          `json:"recent_pairs"`
	TopKHistory  [][]models.RankedImage `json:"top_k_history"`
}

// MarshalJSON serializes the current state for persistence.
func (s *AppState) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshot{
		Round:        s.Round,
		RecentImages: s.RecentImages.Snapshot(),
		RecentPairs:  s.RecentPairs.Snapshot(),
		TopKHistory:  s.TopKHistory.Snapshot(),
	})
}

// UnmarshalJSON restores state from a persisted snapshot. A ring buffer
// already set via NewAppState keeps its capacity and only has its contents
// replaced; a nil one is created with room for the snapshot's contents.
func (s *AppState) UnmarshalJSON(data []byte) error {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}

	s.Round = snap.Round
	if s.RecentImages == nil {
		s.RecentImages = NewRingBuffer[models.Digest](max(len(snap.RecentImages), 1))
	} else {
		s.RecentImages.Reset()
	}
	for _, d := range snap.RecentImages {
		s.RecentImages.Push(d)
	}

	if s.RecentPairs == nil {
		s.RecentPairs = NewRingBuffer[models.Pair](max(len(snap.RecentPairs), 1))
	} else {
		s.RecentPairs.Reset()
	}
	for _, p := range snap.RecentPairs {
		s.RecentPairs.Push(p)
	}

	if s.TopKHistory == nil {
		s.TopKHistory = NewRingBuffer[[]models.RankedImage](max(len(snap.TopKHistory), 1))
	} else {
		s.TopKHistory.Reset()
	}
	for _, k := range snap.TopKHistory {
		s.TopKHistory.Push(k)
	}

	return nil
}
