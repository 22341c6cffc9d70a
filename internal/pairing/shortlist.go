// selectrank - pairwise image rating and convergence engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package pairing

import (
	"container/heap"

	"github.com/lensloop/selectrank/internal/models"
)

// sigmaHeap is a bounded min-heap over sigma, used to keep only the
// shortlistK highest-sigma candidates while scanning the eligible pool
// once rather than sorting it in full.
type sigmaHeap []models.ImageRecord

func (h sigmaHeap) Len() int           { return len(h) }
func (h sigmaHeap) Less(i, j int) bool { return h[i].Sigma < h[j].Sigma }
func (h sigmaHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sigmaHeap) Push(x any)         { *h = append(*h, x.(models.ImageRecord)) }
func (h *sigmaHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// topKBySigma returns the k candidates with the highest sigma, in no
// particular order. When len(candidates) <= k it returns all of them.
func topKBySigma(candidates []models.ImageRecord, k int) []models.ImageRecord {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}
	if len(candidates) <= k {
		out := make([]models.ImageRecord, len(candidates))
		copy(out, candidates)
		return out
	}

	h := make(sigmaHeap, 0, k)
	heap.Init(&h)
	for _, c := range candidates {
		if h.Len() < k {
			heap.Push(&h, c)
			continue
		}
		if c.Sigma > h[0].Sigma {
			heap.Pop(&h)
			heap.Push(&h, c)
		}
	}
	return []models.ImageRecord(h)
}
