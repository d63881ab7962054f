// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

// LoopInfo is the externally-supplied loop/trip-count analysis Hydra
// consumes. A real pipeline would get this from a loop-analysis pass;
// tests and the standalone driver populate it directly.
type LoopInfo struct {
	// TripCounts maps a block known to be inside a loop with a statically
	// known, positive trip count to that count. Blocks absent from this
	// map are either not in a loop or have an unknown trip count.
	TripCounts map[BlockID]uint64
}

// NewLoopInfo returns an empty LoopInfo (no block has a known trip count).
func NewLoopInfo() *LoopInfo {
	return &LoopInfo{TripCounts: make(map[BlockID]uint64)}
}

// TripCount returns the statically known trip count of b and whether one
// is known at all.
func (li *LoopInfo) TripCount(b BlockID) (uint64, bool) {
	if li == nil {
		return 0, false
	}
	n, ok := li.TripCounts[b]
	return n, ok && n > 0
}
