// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package decider

import (
	"golang.org/x/tools/container/intsets"

	"github.com/jamro1149/hydra/internal/ir"
	"github.com/jamro1149/hydra/internal/joinpoints"
	"github.com/jamro1149/hydra/internal/profitability"
)

// SpawnToJoinCost computes the aggregated IR-instruction weight of code
// executed between call and any of joins — the caller-cost term of the
// accept/reject comparison. It is exported so callers evaluating a
// candidate outside of Run (a decision report, or a test) can recompute
// it directly.
func SpawnToJoinCost(m *ir.Module, prof *profitability.Result, call ir.InstID, joins []ir.InstID, agg Aggregator) uint32 {
	if len(joins) == 1 && isTrivialJoin(m, call, joins[0]) {
		return intervalCost(m, prof, call, joins[0])
	}

	g := buildSpawnGraph(m, prof, call)
	dist := dijkstra(g, call)

	distances := make([]uint64, 0, len(joins))
	for _, j := range joins {
		// Every join lies on a forward path from the call, so this is
		// always found; a missing entry would be a bug in joinpoints, but
		// we still read the zero default rather than panic, keeping the
		// query conservative.
		distances = append(distances, dist[j])
	}
	return aggregate(distances, agg)
}

// isTrivialJoin reports whether join is the single trivial join of call:
// in the call's own block, strictly after it.
func isTrivialJoin(m *ir.Module, call, join ir.InstID) bool {
	if m.Inst(join).Block != m.Inst(call).Block {
		return false
	}
	return m.InOrder(call, join)
}

// intervalCost sums the cost of instructions strictly between call and
// join within their shared block.
func intervalCost(m *ir.Module, prof *profitability.Result, call, join ir.InstID) uint32 {
	ci := joinpoints.IndexInBlock(m, call)
	ji := joinpoints.IndexInBlock(m, join)
	bb := m.Block(m.Inst(call).Block)

	var total uint32
	for i := ci + 1; i < ji; i++ {
		total = satAdd(total, instCost(m, prof, bb.Insts[i]))
	}
	return total
}

// instCost is 1, plus the callee's total cost if the instruction is a
// call: emitting/non-emitting distinctions are ignored at this
// granularity, and call sites are weighted by their expanded cost.
func instCost(m *ir.Module, prof *profitability.Result, id ir.InstID) uint32 {
	inst := m.Inst(id)
	if inst.IsCall() {
		return satAdd(1, prof.Get(inst.Callee).TotalCost)
	}
	return 1
}

type edge struct {
	to     ir.InstID
	weight uint64
}

// buildSpawnGraph builds the weighted instruction graph of the
// non-trivial case: a vertex per call/terminator/first-instruction of
// every block reachable from call.
//
// The edge leaving the call vertex is charged from the call itself to the
// end of its block, inclusive of the call — unlike the trivial case, which
// counts strictly between call and join. The asymmetry shifts every
// cross-block distance by the same constant, and which side of the
// accept threshold a borderline site lands on depends on it, so both
// intervals are kept exactly as they are.
func buildSpawnGraph(m *ir.Module, prof *profitability.Result, call ir.InstID) map[ir.InstID][]edge {
	g := make(map[ir.InstID][]edge)
	spawnBlockID := m.Inst(call).Block
	spawnTerm := m.Terminator(spawnBlockID)
	callPos := joinpoints.IndexInBlock(m, call)
	lastPos := len(m.Block(spawnBlockID).Insts) - 1

	addEdge(g, call, spawnTerm.ID, costInclusive(m, prof, spawnBlockID, callPos, lastPos))
	for _, s := range spawnTerm.Succs {
		addEdge(g, spawnTerm.ID, m.Block(s).Insts[0], 0)
	}

	var explored intsets.Sparse
	queue := append([]ir.BlockID(nil), spawnTerm.Succs...)

	for len(queue) > 0 {
		bid := queue[0]
		queue = queue[1:]
		if explored.Has(int(bid)) {
			continue
		}
		explored.Insert(int(bid))

		bb := m.Block(bid)
		first := bb.Insts[0]
		blockLast := len(bb.Insts) - 1

		hi := len(bb.Insts)
		wrapped := bid == spawnBlockID
		if wrapped {
			hi = callPos
		}

		if reader, ok := joinpoints.FindReaderInBlockRange(m, call, bid, 0, hi); ok {
			readerPos := joinpoints.IndexInBlock(m, reader)
			if first != reader {
				addEdge(g, first, reader, costExclusive(m, prof, bid, 0, readerPos))
			}
			continue
		}

		term := m.Terminator(bid)
		upper := blockLast
		if wrapped {
			// No reader found even on this revisit. Only the cost up to
			// (not including) the spawn site is charged, not the whole
			// block: re-entering the loop re-reaches the call rather than
			// running past it again.
			if first != term.ID {
				addEdge(g, first, term.ID, costExclusive(m, prof, bid, 0, callPos))
			}
			continue
		}
		if first != term.ID {
			addEdge(g, first, term.ID, costInclusive(m, prof, bid, 0, upper))
		}
		for _, succ := range term.Succs {
			sb := m.Block(succ)
			addEdge(g, term.ID, sb.Insts[0], 0)
		}
		queue = append(queue, term.Succs...)
	}

	return g
}

// costInclusive sums instCost over block positions [lo, hi] inclusive of
// both ends. Used when the edge's target is itself a block's terminator,
// whose own cost is part of reaching the block's exit.
func costInclusive(m *ir.Module, prof *profitability.Result, b ir.BlockID, lo, hi int) uint64 {
	bb := m.Block(b)
	var total uint64
	for i := lo; i <= hi; i++ {
		total += uint64(instCost(m, prof, bb.Insts[i]))
	}
	return total
}

// costExclusive sums instCost over block positions [lo, hi) — lo
// inclusive, hi exclusive. Used when the edge's target is a mid-block
// join (reader) whose own cost is not charged to reach it.
func costExclusive(m *ir.Module, prof *profitability.Result, b ir.BlockID, lo, hi int) uint64 {
	bb := m.Block(b)
	var total uint64
	for i := lo; i < hi; i++ {
		total += uint64(instCost(m, prof, bb.Insts[i]))
	}
	return total
}

func addEdge(g map[ir.InstID][]edge, from, to ir.InstID, weight uint64) {
	g[from] = append(g[from], edge{to: to, weight: weight})
}

// dijkstra runs single-source shortest paths from src over g. Graphs here
// are a single call site's local CFG neighborhood — small enough that a
// plain O(V^2) selection dijkstra is the right amount of machinery; a
// container/heap frontier would not pay for itself.
func dijkstra(g map[ir.InstID][]edge, src ir.InstID) map[ir.InstID]uint64 {
	const infinity = ^uint64(0)

	dist := map[ir.InstID]uint64{src: 0}
	visited := make(map[ir.InstID]bool)

	for {
		var u ir.InstID
		best := infinity
		found := false
		for v, d := range dist {
			if !visited[v] && d < best {
				best, u, found = d, v, true
			}
		}
		if !found {
			break
		}
		visited[u] = true

		for _, e := range g[u] {
			nd := dist[u] + e.weight
			if cur, ok := dist[e.to]; !ok || nd < cur {
				dist[e.to] = nd
			}
		}
	}
	return dist
}

// aggregate reduces a set of per-join distances to a scalar per the
// configured Aggregator. Mean rounds half-away-from-zero, which changes
// which side of the accept/reject comparison a borderline call lands on,
// so the rounding mode is part of the contract.
func aggregate(distances []uint64, agg Aggregator) uint32 {
	if len(distances) == 0 {
		return 0
	}
	switch agg {
	case Min:
		m := distances[0]
		for _, d := range distances[1:] {
			if d < m {
				m = d
			}
		}
		return clampU32(m)
	case Max:
		m := distances[0]
		for _, d := range distances[1:] {
			if d > m {
				m = d
			}
		}
		return clampU32(m)
	default: // Mean
		var sum uint64
		for _, d := range distances {
			sum += d
		}
		n := uint64(len(distances))
		return clampU32((sum + n/2) / n)
	}
}

func clampU32(v uint64) uint32 {
	if v > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(v)
}
