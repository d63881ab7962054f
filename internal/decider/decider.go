// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package decider runs shortest-path cost analysis on the control-flow
// subgraph between a call and its join set, comparing serial vs. parallel
// cost to accept or reject each candidate: build a small weighted graph
// over the call and the instructions reachable from it, run Dijkstra from
// the call, and aggregate the distances to every join vertex to get the
// cost an accepted spawn would leave running concurrently with its caller.
package decider

import (
	"golang.org/x/tools/container/intsets"

	"github.com/jamro1149/hydra/internal/ir"
	"github.com/jamro1149/hydra/internal/joinpoints"
	"github.com/jamro1149/hydra/internal/profitability"
)

// Aggregator selects how SpawnToJoinCost reduces the set of per-join
// Dijkstra distances to a single scalar. Mean is the default.
type Aggregator int

const (
	Mean Aggregator = iota
	Min
	Max
)

// Decision records the accept/reject outcome for one candidate call site.
type Decision struct {
	Call         ir.InstID
	Joins        []ir.InstID
	Accepted     bool
	SerialCost   uint32
	ParallelCost uint32
}

// spawnCost and syncCost are the two platform constants of the cost
// model, frozen per build by which Backend is selected. Starting a kernel
// thread is an order of magnitude pricier than handing a job to the
// user-space pool.
func spawnCost(backend joinpoints.Backend) uint32 {
	if backend == joinpoints.KernelThreads {
		return 1000
	}
	return 100
}

func syncCost(joinpoints.Backend) uint32 { return 0 }

// Run evaluates every candidate in records — already ordered
// callees-before-callers and, within a function, reverse program order by
// joinpoints.Run — and returns one Decision per record in the same order.
//
// Accepted sites have their enclosing function's TotalCost decremented in
// place through prof, via the same pointer aliasing profitability.Result.Get
// already exposes. The ordering guarantee on records is exactly what makes
// this correct: an outer call evaluated later in the same walk sees the
// reduced cost an inner accepted call already left behind.
func Run(m *ir.Module, prof *profitability.Result, records []joinpoints.Record, backend joinpoints.Backend, agg Aggregator) []Decision {
	out := make([]Decision, 0, len(records))
	for _, rec := range records {
		d := evaluate(m, prof, rec, backend, agg)
		out = append(out, d)
		if d.Accepted {
			enclosing := m.Block(m.Inst(rec.Call).Block).Func
			stats := prof.Get(enclosing)
			stats.TotalCost = satSub(stats.TotalCost, d.SerialCost-d.ParallelCost)
		}
	}
	return out
}

func evaluate(m *ir.Module, prof *profitability.Result, rec joinpoints.Record, backend joinpoints.Backend, agg Aggregator) Decision {
	call := m.Inst(rec.Call)
	calleeCost := prof.Get(call.Callee).TotalCost
	callerCost := SpawnToJoinCost(m, prof, rec.Call, rec.Joins, agg)

	serial := satAdd(calleeCost, callerCost)
	parallel := satAdd(satAdd(spawnCost(backend), maxU32(calleeCost, callerCost)), syncCost(backend))

	return Decision{
		Call:         rec.Call,
		Joins:        rec.Joins,
		Accepted:     serial > parallel,
		SerialCost:   serial,
		ParallelCost: parallel,
	}
}

// FunctionsToSpawn returns the distinct callees among accepted decisions,
// in stable ascending-FuncID order: the set of functions the adapter
// synthesizer must produce thunks for.
func FunctionsToSpawn(m *ir.Module, decisions []Decision) []ir.FuncID {
	var seen intsets.Sparse
	var out []ir.FuncID
	for _, d := range decisions {
		if !d.Accepted {
			continue
		}
		callee := m.Inst(d.Call).Callee
		if seen.Insert(int(callee)) {
			out = append(out, callee)
		}
	}
	sortFuncIDs(out)
	return out
}

func sortFuncIDs(ids []ir.FuncID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

func satAdd(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > uint64(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(sum)
}

func satSub(a, b uint32) uint32 {
	if b >= a {
		return 0
	}
	return a - b
}

func maxU32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
