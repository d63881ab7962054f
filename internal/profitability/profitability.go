// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package profitability aggregates per-function instruction costs,
// honouring calls and statically-known loop trip counts. The call graph is
// processed one strongly connected component at a time, leaves first:
// compute raw per-block counts, multiply by any known trip count, sum into
// the function, add already-processed callees' cost, then walk back over
// the SCC once more to add exactly one level of recursive unrolling.
// Deeper recursive cost is undecidable; one level is a fixed
// under-approximation that stays monotone in program size.
package profitability

import "github.com/jamro1149/hydra/internal/ir"

// maxTripCount is the saturation point for loop-count multiplication.
// Trip counts are unchecked inputs, so a huge count times a big block
// could wrap a plain uint32; saturating at MaxUint32 keeps every FunStats
// count from wrapping while still being far larger than any real trip
// count times any real block size.
const maxTripCount = ^uint32(0)

func satMul(a uint32, n uint64) uint32 {
	if n == 0 {
		return 0
	}
	product := uint64(a) * n
	if product > uint64(maxTripCount) {
		return maxTripCount
	}
	return uint32(product)
}

func satAdd(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > uint64(maxTripCount) {
		return maxTripCount
	}
	return uint32(sum)
}

// FunStats is the cost profile of a single function.
type FunStats struct {
	NumInstructions  uint32
	NumEmittingInsts uint32
	NumMemAccesses   uint32
	NumFunctionCalls map[ir.FuncID]uint32
	TotalCost        uint32
	Spawnable        bool
}

func zeroStats() *FunStats {
	return &FunStats{NumFunctionCalls: make(map[ir.FuncID]uint32)}
}

// Fitness is the one query this package needs from the fitness pass, kept
// as an interface so the dependency stays one-directional.
type Fitness interface {
	IsFunctional(fn ir.FuncID) bool
}

// Result is the FunStats for every function in a module, keyed by FuncID.
// Functions absent from the map — a body-less declaration a caller still
// names as a callee, say — are treated as zero cost by Get rather than
// being an error.
type Result struct {
	stats map[ir.FuncID]*FunStats
}

// Get returns the FunStats for fn, or a zeroed record if fn was never
// processed (e.g. it is a body-less declaration).
func (r *Result) Get(fn ir.FuncID) *FunStats {
	s, ok := r.stats[fn]
	if !ok {
		return zeroStats()
	}
	return s
}

// set installs s as the stats record for fn, replacing any existing one.
func (r *Result) set(fn ir.FuncID, s *FunStats) { r.stats[fn] = s }

// Release drops the stats map. Later queries degrade to zeroed records.
func (r *Result) Release() { r.stats = nil }

// Run computes FunStats for every function in m, processing the call
// graph's strongly connected components in post-order, leaves first, so a
// callee's cost is final before any of its callers is summed.
func Run(m *ir.Module, cg *ir.CallGraph, li *ir.LoopInfo, fit Fitness) *Result {
	r := &Result{stats: make(map[ir.FuncID]*FunStats)}

	var all []ir.FuncID
	for _, fn := range m.Funcs {
		all = append(all, fn.ID)
	}
	sccs := ir.SCCs(cg, all)

	for _, scc := range sccs {
		processSCC(m, li, fit, r, scc)
	}
	return r
}

func processSCC(m *ir.Module, li *ir.LoopInfo, fit Fitness, r *Result, scc []ir.FuncID) {
	inSCC := make(map[ir.FuncID]bool, len(scc))
	for _, f := range scc {
		inSCC[f] = true
	}

	// Step 1: per-function cost ignoring same-SCC (i.e. mutually
	// recursive) callees, which contribute 0 at this stage.
	for _, fid := range scc {
		fn := m.Func(fid)
		if !fn.HasBody() {
			r.set(fid, zeroStats())
			continue
		}

		fs := calculateFunStats(m, li, fn)

		fs.TotalCost = fs.NumEmittingInsts
		for callee, mult := range fs.NumFunctionCalls {
			if inSCC[callee] {
				continue // contributes 0 here; fixed up below
			}
			calleeStats := r.Get(callee)
			fs.TotalCost = satAdd(fs.TotalCost, satMul(calleeStats.TotalCost, uint64(mult)))
		}
		fs.Spawnable = fit.IsFunctional(fid)
		r.set(fid, fs)
	}

	// Step 2: recursion fix-up. Add exactly one more level of unrolling
	// for every same-SCC edge.
	extra := make(map[ir.FuncID]uint32, len(scc))
	for _, caller := range scc {
		callerStats := r.Get(caller)
		for callee, mult := range callerStats.NumFunctionCalls {
			if !inSCC[callee] {
				continue
			}
			calleeStats := r.Get(callee)
			extra[caller] = satAdd(extra[caller], satMul(calleeStats.TotalCost, uint64(mult)))
		}
	}
	for caller, add := range extra {
		s := r.Get(caller)
		s.TotalCost = satAdd(s.TotalCost, add)
	}
}

// calculateFunStats computes NumInstructions/NumEmittingInsts/
// NumMemAccesses/NumFunctionCalls for fn, applying loop-trip-count
// multiplication per block before summing into the function total. It
// never sets TotalCost or Spawnable; the caller does that once it knows
// which callees have already been processed.
func calculateFunStats(m *ir.Module, li *ir.LoopInfo, fn *ir.Function) *FunStats {
	ret := zeroStats()
	for _, bid := range fn.Blocks {
		bb := m.Block(bid)
		var bbInsts, bbEmitting, bbMem uint32
		bbCalls := make(map[ir.FuncID]uint32)

		for _, iid := range bb.Insts {
			inst := m.Inst(iid)
			bbInsts++
			if inst.IsEmitting() {
				bbEmitting++
			}
			if inst.IsMemoryAccess() {
				bbMem++
			}
			if inst.IsCall() {
				bbCalls[inst.Callee]++
			}
		}

		if trip, ok := li.TripCount(bid); ok {
			bbInsts = satMul(bbInsts, trip)
			bbEmitting = satMul(bbEmitting, trip)
			bbMem = satMul(bbMem, trip)
			for callee, n := range bbCalls {
				bbCalls[callee] = satMul(n, trip)
			}
		}

		ret.NumInstructions = satAdd(ret.NumInstructions, bbInsts)
		ret.NumEmittingInsts = satAdd(ret.NumEmittingInsts, bbEmitting)
		ret.NumMemAccesses = satAdd(ret.NumMemAccesses, bbMem)
		for callee, n := range bbCalls {
			ret.NumFunctionCalls[callee] = satAdd(ret.NumFunctionCalls[callee], n)
		}
	}
	return ret
}
