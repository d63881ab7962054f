// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package joinpoints computes, for every call site whose callee is
// Functional, the set of earliest instructions that consume the call's
// return value along every forward control-flow path. Each such
// instruction is the latest point at which the callee's effect must have
// been observed on its path, and therefore the latest sound place to
// synchronize with a spawned version of the call.
//
// The search checks the call's own block first, then falls back to a BFS
// over successor blocks, stopping at the first reader or at a path's
// terminator.
package joinpoints

import (
	"golang.org/x/tools/container/intsets"

	"github.com/jamro1149/hydra/internal/ir"
)

// Backend selects which of the two threading models is frozen into the
// build. It changes how join sets are computed: kernel-thread builds
// always collapse to the spawn block's terminator.
type Backend int

const (
	LightThreads Backend = iota
	KernelThreads
)

// Fitness is the subset of fitness.Result JoinPoints needs.
type Fitness interface {
	IsFunctional(fn ir.FuncID) bool
}

// Record pairs a call site with its join set.
type Record struct {
	Call  ir.InstID
	Joins []ir.InstID
}

// Run computes join sets for every call site in m whose callee is
// Functional, for the given cg (used only to derive SCC order) and
// backend. The returned list is ordered callees-before-callers (SCC
// post-order) and, within one function, reverse program order over calls.
// The decider relies on this order: an accepted inner call lowers its
// enclosing function's cost before any outer caller of that function is
// itself considered.
func Run(m *ir.Module, cg *ir.CallGraph, fit Fitness, backend Backend) []Record {
	var all []ir.FuncID
	for _, fn := range m.Funcs {
		all = append(all, fn.ID)
	}
	sccs := ir.SCCs(cg, all)

	var out []Record
	for _, scc := range sccs {
		for _, fid := range scc {
			fn := m.Func(fid)
			if !fn.HasBody() {
				continue
			}
			out = append(out, collectFunctionCalls(m, fn, fit, backend)...)
		}
	}
	return out
}

// collectFunctionCalls walks fn's blocks in reverse program order,
// emitting one Record per call whose callee is Functional.
func collectFunctionCalls(m *ir.Module, fn *ir.Function, fit Fitness, backend Backend) []Record {
	var out []Record
	for bi := len(fn.Blocks) - 1; bi >= 0; bi-- {
		bb := m.Block(fn.Blocks[bi])
		for ii := len(bb.Insts) - 1; ii >= 0; ii-- {
			inst := m.Inst(bb.Insts[ii])
			if !inst.IsCall() {
				continue
			}
			if !fit.IsFunctional(inst.Callee) {
				continue
			}
			out = append(out, Record{Call: inst.ID, Joins: FindJoinPoints(m, inst.ID, backend)})
		}
	}
	return out
}

// FindJoinPoints computes the join set for a single call. It is exported
// so the decider package's tests can construct cases directly against it.
func FindJoinPoints(m *ir.Module, call ir.InstID, backend Backend) []ir.InstID {
	spawn := m.Inst(call)
	spawnBlock := m.Block(spawn.Block)

	// Trivial case: a reader in the call's own block after it.
	if reader, ok := findReaderInRange(m, call, spawnBlock.Insts, indexOf(spawnBlock.Insts, call)+1, len(spawnBlock.Insts)); ok {
		return []ir.InstID{reader}
	}

	// Exit-block case, or a kernel-thread build, which always collapses
	// joins to the spawn block's terminator.
	term := m.Terminator(spawn.Block)
	if backend == KernelThreads || len(term.Succs) == 0 {
		return []ir.InstID{term.ID}
	}

	// Light-thread, non-trivial case: BFS over successors.
	return bfsJoinSearch(m, call, spawnBlock)
}

func bfsJoinSearch(m *ir.Module, call ir.InstID, spawnBlock *ir.BasicBlock) []ir.InstID {
	var joins []ir.InstID
	var explored intsets.Sparse
	var queue []ir.BlockID

	term := m.Terminator(spawnBlock.ID)
	queue = append(queue, term.Succs...)

	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]

		if explored.Has(int(b)) {
			continue
		}
		explored.Insert(int(b))

		bb := m.Block(b)
		// If we've wrapped back around to the spawn block, only scan up to
		// the original call.
		upper := len(bb.Insts)
		if b == spawnBlock.ID {
			upper = indexOf(bb.Insts, call)
		}

		if reader, ok := findReaderInRange(m, call, bb.Insts, 0, upper); ok {
			joins = append(joins, reader)
			continue
		}

		bterm := m.Terminator(b)
		if len(bterm.Succs) > 0 {
			queue = append(queue, bterm.Succs...)
		} else {
			joins = append(joins, bterm.ID)
		}
	}

	return joins
}

// findReaderInRange returns the first instruction in insts[lo:hi] that
// reads the return value of call. For a void call nothing ever matches
// and the search degenerates to path terminators.
func findReaderInRange(m *ir.Module, call ir.InstID, insts []ir.InstID, lo, hi int) (ir.InstID, bool) {
	if lo < 0 || lo > hi || hi > len(insts) {
		return 0, false
	}
	callInst := m.Inst(call)
	if !callInst.HasResult() {
		return 0, false
	}
	for i := lo; i < hi; i++ {
		inst := m.Inst(insts[i])
		if readsOperand(inst, call) {
			return inst.ID, true
		}
	}
	return 0, false
}

func readsOperand(inst *ir.Instruction, target ir.InstID) bool {
	for _, op := range inst.Operands {
		if op.Kind == ir.OperandInst && op.Inst == target {
			return true
		}
	}
	for _, op := range inst.Args {
		if op.Kind == ir.OperandInst && op.Inst == target {
			return true
		}
	}
	return false
}

// FindReaderInBlockRange returns the first instruction among block's
// instructions at index [lo, hi) that reads call's result. It is exported
// so the decider can rebuild this same block-local reader search when
// constructing its spawn-to-join cost graph, rather than duplicating the
// reader-matching rules in readsOperand.
func FindReaderInBlockRange(m *ir.Module, call ir.InstID, block ir.BlockID, lo, hi int) (ir.InstID, bool) {
	bb := m.Block(block)
	return findReaderInRange(m, call, bb.Insts, lo, hi)
}

// IndexInBlock returns the program-order index of id within its own block.
func IndexInBlock(m *ir.Module, id ir.InstID) int {
	bb := m.Block(m.Inst(id).Block)
	return indexOf(bb.Insts, id)
}

func indexOf(insts []ir.InstID, id ir.InstID) int {
	for i, x := range insts {
		if x == id {
			return i
		}
	}
	return -1
}
