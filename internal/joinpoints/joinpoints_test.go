// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package joinpoints_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamro1149/hydra/internal/ir"
	"github.com/jamro1149/hydra/internal/joinpoints"
)

type fakeFitness map[ir.FuncID]bool

func (f fakeFitness) IsFunctional(fn ir.FuncID) bool { return f[fn] }

func declareLeaf(b *ir.Builder, name string) ir.FuncID {
	fb := b.DefineFunction(name, nil, ir.Type{Kind: ir.Int}, false)
	fb.Ret(fb.Block(), ir.ConstOperand(0))
	return fb.ID()
}

// TestTrivialReaderInSameBlock is the simplest case: a call immediately
// consumed later in its own block.
func TestTrivialReaderInSameBlock(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	leaf := declareLeaf(b, "leaf")

	caller := b.DefineFunction("caller", nil, ir.VoidType, false)
	entry := caller.Block()
	call := caller.Call(entry, leaf, ir.Type{Kind: ir.Int})
	use := caller.Emit(entry, ir.OpOther, ir.VoidType, ir.InstOperand(call))
	caller.Ret(entry)
	m.Finalize()

	joins := joinpoints.FindJoinPoints(m, call, joinpoints.LightThreads)
	require.Len(t, joins, 1)
	assert.Equal(t, use, joins[0])
}

// TestNoReaderCollapsesToTerminator: nothing reads
// the call's result anywhere in its block, so the join point is the
// block's own terminator.
func TestNoReaderCollapsesToTerminator(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	leaf := declareLeaf(b, "leaf")

	caller := b.DefineFunction("caller", nil, ir.VoidType, false)
	entry := caller.Block()
	call := caller.Call(entry, leaf, ir.Type{Kind: ir.Int})
	ret := caller.Ret(entry)
	m.Finalize()

	joins := joinpoints.FindJoinPoints(m, call, joinpoints.LightThreads)
	require.Len(t, joins, 1)
	assert.Equal(t, ret, joins[0])
}

// TestKernelThreadsAlwaysCollapseToBlockTerminator: regardless of where a reader sits downstream, a
// kernel-thread build's join set is always the spawn block's own
// terminator, because joins there are always synchronous at block exit.
func TestKernelThreadsAlwaysCollapseToBlockTerminator(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	leaf := declareLeaf(b, "leaf")

	caller := b.DefineFunction("caller", nil, ir.VoidType, false)
	entry := caller.Block()
	call := caller.Call(entry, leaf, ir.Type{Kind: ir.Int})
	term := caller.Br(entry, entry) // placeholder target fixed up below

	next := caller.Block()
	caller.Emit(next, ir.OpOther, ir.VoidType, ir.InstOperand(call))
	caller.Ret(next)

	// Fix the branch target now that `next` exists.
	m.Inst(term).Succs = []ir.BlockID{next}
	m.Finalize()

	joins := joinpoints.FindJoinPoints(m, call, joinpoints.KernelThreads)
	require.Len(t, joins, 1)
	assert.Equal(t, m.Terminator(entry).ID, joins[0])
}

// TestNestedJoinSetAcrossDiamond: in a light-thread build, a
// call in the entry block of a diamond, with no reader in the entry block,
// must produce one join point per path through the diamond — the reader in
// the "then" arm and the terminator of the "else" arm, which itself never
// reads the result.
func TestNestedJoinSetAcrossDiamond(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	leaf := declareLeaf(b, "leaf")

	caller := b.DefineFunction("caller", nil, ir.VoidType, false)
	entry := caller.Block()
	call := caller.Call(entry, leaf, ir.Type{Kind: ir.Int})

	thenB := caller.Block()
	elseB := caller.Block()
	caller.CondBr(entry, ir.ConstOperand(1), thenB, elseB)

	thenUse := caller.Emit(thenB, ir.OpOther, ir.VoidType, ir.InstOperand(call))
	caller.Ret(thenB)

	elseRet := caller.Ret(elseB)

	m.Finalize()

	joins := joinpoints.FindJoinPoints(m, call, joinpoints.LightThreads)
	assert.ElementsMatch(t, []ir.InstID{thenUse, elseRet}, joins)
}

// TestRunOrdersCallsInReverseProgramOrder: within one function, Run
// records call sites in reverse program order, so the decider evaluates a
// later call before an earlier one. Both callees are leaves with no calls
// of their own, so only the root's records appear.
func TestRunOrdersCallsInReverseProgramOrder(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	left := declareLeaf(b, "left")
	right := declareLeaf(b, "right")

	root := b.DefineFunction("root", nil, ir.VoidType, false)
	entry := root.Block()
	callLeft := root.Call(entry, left, ir.Type{Kind: ir.Int})
	callRight := root.Call(entry, right, ir.Type{Kind: ir.Int})
	root.Ret(entry)
	m.Finalize()

	cg := ir.BuildCallGraph(m)
	fit := fakeFitness{left: true, right: true, root.ID(): true}
	records := joinpoints.Run(m, cg, fit, joinpoints.LightThreads)

	require.Len(t, records, 2)
	// Reverse program order: the later call (callRight) is recorded first.
	assert.Equal(t, callRight, records[0].Call)
	assert.Equal(t, callLeft, records[1].Call)
}

// TestNonFunctionalCalleeSkipped verifies only calls to Functional callees
// are ever recorded.
func TestNonFunctionalCalleeSkipped(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	leaf := declareLeaf(b, "leaf")

	caller := b.DefineFunction("caller", nil, ir.VoidType, false)
	entry := caller.Block()
	caller.Call(entry, leaf, ir.Type{Kind: ir.Int})
	caller.Ret(entry)
	m.Finalize()

	cg := ir.BuildCallGraph(m)
	fit := fakeFitness{} // nothing is Functional
	records := joinpoints.Run(m, cg, fit, joinpoints.LightThreads)
	assert.Empty(t, records)
}
