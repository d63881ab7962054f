// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rewriter_test

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamro1149/hydra/internal/decider"
	"github.com/jamro1149/hydra/internal/ir"
	"github.com/jamro1149/hydra/internal/joinpoints"
	"github.com/jamro1149/hydra/internal/rewriter"
	"github.com/jamro1149/hydra/internal/spawnable"
)

// TestLightThreadSpawnInsertsCtorJoinAndErasesCall covers the baseline
// light-thread path: a spawn constructor call appears ahead of where the
// original call was, a join call appears ahead of the join point, and the
// original call is gone.
func TestLightThreadSpawnInsertsCtorJoinAndErasesCall(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	callee := b.DefineFunction("work", []ir.Param{{Type: ir.Type{Kind: ir.Int}}}, ir.VoidType, false)
	calleeEntry := callee.Block()
	callee.Ret(calleeEntry)

	caller := b.DefineFunction("caller", nil, ir.VoidType, false)
	entry := caller.Block()
	call := caller.Call(entry, callee.ID(), ir.VoidType, ir.ConstOperand(1))
	ret := caller.Ret(entry)
	m.Finalize()

	adapters := spawnable.Synthesize(m, []ir.FuncID{callee.ID()})
	decisions := []decider.Decision{{Call: call, Joins: []ir.InstID{ret}, Accepted: true}}

	rewriter.Rewrite(m, decisions, adapters, joinpoints.LightThreads, rand.New(rand.NewSource(1)))

	bb := m.Block(entry)
	var sawCtorCall, sawJoinCall, sawOriginalCall bool
	for _, iid := range bb.Insts {
		inst := m.Inst(iid)
		if inst.Op != ir.OpCall {
			continue
		}
		if inst.Callee == callee.ID() {
			sawOriginalCall = true
			continue
		}
		fn := m.Func(inst.Callee)
		switch {
		case strings.HasPrefix(fn.Name, "hydra_spawn"):
			sawCtorCall = true
		case strings.HasPrefix(fn.Name, "hydra_join"):
			sawJoinCall = true
		}
	}
	assert.False(t, sawOriginalCall, "the original call must be erased")
	assert.True(t, sawCtorCall, "a spawn constructor call must be inserted")
	assert.True(t, sawJoinCall, "a join call must be inserted ahead of the join point")
}

// TestReturnValueConsumersRedirectedToLoad: a call whose
// result is consumed by two later instructions in different basic blocks.
// Both consumers must end up reading a load from the return-value slot
// instead of the (now erased) call.
func TestReturnValueConsumersRedirectedToLoad(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	callee := b.DefineFunction("compute", nil, ir.Type{Kind: ir.Int}, false)
	calleeEntry := callee.Block()
	callee.Ret(calleeEntry, ir.ConstOperand(0))

	caller := b.DefineFunction("caller", nil, ir.VoidType, false)
	entry := caller.Block()
	call := caller.Call(entry, callee.ID(), ir.Type{Kind: ir.Int})

	thenB := caller.Block()
	elseB := caller.Block()
	caller.CondBr(entry, ir.ConstOperand(1), thenB, elseB)

	use1 := caller.Emit(thenB, ir.OpOther, ir.VoidType, ir.InstOperand(call))
	caller.Ret(thenB)
	use2 := caller.Emit(elseB, ir.OpOther, ir.VoidType, ir.InstOperand(call))
	caller.Ret(elseB)
	m.Finalize()

	adapters := spawnable.Synthesize(m, []ir.FuncID{callee.ID()})
	decisions := []decider.Decision{{Call: call, Joins: []ir.InstID{use1, use2}, Accepted: true}}

	rewriter.Rewrite(m, decisions, adapters, joinpoints.LightThreads, rand.New(rand.NewSource(1)))

	for _, consumer := range []ir.InstID{use1, use2} {
		inst := m.Inst(consumer)
		require.Len(t, inst.Operands, 1)
		require.Equal(t, ir.OperandInst, inst.Operands[0].Kind)
		loaded := m.Inst(inst.Operands[0].Inst)
		assert.Equal(t, ir.OpLoad, loaded.Op)
		assert.NotEqual(t, call, inst.Operands[0].Inst, "operand must no longer name the erased call")
	}
}

// TestKernelThreadsUseThreadHandleAndJoinDtor covers the KernelThreads
// backend's extra surface: a thread-handle-typed constructor, and a
// destructor call alongside every join.
func TestKernelThreadsUseThreadHandleAndJoinDtor(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	callee := b.DefineFunction("work", nil, ir.VoidType, false)
	calleeEntry := callee.Block()
	callee.Ret(calleeEntry)

	caller := b.DefineFunction("caller", nil, ir.VoidType, false)
	entry := caller.Block()
	call := caller.Call(entry, callee.ID(), ir.VoidType)
	ret := caller.Ret(entry)
	m.Finalize()

	adapters := spawnable.Synthesize(m, []ir.FuncID{callee.ID()})
	decisions := []decider.Decision{{Call: call, Joins: []ir.InstID{ret}, Accepted: true}}

	rewriter.Rewrite(m, decisions, adapters, joinpoints.KernelThreads, rand.New(rand.NewSource(1)))

	ctorID, ok := m.FuncByName("hydra_spawn_thread0")
	require.True(t, ok)
	joinID, ok := m.FuncByName("hydra_thread_join")
	require.True(t, ok)
	dtorID, ok := m.FuncByName("hydra_thread_dtor")
	require.True(t, ok)

	bb := m.Block(entry)
	var sawCtor, sawJoin, sawDtor, sawThreadAlloca bool
	for _, iid := range bb.Insts {
		inst := m.Inst(iid)
		if inst.Op == ir.OpAlloca && inst.ResultType.Elem != nil && inst.ResultType.Elem.Name == "hydra_thread" {
			sawThreadAlloca = true
		}
		if inst.Op != ir.OpCall {
			continue
		}
		switch inst.Callee {
		case ctorID:
			sawCtor = true
		case joinID:
			sawJoin = true
		case dtorID:
			sawDtor = true
		}
	}
	assert.True(t, sawThreadAlloca, "a thread-handle slot must be allocated")
	assert.True(t, sawCtor)
	assert.True(t, sawJoin)
	assert.True(t, sawDtor)
}

// TestUnacceptedDecisionLeavesCallAlone makes sure a rejected decision in
// the same batch is a no-op.
func TestUnacceptedDecisionLeavesCallAlone(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	callee := b.DefineFunction("work", nil, ir.VoidType, false)
	calleeEntry := callee.Block()
	callee.Ret(calleeEntry)

	caller := b.DefineFunction("caller", nil, ir.VoidType, false)
	entry := caller.Block()
	call := caller.Call(entry, callee.ID(), ir.VoidType)
	ret := caller.Ret(entry)
	m.Finalize()

	decisions := []decider.Decision{{Call: call, Joins: []ir.InstID{ret}, Accepted: false}}
	rewriter.Rewrite(m, decisions, nil, joinpoints.LightThreads, rand.New(rand.NewSource(1)))

	bb := m.Block(entry)
	require.Len(t, bb.Insts, 2)
	assert.Equal(t, call, bb.Insts[0])
}
