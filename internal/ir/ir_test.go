// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamro1149/hydra/internal/ir"
)

func buildDiamond(t *testing.T) (*ir.Module, ir.FuncID, ir.InstID) {
	t.Helper()
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	leaf := b.DefineFunction("leaf", nil, ir.Type{Kind: ir.Int}, false)
	leafEntry := leaf.Block()
	leaf.Ret(leafEntry, ir.ConstOperand(1))

	fb := b.DefineFunction("main", nil, ir.VoidType, false)
	entry := fb.Block()
	left := fb.Block()
	right := fb.Block()
	merge := fb.Block()

	call := fb.Call(entry, leaf.ID(), ir.Type{Kind: ir.Int})
	fb.CondBr(entry, ir.ConstOperand(0), left, right)
	fb.Br(left, merge)
	fb.Br(right, merge)
	use := fb.Emit(merge, ir.OpOther, ir.VoidType, ir.InstOperand(call))
	fb.Ret(merge)

	m.Finalize()
	return m, fb.ID(), use
}

func TestInOrder(t *testing.T) {
	m, mainFn, _ := buildDiamond(t)
	entry := m.Func(mainFn).Blocks[0]
	bb := m.Block(entry)
	require.Len(t, bb.Insts, 2)

	call, br := bb.Insts[0], bb.Insts[1]
	assert.True(t, m.InOrder(call, br))
	assert.False(t, m.InOrder(br, call))
	assert.Panics(t, func() {
		leafBlock := m.Funcs[0].Blocks[0]
		m.InOrder(call, m.Block(leafBlock).Insts[0])
	})
}

func TestFinalizeComputesPreds(t *testing.T) {
	m, mainFn, _ := buildDiamond(t)
	fn := m.Func(mainFn)
	merge := fn.Blocks[3]
	assert.ElementsMatch(t, []ir.BlockID{fn.Blocks[1], fn.Blocks[2]}, m.Block(merge).Preds)
}

func TestInstructionCategories(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	fb := b.DefineFunction("f", []ir.Param{{Name: "p", Type: ir.Type{Kind: ir.Int}}}, ir.VoidType, false)
	entry := fb.Block()
	alloca := fb.Emit(entry, ir.OpAlloca, ir.PointerTo(ir.Type{Kind: ir.Int}))
	phi := fb.Emit(entry, ir.OpPhi, ir.Type{Kind: ir.Int})
	fb.Ret(entry)
	m.Finalize()

	assert.True(t, m.Inst(alloca).IsMemoryAccess())
	assert.True(t, m.Inst(alloca).IsEmitting())
	assert.True(t, m.Inst(phi).IsNonEmitting())
	assert.False(t, m.Inst(phi).IsEmitting())
}

func TestBuildCallGraphAndSCCs(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	leaf := b.DefineFunction("leaf", nil, ir.VoidType, false)
	leaf.Ret(leaf.Block())

	mid := b.DefineFunction("mid", nil, ir.VoidType, false)
	midEntry := mid.Block()
	mid.Call(midEntry, leaf.ID(), ir.VoidType)
	mid.Ret(midEntry)

	top := b.DefineFunction("top", nil, ir.VoidType, false)
	topEntry := top.Block()
	top.Call(topEntry, mid.ID(), ir.VoidType)
	top.Ret(topEntry)

	m.Finalize()
	cg := ir.BuildCallGraph(m)

	var all []ir.FuncID
	for _, fn := range m.Funcs {
		all = append(all, fn.ID)
	}
	sccs := ir.SCCs(cg, all)
	require.Len(t, sccs, 3)

	pos := make(map[ir.FuncID]int)
	for i, comp := range sccs {
		for _, f := range comp {
			pos[f] = i
		}
	}
	assert.Less(t, pos[leaf.ID()], pos[mid.ID()])
	assert.Less(t, pos[mid.ID()], pos[top.ID()])
}

func TestSCCsHandleRecursion(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	f := b.DefineFunction("f", nil, ir.VoidType, false)
	g := b.DefineFunction("g", nil, ir.VoidType, false)

	fEntry := f.Block()
	f.Call(fEntry, g.ID(), ir.VoidType)
	f.Ret(fEntry)

	gEntry := g.Block()
	g.Call(gEntry, f.ID(), ir.VoidType)
	g.Ret(gEntry)

	m.Finalize()
	cg := ir.BuildCallGraph(m)
	sccs := ir.SCCs(cg, []ir.FuncID{f.ID(), g.ID()})
	require.Len(t, sccs, 1)
	assert.ElementsMatch(t, []ir.FuncID{f.ID(), g.ID()}, sccs[0])
}
