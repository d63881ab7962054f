// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fitness_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jamro1149/hydra/internal/fitness"
	"github.com/jamro1149/hydra/internal/ir"
)

// TestFitnessFixedPoint classifies five functions that each trip a
// different rule; only one (noneOfTheAbove) should end up Functional.
func TestFitnessFixedPoint(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	g := b.DeclareGlobal("counter")

	pointerArgs := b.DefineFunction("pointerArgs", []ir.Param{{Name: "i", Type: ir.PointerTo(ir.Type{Kind: ir.Int})}}, ir.VoidType, false)
	pointerArgs.Ret(pointerArgs.Block())

	refsGlobal := b.DefineFunction("refsGlobal", nil, ir.Type{Kind: ir.Int}, false)
	rgEntry := refsGlobal.Block()
	refsGlobal.Emit(rgEntry, ir.OpLoad, ir.Type{Kind: ir.Int}, ir.GlobalOperand(g))
	refsGlobal.Ret(rgEntry, ir.ConstOperand(0))

	opaque := b.DeclareFunction("opaque", nil, ir.VoidType, false)

	callsUnfit := b.DefineFunction("callsUnfit", nil, ir.VoidType, false)
	cuEntry := callsUnfit.Block()
	callsUnfit.Call(cuEntry, refsGlobal.ID(), ir.Type{Kind: ir.Int})
	callsUnfit.Ret(cuEntry)

	none := b.DefineFunction("noneOfTheAbove", nil, ir.VoidType, false)
	none.Ret(none.Block())

	m.Finalize()

	cg := ir.BuildCallGraph(m)
	result := fitness.Run(m, cg)

	assert.Equal(t, fitness.Unknown, result.Get(pointerArgs.ID()))
	assert.Equal(t, fitness.Unknown, result.Get(refsGlobal.ID()))
	assert.Equal(t, fitness.Unknown, result.Get(opaque))
	assert.Equal(t, fitness.Unknown, result.Get(callsUnfit.ID()))
	assert.Equal(t, fitness.Functional, result.Get(none.ID()))
}

func TestFitnessVariadicIsUnknown(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	f := b.DefineFunction("variadicFn", nil, ir.VoidType, true)
	f.Ret(f.Block())
	m.Finalize()

	result := fitness.Run(m, ir.BuildCallGraph(m))
	assert.Equal(t, fitness.Unknown, result.Get(f.ID()))
}

func TestFitnessMonotonicityAtFixedPoint(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	leaf := b.DefineFunction("leaf", nil, ir.VoidType, false)
	leaf.Ret(leaf.Block())
	caller := b.DefineFunction("caller", nil, ir.VoidType, false)
	ce := caller.Block()
	caller.Call(ce, leaf.ID(), ir.VoidType)
	caller.Ret(ce)
	m.Finalize()
	cg := ir.BuildCallGraph(m)

	r1 := fitness.Run(m, cg)
	r2 := fitness.Run(m, cg)
	assert.Equal(t, r1.Get(leaf.ID()), r2.Get(leaf.ID()))
	assert.Equal(t, r1.Get(caller.ID()), r2.Get(caller.ID()))
	assert.Equal(t, fitness.Functional, r1.Get(leaf.ID()))
	assert.Equal(t, fitness.Functional, r1.Get(caller.ID()))
}

// TestFitnessUnknownAbsentFromMapByDefault verifies the documented failure
// semantics: a function never entered into the map (no body) is treated
// as Unknown by downstream queries without panicking.
func TestFitnessUnknownAbsentFromMapByDefault(t *testing.T) {
	var r *fitness.Result
	assert.Equal(t, fitness.Unknown, r.Get(42))
}
