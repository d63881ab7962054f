// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamro1149/hydra/internal/fitness"
	"github.com/jamro1149/hydra/internal/ir"
	"github.com/jamro1149/hydra/internal/irtest"
	"github.com/jamro1149/hydra/internal/pipeline"
)

// TestEndToEndAcceptsOnlyProfitableCalls runs the whole pipeline over a
// main that calls, in order, two heavy and three light or badly-placed
// callees. Only the heavy calls with enough remaining caller work should
// be spawned: a heavy call just before return has nothing to overlap
// with, and a light call never repays the spawn overhead.
func TestEndToEndAcceptsOnlyProfitableCalls(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	f := irtest.Leaf(b, "fSpawn", 10000)
	g := irtest.Leaf(b, "gLeave", 10)
	h := irtest.Leaf(b, "hSpawn", 10000)
	i := irtest.Leaf(b, "iLeave", 10000)
	j := irtest.Leaf(b, "jLeave", 10)
	mainID, _ := irtest.CallChain(b, "main", []ir.FuncID{f, g, h, i, j})
	m.Finalize()

	res, err := pipeline.Run(m, ir.NewLoopInfo(), pipeline.Config{Seed: 1})
	require.NoError(t, err)

	accepted := make(map[string]bool)
	for _, d := range res.Decisions {
		if d.Accepted {
			accepted[m.Func(m.Inst(d.Call).Callee).Name] = true
		}
	}
	want := map[string]bool{"fSpawn": true, "hSpawn": true}
	if diff := cmp.Diff(want, accepted); diff != "" {
		t.Errorf("accepted call sites mismatch (-want +got):\n%s", diff)
	}

	// Each accepted callee got exactly one adapter.
	require.Len(t, res.Adapters, 2)
	for _, a := range res.Adapters {
		adapter := m.Func(a.Func)
		assert.Equal(t, "_Spawnable_"+m.Func(a.Original).Name, adapter.Name)
	}

	// The accepted calls are gone from main's body; spawn and join calls
	// to the runtime surface replaced them.
	var directCalls, runtimeCalls int
	mainFn := m.Func(mainID)
	for _, bid := range mainFn.Blocks {
		for _, iid := range m.Block(bid).Insts {
			inst := m.Inst(iid)
			if !inst.IsCall() {
				continue
			}
			switch inst.Callee {
			case f, h:
				directCalls++
			case g, i, j:
				// rejected calls stay
			default:
				runtimeCalls++
			}
		}
	}
	assert.Zero(t, directCalls, "accepted calls must be erased")
	assert.NotZero(t, runtimeCalls, "spawn/join calls must be inserted")
}

// TestAcceptedDecisionLowersCallerCost: accepting a site must decrement
// the enclosing function's total cost by exactly the computed saving.
func TestAcceptedDecisionLowersCallerCost(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	heavy := irtest.Leaf(b, "heavy", 10000)
	also := irtest.Leaf(b, "also", 10000)
	mainID, _ := irtest.CallChain(b, "main", []ir.FuncID{heavy, also})
	m.Finalize()

	res, err := pipeline.Run(m, ir.NewLoopInfo(), pipeline.Config{Seed: 1})
	require.NoError(t, err)

	var saved uint32
	for _, d := range res.Decisions {
		if d.Accepted {
			saved += d.SerialCost - d.ParallelCost
		}
	}
	require.NotZero(t, saved, "at least one site must be accepted")

	// Undisturbed cost would be emitting insts of main plus both callees.
	undisturbed := uint32(3) + 2*uint32(10001)
	assert.Equal(t, undisturbed-saved, res.Stats.Get(mainID).TotalCost)
}

// TestRunRecoversPassPanics: a module that trips a pass invariant must
// surface as an error, not a crash.
func TestRunRecoversPassPanics(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)

	// A call naming a function that does not exist in the module violates
	// the IR contract every pass assumes.
	fb := b.DefineFunction("broken", nil, ir.VoidType, false)
	block := fb.Block()
	fb.Call(block, ir.FuncID(42), ir.VoidType)
	fb.Ret(block)
	m.Finalize()

	_, err := pipeline.Run(m, ir.NewLoopInfo(), pipeline.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "internal error")
}

// TestReleaseDegradesToDefaults: after Release, queries return the
// documented conservative answers.
func TestReleaseDegradesToDefaults(t *testing.T) {
	m := ir.NewModule()
	b := ir.NewBuilder(m)
	leaf := irtest.Leaf(b, "leaf", 5)
	m.Finalize()

	res, err := pipeline.Run(m, ir.NewLoopInfo(), pipeline.Config{})
	require.NoError(t, err)
	require.Equal(t, fitness.Functional, res.Fitness.Get(leaf))
	require.NotZero(t, res.Stats.Get(leaf).TotalCost)

	res.Release()
	assert.Equal(t, fitness.Unknown, res.Fitness.Get(leaf))
	assert.Zero(t, res.Stats.Get(leaf).TotalCost)
}
