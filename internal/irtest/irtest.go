// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package irtest builds the synthetic modules the end-to-end tests run
// the pipeline over: functions with a chosen instruction weight, chains of
// calls, and branchy CFG shapes.
package irtest

import "github.com/jamro1149/hydra/internal/ir"

// EmitWork appends n generic emitting instructions to block.
func EmitWork(fb *ir.FuncBuilder, block ir.BlockID, n int) {
	for i := 0; i < n; i++ {
		fb.Emit(block, ir.OpOther, ir.VoidType)
	}
}

// Leaf defines a pointer-free, global-free function of n emitting
// instructions plus its return, so its total cost is n+1 and fitness will
// classify it Functional.
func Leaf(b *ir.Builder, name string, n int) ir.FuncID {
	fb := b.DefineFunction(name, nil, ir.VoidType, false)
	entry := fb.Block()
	EmitWork(fb, entry, n)
	fb.Ret(entry)
	return fb.ID()
}

// CallChain defines a void function that calls each of callees in order
// and returns. The returned call sites are in program order.
func CallChain(b *ir.Builder, name string, callees []ir.FuncID) (ir.FuncID, []ir.InstID) {
	fb := b.DefineFunction(name, nil, ir.VoidType, false)
	entry := fb.Block()
	calls := make([]ir.InstID, len(callees))
	for i, c := range callees {
		calls[i] = fb.Call(entry, c, ir.VoidType)
	}
	fb.Ret(entry)
	return fb.ID(), calls
}
