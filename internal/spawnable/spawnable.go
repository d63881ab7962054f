// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package spawnable synthesizes a uniform opaque-pointer adapter thunk
// for every function the decider accepted for spawning. For each
// candidate F it builds a new internal-linkage function "_Spawnable_F"
// whose parameters are all opaque pointers, that reinterprets or loads
// through each one to recover F's real arguments, calls F, and, if F
// returns a value, stores the result through a trailing opaque pointer
// before returning. The adapter is the thin bridge between the runtime's
// uniform spawn signature and F's true signature.
package spawnable

import "github.com/jamro1149/hydra/internal/ir"

// Adapter pairs a synthesized adapter function with the original function
// it unpacks arguments for and invokes.
type Adapter struct {
	Original ir.FuncID
	Func     ir.FuncID
}

// Synthesize builds one adapter per entry of funcs — the decider's
// functions-to-spawn set — appending each new function to m, and returns
// the Original -> Func pairing the rewriter needs to find the right
// adapter for an accepted call site.
//
// Every id in funcs must name a function with a body: the decider never
// accepts a call whose callee lacks one, since fitness never marks a
// bodyless function Functional.
func Synthesize(m *ir.Module, funcs []ir.FuncID) []Adapter {
	b := ir.NewBuilder(m)
	out := make([]Adapter, 0, len(funcs))
	for _, fid := range funcs {
		out = append(out, Adapter{Original: fid, Func: synthesizeOne(b, fid)})
	}
	return out
}

func synthesizeOne(b *ir.Builder, fid ir.FuncID) ir.FuncID {
	fn := b.M.Func(fid)
	returnsVal := fn.ReturnType.Kind != ir.Void

	numArgs := len(fn.Params)
	if returnsVal {
		numArgs++
	}
	params := make([]ir.Param, numArgs)
	for i := range params {
		params[i] = ir.Param{Type: ir.OpaquePtrType}
	}

	fb := b.DefineFunction("_Spawnable_"+fn.Name, params, ir.VoidType, false)
	entry := fb.Block()

	args := make([]ir.Operand, len(fn.Params))
	for i, p := range fn.Params {
		opaque := ir.ParamOperand(i)
		if p.Type.IsPointer() {
			// A pointer-typed parameter is reinterpreted as that type
			// directly.
			cast := fb.Emit(entry, ir.OpBitcast, p.Type, opaque)
			args[i] = ir.InstOperand(cast)
		} else {
			// A non-pointer parameter is reinterpreted as a pointer to its
			// type and loaded through.
			ptr := fb.Emit(entry, ir.OpBitcast, ir.PointerTo(p.Type), opaque)
			load := fb.Emit(entry, ir.OpLoad, p.Type, ir.InstOperand(ptr))
			args[i] = ir.InstOperand(load)
		}
	}

	call := fb.Call(entry, fid, fn.ReturnType, args...)

	if returnsVal {
		// Store F's result through the trailing opaque pointer,
		// reinterpreted as a pointer to F's return type.
		retSlot := ir.ParamOperand(len(fn.Params))
		ptr := fb.Emit(entry, ir.OpBitcast, ir.PointerTo(fn.ReturnType), retSlot)
		fb.Emit(entry, ir.OpStore, ir.VoidType, ir.InstOperand(call), ir.InstOperand(ptr))
	}

	fb.Ret(entry)
	return fb.ID()
}
