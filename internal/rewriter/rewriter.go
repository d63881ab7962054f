// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rewriter turns the decider's accepted decisions and spawnable's
// synthesized adapters into actual IR mutations. For every accepted call
// site: build the argument-pointer list, insert a call to the frozen
// backend's spawn constructor ahead of the original call, insert a join
// (and, for kernel threads, a destructor) call ahead of every join point,
// redirect every downstream use of the call's result to a load from a
// freshly allocated return-value slot, and finally erase the original
// call.
package rewriter

import (
	"fmt"
	"math/rand"

	"github.com/jamro1149/hydra/internal/decider"
	"github.com/jamro1149/hydra/internal/ir"
	"github.com/jamro1149/hydra/internal/joinpoints"
	"github.com/jamro1149/hydra/internal/spawnable"
)

// maxRuntimeArgs is the runtime's spawn symbol surface: overloaded for 0-8
// opaque-pointer arguments. A request past that is a bug in an earlier
// pass — fitness/profitability never reason about argument count, so
// nothing upstream of here guards against a wider arity.
const maxRuntimeArgs = 8

// threadType is the opaque "thread handle" struct type used only in
// KernelThreads builds, for the thread-local slot passed to the
// constructor, join, and destructor calls.
var threadType = ir.Type{Kind: ir.Struct, Name: "hydra_thread"}

// Rewrite mutates m in place: for every accepted Decision, it wires up the
// matching adapter from adapters. rng supplies the per-call task
// identifiers used by the LightThreads backend; callers that care
// about reproducible output — tests, primarily — should pass a seeded
// *rand.Rand rather than the package-level global source.
func Rewrite(m *ir.Module, decisions []decider.Decision, adapters []spawnable.Adapter, backend joinpoints.Backend, rng *rand.Rand) {
	adapterOf := make(map[ir.FuncID]ir.FuncID, len(adapters))
	for _, a := range adapters {
		adapterOf[a.Original] = a.Func
	}

	b := ir.NewBuilder(m)
	for _, d := range decisions {
		if !d.Accepted {
			continue
		}
		rewriteCallSite(b, m, d, adapterOf, backend, rng)
	}
}

func rewriteCallSite(b *ir.Builder, m *ir.Module, d decider.Decision, adapterOf map[ir.FuncID]ir.FuncID, backend joinpoints.Backend, rng *rand.Rand) {
	call := m.Inst(d.Call)
	adapterFn, ok := adapterOf[call.Callee]
	if !ok {
		panic("rewriter: decider accepted a call whose callee has no synthesized adapter")
	}
	callerFn := m.Func(m.Block(call.Block).Func)

	// The task/thread identifier.
	var taskOperand ir.Operand
	if backend == joinpoints.KernelThreads {
		threadSlot := b.InsertBefore(d.Call, ir.OpAlloca, ir.PointerTo(threadType))
		taskOperand = ir.InstOperand(threadSlot)
	} else {
		taskOperand = ir.ConstOperand(int64(rng.Uint32()))
	}

	ctorArgs := []ir.Operand{taskOperand, ir.FuncOperand(adapterFn)}

	// One argument-pointer per original call argument.
	for _, argOp := range call.Args {
		ctorArgs = append(ctorArgs, spawnArgPointer(b, d.Call, callerFn, argOp, backend))
	}

	// A return-value slot, if the call produces a value.
	var retSlot ir.InstID
	hasRet := call.HasResult()
	if hasRet {
		retSlot = b.InsertBefore(d.Call, ir.OpAlloca, ir.PointerTo(call.ResultType))
		bc := b.InsertBefore(d.Call, ir.OpBitcast, ir.OpaquePtrType, ir.InstOperand(retSlot))
		ctorArgs = append(ctorArgs, wrapForBackend(b, d.Call, ir.InstOperand(bc), backend))
	}

	// The spawn constructor call itself, ahead of the original.
	numArgs := len(ctorArgs) - 2
	if numArgs > maxRuntimeArgs {
		panic("rewriter: adapter arity exceeds the runtime's spawn argument limit")
	}
	ctor := ctorFor(b, backend, numArgs)
	b.CallBefore(d.Call, ctor, ir.VoidType, ctorArgs...)

	// Join (and, for kernel threads, destructor) calls ahead of every
	// join point.
	joinFn := joinFnFor(b, backend)
	var dtorFn ir.FuncID
	if backend == joinpoints.KernelThreads {
		dtorFn = dtorFnFor(b)
	}
	for _, j := range d.Joins {
		b.CallBefore(j, joinFn, ir.VoidType, taskOperand)
		if backend == joinpoints.KernelThreads {
			b.CallBefore(j, dtorFn, ir.VoidType, taskOperand)
		}
	}

	// Redirect every downstream use of the call's result to a load from
	// retSlot, inserted immediately ahead of each consumer.
	if hasRet {
		redirectConsumers(b, m, callerFn, d.Call, call.ResultType, retSlot)
	}

	// The original call is now dead.
	b.Erase(d.Call)
}

// spawnArgPointer builds the ctor-call argument representing one original
// call argument: a pointer-typed argument is reused directly, anything
// else is spilled to a fresh alloca first. Both cases are then bitcast to
// an opaque pointer and, for kernel threads, wrapped in one more level of
// indirection.
func spawnArgPointer(b *ir.Builder, at ir.InstID, callerFn *ir.Function, argOp ir.Operand, backend joinpoints.Backend) ir.Operand {
	ty := operandType(b, callerFn, argOp)

	var castArg ir.Operand
	if ty.IsPointer() {
		castArg = argOp
	} else {
		slot := b.InsertBefore(at, ir.OpAlloca, ir.PointerTo(ty))
		b.InsertBefore(at, ir.OpStore, ir.VoidType, argOp, ir.InstOperand(slot))
		castArg = ir.InstOperand(slot)
	}

	bc := b.InsertBefore(at, ir.OpBitcast, ir.OpaquePtrType, castArg)
	return wrapForBackend(b, at, ir.InstOperand(bc), backend)
}

// wrapForBackend implements the KernelThreads-only extra indirection: the
// runtime's kernel-thread constructor wants pointer-to-opaque-pointer
// arguments, so the already-opaque value is spilled once more and its
// address is what's actually passed.
func wrapForBackend(b *ir.Builder, at ir.InstID, opaque ir.Operand, backend joinpoints.Backend) ir.Operand {
	if backend != joinpoints.KernelThreads {
		return opaque
	}
	slot := b.InsertBefore(at, ir.OpAlloca, ir.PointerTo(ir.OpaquePtrType))
	b.InsertBefore(at, ir.OpStore, ir.VoidType, opaque, ir.InstOperand(slot))
	return ir.InstOperand(slot)
}

// operandType resolves the IR type of an operand in the context of its
// enclosing function. Globals are treated as pointer-shaped — Fitness
// already requires the spawned callee itself to be global-free, but its
// caller, which need not be Functional, may still pass the address of a
// global through as one of the call's own arguments.
func operandType(b *ir.Builder, fn *ir.Function, op ir.Operand) ir.Type {
	switch op.Kind {
	case ir.OperandInst:
		return b.M.Inst(op.Inst).ResultType
	case ir.OperandParam:
		return fn.Params[op.Param].Type
	case ir.OperandGlobal:
		return ir.PointerTo(ir.Type{Kind: ir.Int})
	default:
		return ir.Type{Kind: ir.Int}
	}
}

// redirectConsumers walks every instruction of fn, and for each one (other
// than the call itself) that reads call's result, splices a load from
// retSlot immediately ahead of it and retargets every such reference.
// This covers every downstream reader, not only the ones joinpoints
// happened to pick as join points: a consumer may be a plain mid-block
// use on a path whose join landed elsewhere.
func redirectConsumers(b *ir.Builder, m *ir.Module, fn *ir.Function, call ir.InstID, resultType ir.Type, retSlot ir.InstID) {
	for _, bid := range fn.Blocks {
		bb := m.Block(bid)
		for _, iid := range append([]ir.InstID(nil), bb.Insts...) {
			if iid == call {
				continue
			}
			inst := m.Inst(iid)
			if !ir.ReferencesInst(inst, call) {
				continue
			}
			load := b.InsertBefore(iid, ir.OpLoad, resultType, ir.InstOperand(retSlot))
			ir.ReplaceOperand(inst, call, load)
		}
	}
}

// ctorFor finds or declares the spawn constructor for the given backend
// and argument count, named the way the rest of the runtime surface is.
func ctorFor(b *ir.Builder, backend joinpoints.Backend, numArgs int) ir.FuncID {
	argPtrTy := ir.OpaquePtrType
	taskTy := ir.Type{Kind: ir.Int}
	name := fmt.Sprintf("hydra_spawn%d", numArgs)
	if backend == joinpoints.KernelThreads {
		name = fmt.Sprintf("hydra_spawn_thread%d", numArgs)
		taskTy = ir.PointerTo(threadType)
		argPtrTy = ir.PointerTo(ir.OpaquePtrType)
	}
	if id, ok := b.M.FuncByName(name); ok {
		return id
	}

	params := make([]ir.Param, 0, numArgs+2)
	params = append(params, ir.Param{Name: "task", Type: taskTy})
	params = append(params, ir.Param{Name: "fn", Type: ir.OpaquePtrType})
	for i := 0; i < numArgs; i++ {
		params = append(params, ir.Param{Type: argPtrTy})
	}
	return b.DeclareFunction(name, params, ir.VoidType, false)
}

// joinFnFor finds or declares the runtime's join entry point for backend.
func joinFnFor(b *ir.Builder, backend joinpoints.Backend) ir.FuncID {
	name, taskTy := "hydra_join", ir.Type{Kind: ir.Int}
	if backend == joinpoints.KernelThreads {
		name, taskTy = "hydra_thread_join", ir.PointerTo(threadType)
	}
	if id, ok := b.M.FuncByName(name); ok {
		return id
	}
	return b.DeclareFunction(name, []ir.Param{{Name: "task", Type: taskTy}}, ir.VoidType, false)
}

// dtorFnFor finds or declares the kernel-thread-only destructor entry
// point, which reclaims the OS thread handle after a join.
func dtorFnFor(b *ir.Builder) ir.FuncID {
	const name = "hydra_thread_dtor"
	if id, ok := b.M.FuncByName(name); ok {
		return id
	}
	return b.DeclareFunction(name, []ir.Param{{Name: "task", Type: ir.PointerTo(threadType)}}, ir.VoidType, false)
}
