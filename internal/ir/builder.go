// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

// Builder provides an imperative API for constructing or extending a
// Module. It is used both by test fixtures (see internal/irtest) and, more
// importantly, by the Rewriter and the adapter synthesizer, which append
// brand-new functions and instructions to an already-analyzed module.
type Builder struct {
	M *Module
}

// NewBuilder wraps m for incremental construction.
func NewBuilder(m *Module) *Builder { return &Builder{M: m} }

// DeclareGlobal adds a new global and returns its index for use in
// GlobalOperand.
func (b *Builder) DeclareGlobal(name string) int {
	b.M.Globals = append(b.M.Globals, &Global{Name: name})
	return len(b.M.Globals) - 1
}

// FuncBuilder accumulates the blocks and instructions of a single function.
type FuncBuilder struct {
	b  *Builder
	fn *Function
}

// DeclareFunction adds a function declaration (no body, External linkage).
func (b *Builder) DeclareFunction(name string, params []Param, ret Type, variadic bool) FuncID {
	fn := &Function{
		Name:       name,
		Params:     params,
		ReturnType: ret,
		Variadic:   variadic,
		Linkage:    External,
	}
	fn.ID = FuncID(len(b.M.Funcs))
	b.M.Funcs = append(b.M.Funcs, fn)
	return fn.ID
}

// DefineFunction begins building a function with a body.
func (b *Builder) DefineFunction(name string, params []Param, ret Type, variadic bool) *FuncBuilder {
	fn := &Function{
		Name:       name,
		Params:     params,
		ReturnType: ret,
		Variadic:   variadic,
		Linkage:    Internal,
	}
	fn.ID = FuncID(len(b.M.Funcs))
	b.M.Funcs = append(b.M.Funcs, fn)
	return &FuncBuilder{b: b, fn: fn}
}

// ID returns the FuncID of the function under construction.
func (fb *FuncBuilder) ID() FuncID { return fb.fn.ID }

// funcBuilderFor reopens an already-registered definition for body
// construction; the parser registers every signature before it reaches
// any body.
func (b *Builder) funcBuilderFor(fn *Function) *FuncBuilder {
	return &FuncBuilder{b: b, fn: fn}
}

// Block starts (and returns the ID of) a new basic block appended to the
// function.
func (fb *FuncBuilder) Block() BlockID {
	bb := &BasicBlock{Func: fb.fn.ID}
	bb.ID = BlockID(len(fb.b.M.Blocks))
	fb.b.M.Blocks = append(fb.b.M.Blocks, bb)
	fb.fn.Blocks = append(fb.fn.Blocks, bb.ID)
	return bb.ID
}

// emit appends inst to block and returns its assigned ID.
func (fb *FuncBuilder) emit(block BlockID, inst *Instruction) InstID {
	inst.ID = InstID(len(fb.b.M.Insts))
	inst.Block = block
	fb.b.M.Insts = append(fb.b.M.Insts, inst)
	bb := fb.b.M.Block(block)
	bb.Insts = append(bb.Insts, inst.ID)
	return inst.ID
}

// Emit appends a plain (non-terminator, non-call) instruction, such as an
// OpOther/OpAlloca/OpLoad/OpStore/OpCAS/OpAtomicRMW/OpBitcast/OpPhi.
func (fb *FuncBuilder) Emit(block BlockID, op Opcode, result Type, operands ...Operand) InstID {
	return fb.emit(block, &Instruction{Op: op, ResultType: result, Operands: operands})
}

// Call appends a call instruction invoking callee with args, returning the
// call's own InstID (usable as an operand if the callee returns a value).
func (fb *FuncBuilder) Call(block BlockID, callee FuncID, result Type, args ...Operand) InstID {
	return fb.emit(block, &Instruction{Op: OpCall, Callee: callee, Args: args, ResultType: result})
}

// Ret appends a return terminator.
func (fb *FuncBuilder) Ret(block BlockID, operands ...Operand) InstID {
	return fb.emit(block, &Instruction{Op: OpRet, ResultType: VoidType, Operands: operands})
}

// Br appends an unconditional branch terminator.
func (fb *FuncBuilder) Br(block BlockID, target BlockID) InstID {
	return fb.emit(block, &Instruction{Op: OpBr, ResultType: VoidType, Succs: []BlockID{target}})
}

// CondBr appends a conditional branch terminator.
func (fb *FuncBuilder) CondBr(block BlockID, cond Operand, thenBlock, elseBlock BlockID) InstID {
	return fb.emit(block, &Instruction{Op: OpCondBr, ResultType: VoidType, Operands: []Operand{cond}, Succs: []BlockID{thenBlock, elseBlock}})
}

// splice inserts inst into at's block immediately before at, assigning it a
// fresh arena slot. It is the primitive underneath InsertBefore/CallBefore:
// the rewriter never appends, it always threads new instructions in ahead
// of a fixed point (the original call, or a join point) discovered by an
// earlier pass.
func (b *Builder) splice(at InstID, inst *Instruction) InstID {
	target := b.M.Inst(at)
	inst.ID = InstID(len(b.M.Insts))
	inst.Block = target.Block
	b.M.Insts = append(b.M.Insts, inst)

	bb := b.M.Block(target.Block)
	idx := indexOf(bb.Insts, at)
	bb.Insts = append(bb.Insts, 0)
	copy(bb.Insts[idx+1:], bb.Insts[idx:])
	bb.Insts[idx] = inst.ID
	return inst.ID
}

// InsertBefore splices a plain (non-call, non-terminator) instruction into
// at's block immediately ahead of it.
func (b *Builder) InsertBefore(at InstID, op Opcode, result Type, operands ...Operand) InstID {
	return b.splice(at, &Instruction{Op: op, ResultType: result, Operands: operands})
}

// CallBefore splices a call instruction into at's block immediately ahead
// of it.
func (b *Builder) CallBefore(at InstID, callee FuncID, result Type, args ...Operand) InstID {
	return b.splice(at, &Instruction{Op: OpCall, Callee: callee, Args: args, ResultType: result})
}

// Erase removes inst from its block's instruction order. The arena slot in
// Module.Insts is left in place — every other InstID in the module stays
// valid — only the block's own walk order forgets it. Nothing may
// reference a just-erased call's result: ReplaceOperand is required to
// have retargeted every such use first.
func (b *Builder) Erase(inst InstID) {
	target := b.M.Inst(inst)
	bb := b.M.Block(target.Block)
	idx := indexOf(bb.Insts, inst)
	bb.Insts = append(bb.Insts[:idx], bb.Insts[idx+1:]...)
}

// ReplaceOperand rewrites every operand of inst that names oldTarget as an
// instruction result to instead name newTarget. Used by the rewriter to
// redirect a call's downstream consumers to the return-value load inserted
// immediately ahead of them.
func ReplaceOperand(inst *Instruction, oldTarget, newTarget InstID) {
	retarget := func(ops []Operand) {
		for i := range ops {
			if ops[i].Kind == OperandInst && ops[i].Inst == oldTarget {
				ops[i].Inst = newTarget
			}
		}
	}
	retarget(inst.Operands)
	retarget(inst.Args)
}

// ReferencesInst reports whether inst reads target's result, through
// either Operands or Args.
func ReferencesInst(inst *Instruction, target InstID) bool {
	for _, op := range inst.Operands {
		if op.Kind == OperandInst && op.Inst == target {
			return true
		}
	}
	for _, op := range inst.Args {
		if op.Kind == OperandInst && op.Inst == target {
			return true
		}
	}
	return false
}

func indexOf(insts []InstID, id InstID) int {
	for i, x := range insts {
		if x == id {
			return i
		}
	}
	panic("ir: instruction not found in its own block")
}
