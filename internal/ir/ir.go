// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ir is the whole-module intermediate representation that the rest
// of Hydra consumes: a low-level SSA form of functions built of basic
// blocks built of instructions, with calls, memory accesses, phis/bitcasts
// and global references distinguished the way the passes need them to be.
//
// Construction of this IR (parsing, scalar evolution, alias analysis) is
// someone else's problem in the real system; here it is represented
// directly so the passes have something concrete to operate on. Every
// Function, BasicBlock and Instruction carries a small integer ID, stable
// for the lifetime of the Module, so that cross-references between the
// independent analyses in this repo (FunStats keyed by FuncID, JoinSets
// keyed by InstID) never need to chase pointers through a possibly-mutated
// graph.
package ir

// FuncID identifies a Function within a Module.
type FuncID int

// BlockID identifies a BasicBlock within a Module.
type BlockID int

// InstID identifies an Instruction within a Module.
type InstID int

// Linkage describes whether a function has a body Hydra can analyze.
type Linkage int

const (
	// Internal functions have a body and may be rewritten.
	Internal Linkage = iota
	// External functions are declarations only; Hydra never spawns them
	// and never considers them Functional.
	External
)

// TypeKind distinguishes the handful of type shapes the passes care about.
type TypeKind int

const (
	Void TypeKind = iota
	Int
	Pointer
	OpaquePointer
	Struct
)

// Type is a minimal type representation: enough to answer "is this a
// pointer", "what does it point to", and "how wide is it", which is all
// the passes ever need.
type Type struct {
	Kind TypeKind
	Elem *Type // valid when Kind == Pointer
	Name string
}

// IsPointer reports whether t is some flavor of pointer.
func (t Type) IsPointer() bool {
	return t.Kind == Pointer || t.Kind == OpaquePointer
}

// VoidType is the canonical void/unit type.
var VoidType = Type{Kind: Void}

// OpaquePtrType is the canonical "void*"-equivalent used by adapters and
// the runtime's spawn/join surface.
var OpaquePtrType = Type{Kind: OpaquePointer, Name: "ptr"}

// PointerTo builds a pointer-to-t type.
func PointerTo(t Type) Type {
	elem := t
	return Type{Kind: Pointer, Elem: &elem}
}

// Param is one formal parameter of a Function.
type Param struct {
	Name string
	Type Type
}

// Global is a module-level global variable or alias. Any instruction whose
// operand list names one is a "global reference" per the Fitness seed rule.
type Global struct {
	Name string
}

// OperandKind distinguishes what an Operand refers to.
type OperandKind int

const (
	OperandInst OperandKind = iota
	OperandParam
	OperandGlobal
	OperandConst
	// OperandFunc names a function used as a first-class value rather than
	// as the direct callee of an OpCall — the rewriter's one use of this is
	// passing a synthesized adapter's address to the runtime's spawn
	// constructor.
	OperandFunc
)

// Operand is a use of a value by an instruction.
type Operand struct {
	Kind   OperandKind
	Inst   InstID // valid when Kind == OperandInst
	Param  int    // valid when Kind == OperandParam: index into Function.Params
	Global int    // valid when Kind == OperandGlobal: index into Module.Globals
	Const  int64  // valid when Kind == OperandConst
	Func   FuncID // valid when Kind == OperandFunc
}

// InstOperand returns an Operand referring to the result of inst.
func InstOperand(inst InstID) Operand { return Operand{Kind: OperandInst, Inst: inst} }

// ParamOperand returns an Operand referring to parameter i of the enclosing function.
func ParamOperand(i int) Operand { return Operand{Kind: OperandParam, Param: i} }

// GlobalOperand returns an Operand referring to global g.
func GlobalOperand(g int) Operand { return Operand{Kind: OperandGlobal, Global: g} }

// ConstOperand returns an Operand referring to a constant integer value.
func ConstOperand(v int64) Operand { return Operand{Kind: OperandConst, Const: v} }

// FuncOperand returns an Operand referring to f's address as a value, e.g.
// the adapter function passed to the runtime's spawn constructor.
func FuncOperand(f FuncID) Operand { return Operand{Kind: OperandFunc, Func: f} }

// Opcode identifies the shape of an Instruction.
type Opcode int

const (
	OpOther     Opcode = iota // any emitting instruction not otherwise distinguished
	OpAlloca                  // stack allocation
	OpLoad                    // memory access
	OpStore                   // memory access
	OpCAS                     // atomic compare-and-swap, memory access
	OpAtomicRMW               // atomic read-modify-write, memory access
	OpBitcast                 // non-emitting
	OpPhi                     // non-emitting
	OpCall                    // call
	OpBr                      // unconditional branch, terminator
	OpCondBr                  // conditional branch, terminator
	OpRet                     // return, terminator
)

// Instruction is one IR instruction within a BasicBlock.
type Instruction struct {
	ID    InstID
	Block BlockID

	Op Opcode

	// Operands is every value this instruction reads, in the order the
	// source program names them. For OpCall, Args below holds the call
	// arguments specifically; Operands may additionally include operands
	// unrelated to the call itself (e.g. an address operand of a Store).
	Operands []Operand

	// Callee and Args are valid when Op == OpCall.
	Callee FuncID
	Args   []Operand

	// ResultType is the type of the value this instruction produces, or
	// VoidType if it produces none (e.g. a Store, or a void call).
	ResultType Type

	// Succs holds the branch targets when this instruction is a
	// terminator (OpBr: one target, OpCondBr: two, OpRet: none).
	Succs []BlockID
}

// IsTerminator reports whether i ends a basic block.
func (i *Instruction) IsTerminator() bool {
	switch i.Op {
	case OpBr, OpCondBr, OpRet:
		return true
	}
	return false
}

// IsCall reports whether i is a call site.
func (i *Instruction) IsCall() bool { return i.Op == OpCall }

// IsMemoryAccess reports whether i is a stack allocation, load, store, or
// atomic operation.
func (i *Instruction) IsMemoryAccess() bool {
	switch i.Op {
	case OpAlloca, OpLoad, OpStore, OpCAS, OpAtomicRMW:
		return true
	}
	return false
}

// IsNonEmitting reports whether i generates no machine code (bitcast or phi).
func (i *Instruction) IsNonEmitting() bool {
	return i.Op == OpBitcast || i.Op == OpPhi
}

// IsEmitting is the complement of IsNonEmitting.
func (i *Instruction) IsEmitting() bool { return !i.IsNonEmitting() }

// ReferencesGlobal reports whether any operand of i names a module-level
// global variable or alias.
func (i *Instruction) ReferencesGlobal() bool {
	for _, op := range i.Operands {
		if op.Kind == OperandGlobal {
			return true
		}
	}
	for _, op := range i.Args {
		if op.Kind == OperandGlobal {
			return true
		}
	}
	return false
}

// HasResult reports whether i produces a usable value.
func (i *Instruction) HasResult() bool {
	return i.ResultType.Kind != Void
}

// BasicBlock is an ordered sequence of instructions ending in a terminator.
type BasicBlock struct {
	ID    BlockID
	Func  FuncID
	Insts []InstID // in program order; last element is always a terminator once built

	// Preds is populated by Module.Finalize from every block's terminator
	// successors.
	Preds []BlockID
}

// Function is a module member: either a definition (Linkage == Internal,
// with a body) or a declaration (Linkage == External, no body).
type Function struct {
	ID         FuncID
	Name       string
	Params     []Param
	ReturnType Type
	Variadic   bool
	Linkage    Linkage
	Blocks     []BlockID // empty for External functions
}

// HasBody reports whether fn can be analyzed and, eventually, rewritten.
func (fn *Function) HasBody() bool { return fn.Linkage == Internal && len(fn.Blocks) > 0 }

// Module is a whole compilation unit: a set of named functions and the
// globals they may reference, plus the arenas that back every stable ID.
type Module struct {
	Funcs   []*Function
	Blocks  []*BasicBlock
	Insts   []*Instruction
	Globals []*Global

	funcIndex map[string]FuncID
}

// NewModule returns an empty module ready for construction via the Builder.
func NewModule() *Module {
	return &Module{funcIndex: make(map[string]FuncID)}
}

// Func resolves a FuncID to its Function. Panics on an out-of-range ID,
// since that is always a bug in an earlier pass, per the invariant that IDs
// are stable arena indices.
func (m *Module) Func(id FuncID) *Function { return m.Funcs[id] }

// Block resolves a BlockID to its BasicBlock.
func (m *Module) Block(id BlockID) *BasicBlock { return m.Blocks[id] }

// Inst resolves an InstID to its Instruction.
func (m *Module) Inst(id InstID) *Instruction { return m.Insts[id] }

// FuncByName looks up a function by name. The bool is false if no such
// function exists in the module.
func (m *Module) FuncByName(name string) (FuncID, bool) {
	if id, ok := m.funcIndex[name]; ok {
		return id, true
	}
	// Functions added through the Builder after Finalize (adapters, runtime
	// declarations) are not in the index; find them by scanning.
	for _, fn := range m.Funcs {
		if fn.Name == name {
			return fn.ID, true
		}
	}
	return 0, false
}

// Terminator returns the terminating instruction of b.
func (m *Module) Terminator(b BlockID) *Instruction {
	bb := m.Block(b)
	if len(bb.Insts) == 0 {
		return nil
	}
	return m.Inst(bb.Insts[len(bb.Insts)-1])
}

// InOrder reports whether a comes strictly before b among the sibling
// instructions of a single basic block. Both instructions must belong to
// the same block.
func (m *Module) InOrder(a, b InstID) bool {
	ia, ib := m.Inst(a), m.Inst(b)
	if ia.Block != ib.Block {
		panic("ir: InOrder called on instructions from different blocks")
	}
	bb := m.Block(ia.Block)
	for _, id := range bb.Insts {
		if id == a {
			return true
		}
		if id == b {
			return false
		}
	}
	panic("ir: instruction not found in its own block")
}

// Finalize computes predecessor lists for every block and the func-name
// index, and must be called once after construction and before any pass
// runs. The Builder never calls it; ParseModule calls it once parsing is
// done.
func (m *Module) Finalize() {
	for _, fn := range m.Funcs {
		m.funcIndex[fn.Name] = fn.ID
	}
	for _, bb := range m.Blocks {
		bb.Preds = nil
	}
	for _, bb := range m.Blocks {
		term := m.Terminator(bb.ID)
		if term == nil {
			continue
		}
		for _, succ := range term.Succs {
			sb := m.Block(succ)
			sb.Preds = append(sb.Preds, bb.ID)
		}
	}
}
