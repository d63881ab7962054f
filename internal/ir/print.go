// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"
	"io"
)

// WriteModule writes m in the textual form ParseModule reads. Instruction
// results are renamed %t<id> and blocks b<id>, so output from a rewritten
// module is stable across runs but not byte-identical to its input. li may
// be nil if no trip counts should be emitted.
func WriteModule(w io.Writer, m *Module, li *LoopInfo) error {
	pw := &printWriter{w: w, m: m, li: li}
	for _, g := range m.Globals {
		pw.printf("global @%s\n", g.Name)
	}
	if len(m.Globals) > 0 {
		pw.printf("\n")
	}
	for _, fn := range m.Funcs {
		pw.function(fn)
	}
	return pw.err
}

type printWriter struct {
	w   io.Writer
	m   *Module
	li  *LoopInfo
	fn  *Function // function currently being printed
	err error
}

func (pw *printWriter) printf(format string, args ...any) {
	if pw.err != nil {
		return
	}
	_, pw.err = fmt.Fprintf(pw.w, format, args...)
}

func (pw *printWriter) function(fn *Function) {
	pw.fn = fn
	kw := "func"
	if !fn.HasBody() {
		kw = "declare"
	}
	pw.printf("%s @%s(", kw, fn.Name)
	for i, p := range fn.Params {
		if i > 0 {
			pw.printf(", ")
		}
		pw.printf("%s %%%s", typeString(p.Type), paramName(fn, i))
	}
	if fn.Variadic {
		if len(fn.Params) > 0 {
			pw.printf(", ")
		}
		pw.printf("...")
	}
	pw.printf(")")
	if fn.ReturnType.Kind != Void {
		pw.printf(" %s", typeString(fn.ReturnType))
	}
	if !fn.HasBody() {
		pw.printf("\n\n")
		return
	}

	pw.printf(" {\n")
	for _, bid := range fn.Blocks {
		bb := pw.m.Block(bid)
		pw.printf("block b%d", bid)
		if trip, ok := pw.li.TripCount(bid); ok {
			pw.printf(" trip=%d", trip)
		}
		pw.printf(":\n")
		for _, iid := range bb.Insts {
			pw.instruction(pw.m.Inst(iid))
		}
	}
	pw.printf("}\n\n")
}

func (pw *printWriter) instruction(inst *Instruction) {
	pw.printf("  ")
	if inst.HasResult() {
		pw.printf("%%t%d = ", inst.ID)
	}
	switch inst.Op {
	case OpCall:
		pw.printf("call @%s", pw.m.Func(inst.Callee).Name)
		for _, a := range inst.Args {
			pw.printf(" %s", pw.operand(a))
		}
	case OpBr:
		pw.printf("br b%d", inst.Succs[0])
	case OpCondBr:
		pw.printf("condbr %s b%d b%d", pw.operand(inst.Operands[0]), inst.Succs[0], inst.Succs[1])
	case OpRet:
		pw.printf("ret")
		for _, o := range inst.Operands {
			pw.printf(" %s", pw.operand(o))
		}
	case OpStore, OpCAS, OpAtomicRMW:
		pw.printf("%s", opString(inst.Op))
		for _, o := range inst.Operands {
			pw.printf(" %s", pw.operand(o))
		}
	default:
		ty := inst.ResultType
		if inst.Op == OpAlloca && ty.Elem != nil {
			ty = *ty.Elem
		}
		pw.printf("%s %s", opString(inst.Op), typeString(ty))
		for _, o := range inst.Operands {
			pw.printf(" %s", pw.operand(o))
		}
	}
	pw.printf("\n")
}

func (pw *printWriter) operand(op Operand) string {
	switch op.Kind {
	case OperandInst:
		return fmt.Sprintf("%%t%d", op.Inst)
	case OperandParam:
		return "%" + paramName(pw.fn, op.Param)
	case OperandGlobal:
		return "@" + pw.m.Globals[op.Global].Name
	case OperandFunc:
		return "@" + pw.m.Func(op.Func).Name
	default:
		return fmt.Sprintf("%d", op.Const)
	}
}

// paramName falls back to a positional name for synthesized functions
// whose parameters were never named.
func paramName(fn *Function, i int) string {
	if name := fn.Params[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("p%d", i)
}

func opString(op Opcode) string {
	for name, o := range opcodeNames {
		if o == op {
			return name
		}
	}
	return "other"
}

func typeString(t Type) string {
	switch t.Kind {
	case Void:
		return "void"
	case Int:
		return "int"
	case Struct:
		return t.Name
	default:
		return "ptr"
	}
}
