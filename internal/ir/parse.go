// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseModule reads the textual module format emitted by WriteModule and
// produces a Module plus the loop trip counts annotated on its blocks.
//
// The format is line-oriented:
//
//	# comment
//	global @flag
//	declare @ext(int, ptr) int
//	func @main(int %n) int {
//	block entry:
//	  %v = call @ext %n 5
//	  br loop
//	block loop trip=10:
//	  %w = other int %v
//	  ret %w
//	}
//
// Instruction results and parameters share the %name namespace within a
// function; globals are @name; bare integers are constants. Value-producing
// opcodes name their result type right after the opcode (for alloca, the
// pointee type). A call's result type is its callee's return type.
func ParseModule(r io.Reader) (*Module, *LoopInfo, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}

	p := &parser{
		m:     NewModule(),
		li:    NewLoopInfo(),
		lines: lines,
	}
	p.b = NewBuilder(p.m)
	if err := p.run(); err != nil {
		return nil, nil, err
	}
	p.m.Finalize()
	return p.m, p.li, nil
}

type parser struct {
	m     *Module
	li    *LoopInfo
	b     *Builder
	lines []string

	globals map[string]int
}

// pendingInst is one body line whose operands are resolved only after
// every instruction of the function exists, so that a phi may name a
// value defined later in the block.
type pendingInst struct {
	line int
	id   InstID
	toks []string // operand tokens, already stripped of op/type/labels
}

func (p *parser) errf(line int, format string, args ...any) error {
	return fmt.Errorf("line %d: %s", line+1, fmt.Sprintf(format, args...))
}

func (p *parser) run() error {
	p.globals = make(map[string]int)

	// Pass 1: declarations and function signatures, so call operands can
	// name functions defined further down.
	for i, raw := range p.lines {
		toks := tokenize(raw)
		if len(toks) == 0 {
			continue
		}
		switch toks[0] {
		case "global":
			if len(toks) != 2 {
				return p.errf(i, "global wants exactly one name")
			}
			p.globals[toks[1]] = p.b.DeclareGlobal(strings.TrimPrefix(toks[1], "@"))
		case "declare", "func":
			if err := p.parseSignature(i, toks); err != nil {
				return err
			}
		}
	}

	// Pass 2: function bodies.
	for i := 0; i < len(p.lines); i++ {
		toks := tokenize(p.lines[i])
		if len(toks) == 0 || toks[0] != "func" {
			continue
		}
		end, err := p.parseBody(i, toks[1])
		if err != nil {
			return err
		}
		i = end
	}
	return nil
}

// parseSignature registers the function named by a declare or func line.
func (p *parser) parseSignature(line int, toks []string) error {
	decl := toks[0] == "declare"
	rest := strings.Join(toks[1:], " ")

	open := strings.IndexByte(rest, '(')
	cls := strings.LastIndexByte(rest, ')')
	if open < 0 || cls < open {
		return p.errf(line, "malformed signature")
	}
	name := strings.TrimSpace(rest[:open])
	if !strings.HasPrefix(name, "@") {
		return p.errf(line, "function name must start with @")
	}

	var params []Param
	variadic := false
	for _, f := range strings.Split(rest[open+1:cls], ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if f == "..." {
			variadic = true
			continue
		}
		pt := strings.Fields(f)
		ty, err := parseType(pt[0])
		if err != nil {
			return p.errf(line, "%v", err)
		}
		pr := Param{Type: ty}
		if len(pt) > 1 {
			pr.Name = strings.TrimPrefix(pt[1], "%")
		}
		params = append(params, pr)
	}

	tail := strings.Fields(rest[cls+1:])
	ret := VoidType
	if len(tail) > 0 && tail[0] != "{" {
		ty, err := parseType(tail[0])
		if err != nil {
			return p.errf(line, "%v", err)
		}
		ret = ty
	}

	if decl {
		p.b.DeclareFunction(strings.TrimPrefix(name, "@"), params, ret, variadic)
	} else {
		// The body is attached in pass 2; registering the definition now
		// reserves the FuncID in file order.
		p.b.DefineFunction(strings.TrimPrefix(name, "@"), params, ret, variadic)
	}
	return nil
}

// parseBody consumes the lines of one function, from its "func" line to
// the matching "}", and returns the index of that closing line.
func (p *parser) parseBody(start int, nameTok string) (int, error) {
	name := strings.TrimPrefix(strings.SplitN(nameTok, "(", 2)[0], "@")
	fid, err := p.funcByName(start, name)
	if err != nil {
		return 0, err
	}
	fn := p.m.Func(fid)
	fb := p.b.funcBuilderFor(fn)

	// Collect the body's lines and pre-create every block so branches may
	// target labels that appear later.
	end := -1
	blocks := make(map[string]BlockID)
	type bodyLine struct {
		line  int
		toks  []string
		block string
	}
	var body []bodyLine
	current := ""
	for i := start + 1; i < len(p.lines); i++ {
		toks := tokenize(p.lines[i])
		if len(toks) == 0 {
			continue
		}
		if toks[0] == "}" {
			end = i
			break
		}
		if toks[0] == "block" {
			label, trip, err := parseBlockHeader(toks)
			if err != nil {
				return 0, p.errf(i, "%v", err)
			}
			bid := fb.Block()
			blocks[label] = bid
			if trip > 0 {
				p.li.TripCounts[bid] = trip
			}
			current = label
			continue
		}
		if current == "" {
			return 0, p.errf(i, "instruction outside any block")
		}
		body = append(body, bodyLine{line: i, toks: toks, block: current})
	}
	if end < 0 {
		return 0, p.errf(start, "unterminated function body")
	}

	// Create instructions in order, deferring operand resolution so a phi
	// may read a value defined later.
	values := make(map[string]InstID)
	var pending []pendingInst
	for _, bl := range body {
		id, operandToks, err := p.createInst(bl.line, fb, blocks[bl.block], blocks, bl.toks, values)
		if err != nil {
			return 0, err
		}
		pending = append(pending, pendingInst{line: bl.line, id: id, toks: operandToks})
	}
	for _, pi := range pending {
		if err := p.resolveOperands(pi, fn, values); err != nil {
			return 0, err
		}
	}
	return end, nil
}

// createInst builds one instruction with its opcode, result type, callee,
// and successors fixed, but operands still as raw tokens.
func (p *parser) createInst(line int, fb *FuncBuilder, block BlockID, blocks map[string]BlockID, toks []string, values map[string]InstID) (InstID, []string, error) {
	result := ""
	if len(toks) >= 2 && toks[1] == "=" {
		result = strings.TrimPrefix(toks[0], "%")
		toks = toks[2:]
	}
	if len(toks) == 0 {
		return 0, nil, p.errf(line, "empty instruction")
	}
	op, ok := opcodeNames[toks[0]]
	if !ok {
		return 0, nil, p.errf(line, "unknown opcode %q", toks[0])
	}
	rest := toks[1:]

	var id InstID
	var operands []string
	switch op {
	case OpCall:
		if len(rest) == 0 || !strings.HasPrefix(rest[0], "@") {
			return 0, nil, p.errf(line, "call wants a @function")
		}
		callee, err := p.funcByName(line, strings.TrimPrefix(rest[0], "@"))
		if err != nil {
			return 0, nil, err
		}
		id = fb.Call(block, callee, p.m.Func(callee).ReturnType)
		operands = rest[1:]
	case OpBr:
		if len(rest) != 1 {
			return 0, nil, p.errf(line, "br wants one label")
		}
		target, ok := blocks[rest[0]]
		if !ok {
			return 0, nil, p.errf(line, "unknown block %q", rest[0])
		}
		id = fb.Br(block, target)
	case OpCondBr:
		if len(rest) != 3 {
			return 0, nil, p.errf(line, "condbr wants a value and two labels")
		}
		thenB, ok1 := blocks[rest[1]]
		elseB, ok2 := blocks[rest[2]]
		if !ok1 || !ok2 {
			return 0, nil, p.errf(line, "unknown branch target")
		}
		id = fb.CondBr(block, Operand{}, thenB, elseB)
		operands = rest[:1]
	case OpRet:
		id = fb.Ret(block)
		operands = rest
	case OpStore, OpCAS, OpAtomicRMW:
		id = fb.Emit(block, op, VoidType)
		operands = rest
	default: // other, alloca, load, bitcast, phi
		if len(rest) == 0 {
			return 0, nil, p.errf(line, "%s wants a type", toks[0])
		}
		ty, err := parseType(rest[0])
		if err != nil {
			return 0, nil, p.errf(line, "%v", err)
		}
		if op == OpAlloca {
			ty = PointerTo(ty)
		}
		id = fb.Emit(block, op, ty)
		operands = rest[1:]
	}

	if result != "" {
		values[result] = id
	}
	return id, operands, nil
}

// resolveOperands turns the deferred operand tokens of one instruction
// into Operand values now that every %name of the function is known.
func (p *parser) resolveOperands(pi pendingInst, fn *Function, values map[string]InstID) error {
	inst := p.m.Inst(pi.id)
	for _, tok := range pi.toks {
		op, err := p.resolveOperand(pi.line, tok, fn, values)
		if err != nil {
			return err
		}
		if inst.Op == OpCall {
			inst.Args = append(inst.Args, op)
		} else if inst.Op == OpCondBr {
			// The parsed condition replaces the placeholder left by createInst.
			inst.Operands[0] = op
		} else {
			inst.Operands = append(inst.Operands, op)
		}
	}
	return nil
}

func (p *parser) resolveOperand(line int, tok string, fn *Function, values map[string]InstID) (Operand, error) {
	switch {
	case strings.HasPrefix(tok, "@"):
		if g, ok := p.globals[tok]; ok {
			return GlobalOperand(g), nil
		}
		if f, err := p.funcByName(line, strings.TrimPrefix(tok, "@")); err == nil {
			return FuncOperand(f), nil
		}
		return Operand{}, p.errf(line, "unknown global %q", tok)
	case strings.HasPrefix(tok, "%"):
		name := strings.TrimPrefix(tok, "%")
		if id, ok := values[name]; ok {
			return InstOperand(id), nil
		}
		for i, pr := range fn.Params {
			if pr.Name == name {
				return ParamOperand(i), nil
			}
		}
		return Operand{}, p.errf(line, "unknown value %q", tok)
	default:
		v, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return Operand{}, p.errf(line, "bad operand %q", tok)
		}
		return ConstOperand(v), nil
	}
}

func (p *parser) funcByName(line int, name string) (FuncID, error) {
	for _, fn := range p.m.Funcs {
		if fn.Name == name {
			return fn.ID, nil
		}
	}
	return 0, p.errf(line, "unknown function %q", name)
}

func parseBlockHeader(toks []string) (label string, trip uint64, err error) {
	if len(toks) < 2 {
		return "", 0, fmt.Errorf("block wants a label")
	}
	label = strings.TrimSuffix(toks[1], ":")
	for _, t := range toks[2:] {
		t = strings.TrimSuffix(t, ":")
		if v, ok := strings.CutPrefix(t, "trip="); ok {
			trip, err = strconv.ParseUint(v, 10, 64)
			if err != nil {
				return "", 0, fmt.Errorf("bad trip count %q", v)
			}
		}
	}
	return label, trip, nil
}

func parseType(tok string) (Type, error) {
	switch tok {
	case "void":
		return VoidType, nil
	case "int":
		return Type{Kind: Int}, nil
	case "ptr":
		return OpaquePtrType, nil
	default:
		return Type{}, fmt.Errorf("unknown type %q", tok)
	}
}

var opcodeNames = map[string]Opcode{
	"other":   OpOther,
	"alloca":  OpAlloca,
	"load":    OpLoad,
	"store":   OpStore,
	"cas":     OpCAS,
	"rmw":     OpAtomicRMW,
	"bitcast": OpBitcast,
	"phi":     OpPhi,
	"call":    OpCall,
	"br":      OpBr,
	"condbr":  OpCondBr,
	"ret":     OpRet,
}

// tokenize splits a line into fields, dropping everything after a #.
func tokenize(line string) []string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.Fields(line)
}
