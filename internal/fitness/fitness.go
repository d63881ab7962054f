// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fitness classifies every function in a module as either
// Functional (provably side-effect-free, under Hydra's approximation) or
// Unknown. It seeds the classification from a purely syntactic per-function
// check and then repeatedly sweeps the call graph, propagating Unknown
// through callers until a full sweep makes no change.
package fitness

import "github.com/jamro1149/hydra/internal/ir"

// FunType is a function's fitness classification.
type FunType int

const (
	// Functional functions are side-effect-free under Hydra's
	// approximation: no pointer args, no global/alias references, not
	// variadic, and every callee is itself Functional with a known body.
	Functional FunType = iota
	// Unknown functions may have side effects, or call something that
	// might.
	Unknown
)

func (t FunType) String() string {
	if t == Functional {
		return "Functional"
	}
	return "Unknown"
}

// Result is the fixed point computed over a whole module: a FunType for
// every function that has a body. Querying a function absent from the map
// (including every External declaration) returns Unknown, so downstream
// passes never see an optimistic answer for a function that was never
// classified.
type Result struct {
	types map[ir.FuncID]FunType
}

// Get returns the fitness of fn, defaulting to Unknown if fn was never
// classified (e.g. it is an external declaration).
func (r *Result) Get(fn ir.FuncID) FunType {
	if r == nil {
		return Unknown
	}
	t, ok := r.types[fn]
	if !ok {
		return Unknown
	}
	return t
}

// IsFunctional is shorthand for Get(fn) == Functional.
func (r *Result) IsFunctional(fn ir.FuncID) bool { return r.Get(fn) == Functional }

// Release drops the classification map. Later queries degrade to Unknown,
// the conservative default.
func (r *Result) Release() { r.types = nil }

// Run computes Fitness for every function with a body in m, given the
// whole-module call graph cg. External declarations are never entered into
// the map (hence Get defaults them to Unknown, matching "External
// (body-less) callees are considered Unknown").
func Run(m *ir.Module, cg *ir.CallGraph) *Result {
	types := make(map[ir.FuncID]FunType, len(m.Funcs))

	// Seed: a purely syntactic check of each function in isolation.
	for _, fn := range m.Funcs {
		if !fn.HasBody() {
			continue
		}
		types[fn.ID] = seed(m, fn)
	}

	// Propagate: repeatedly demote any Functional function that calls an
	// Unknown or external callee, until a full pass changes nothing.
	for {
		changed := false
		for _, fn := range m.Funcs {
			if !fn.HasBody() {
				continue
			}
			if types[fn.ID] != Functional {
				continue
			}
			if callsUnknown(cg, types, fn.ID) {
				types[fn.ID] = Unknown
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	return &Result{types: types}
}

// seed classifies fn from its own signature and body alone, ignoring
// callees: Unknown if it has a pointer argument, references a global, or
// is variadic; Functional otherwise.
func seed(m *ir.Module, fn *ir.Function) FunType {
	for _, p := range fn.Params {
		if p.Type.IsPointer() {
			return Unknown
		}
	}
	if fn.Variadic {
		return Unknown
	}
	for _, bid := range fn.Blocks {
		bb := m.Block(bid)
		for _, iid := range bb.Insts {
			if m.Inst(iid).ReferencesGlobal() {
				return Unknown
			}
		}
	}
	return Functional
}

// callsUnknown reports whether fn calls something that is not (yet, or
// ever) Functional: a callee explicitly marked Unknown, or a callee with
// no known body at all (an external function, or one absent from types
// for any other reason).
func callsUnknown(cg *ir.CallGraph, types map[ir.FuncID]FunType, fn ir.FuncID) bool {
	for _, e := range cg.Calls(fn) {
		t, ok := types[e.Callee]
		if !ok || t == Unknown {
			return true
		}
	}
	return false
}
