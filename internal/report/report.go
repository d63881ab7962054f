// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report renders the pipeline's results for humans: a per-call-site
// decision listing, per-function cost statistics, and a Graphviz dump of
// the call graph with accepted spawn edges highlighted.
package report

import (
	"fmt"
	"io"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/jamro1149/hydra/internal/decider"
	"github.com/jamro1149/hydra/internal/ir"
	"github.com/jamro1149/hydra/internal/profitability"
)

// WriteDecisions lists every candidate call site with its costs and
// outcome, in decision order (callees before callers, later calls first).
func WriteDecisions(w io.Writer, m *ir.Module, decisions []decider.Decision) {
	var accepted int
	for _, d := range decisions {
		call := m.Inst(d.Call)
		caller := m.Func(m.Block(call.Block).Func)
		callee := m.Func(call.Callee)
		verdict := "reject"
		if d.Accepted {
			verdict = "accept"
			accepted++
		}
		fmt.Fprintf(w, "%s: call %s in %s: serial %d, parallel %d, %d join(s)\n",
			verdict, callee.Name, caller.Name, d.SerialCost, d.ParallelCost, len(d.Joins))
	}
	fmt.Fprintf(w, "%d of %d candidate call sites accepted\n", accepted, len(decisions))
}

// WriteStats dumps every analyzed function's cost profile in name order.
func WriteStats(w io.Writer, m *ir.Module, prof *profitability.Result) {
	byName := make(map[string]*ir.Function, len(m.Funcs))
	for _, fn := range m.Funcs {
		byName[fn.Name] = fn
	}
	names := maps.Keys(byName)
	slices.Sort(names)

	for _, name := range names {
		fn := byName[name]
		if !fn.HasBody() {
			continue
		}
		s := prof.Get(fn.ID)
		fmt.Fprintf(w, "%s: insts %d, emitting %d, mem %d, cost %d, spawnable %v\n",
			name, s.NumInstructions, s.NumEmittingInsts, s.NumMemAccesses, s.TotalCost, s.Spawnable)
	}
}

// WriteCallGraphDot writes m's call graph in Graphviz form. Edges whose
// call site was accepted for spawning are bold and labeled with the saving
// the decider computed for them.
func WriteCallGraphDot(w io.Writer, m *ir.Module, cg *ir.CallGraph, decisions []decider.Decision) {
	savings := make(map[ir.InstID]uint32, len(decisions))
	for _, d := range decisions {
		if d.Accepted {
			savings[d.Call] = d.SerialCost - d.ParallelCost
		}
	}

	fmt.Fprintf(w, "digraph calls {\n")
	for _, fn := range m.Funcs {
		shape := "ellipse"
		if !fn.HasBody() {
			shape = "box"
		}
		fmt.Fprintf(w, "  f%d [label=%q shape=%s];\n", fn.ID, fn.Name, shape)
	}

	callers := maps.Keys(cg.Out)
	slices.Sort(callers)
	for _, caller := range callers {
		for _, e := range cg.Out[caller] {
			var props string
			if saved, ok := savings[e.Site]; ok {
				props = fmt.Sprintf(" [style=bold color=blue label=\"spawn -%d\"]", saved)
			}
			fmt.Fprintf(w, "  f%d -> f%d%s;\n", e.Caller, e.Callee, props)
		}
	}
	fmt.Fprintf(w, "}\n")
}
