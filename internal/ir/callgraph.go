// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

// CallGraph is the whole-module call graph: one node per function, one
// edge per call site.
type CallGraph struct {
	Out map[FuncID][]CGEdge // edges leaving a function, by call site
	In  map[FuncID][]CGEdge // edges arriving at a function
}

// CGEdge is one call site: caller calls callee at Site.
type CGEdge struct {
	Caller FuncID
	Callee FuncID
	Site   InstID
}

// BuildCallGraph scans every call instruction in m and links caller to
// callee.
func BuildCallGraph(m *Module) *CallGraph {
	cg := &CallGraph{Out: make(map[FuncID][]CGEdge), In: make(map[FuncID][]CGEdge)}
	for _, fn := range m.Funcs {
		if !fn.HasBody() {
			continue
		}
		for _, bid := range fn.Blocks {
			bb := m.Block(bid)
			for _, iid := range bb.Insts {
				inst := m.Inst(iid)
				if !inst.IsCall() {
					continue
				}
				edge := CGEdge{Caller: fn.ID, Callee: inst.Callee, Site: iid}
				cg.Out[fn.ID] = append(cg.Out[fn.ID], edge)
				cg.In[inst.Callee] = append(cg.In[inst.Callee], edge)
			}
		}
	}
	return cg
}

// Calls returns every callee fn invokes, possibly with repeats.
func (cg *CallGraph) Calls(fn FuncID) []CGEdge { return cg.Out[fn] }

// SCCs returns the strongly connected components of the call graph over
// every function present in funcs, ordered callees-before-callers
// ("leaves first") — the traversal order the profitability and joinpoints
// passes both need. Each returned component is itself in no particular
// internal order.
//
// This is a standard Tarjan SCC. A plain DFS cycle check would not be
// enough here: the passes need every SCC as a unit and a topological
// order between them, which Tarjan gives directly.
func SCCs(cg *CallGraph, funcs []FuncID) [][]FuncID {
	t := &tarjan{
		cg:      cg,
		index:   make(map[FuncID]int),
		lowlink: make(map[FuncID]int),
		onStack: make(map[FuncID]bool),
	}
	for _, f := range funcs {
		if _, ok := t.index[f]; !ok {
			t.strongConnect(f)
		}
	}
	// t.out accumulates components in the order they're closed off by the
	// DFS, which is already reverse-topological (a component is closed
	// only after everything it can reach has been closed) — exactly
	// "callees before callers".
	return t.out
}

type tarjan struct {
	cg      *CallGraph
	index   map[FuncID]int
	lowlink map[FuncID]int
	onStack map[FuncID]bool
	stack   []FuncID
	counter int
	out     [][]FuncID
}

func (t *tarjan) strongConnect(v FuncID) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, e := range t.cg.Out[v] {
		w := e.Callee
		if _, ok := t.index[w]; !ok {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var comp []FuncID
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		t.out = append(t.out, comp)
	}
}
