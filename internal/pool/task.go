// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pool

import "unsafe"

// taskJob records one outstanding spawn: the caller's task identifier and
// the worker it landed on.
type taskJob struct {
	task   uint32
	worker int
}

// Thread is the caller-side bookkeeping one thread of rewritten code
// keeps: the list of (task, worker) pairs its own spawns have accumulated
// and not yet joined. The list can hold at most one entry per pool worker,
// since a spawn that finds no idle worker runs inline and records nothing.
//
// A Thread is thread-local by construction: each calling goroutine owns
// exactly one and never shares it, so no locking is needed here.
type Thread struct {
	pool  *Pool
	pairs []taskJob
}

// Thread returns fresh caller-side bookkeeping bound to p.
func (p *Pool) Thread() *Thread {
	return &Thread{pool: p, pairs: make([]taskJob, 0, len(p.workers))}
}

// Spawn hands fn and its opaque-pointer arguments to an idle worker and
// records the job under task, to be awaited by a later Join(task). If the
// pool is saturated, fn runs inline on the calling thread instead, and
// nothing is recorded: the job is already complete, so a later Join
// correctly has nothing to await for it.
//
// fn must be a func of len(args) unsafe.Pointer parameters (at most 8)
// returning nothing.
func (t *Thread) Spawn(task uint32, fn any, args ...unsafe.Pointer) {
	if len(args) > maxArgs {
		panic("pool: too many spawn arguments")
	}
	var a [maxArgs]unsafe.Pointer
	copy(a[:], args)

	id := t.pool.assign(len(args), fn, a)
	if id == allBusy {
		callWithArgs(len(args), fn, &a)
		return
	}
	if len(t.pairs) >= len(t.pool.workers) {
		panic("pool: more outstanding spawns than workers")
	}
	t.pairs = append(t.pairs, taskJob{task: task, worker: id})
}

// Join awaits every outstanding spawn this Thread made under task and
// removes those entries. Spawns under other task identifiers are left
// untouched.
func (t *Thread) Join(task uint32) {
	kept := t.pairs[:0]
	for _, p := range t.pairs {
		if p.task == task {
			t.pool.joinWorker(p.worker)
		} else {
			kept = append(kept, p)
		}
	}
	t.pairs = kept
}
