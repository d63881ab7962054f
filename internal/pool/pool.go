// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pool is the runtime the rewritten IR links against: a fixed-size
// pool of workers, a spawn entry point taking up to eight opaque-pointer
// arguments, and a join that awaits every spawn made under a caller-chosen
// task identifier.
//
// The pool deliberately has no queue. Each worker owns a single-slot job
// mailbox, and a spawn that finds every mailbox occupied runs the function
// inline on the calling thread instead. The rewriter counts on exactly
// this fallback: a saturated pool degrades to the original serial call,
// never to unbounded buffering or a deadlock, so the capacity must stay
// fixed and visible at assignment time.
package pool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"
)

// NumThreads is the worker count of the package-level default pool.
const NumThreads = 8

// maxArgs is the widest spawn the dispatch switch supports.
const maxArgs = 8

// allBusy is assign's sentinel for a saturated pool.
const allBusy = -1

// job is one mailbox entry. fn must be a func taking numArgs
// unsafe.Pointer arguments and returning nothing; callWithArgs selects the
// concrete signature.
type job struct {
	numArgs int
	fn      any
	args    [maxArgs]unsafe.Pointer
}

// callWithArgs dispatches fn on its argument count. The uniform surface
// ends here: everything upstream traffics in opaque pointers, and this
// switch is the single point where an arity becomes a real signature.
func callWithArgs(numArgs int, fn any, args *[maxArgs]unsafe.Pointer) {
	switch numArgs {
	case 0:
		fn.(func())()
	case 1:
		fn.(func(unsafe.Pointer))(args[0])
	case 2:
		fn.(func(unsafe.Pointer, unsafe.Pointer))(args[0], args[1])
	case 3:
		fn.(func(unsafe.Pointer, unsafe.Pointer, unsafe.Pointer))(args[0], args[1], args[2])
	case 4:
		fn.(func(unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer))(args[0], args[1], args[2], args[3])
	case 5:
		fn.(func(unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer))(args[0], args[1], args[2], args[3], args[4])
	case 6:
		fn.(func(unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer))(args[0], args[1], args[2], args[3], args[4], args[5])
	case 7:
		fn.(func(unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer))(args[0], args[1], args[2], args[3], args[4], args[5], args[6])
	case 8:
		fn.(func(unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer, unsafe.Pointer))(args[0], args[1], args[2], args[3], args[4], args[5], args[6], args[7])
	default:
		panic("pool: argument count out of range")
	}
}

// worker is one pool member. The mailbox and stop flag are read or written
// only while mu is held; hasJob is the one cross-thread signal that may be
// read without it.
type worker struct {
	mu     sync.Mutex
	job    job
	stop   bool
	hasJob atomic.Bool
}

// run is the worker loop: under its own mutex, check for a job and
// dispatch it, else release and yield. hasJob transitions true -> false
// only here, after the job has fully run, which is what join's spin
// observes.
func (w *worker) run() {
	for {
		w.mu.Lock()
		shutdown := w.stop
		if w.hasJob.Load() {
			callWithArgs(w.job.numArgs, w.job.fn, &w.job.args)
			w.hasJob.Store(false)
			w.mu.Unlock()
		} else {
			w.mu.Unlock()
			runtime.Gosched()
		}
		if shutdown {
			return
		}
	}
}

// Pool is a fixed-size set of workers plus the availability book that
// assign scans. Workers are started by New and run until Shutdown.
type Pool struct {
	workers []*worker

	// availMu guards available. Every idle<->busy transition happens
	// under it, which is what linearizes concurrent assigns against each
	// other and against joinWorker.
	availMu   sync.Mutex
	available []bool

	wg sync.WaitGroup
}

// New starts a pool of n workers. n must be at least 1.
func New(n int) *Pool {
	if n < 1 {
		panic("pool: need at least one worker")
	}
	p := &Pool{
		workers:   make([]*worker, n),
		available: make([]bool, n),
	}
	for i := range p.workers {
		w := &worker{}
		p.workers[i] = w
		p.available[i] = true
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run()
		}()
	}
	return p
}

// assign hands one job to an idle worker and returns its index, or allBusy
// if every worker is occupied. The worker's mutex is taken before its
// mailbox is written so the worker can never observe a half-written job.
func (p *Pool) assign(numArgs int, fn any, args [maxArgs]unsafe.Pointer) int {
	p.availMu.Lock()
	defer p.availMu.Unlock()

	for i, w := range p.workers {
		if !p.available[i] {
			continue
		}
		w.mu.Lock()
		w.job = job{numArgs: numArgs, fn: fn, args: args}
		w.hasJob.Store(true)
		w.mu.Unlock()
		p.available[i] = false
		return i
	}
	return allBusy
}

// joinWorker spins until worker i's current job is done, then marks it
// idle again. The hasJob load pairs with the worker's store-false after
// dispatch, so everything the job wrote is visible once the spin exits.
func (p *Pool) joinWorker(i int) {
	w := p.workers[i]
	for w.hasJob.Load() {
		runtime.Gosched()
	}
	p.availMu.Lock()
	p.available[i] = true
	p.availMu.Unlock()
}

// Shutdown flips every worker's stop flag under its mutex and waits for
// all of them to exit. Jobs already in a mailbox still run.
func (p *Pool) Shutdown() {
	for _, w := range p.workers {
		w.mu.Lock()
		w.stop = true
		w.mu.Unlock()
	}
	p.wg.Wait()
}

var (
	defaultOnce sync.Once
	defaultPool *Pool
)

// Default returns the process-wide pool, creating it with NumThreads
// workers on first use. It is never torn down before process exit.
func Default() *Pool {
	defaultOnce.Do(func() {
		defaultPool = New(NumThreads)
	})
	return defaultPool
}
