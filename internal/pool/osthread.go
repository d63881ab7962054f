// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pool

import (
	"runtime"
	"unsafe"
)

// OSThread is the kernel-threads backend: instead of borrowing a pool
// worker, each spawn gets a thread of its own, created at the call site
// and destroyed after an explicit join. There is no task grouping and no
// saturation fallback; the handle itself is the identifier the rewritten
// code threads through to the join and destroy calls.
type OSThread struct {
	done chan struct{}
}

// StartThread runs fn on a dedicated thread. fn follows the same
// signature convention as Thread.Spawn.
func StartThread(fn any, args ...unsafe.Pointer) *OSThread {
	if len(args) > maxArgs {
		panic("pool: too many spawn arguments")
	}
	var a [maxArgs]unsafe.Pointer
	copy(a[:], args)
	n := len(args)

	t := &OSThread{done: make(chan struct{})}
	go func() {
		// The kernel-thread model promises the job its own OS thread,
		// not a share of a scheduler.
		runtime.LockOSThread()
		defer close(t.done)
		callWithArgs(n, fn, &a)
	}()
	return t
}

// Join blocks until the thread's function has returned.
func (t *OSThread) Join() {
	<-t.done
}
