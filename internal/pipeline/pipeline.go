// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline runs the whole analysis-and-rewrite sequence over one
// module: fitness, profitability, join points, the decider, adapter
// synthesis, and the rewrite itself, in that fixed order. There is no pass
// registry; each stage is an ordinary function call whose result feeds the
// next.
package pipeline

import (
	"fmt"
	"math/rand"
	"runtime/debug"

	"github.com/jamro1149/hydra/internal/decider"
	"github.com/jamro1149/hydra/internal/fitness"
	"github.com/jamro1149/hydra/internal/ir"
	"github.com/jamro1149/hydra/internal/joinpoints"
	"github.com/jamro1149/hydra/internal/profitability"
	"github.com/jamro1149/hydra/internal/rewriter"
	"github.com/jamro1149/hydra/internal/spawnable"
)

// Config selects the frozen build-time choices of one pipeline run.
type Config struct {
	Backend    joinpoints.Backend
	Aggregator decider.Aggregator

	// Seed feeds the task-identifier source the rewriter draws from, so a
	// run's output is reproducible.
	Seed int64
}

// Result is everything the pipeline computed, kept around for reporting.
// The module itself has already been mutated in place by the time Run
// returns.
type Result struct {
	CallGraph *ir.CallGraph
	Fitness   *fitness.Result
	Stats     *profitability.Result
	Records   []joinpoints.Record
	Decisions []decider.Decision
	Adapters  []spawnable.Adapter
}

// Run executes every pass over m. The passes treat their own precondition
// violations as bugs and panic; Run recovers such a panic into an error so
// a driver embedding Hydra in a larger build keeps its other work.
func Run(m *ir.Module, li *ir.LoopInfo, cfg Config) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hydra: internal error: %v\n%s", r, debug.Stack())
		}
	}()

	cg := ir.BuildCallGraph(m)
	fit := fitness.Run(m, cg)
	stats := profitability.Run(m, cg, li, fit)
	records := joinpoints.Run(m, cg, fit, cfg.Backend)
	decisions := decider.Run(m, stats, records, cfg.Backend, cfg.Aggregator)
	adapters := spawnable.Synthesize(m, decider.FunctionsToSpawn(m, decisions))
	rewriter.Rewrite(m, decisions, adapters, cfg.Backend, rand.New(rand.NewSource(cfg.Seed)))

	return &Result{
		CallGraph: cg,
		Fitness:   fit,
		Stats:     stats,
		Records:   records,
		Decisions: decisions,
		Adapters:  adapters,
	}, nil
}

// Release clears every map and list the passes built, for callers that
// process many modules in one process and want the memory back between
// them. The Result must not be queried afterwards except through the
// conservative defaults the individual passes document.
func (r *Result) Release() {
	r.Fitness.Release()
	r.Stats.Release()
	r.CallGraph = nil
	r.Records = nil
	r.Decisions = nil
	r.Adapters = nil
}
