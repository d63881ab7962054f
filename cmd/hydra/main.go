// Copyright 2026 The Hydra Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command hydra parallelizes pure function calls in textual IR modules.
// For each input file it runs the analysis-and-rewrite pipeline and
// writes the transformed module next to the input with a .par suffix.
//
//	hydra [flags] module.hir...
//
// With -decisions or -stats, the per-module reports go to stdout, in
// input order even when modules are processed concurrently.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sync/errgroup"

	"github.com/jamro1149/hydra/internal/decider"
	"github.com/jamro1149/hydra/internal/ir"
	"github.com/jamro1149/hydra/internal/joinpoints"
	"github.com/jamro1149/hydra/internal/pipeline"
	"github.com/jamro1149/hydra/internal/report"
)

var (
	backendFlag   = flag.String("backend", "light", "threading model: light or kernel")
	aggFlag       = flag.String("aggregator", "mean", "join-distance aggregator: mean, min, or max")
	seedFlag      = flag.Int64("seed", 0, "task-identifier seed, for reproducible output")
	jobsFlag      = flag.Int("jobs", 4, "modules to process concurrently")
	decisionsFlag = flag.Bool("decisions", false, "print per-call-site decisions")
	statsFlag     = flag.Bool("stats", false, "print per-function cost statistics")
	dotFlag       = flag.Bool("dot", false, "also write the call graph as <input>.dot")
	hookFlag      = flag.String("post-hook", "", "command to run on each output file")
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("hydra: ")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: hydra [flags] module.hir...\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := configFromFlags()
	if err != nil {
		log.Fatal(err)
	}

	var hook []string
	if *hookFlag != "" {
		hook, err = shellquote.Split(*hookFlag)
		if err != nil {
			log.Fatalf("bad -post-hook: %v", err)
		}
	}

	files := flag.Args()
	reports := make([]bytes.Buffer, len(files))
	var g errgroup.Group
	g.SetLimit(*jobsFlag)
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			return process(path, cfg, hook, &reports[i])
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	for i := range reports {
		os.Stdout.Write(reports[i].Bytes())
	}
}

func configFromFlags() (pipeline.Config, error) {
	cfg := pipeline.Config{Seed: *seedFlag}
	switch *backendFlag {
	case "light":
		cfg.Backend = joinpoints.LightThreads
	case "kernel":
		cfg.Backend = joinpoints.KernelThreads
	default:
		return cfg, fmt.Errorf("unknown backend %q", *backendFlag)
	}
	switch *aggFlag {
	case "mean":
		cfg.Aggregator = decider.Mean
	case "min":
		cfg.Aggregator = decider.Min
	case "max":
		cfg.Aggregator = decider.Max
	default:
		return cfg, fmt.Errorf("unknown aggregator %q", *aggFlag)
	}
	return cfg, nil
}

// process runs the pipeline over one input module, writing the rewritten
// module (and optionally the call-graph dot) beside it and buffering any
// requested reports.
func process(path string, cfg pipeline.Config, hook []string, rep *bytes.Buffer) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	m, li, err := ir.ParseModule(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	res, err := pipeline.Run(m, li, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if *decisionsFlag {
		fmt.Fprintf(rep, "== %s\n", path)
		report.WriteDecisions(rep, m, res.Decisions)
	}
	if *statsFlag {
		fmt.Fprintf(rep, "== %s stats\n", path)
		report.WriteStats(rep, m, res.Stats)
	}

	outPath := outputPath(path)
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := ir.WriteModule(out, m, li); err != nil {
		out.Close()
		return fmt.Errorf("%s: %w", outPath, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	if *dotFlag {
		dot, err := os.Create(strings.TrimSuffix(path, ".hir") + ".dot")
		if err != nil {
			return err
		}
		report.WriteCallGraphDot(dot, m, res.CallGraph, res.Decisions)
		if err := dot.Close(); err != nil {
			return err
		}
	}

	res.Release()

	if len(hook) > 0 {
		cmd := exec.Command(hook[0], append(hook[1:], outPath)...)
		cmd.Stdout = os.Stderr
		cmd.Stderr = os.Stderr
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("post-hook on %s: %w", outPath, err)
		}
	}
	return nil
}

// outputPath maps module.hir to module.par.hir, and anything without the
// .hir suffix to path.par.
func outputPath(path string) string {
	if base, ok := strings.CutSuffix(path, ".hir"); ok {
		return base + ".par.hir"
	}
	return path + ".par"
}
