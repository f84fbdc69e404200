// Package pkg provides the core libraries for Mallows, a solver for
// travelling salesman instances.
//
// # Overview
//
// Mallows optimizes tours with an estimation-of-distribution algorithm: each
// generation it selects the best tours of the population, fits a Mallows
// model under the Kendall-Tau distance to them, and samples the next generation
// from that model. The pkg directory is organized into four main areas:
//
//  1. Algorithm: [perm], [metric], [model], [estimate], [selection], [eda]
//  2. Problems: [tsplib] parses instances and builds distance matrices
//  3. Infrastructure: [cache], [tracking], [telemetry], [observability],
//     [httputil], [errors], [buildinfo]
//  4. Orchestration: [pipeline] runs one instance, [experiment] runs batches,
//     [render] draws tours
//
// # Architecture
//
// The typical data flow through Mallows:
//
//	TSPLIB file or name
//	         ↓
//	    [tsplib] package (parse + distance matrix)
//	         ↓
//	    [eda] package (select → fit → sample, generation by generation)
//	         ↓
//	    [tracking] package (run record + history)
//	         ↓
//	    [render] package (SVG/PNG/DOT of the best tour)
//
// # Quick Start
//
// Solve an instance directly:
//
//	import (
//	    "context"
//	    "github.com/matzehuels/mallows/pkg/eda"
//	    "github.com/matzehuels/mallows/pkg/tsplib"
//	)
//
//	inst, _ := tsplib.ParseFile("burma14.tsp")
//	engine, _ := eda.New(eda.ScaledConfig(inst.Dimension, 0.01), inst.Matrix.Objective())
//	res, _ := engine.Run(context.Background())
//	fmt.Println(res.BestObjective, res.Tour())
//
// Or through the pipeline, which adds caching and run tracking:
//
//	runner := pipeline.NewRunner(cache.NewNullCache(), nil, tracking.NewMemoryStore(), logger)
//	result, _ := runner.Execute(ctx, pipeline.Options{Problem: "burma14", DataDir: dir})
//
// # Main Packages
//
// [eda] - The optimizer. [eda.Config] carries the population, selection and
// restart parameters in the same keys for TOML, YAML and JSON.
//
// [model] - The Mallows model: learning the central permutation and spread,
// and sampling from it.
//
// [pipeline] - Load → validate → run → render, with results cached by the
// instance and configuration hash.
//
// [experiment] - Plan files of many runs executed concurrently.
//
// [tracking] - Run records kept on disk, in memory or in MongoDB.
package pkg
