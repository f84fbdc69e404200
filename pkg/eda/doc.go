// Package eda implements an estimation-of-distribution optimizer over
// permutations whose generative model is the Mallows distribution.
//
// # Generation loop
//
// Every generation the [Engine] evaluates its population, selects parents
// with the configured selection policy, fits a Mallows center (Borda) and
// dispersion (Newton-Raphson) to them, samples offspring from the fitted
// model and forms the next population from the generation's best
// individual followed by the offspring. It runs exactly Config.Iterations
// generations.
//
// When the fitted center is unchanged for more than
// Config.Restart consecutive generations the population is replaced by
// perturbed copies of its best individual (a shake; see [Shake]).
//
// # Anchoring
//
// For tours the first city is fixed: the engine models permutations of the
// remaining n−1 cities and wraps the caller's objective with [Anchored], so
// the caller always scores full tours starting at city 0.
//
// # Usage
//
//	cfg := eda.ScaledConfig(inst.Dimension, 0.01)
//	engine, err := eda.New(cfg, matrix.Objective(),
//	    eda.WithLogger(logger),
//	    eda.WithSink(telemetry.NewLogSink(logger, 100)))
//	if err != nil {
//	    return err
//	}
//	res, err := engine.Run(ctx)
//	fmt.Println(res.BestObjective, res.Tour())
package eda
