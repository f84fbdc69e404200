package experiment

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/mallows/pkg/pipeline"
)

// Outcome is the result of one planned run.
type Outcome struct {
	Spec   Spec
	Result *pipeline.Result
	Err    error
}

// Options configures [Execute].
type Options struct {
	// Parallelism bounds concurrent runs. Zero means GOMAXPROCS.
	Parallelism int

	// DataDir resolves problem names.
	DataDir string

	// Formats are rendered for every run.
	Formats []string

	Refresh bool
	Logger  *log.Logger

	// OnDone, if set, is called after each run completes. Calls may be
	// concurrent.
	OnDone func(index int, out Outcome)
}

// Execute runs every entry of plan through runner and returns the outcomes in
// plan order. Each run owns its engine and random source, so runs proceed in
// parallel without sharing state. A failing run is recorded in its Outcome
// and does not stop the others; only cancellation of ctx does.
func Execute(ctx context.Context, runner *pipeline.Runner, plan Plan, opts Options) ([]Outcome, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = runner.Logger
	}

	outcomes := make([]Outcome, len(plan.Runs))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, spec := range plan.Runs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				outcomes[i] = Outcome{Spec: spec, Err: err}
				return err
			}
			res, err := runner.Execute(gctx, pipeline.Options{
				Problem: spec.ProblemName,
				Path:    pathIfNoName(spec),
				DataDir: opts.DataDir,
				Config:  spec.Config,
				Formats: opts.Formats,
				Refresh: opts.Refresh,
				Logger:  logger.With("run", spec.Name()),
			})
			outcomes[i] = Outcome{Spec: spec, Result: res, Err: err}

			n := done.Add(1)
			if err != nil {
				logger.Error("run failed", "run", spec.Name(), "err", err)
			} else {
				logger.Info("run finished", "run", spec.Name(),
					"best", res.Run.Result.BestObjective,
					"done", n, "total", len(plan.Runs))
			}
			if opts.OnDone != nil {
				opts.OnDone(i, outcomes[i])
			}
			if ctxErr := gctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return nil
		})
	}
	return outcomes, g.Wait()
}

func pathIfNoName(s Spec) string {
	if s.ProblemName != "" {
		return ""
	}
	return s.Path
}
