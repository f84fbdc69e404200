package eda

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/estimate"
	"github.com/matzehuels/mallows/pkg/metric"
	"github.com/matzehuels/mallows/pkg/model"
	"github.com/matzehuels/mallows/pkg/perm"
	"github.com/matzehuels/mallows/pkg/selection"
	"github.com/matzehuels/mallows/pkg/telemetry"
)

// Engine runs the Mallows EDA on one problem. An Engine owns its random
// source and population; it is not safe for concurrent use, but independent
// engines may run in parallel.
type Engine struct {
	cfg       Config
	objective Objective
	policy    selection.Policy
	metric    metric.Metric
	rng       *rand.Rand
	logger    *log.Logger
	sink      telemetry.Sink
	size      int
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithSink sets the telemetry sink. The default is [telemetry.Noop].
func WithSink(s telemetry.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// WithRand replaces the random source derived from Config.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) {
		if rng != nil {
			e.rng = rng
		}
	}
}

// Result is the outcome of a run.
type Result struct {
	// Best is the best individual found, over the n−1 non-anchor items.
	Best          []int   `json:"best"`
	BestObjective float64 `json:"best_objective"`

	// Center and Theta are the last fitted model parameters.
	Center []int   `json:"center"`
	Theta  float64 `json:"theta"`

	Generations int           `json:"generations"`
	Shakes      int           `json:"shakes"`
	Seed        uint64        `json:"seed"`
	Duration    time.Duration `json:"duration"`
}

// Tour returns the best individual as a full tour starting at the anchor.
func (r *Result) Tour() []int {
	return Anchor(r.Best)
}

// New validates cfg and returns an engine minimizing objective, an
// objective over full tours of cfg.ProblemSize items.
func New(cfg Config, objective Objective, opts ...Option) (*Engine, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if objective == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "objective function is required")
	}

	e := &Engine{
		cfg:       cfg,
		objective: Anchored(objective),
		size:      cfg.ProblemSize - 1,
		rng:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xdeadbeef)),
		logger:    log.New(io.Discard),
		sink:      telemetry.Noop{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.metric = metric.NewKendallTau(e.size)

	policy, err := selection.New(cfg.SelectionFunction, e.rng, cfg.Selection)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "selection_function")
	}
	e.policy = policy
	return e, nil
}

// Config returns the validated configuration with defaults applied.
func (e *Engine) Config() Config { return e.cfg }

// Run executes exactly Iterations generations and returns the best
// individual found together with the last fitted center and dispersion.
//
// The context is checked between generations. On cancellation Run returns
// the best-so-far result and the context error.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	cfg := e.cfg

	uniform, err := model.NewUniform(e.size, e.rng)
	if err != nil {
		return nil, err
	}
	pop := uniform.SampleN(cfg.PopulationSize)

	res := &Result{
		BestObjective: math.Inf(1),
		Center:        perm.Seq(e.size),
		Seed:          cfg.Seed,
	}
	var prevCenter []int
	stagnation := 0

	e.logger.Debug("run start",
		"problem_size", cfg.ProblemSize,
		"population", cfg.PopulationSize,
		"selection", e.policy.Name(),
		"n_iter", cfg.Iterations,
		"seed", cfg.Seed)

	for gen := range cfg.Iterations {
		if err := ctx.Err(); err != nil {
			res.Duration = time.Since(start)
			return res, err
		}

		// EVALUATE
		values, err := e.evaluate(pop)
		if err != nil {
			return res, err
		}
		genBest := argmin(values)
		if values[genBest] < res.BestObjective {
			res.Best = slices.Clone(pop.Row(genBest))
			res.BestObjective = values[genBest]
		}

		// SELECT
		idx, err := e.policy.Select(values, cfg.SelectionSize)
		if err != nil {
			return res, errors.Wrap(errors.ErrCodeInternal, err, "generation %d: select", gen)
		}
		parents := pop.Select(idx)

		// ESTIMATE
		center := estimate.Center(parents)
		theta := estimate.Dispersion(parents, center)

		// RESAMPLE
		m, err := model.NewMallows(center, theta, e.metric, e.rng)
		if err != nil {
			e.logger.Warn("dispersion rejected, sampling uniformly", "gen", gen, "theta", theta, "err", err)
			theta = 0
			if m, err = model.NewMallows(center, 0, e.metric, e.rng); err != nil {
				return res, err
			}
		}
		offspring := m.SampleN(cfg.OffspringSize)

		// RECOMBINE
		next := perm.BatchOf(pop.Row(genBest)).Concat(offspring)

		// STAGNATION-CHECK
		if prevCenter != nil && slices.Equal(center, prevCenter) {
			stagnation++
		} else {
			stagnation = 0
			prevCenter = center
		}
		res.Center, res.Theta, res.Generations = center, theta, gen+1

		centerValue, err := e.evaluate(perm.BatchOf(center))
		if err != nil {
			return res, err
		}
		rec := telemetry.GenerationRecord{
			Generation:      gen,
			Objective:       telemetry.Summarize(values),
			Theta:           theta,
			SelectedMean:    mean(values, idx),
			BestRepeats:     repeats(pop, idx, pop.Row(genBest)),
			CenterObjective: centerValue[0],
			Stagnation:      stagnation,
			Center:          slices.Clone(center),
			Best:            slices.Clone(res.Best),
			BestObjective:   res.BestObjective,
		}
		if err := e.sink.OnGeneration(ctx, rec); err != nil {
			e.logger.Warn("telemetry sink failed", "gen", gen, "err", err)
		}
		pop = next

		// SHAKE
		if stagnation > cfg.Restart {
			if pop, err = e.shake(ctx, gen, pop); err != nil {
				return res, err
			}
			res.Shakes++
			stagnation = 0
		}
	}

	res.Duration = time.Since(start)
	e.logger.Debug("run complete",
		"best", res.BestObjective,
		"theta", res.Theta,
		"shakes", res.Shakes,
		"duration", res.Duration)
	return res, nil
}

// shake replaces pop with perturbed copies of its best individual.
func (e *Engine) shake(ctx context.Context, gen int, pop *perm.Batch) (*perm.Batch, error) {
	before, err := e.evaluate(pop)
	if err != nil {
		return nil, err
	}
	best := pop.Row(argmin(before))
	moves, window := e.cfg.Shake()
	shaken := Shake(best, e.cfg.PopulationSize, moves, window, e.rng)

	after, err := e.evaluate(shaken)
	if err != nil {
		return nil, err
	}
	rec := telemetry.ShakeRecord{
		Generation:     gen,
		Before:         telemetry.Summarize(before),
		After:          telemetry.Summarize(after),
		PopulationSize: shaken.Len(),
	}
	if err := e.sink.OnShake(ctx, rec); err != nil {
		e.logger.Warn("telemetry sink failed", "gen", gen, "err", err)
	}
	return shaken, nil
}

func (e *Engine) evaluate(pop *perm.Batch) ([]float64, error) {
	values := e.objective(pop)
	if len(values) != pop.Len() {
		return nil, errors.New(errors.ErrCodeInternal,
			"objective returned %d values for %d permutations", len(values), pop.Len())
	}
	return values, nil
}

// argmin returns the index of the smallest value, the first on ties.
func argmin(values []float64) int {
	best := 0
	for i, v := range values {
		if v < values[best] {
			best = i
		}
	}
	return best
}

func mean(values []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += values[i]
	}
	return sum / float64(len(idx))
}

// repeats counts the rows of pop at idx equal to target.
func repeats(pop *perm.Batch, idx []int, target []int) int {
	n := 0
	for _, i := range idx {
		if slices.Equal(pop.Row(i), target) {
			n++
		}
	}
	return n
}
