package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mallows/pkg/cache"
	"github.com/matzehuels/mallows/pkg/eda"
	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/observability"
	"github.com/matzehuels/mallows/pkg/render"
	"github.com/matzehuels/mallows/pkg/telemetry"
	"github.com/matzehuels/mallows/pkg/tracking"
	"github.com/matzehuels/mallows/pkg/tsplib"
)

// Runner encapsulates pipeline execution with caching and tracking.
// Both CLI and API use it to avoid duplicating that logic.
//
// The Runner holds no per-run state; multiple goroutines can safely use the
// same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Store  tracking.Store
	Logger *log.Logger
}

// NewRunner creates a runner.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
// If store is nil, runs are not persisted.
func NewRunner(c cache.Cache, keyer cache.Keyer, store tracking.Store, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Store:  store,
		Logger: logger,
	}
}

// cachedRun is the cached form of a finished run.
type cachedRun struct {
	Result  *eda.Result                  `json:"result"`
	History []telemetry.GenerationRecord `json:"history,omitempty"`
	Shakes  []telemetry.ShakeRecord      `json:"shakes,omitempty"`
}

// Execute runs the complete load → run → render pipeline.
//
// When the optimizer fails or is canceled, Execute still returns a Result
// whose Run records the failure, together with the error.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{}

	// Stage 1: Load
	loadStart := time.Now()
	inst, err := r.Load(opts)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	result.Instance = inst
	result.Stats.LoadTime = time.Since(loadStart)
	result.Stats.Cities = inst.Dimension

	cfg, err := ResolveConfig(opts.Config, inst.Dimension, opts.Scale)
	if err != nil {
		return nil, err
	}
	result.ProblemHash = cache.HashFloats(inst.Matrix.Data())
	result.RunKey = r.Keyer.RunKey(result.ProblemHash, RunKeyOpts(cfg))

	opts.Logger.Info("loaded problem",
		"name", inst.Name,
		"cities", inst.Dimension,
		"type", inst.EdgeWeightType,
		"duration", result.Stats.LoadTime)

	// Stage 2: Run
	runStart := time.Now()
	run, hit, err := r.run(ctx, inst, cfg, result.RunKey, opts)
	result.Run = run
	result.Stats.RunTime = time.Since(runStart)
	result.CacheInfo.RunHit = hit
	if run.Result != nil {
		result.Stats.Generations = run.Result.Generations
	}
	if err != nil {
		return result, fmt.Errorf("run: %w", err)
	}

	opts.Logger.Info("optimized tour",
		"best", run.Result.BestObjective,
		"generations", run.Result.Generations,
		"shakes", run.Result.Shakes,
		"cached", hit,
		"duration", result.Stats.RunTime)

	// Stage 3: Render
	if len(opts.Formats) == 0 {
		return result, nil
	}
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, inst, run, result.RunKey, opts.Formats, opts.Render)
	if err != nil {
		return result, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	opts.Logger.Info("rendered tour",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Load resolves the instance named by opts. Instances without a distance
// matrix (for example TOUR files) are rejected.
func (r *Runner) Load(opts Options) (*tsplib.Instance, error) {
	var (
		inst *tsplib.Instance
		err  error
	)
	switch {
	case opts.Instance != nil:
		inst = opts.Instance
	case opts.Problem != "":
		inst, err = tsplib.Load(opts.DataDir, opts.Problem)
	case opts.Path != "":
		inst, err = tsplib.ParseFile(opts.Path)
	case opts.Source != "":
		inst, err = tsplib.Parse(strings.NewReader(opts.Source))
	default:
		err = errors.New(errors.ErrCodeInvalidInput, "no problem given")
	}
	if err != nil {
		return nil, err
	}
	if inst.Matrix == nil {
		return nil, errors.New(errors.ErrCodeInvalidProblem, "%s has no distance matrix (type %s)", describe(&opts), inst.Type)
	}
	return inst, nil
}

// run executes the optimizer or serves the result from cache, recording the
// run in the store either way.
func (r *Runner) run(ctx context.Context, inst *tsplib.Instance, cfg eda.Config, key string, opts Options) (*tracking.Run, bool, error) {
	run := tracking.New(inst.Name, cfg)
	run.Origin = opts.origin()
	run.ProblemHash = cache.HashFloats(inst.Matrix.Data())

	if !opts.Refresh {
		if cached, ok := r.lookup(ctx, key, "run"); ok {
			var c cachedRun
			if err := json.Unmarshal(cached, &c); err == nil && c.Result != nil {
				run.History, run.Shakes = c.History, c.Shakes
				run.Finish(c.Result, nil)
				run.Cached = true
				r.save(ctx, run)
				return run, true, nil
			}
		}
	}

	track := tracking.NewSink(run)
	track.MaxHistory = opts.MaxHistory
	engine, err := eda.New(cfg, eda.Objective(inst.Matrix.Objective()),
		eda.WithLogger(opts.Logger),
		eda.WithSink(telemetry.NewMulti(track, shakeHooks{problem: inst.Name}, opts.Sink)))
	if err != nil {
		run.Finish(nil, err)
		return run, false, err
	}

	r.save(ctx, run)
	observability.Run().OnRunStart(ctx, inst.Name, inst.Dimension)
	res, err := engine.Run(ctx)
	generations, best := 0, 0.0
	if res != nil {
		generations, best = res.Generations, res.BestObjective
	}
	observability.Run().OnRunComplete(ctx, inst.Name, generations, best, time.Since(run.CreatedAt), err)

	run.Finish(res, err)
	// Saving must outlive a canceled request context.
	r.save(context.WithoutCancel(ctx), run)
	if err != nil {
		return run, false, err
	}

	if data, err := json.Marshal(cachedRun{Result: res, History: run.History, Shakes: run.Shakes}); err == nil {
		r.store(ctx, key, "run", data, cache.TTLRun)
	}
	return run, false, nil
}

// RenderWithCacheInfo renders run's tour in every format, serving artifacts
// from cache when all of them are present.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, inst *tsplib.Instance, run *tracking.Run, runKey string, formats []string, opts render.Options) (map[string][]byte, bool, error) {
	if err := ValidateFormats(formats); err != nil {
		return nil, false, err
	}
	if len(run.Tour) == 0 {
		return nil, false, errors.New(errors.ErrCodeInvalidInput, "run %s has no tour", run.ID)
	}

	artifacts := make(map[string][]byte, len(formats))
	allCached := true
	for _, format := range formats {
		key := r.Keyer.ArtifactKey(runKey, ArtifactKeyOpts(format, opts))
		data, ok := r.lookup(ctx, key, "artifact")
		if !ok {
			allCached = false
			break
		}
		artifacts[format] = data
	}
	if allCached {
		return artifacts, true, nil
	}

	dot, err := render.ToDOT(inst, run.Tour, opts)
	if err != nil {
		return nil, false, err
	}
	for _, format := range formats {
		data, err := render.Render(ctx, dot, format)
		if err != nil {
			return nil, false, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
		r.store(ctx, r.Keyer.ArtifactKey(runKey, ArtifactKeyOpts(format, opts)), "artifact", data, cache.TTLArtifact)
	}
	return artifacts, false, nil
}

// Render renders a stored run. The run key is recomputed from the instance
// and the run's configuration.
func (r *Runner) Render(ctx context.Context, inst *tsplib.Instance, run *tracking.Run, formats []string, opts render.Options) (map[string][]byte, error) {
	key := r.Keyer.RunKey(cache.HashFloats(inst.Matrix.Data()), RunKeyOpts(run.Config))
	artifacts, _, err := r.RenderWithCacheInfo(ctx, inst, run, key, formats, opts)
	return artifacts, err
}

// Close releases resources held by the runner.
func (r *Runner) Close() error {
	var first error
	if r.Cache != nil {
		first = r.Cache.Close()
	}
	if r.Store != nil {
		if err := r.Store.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (r *Runner) lookup(ctx context.Context, key, keyType string) ([]byte, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil {
		r.Logger.Warn("cache read failed", "key", key, "err", err)
		return nil, false
	}
	if !hit {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return data, true
}

func (r *Runner) store(ctx context.Context, key, keyType string, data []byte, ttl time.Duration) {
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Warn("cache write failed", "key", key, "err", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

func (r *Runner) save(ctx context.Context, run *tracking.Run) {
	if r.Store == nil {
		return
	}
	if err := r.Store.Save(ctx, run); err != nil {
		r.Logger.Warn("saving run failed", "id", run.ID, "err", err)
	}
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// shakeHooks forwards shakes to the registered run hooks.
type shakeHooks struct {
	telemetry.Noop
	problem string
}

func (h shakeHooks) OnShake(ctx context.Context, rec telemetry.ShakeRecord) error {
	observability.Run().OnShake(ctx, h.problem, rec.Generation)
	return nil
}
