// Package pipeline runs the optimizer end to end for the CLI, the HTTP API
// and experiment batches.
//
// This package implements the load → run → render pipeline. Centralizing it
// keeps caching, tracking and observability consistent across entry points.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Load: Resolve a TSPLIB instance by name, path or inline source
//  2. Run: Optimize the tour with the Mallows EDA, or reuse a cached result
//  3. Render: Draw the best tour in the requested formats
//
// A seeded run is a pure function of the distance matrix and the
// configuration, so run results are cached under a key derived from both.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, store, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Problem: "burma14",
//	    DataDir: dataDir,
//	    Formats: []string{"svg"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Run.Result.BestObjective)
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mallows/pkg/cache"
	"github.com/matzehuels/mallows/pkg/eda"
	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/render"
	"github.com/matzehuels/mallows/pkg/telemetry"
	"github.com/matzehuels/mallows/pkg/tracking"
	"github.com/matzehuels/mallows/pkg/tsplib"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI, API and experiments
// =============================================================================

const (
	// DefaultScale shrinks the reference sizing (population 1000n, n_iter
	// 1000n) to something that finishes interactively.
	DefaultScale = 0.01

	// DefaultMaxHistory bounds the generation records kept per run.
	DefaultMaxHistory = 10000
)

// Options contains all configuration for one pipeline run.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Exactly one instance source must be set.
	Problem string `json:"problem,omitempty"` // TSPLIB name resolved in DataDir
	Path    string `json:"path,omitempty"`    // TSPLIB file path
	Source  string `json:"source,omitempty"`  // inline TSPLIB text

	// Config is the run configuration. Zero sizing fields are filled from
	// [eda.ScaledConfig] with Scale; ProblemSize is taken from the instance.
	Config eda.Config `json:"config"`
	Scale  float64    `json:"scale,omitempty"`

	Formats []string       `json:"formats,omitempty"`
	Render  render.Options `json:"render"`

	// Refresh ignores cached results and overwrites them.
	Refresh bool `json:"refresh,omitempty"`

	// MaxHistory bounds the generation records stored with the run.
	MaxHistory int `json:"max_history,omitempty"`

	// Runtime options (not serialized)
	DataDir  string           `json:"-"`
	Instance *tsplib.Instance `json:"-"` // preloaded instance, overrides the sources above
	Logger   *log.Logger      `json:"-"`
	Sink     telemetry.Sink   `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Run is the tracked run, also when the optimizer failed or was canceled.
	Run *tracking.Run

	Instance *tsplib.Instance

	// ProblemHash is the content hash of the distance matrix.
	ProblemHash string

	// RunKey is the cache key of the run result.
	RunKey string

	// Artifacts contains rendered tours keyed by format.
	Artifacts map[string][]byte

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Cities      int
	Generations int
	LoadTime    time.Duration
	RunTime     time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	RunHit    bool // Whether the run result came from cache
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Validation
// =============================================================================

// ValidateFormats checks that all formats are supported by [render.Render].
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		switch f {
		case render.FormatDOT, render.FormatSVG, render.FormatPNG:
		default:
			return errors.New(errors.ErrCodeInvalidFormat, "invalid format: %q (must be one of: dot, svg, png)", f)
		}
	}
	return nil
}

// ValidateAndSetDefaults checks the instance source and formats and applies
// defaults. This method is idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Instance == nil {
		sources := 0
		for _, s := range []string{o.Problem, o.Path, o.Source} {
			if s != "" {
				sources++
			}
		}
		if sources != 1 {
			return errors.New(errors.ErrCodeInvalidInput, "exactly one of problem, path or source is required")
		}
		if o.Problem != "" {
			if err := errors.ValidateProblemName(o.Problem); err != nil {
				return err
			}
		}
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Scale <= 0 {
		o.Scale = DefaultScale
	}
	if o.MaxHistory == 0 {
		o.MaxHistory = DefaultMaxHistory
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	o.validated = true
	return nil
}

// ResolveConfig completes cfg for an instance of n cities. ProblemSize is set
// to n and zero fields are derived from [eda.ScaledConfig]: population and
// offspring together, selection as the reference when the population is
// derived and as population/10 otherwise, iterations and the restart
// threshold as the reference. A zero Seed becomes [eda.DefaultSeed]. The
// result is validated.
func ResolveConfig(cfg eda.Config, n int, scale float64) (eda.Config, error) {
	if cfg.ProblemSize != 0 && cfg.ProblemSize != n {
		return cfg, errors.New(errors.ErrCodeInvalidConfig,
			"problem_size %d does not match instance dimension %d", cfg.ProblemSize, n)
	}
	cfg.ProblemSize = n
	if cfg.Seed == 0 {
		cfg.Seed = eda.DefaultSeed
	}
	ref := eda.ScaledConfig(n, scale)
	switch {
	case cfg.PopulationSize == 0:
		cfg.PopulationSize, cfg.OffspringSize = ref.PopulationSize, ref.OffspringSize
		if cfg.SelectionSize == 0 {
			cfg.SelectionSize = ref.SelectionSize
		}
	case cfg.SelectionSize == 0:
		cfg.SelectionSize = max(cfg.PopulationSize/10, 1)
	}
	if cfg.OffspringSize == 0 {
		cfg.OffspringSize = cfg.PopulationSize - 1
	}
	if cfg.Iterations == 0 {
		cfg.Iterations = ref.Iterations
	}
	if cfg.Restart == 0 {
		cfg.Restart = ref.Restart
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// RunKeyOpts returns cache key options for a resolved configuration.
func RunKeyOpts(cfg eda.Config) cache.RunKeyOpts {
	moves, window := cfg.Shake()
	return cache.RunKeyOpts{
		ProblemSize:    cfg.ProblemSize,
		PopulationSize: cfg.PopulationSize,
		SelectionSize:  cfg.SelectionSize,
		OffspringSize:  cfg.OffspringSize,
		Iterations:     cfg.Iterations,
		Selection:      cfg.SelectionFunction,
		Alpha:          cfg.Selection.Alpha,
		Beta:           cfg.Selection.Beta,
		Restart:        cfg.Restart,
		ShakeMoves:     moves,
		ShakeWindow:    window,
		Seed:           cfg.Seed,
	}
}

// ArtifactKeyOpts returns cache key options for a rendered tour.
func ArtifactKeyOpts(format string, opts render.Options) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:     format,
		Size:       opts.Size,
		EdgeLabels: opts.EdgeLabels,
		Labels:     opts.Labels,
	}
}

func (o *Options) origin() tracking.Origin {
	switch {
	case o.Problem != "":
		return tracking.OriginDataDir
	case o.Path != "":
		return tracking.OriginFile
	case o.Source != "":
		return tracking.OriginInline
	}
	return ""
}

// InstanceForRun loads the instance a stored run was solved on, by name from
// dataDir, or from path when it is non-empty. Runs on inline TSPLIB text
// cannot be reloaded, and an instance whose distance matrix differs from the
// one recorded on the run is rejected. Runs without a recorded hash are
// trusted.
func InstanceForRun(dataDir, path string, run *tracking.Run) (*tsplib.Instance, error) {
	if path == "" && run.Origin == tracking.OriginInline {
		return nil, errors.New(errors.ErrCodeInstanceUnavailable,
			"run %s was solved on inline TSPLIB text, which is not stored", run.ID)
	}
	var (
		inst *tsplib.Instance
		err  error
	)
	if path != "" {
		inst, err = tsplib.ParseFile(path)
	} else {
		inst, err = tsplib.Load(dataDir, run.Problem)
	}
	if err != nil {
		return nil, err
	}
	if inst.Matrix == nil {
		return nil, errors.New(errors.ErrCodeInvalidProblem, "%s has no distance matrix (type %s)", inst.Name, inst.Type)
	}
	if run.ProblemHash != "" && run.ProblemHash != cache.HashFloats(inst.Matrix.Data()) {
		return nil, errors.New(errors.ErrCodeInstanceMismatch,
			"instance %s differs from the one run %s was solved on", inst.Name, run.ID)
	}
	return inst, nil
}

func describe(o *Options) string {
	switch {
	case o.Instance != nil:
		return o.Instance.Name
	case o.Problem != "":
		return o.Problem
	case o.Path != "":
		return o.Path
	default:
		return fmt.Sprintf("inline source (%d bytes)", len(o.Source))
	}
}
