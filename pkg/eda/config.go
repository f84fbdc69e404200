package eda

import (
	"math/rand/v2"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/selection"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultShakeMoves is the number of element relocations applied to each
	// copy of the best individual during a shake.
	DefaultShakeMoves = 5

	// DefaultShakeWindow bounds how far a relocated element may travel.
	DefaultShakeWindow = 5

	// DefaultRestart is the number of consecutive generations with an
	// unchanged center tolerated before a shake.
	DefaultRestart = 200

	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = uint64(42)

	// DefaultSelection is the default selection policy.
	DefaultSelection = selection.NameTopK
)

// =============================================================================
// Config
// =============================================================================

// Config is the full configuration of one optimizer run. It serializes to
// TOML, YAML and JSON with the same snake_case keys.
type Config struct {
	// ProblemSize is the number of cities (or items) including the anchor.
	ProblemSize int `toml:"problem_size" yaml:"problem_size" json:"problem_size"`

	// PopulationSize must equal OffspringSize+1: one elite plus offspring.
	PopulationSize int `toml:"population_size" yaml:"population_size" json:"population_size"`
	SelectionSize  int `toml:"selection_size" yaml:"selection_size" json:"selection_size"`
	OffspringSize  int `toml:"offspring_size" yaml:"offspring_size" json:"offspring_size"`

	// Iterations is the exact number of generations run.
	Iterations int `toml:"n_iter" yaml:"n_iter" json:"n_iter"`

	SelectionFunction string           `toml:"selection_function" yaml:"selection_function" json:"selection_function"`
	Selection         selection.Params `toml:"selection_params" yaml:"selection_params" json:"selection_params"`

	// Restart is the stagnation threshold: a shake happens once the center
	// has been unchanged for more than Restart consecutive generations.
	Restart int `toml:"restart_after_central_permutation_fix" yaml:"restart_after_central_permutation_fix" json:"restart_after_central_permutation_fix"`

	// ShakeMoves and ShakeWindow are nil when unset. An explicit 0 is kept:
	// zero moves reseed the population with copies of the best individual.
	ShakeMoves  *int `toml:"shake_moves,omitempty" yaml:"shake_moves,omitempty" json:"shake_moves,omitempty"`
	ShakeWindow *int `toml:"shake_window,omitempty" yaml:"shake_window,omitempty" json:"shake_window,omitempty"`

	Seed uint64 `toml:"seed" yaml:"seed" json:"seed"`
}

// DefaultConfig returns the reference sizing for a problem of n cities:
// population 1000n, selection 100n, n_iter 1000n, top-k selection and a
// restart threshold of 200.
func DefaultConfig(n int) Config {
	return ScaledConfig(n, 1)
}

// ScaledConfig returns [DefaultConfig] with population, selection and
// iteration counts multiplied by scale. Sizes never drop below what keeps
// the configuration valid.
func ScaledConfig(n int, scale float64) Config {
	if scale <= 0 {
		scale = 1
	}
	pop := max(int(1000*float64(n)*scale), 2)
	sel := min(max(int(100*float64(n)*scale), 1), pop)
	cfg := Config{
		ProblemSize:       n,
		PopulationSize:    pop,
		SelectionSize:     sel,
		OffspringSize:     pop - 1,
		Iterations:        max(int(1000*float64(n)*scale), 1),
		SelectionFunction: DefaultSelection,
		Selection:         selection.DefaultParams(),
		Restart:           DefaultRestart,
		Seed:              DefaultSeed,
	}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset optional fields.
func (c *Config) SetDefaults() {
	if c.SelectionFunction == "" {
		c.SelectionFunction = DefaultSelection
	}
	if c.Selection == (selection.Params{}) {
		c.Selection = selection.DefaultParams()
	}
	if c.ShakeMoves == nil {
		c.ShakeMoves = Int(DefaultShakeMoves)
	}
	if c.ShakeWindow == nil {
		c.ShakeWindow = Int(DefaultShakeWindow)
	}
}

// Shake returns the shake moves and window, falling back to the defaults
// for unset fields.
func (c Config) Shake() (moves, window int) {
	moves, window = DefaultShakeMoves, DefaultShakeWindow
	if c.ShakeMoves != nil {
		moves = *c.ShakeMoves
	}
	if c.ShakeWindow != nil {
		window = *c.ShakeWindow
	}
	return moves, window
}

// Int returns a pointer to v, for the optional fields of [Config].
func Int(v int) *int { return &v }

// Validate reports the first configuration error, with code INVALID_CONFIG.
func (c Config) Validate() error {
	switch {
	case c.ProblemSize < 2:
		return errors.New(errors.ErrCodeInvalidConfig, "problem_size must be at least 2, got %d", c.ProblemSize)
	case c.PopulationSize < 1:
		return errors.New(errors.ErrCodeInvalidConfig, "population_size must be positive, got %d", c.PopulationSize)
	case c.OffspringSize+1 != c.PopulationSize:
		return errors.New(errors.ErrCodeInvalidConfig,
			"offspring_size+1 (%d) must equal population_size (%d)", c.OffspringSize+1, c.PopulationSize)
	case c.SelectionSize < 1 || c.SelectionSize > c.PopulationSize:
		return errors.New(errors.ErrCodeInvalidConfig,
			"selection_size must be in [1, %d], got %d", c.PopulationSize, c.SelectionSize)
	case c.Iterations < 0:
		return errors.New(errors.ErrCodeInvalidConfig, "n_iter must be nonnegative, got %d", c.Iterations)
	case c.Restart < 0:
		return errors.New(errors.ErrCodeInvalidConfig,
			"restart_after_central_permutation_fix must be nonnegative, got %d", c.Restart)
	}
	if moves, window := c.Shake(); moves < 0 || window < 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"shake_moves and shake_window must be nonnegative, got %d and %d", moves, window)
	}
	// A throwaway source: only the name and parameters are checked here.
	if _, err := selection.New(c.SelectionFunction, rand.New(rand.NewPCG(0, 0)), c.Selection); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfig, err, "selection_function")
	}
	return nil
}
