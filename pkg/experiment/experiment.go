// Package experiment describes and executes batches of optimizer runs.
//
// A [Plan] is a list of [Spec] values, each naming a problem and a full run
// configuration. Plans are generated with [Generate], stored as TOML, YAML or
// JSON with [Save] and [Load], and executed concurrently with [Execute].
package experiment

import (
	"fmt"

	"github.com/matzehuels/mallows/pkg/eda"
	"github.com/matzehuels/mallows/pkg/errors"
)

// DefaultIterations is the generation count of generated plans.
const DefaultIterations = 100_000

// Restarts are the stagnation thresholds a generated plan sweeps.
var Restarts = []int{100, 250}

// Spec is one run of a plan.
type Spec struct {
	// ProblemName is a TSPLIB instance name resolved in the data directory.
	ProblemName string `toml:"problem_name" yaml:"problem_name" json:"problem_name"`

	// Path is a TSPLIB file path, used when ProblemName is empty.
	Path string `toml:"path,omitempty" yaml:"path,omitempty" json:"path,omitempty"`

	// Series labels the run within its plan ("A", "B", ...).
	Series string `toml:"series,omitempty" yaml:"series,omitempty" json:"series,omitempty"`

	eda.Config `yaml:",inline"`

	// LegacyRestart accepts the misspelled key of older plan files.
	LegacyRestart int `toml:"restart_after_central_permutaition_fix,omitempty" yaml:"restart_after_central_permutaition_fix,omitempty" json:"restart_after_central_permutaition_fix,omitempty"`
}

// Name identifies the run in logs and tables.
func (s Spec) Name() string {
	problem := s.ProblemName
	if problem == "" {
		problem = s.Path
	}
	if s.Series == "" {
		return problem
	}
	return problem + "/" + s.Series
}

// normalize folds the legacy restart key into Restart.
func (s *Spec) normalize() {
	if s.LegacyRestart != 0 && s.Restart == 0 {
		s.Restart = s.LegacyRestart
	}
	s.LegacyRestart = 0
}

// Validate checks that s names a problem and carries a valid
// configuration.
func (s Spec) Validate() error {
	if s.ProblemName == "" && s.Path == "" {
		return errors.New(errors.ErrCodeInvalidInput, "spec %q: problem_name or path is required", s.Series)
	}
	if s.ProblemName != "" {
		if err := errors.ValidateProblemName(s.ProblemName); err != nil {
			return err
		}
	}
	cfg := s.Config
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("spec %s: %w", s.Name(), err)
	}
	return nil
}

// Plan is an ordered list of runs.
type Plan struct {
	Runs []Spec `toml:"runs" yaml:"runs" json:"runs"`
}

// Validate checks every run.
func (p Plan) Validate() error {
	if len(p.Runs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "plan has no runs")
	}
	for _, s := range p.Runs {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Generate returns the reference sweep for a problem of size n: population
// sizes 10n, 100n and 1000n, each with selection size population/10 and
// both restart thresholds of [Restarts], labeled A through F.
func Generate(problem string, n int) Plan {
	var plan Plan
	series := 'A'
	pop := n
	for range 3 {
		pop *= 10
		for _, restart := range Restarts {
			plan.Runs = append(plan.Runs, Spec{
				ProblemName: problem,
				Series:      string(series),
				Config: eda.Config{
					ProblemSize:       n,
					PopulationSize:    pop,
					SelectionSize:     pop / 10,
					OffspringSize:     pop - 1,
					Iterations:        DefaultIterations,
					SelectionFunction: eda.DefaultSelection,
					Restart:           restart,
					Seed:              eda.DefaultSeed,
				},
			})
			series++
		}
	}
	return plan
}
