// Package telemetry defines the records an optimizer run emits and the sinks
// that receive them.
//
// The engine calls a [Sink] synchronously once per generation and once per
// shake. Sinks must not retain the slices inside a record beyond the call
// unless they copy them; the engine hands out copies, so the built-in sinks
// keep them as-is.
//
// A run behaves identically with any sink attached; [Noop] is the default.
package telemetry

import (
	"context"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// =============================================================================
// Records
// =============================================================================

// Summary is the min/mean/max of a set of objective values.
type Summary struct {
	Min  float64 `json:"min" bson:"min"`
	Mean float64 `json:"mean" bson:"mean"`
	Max  float64 `json:"max" bson:"max"`
}

// Summarize returns the summary of values. An empty slice yields the zero
// Summary.
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	return Summary{
		Min:  floats.Min(values),
		Mean: stat.Mean(values, nil),
		Max:  floats.Max(values),
	}
}

// GenerationRecord describes one completed generation.
type GenerationRecord struct {
	Generation int `json:"generation" bson:"generation"`

	// Objective is the summary of the evaluated population.
	Objective Summary `json:"objective" bson:"objective"`

	// Theta is the dispersion fitted to the selected parents.
	Theta float64 `json:"theta" bson:"theta"`

	// SelectedMean is the mean objective of the selected parents.
	SelectedMean float64 `json:"selected_mean" bson:"selected_mean"`

	// BestRepeats counts the selected parents identical to the generation's
	// best individual.
	BestRepeats int `json:"best_repeats" bson:"best_repeats"`

	// CenterObjective is the objective of the fitted center permutation.
	CenterObjective float64 `json:"center_objective" bson:"center_objective"`

	Stagnation int   `json:"stagnation" bson:"stagnation"`
	Center     []int `json:"center" bson:"center"`

	// Best and BestObjective are the best-so-far individual and its value.
	Best          []int   `json:"best" bson:"best"`
	BestObjective float64 `json:"best_objective" bson:"best_objective"`
}

// ShakeRecord describes a shake: the population summary before and after the
// perturbation.
type ShakeRecord struct {
	Generation     int     `json:"generation" bson:"generation"`
	Before         Summary `json:"before" bson:"before"`
	After          Summary `json:"after" bson:"after"`
	PopulationSize int     `json:"population_size" bson:"population_size"`
}

// =============================================================================
// Sinks
// =============================================================================

// Sink receives run records. Errors are reported to the caller, which logs
// them and carries on: a failing sink never stops a run.
type Sink interface {
	OnGeneration(ctx context.Context, rec GenerationRecord) error
	OnShake(ctx context.Context, rec ShakeRecord) error
}

// Noop discards every record.
type Noop struct{}

func (Noop) OnGeneration(context.Context, GenerationRecord) error { return nil }
func (Noop) OnShake(context.Context, ShakeRecord) error           { return nil }

// Multi fans records out to every sink in order and returns the first error.
// Every sink is called even if an earlier one fails.
type Multi []Sink

// NewMulti returns a Multi of the non-nil sinks.
func NewMulti(sinks ...Sink) Multi {
	out := make(Multi, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m Multi) OnGeneration(ctx context.Context, rec GenerationRecord) error {
	var first error
	for _, s := range m {
		if err := s.OnGeneration(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) OnShake(ctx context.Context, rec ShakeRecord) error {
	var first error
	for _, s := range m {
		if err := s.OnShake(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	_ Sink = Noop{}
	_ Sink = Multi(nil)
	_ Sink = (*Recorder)(nil)
	_ Sink = (*LogSink)(nil)
	_ Sink = (*JSONLSink)(nil)
)
