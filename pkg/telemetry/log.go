package telemetry

import (
	"context"

	"github.com/charmbracelet/log"
)

// LogSink writes records to a structured logger: every Every-th generation
// at Info, the remaining generations at Debug and shakes at Warn.
type LogSink struct {
	Logger *log.Logger
	Every  int
}

// NewLogSink returns a LogSink. every < 1 logs each generation at Info.
func NewLogSink(logger *log.Logger, every int) *LogSink {
	return &LogSink{Logger: logger, Every: max(every, 1)}
}

func (s *LogSink) OnGeneration(_ context.Context, rec GenerationRecord) error {
	if s.Logger == nil {
		return nil
	}
	kv := []any{
		"gen", rec.Generation,
		"min", rec.Objective.Min,
		"mean", rec.Objective.Mean,
		"theta", rec.Theta,
		"best", rec.BestObjective,
		"stagnation", rec.Stagnation,
	}
	if s.Every <= 1 || rec.Generation%s.Every == 0 {
		s.Logger.Info("generation", kv...)
	} else {
		s.Logger.Debug("generation", kv...)
	}
	return nil
}

func (s *LogSink) OnShake(_ context.Context, rec ShakeRecord) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Warn("shake",
		"gen", rec.Generation,
		"before_min", rec.Before.Min,
		"after_min", rec.After.Min,
		"after_mean", rec.After.Mean,
		"population", rec.PopulationSize)
	return nil
}
