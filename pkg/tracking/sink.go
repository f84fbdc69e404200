package tracking

import (
	"context"
	"slices"
	"sync"

	"github.com/matzehuels/mallows/pkg/telemetry"
)

// Sink is a telemetry sink that appends records to a Run.
//
// With MaxHistory > 0 only the most recent MaxHistory generation records are
// kept; shakes are always kept. Store, when set, receives the run after
// every shake and every Flush-th generation so long runs can be followed
// while they execute.
type Sink struct {
	MaxHistory int
	Flush      int
	Store      Store

	mu  sync.Mutex
	run *Run
}

// NewSink returns a sink filling run.
func NewSink(run *Run) *Sink {
	return &Sink{run: run}
}

func (s *Sink) OnGeneration(ctx context.Context, rec telemetry.GenerationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := append(s.run.History, rec)
	if s.MaxHistory > 0 && len(h) > s.MaxHistory {
		h = slices.Delete(h, 0, len(h)-s.MaxHistory)
	}
	s.run.History = h

	if s.Store != nil && s.Flush > 0 && (rec.Generation+1)%s.Flush == 0 {
		return s.Store.Save(ctx, s.run)
	}
	return nil
}

func (s *Sink) OnShake(ctx context.Context, rec telemetry.ShakeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.run.Shakes = append(s.run.Shakes, rec)
	if s.Store != nil {
		return s.Store.Save(ctx, s.run)
	}
	return nil
}

// Run returns the run being filled.
func (s *Sink) Run() *Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run
}

var _ telemetry.Sink = (*Sink)(nil)
