package telemetry

import (
	"context"
	"slices"
	"sync"
)

// Recorder keeps every record in memory. It is safe for concurrent use, so a
// server can read a live run's history while the engine appends to it.
type Recorder struct {
	mu          sync.RWMutex
	generations []GenerationRecord
	shakes      []ShakeRecord
}

func (r *Recorder) OnGeneration(_ context.Context, rec GenerationRecord) error {
	r.mu.Lock()
	r.generations = append(r.generations, rec)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) OnShake(_ context.Context, rec ShakeRecord) error {
	r.mu.Lock()
	r.shakes = append(r.shakes, rec)
	r.mu.Unlock()
	return nil
}

// Generations returns a copy of the recorded generation records.
func (r *Recorder) Generations() []GenerationRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.generations)
}

// Shakes returns a copy of the recorded shake records.
func (r *Recorder) Shakes() []ShakeRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.shakes)
}

// Last returns the most recent generation record.
func (r *Recorder) Last() (GenerationRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.generations) == 0 {
		return GenerationRecord{}, false
	}
	return r.generations[len(r.generations)-1], true
}
