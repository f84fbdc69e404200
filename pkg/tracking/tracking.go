// Package tracking records optimizer runs for later inspection.
//
// A [Run] captures what was run (problem and configuration), how it went
// (status, timings, per-generation history, shakes) and what it produced.
// Runs are persisted through a [Store]:
//   - [MemoryStore]: in-process, for tests and the API server without a database
//   - [FileStore]: one JSON file per run, for the CLI
//   - [MongoStore]: a MongoDB collection, for shared deployments
//
// A [Sink] plugs into the engine as a telemetry sink and fills a Run's
// history while it executes.
package tracking

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/mallows/pkg/eda"
	"github.com/matzehuels/mallows/pkg/telemetry"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Origin records where a run's instance came from.
type Origin string

const (
	// OriginDataDir instances were resolved by name in a data directory.
	OriginDataDir Origin = "data_dir"
	// OriginFile instances were read from a TSPLIB file path.
	OriginFile Origin = "file"
	// OriginInline instances were sent as TSPLIB text and are not stored.
	OriginInline Origin = "inline"
)

// Run is one optimizer run.
type Run struct {
	ID      string     `json:"id" bson:"_id"`
	Problem string     `json:"problem" bson:"problem"`
	Config  eda.Config `json:"config" bson:"config"`
	Status  Status     `json:"status" bson:"status"`
	Error   string     `json:"error,omitempty" bson:"error,omitempty"`

	Origin Origin `json:"origin,omitempty" bson:"origin,omitempty"`
	// ProblemHash identifies the distance matrix the run was solved on.
	ProblemHash string `json:"problem_hash,omitempty" bson:"problem_hash,omitempty"`

	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`

	// Result is set once the run stops, also on cancellation.
	Result *eda.Result `json:"result,omitempty" bson:"result,omitempty"`
	// Tour is the best tour including the anchor.
	Tour []int `json:"tour,omitempty" bson:"tour,omitempty"`
	// Cached reports that Result was served from the run cache.
	Cached bool `json:"cached,omitempty" bson:"cached,omitempty"`

	History []telemetry.GenerationRecord `json:"history,omitempty" bson:"history,omitempty"`
	Shakes  []telemetry.ShakeRecord      `json:"shakes,omitempty" bson:"shakes,omitempty"`
}

// New returns a running Run with a fresh random ID.
func New(problem string, cfg eda.Config) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Problem:   problem,
		Config:    cfg,
		Status:    StatusRunning,
		CreatedAt: time.Now().UTC(),
	}
}

// Finish records the outcome of the run. A context error marks the run as
// canceled; any other error marks it as failed. res may accompany an error.
func (r *Run) Finish(res *eda.Result, err error) {
	r.FinishedAt = time.Now().UTC()
	if res != nil {
		r.Result = res
		if len(res.Best) > 0 {
			r.Tour = res.Tour()
		}
	}
	switch {
	case err == nil:
		r.Status = StatusCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.Status = StatusCanceled
		r.Error = err.Error()
	default:
		r.Status = StatusFailed
		r.Error = err.Error()
	}
}

// Done reports whether the run has stopped.
func (r *Run) Done() bool { return r.Status != StatusRunning }

// Clone returns a copy of r that shares no slices with it.
func (r *Run) Clone() *Run {
	c := *r
	c.Tour = slices.Clone(r.Tour)
	c.History = slices.Clone(r.History)
	c.Shakes = slices.Clone(r.Shakes)
	if r.Result != nil {
		res := *r.Result
		res.Best = slices.Clone(res.Best)
		res.Center = slices.Clone(res.Center)
		c.Result = &res
	}
	return &c
}

// Summary drops the history so listings stay small.
func (r *Run) Summary() *Run {
	c := *r
	c.History, c.Shakes = nil, nil
	return &c
}

// ListOptions filter [Store.List]. Zero values mean no filter.
type ListOptions struct {
	Problem string
	Status  Status
	Limit   int
}

func (o ListOptions) match(r *Run) bool {
	return (o.Problem == "" || r.Problem == o.Problem) &&
		(o.Status == "" || r.Status == o.Status)
}

// Store persists runs.
type Store interface {
	// Save inserts or replaces a run.
	Save(ctx context.Context, run *Run) error
	// Get returns the run with id or ErrNotFound.
	Get(ctx context.Context, id string) (*Run, error)
	// List returns run summaries, newest first.
	List(ctx context.Context, opts ListOptions) ([]*Run, error)
	// Delete removes a run or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
	Close() error
}

// sortNewestFirst orders runs by creation time, newest first, then by ID.
func sortNewestFirst(runs []*Run) {
	slices.SortFunc(runs, func(a, b *Run) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
