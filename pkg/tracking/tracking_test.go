package tracking

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mallows/pkg/eda"
	"github.com/matzehuels/mallows/pkg/perm"
	"github.com/matzehuels/mallows/pkg/telemetry"
)

func TestRunFinish(t *testing.T) {
	res := &eda.Result{Best: []int{2, 0, 1}, BestObjective: 7}

	tests := []struct {
		name   string
		err    error
		status Status
	}{
		{"completed", nil, StatusCompleted},
		{"canceled", context.Canceled, StatusCanceled},
		{"deadline", context.DeadlineExceeded, StatusCanceled},
		{"failed", errors.New("boom"), StatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("gr5", eda.DefaultConfig(4))
			assert.False(t, r.Done())
			r.Finish(res, tt.err)

			assert.True(t, r.Done())
			assert.Equal(t, tt.status, r.Status)
			assert.Equal(t, []int{0, 3, 1, 2}, r.Tour)
			assert.False(t, r.FinishedAt.IsZero())
			if tt.err != nil {
				assert.Equal(t, tt.err.Error(), r.Error)
			} else {
				assert.Empty(t, r.Error)
			}
		})
	}
}

func TestRunFinishWithoutResult(t *testing.T) {
	r := New("p", eda.Config{})
	r.Finish(nil, errors.New("bad config"))
	assert.Equal(t, StatusFailed, r.Status)
	assert.Nil(t, r.Result)
	assert.Nil(t, r.Tour)
}

func TestRunClone(t *testing.T) {
	r := New("p", eda.Config{})
	r.Finish(&eda.Result{Best: []int{0, 1}, Center: []int{1, 0}}, nil)
	r.History = []telemetry.GenerationRecord{{Generation: 0}}

	c := r.Clone()
	c.Result.Best[0] = 9
	c.Tour[0] = 9
	c.History[0].Generation = 9

	assert.Equal(t, 0, r.Result.Best[0])
	assert.Equal(t, 0, r.Tour[0])
	assert.Equal(t, 0, r.History[0].Generation)
}

func TestNewIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := New("p", eda.Config{}).ID
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "7b4a1f0e-0000-4000-8000-000000000000")
	require.ErrorIs(t, err, ErrNotFound)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ids []string
	for i, problem := range []string{"burma14", "gr17", "burma14"} {
		r := New(problem, eda.DefaultConfig(5))
		r.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		r.History = []telemetry.GenerationRecord{{Generation: 0, BestObjective: float64(i)}}
		r.Finish(&eda.Result{Best: []int{0, 1, 2, 3}, BestObjective: float64(i)}, nil)
		require.NoError(t, s.Save(ctx, r))
		ids = append(ids, r.ID)
	}

	got, err := s.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "gr17", got.Problem)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Len(t, got.History, 1)
	require.NotNil(t, got.Result)
	assert.Equal(t, 1.0, got.Result.BestObjective)

	all, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Nil(t, all[0].History, "listings omit history")

	burma, err := s.List(ctx, ListOptions{Problem: "burma14", Limit: 1})
	require.NoError(t, err)
	require.Len(t, burma, 1)
	assert.Equal(t, ids[2], burma[0].ID)

	running, err := s.List(ctx, ListOptions{Status: StatusRunning})
	require.NoError(t, err)
	assert.Empty(t, running)

	// Save replaces.
	got.Problem = "renamed"
	require.NoError(t, s.Save(ctx, got))
	again, err := s.Get(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, "renamed", again.Problem)

	require.NoError(t, s.Delete(ctx, ids[0]))
	require.ErrorIs(t, s.Delete(ctx, ids[0]), ErrNotFound)
	_, err = s.Get(ctx, ids[0])
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Close())
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	r := New("p", eda.Config{})
	require.NoError(t, s.Save(ctx, r))

	r.Problem = "mutated"
	got, err := s.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "p", got.Problem)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	testStore(t, s)
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.json"), []byte(`{"id":"x"}`), 0o644))

	_, err = s.Get(context.Background(), "../secret")
	require.ErrorIs(t, err, ErrNotFound)

	r := New("p", eda.Config{})
	r.ID = "../escape"
	require.Error(t, s.Save(context.Background(), r))
}

func TestFileStoreSkipsCorruptFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "junk.json"), []byte("{"), 0o644))
	require.NoError(t, s.Save(context.Background(), New("p", eda.Config{})))

	runs, err := s.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestNewMongoStoreUnreachable(t *testing.T) {
	_, err := NewMongoStore(context.Background(), MongoOptions{
		URI:     "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200&connectTimeoutMS=200",
		Timeout: 2 * time.Second,
	})
	require.Error(t, err)
}

func TestSink(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	run := New("p", eda.Config{})
	sink := NewSink(run)
	sink.MaxHistory = 3
	sink.Flush = 2
	sink.Store = store

	for gen := range 5 {
		require.NoError(t, sink.OnGeneration(ctx, telemetry.GenerationRecord{Generation: gen}))
	}
	require.Len(t, run.History, 3)
	assert.Equal(t, 2, run.History[0].Generation)
	assert.Equal(t, 4, run.History[2].Generation)

	// Flushed after generation 3, before generation 4 was appended.
	saved, err := store.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, saved.History[len(saved.History)-1].Generation)

	require.NoError(t, sink.OnShake(ctx, telemetry.ShakeRecord{Generation: 4, PopulationSize: 10}))
	saved, err = store.Get(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, saved.Shakes, 1)
	assert.Equal(t, 10, saved.Shakes[0].PopulationSize)
	assert.Same(t, run, sink.Run())
}

func TestSinkWithEngine(t *testing.T) {
	cfg := eda.Config{
		ProblemSize:    5,
		PopulationSize: 20,
		SelectionSize:  5,
		OffspringSize:  19,
		Iterations:     6,
		Restart:        200,
		Seed:           3,
	}
	objective := func(pop *perm.Batch) []float64 {
		out := make([]float64, pop.Len())
		for i := range out {
			for j, v := range pop.Row(i) {
				if v != j {
					out[i]++
				}
			}
		}
		return out
	}

	run := New("identity", cfg)
	sink := NewSink(run)
	engine, err := eda.New(cfg, objective, eda.WithSink(sink))
	require.NoError(t, err)
	res, err := engine.Run(context.Background())
	run.Finish(res, err)

	require.NoError(t, err)
	assert.Len(t, run.History, 6)
	assert.Equal(t, StatusCompleted, run.Status)
	assert.Len(t, run.Tour, 5)
}
