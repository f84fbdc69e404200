package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/mallows/pkg/cache"
	"github.com/matzehuels/mallows/pkg/eda"
	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/observability"
	"github.com/matzehuels/mallows/pkg/tracking"
)

const hexagon = `NAME : hex6
TYPE : TSP
COMMENT : regular hexagon, optimal tour 0 1 2 3 4 5
DIMENSION : 6
EDGE_WEIGHT_TYPE : EUC_2D
NODE_COORD_SECTION
1 10 0
2 5 8.66
3 -5 8.66
4 -10 0
5 -5 -8.66
6 5 -8.66
EOF
`

const tourFile = `NAME : hex6.opt.tour
TYPE : TOUR
DIMENSION : 6
TOUR_SECTION
1 2 3 4 5 6 -1
EOF
`

func smallConfig() eda.Config {
	return eda.Config{
		PopulationSize: 60,
		SelectionSize:  10,
		OffspringSize:  59,
		Iterations:     15,
		Restart:        200,
		Seed:           11,
	}
}

func newTestRunner(t *testing.T) (*Runner, *tracking.MemoryStore) {
	t.Helper()
	c, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := tracking.NewMemoryStore()
	return NewRunner(c, nil, store, nil), store
}

func TestValidateFormats(t *testing.T) {
	tests := []struct {
		formats []string
		wantErr bool
	}{
		{nil, false},
		{[]string{"svg", "png", "dot"}, false},
		{[]string{"svg", "pdf"}, true},
		{[]string{"SVG"}, true}, // case-sensitive
		{[]string{""}, true},
	}
	for _, tt := range tests {
		err := ValidateFormats(tt.formats)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateFormats(%v) error = %v, wantErr %v", tt.formats, err, tt.wantErr)
		}
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{"no source", Options{}, true},
		{"two sources", Options{Problem: "a280", Source: hexagon}, true},
		{"traversal", Options{Problem: "../etc/passwd"}, true},
		{"bad format", Options{Problem: "a280", Formats: []string{"gif"}}, true},
		{"name", Options{Problem: "a280"}, false},
		{"path", Options{Path: "x.tsp"}, false},
		{"source", Options{Source: hexagon}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.ValidateAndSetDefaults()
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if tt.opts.Scale != DefaultScale || tt.opts.MaxHistory != DefaultMaxHistory || tt.opts.Logger == nil {
					t.Errorf("defaults not applied: %+v", tt.opts)
				}
			}
		})
	}
}

func TestResolveConfig(t *testing.T) {
	cfg, err := ResolveConfig(eda.Config{}, 14, 0.01)
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	want := eda.ScaledConfig(14, 0.01)
	if cfg != want {
		t.Errorf("zero config = %+v, want %+v", cfg, want)
	}

	cfg, err = ResolveConfig(eda.Config{SelectionSize: 3, Iterations: 7, Seed: 5}, 14, 0.01)
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if cfg.SelectionSize != 3 || cfg.Iterations != 7 || cfg.Seed != 5 || cfg.PopulationSize != want.PopulationSize {
		t.Errorf("explicit fields not kept: %+v", cfg)
	}

	explicit := smallConfig()
	cfg, err = ResolveConfig(explicit, 6, 1)
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if cfg.PopulationSize != 60 || cfg.ProblemSize != 6 {
		t.Errorf("explicit sizing replaced: %+v", cfg)
	}

	cfg, err = ResolveConfig(eda.Config{PopulationSize: 50}, 14, 0.01)
	if err != nil {
		t.Fatalf("ResolveConfig: %v", err)
	}
	if cfg.OffspringSize != 49 || cfg.SelectionSize != 5 || cfg.Iterations != want.Iterations || cfg.Restart != eda.DefaultRestart {
		t.Errorf("population-only config not completed: %+v", cfg)
	}

	if _, err := ResolveConfig(eda.Config{ProblemSize: 5}, 6, 1); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("size mismatch error = %v", err)
	}
	bad := smallConfig()
	bad.OffspringSize = 10
	if _, err := ResolveConfig(bad, 6, 1); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("invalid config error = %v", err)
	}
}

func TestExecuteCachesRuns(t *testing.T) {
	ctx := context.Background()
	runner, store := newTestRunner(t)
	opts := Options{Source: hexagon, Config: smallConfig()}

	first, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if first.CacheInfo.RunHit {
		t.Error("first run should miss the cache")
	}
	run := first.Run
	if run.Status != tracking.StatusCompleted || run.Result == nil {
		t.Fatalf("run = %+v", run)
	}
	if len(run.Tour) != 6 || run.Tour[0] != 0 {
		t.Errorf("tour = %v, want 6 cities starting at the anchor", run.Tour)
	}
	if got := first.Instance.Matrix.TourCost(run.Tour); got != run.Result.BestObjective {
		t.Errorf("tour cost %v != best objective %v", got, run.Result.BestObjective)
	}
	if len(run.History) != 15 || first.Stats.Generations != 15 {
		t.Errorf("history %d, generations %d, want 15", len(run.History), first.Stats.Generations)
	}
	if first.Stats.Cities != 6 || first.ProblemHash == "" || first.RunKey == "" {
		t.Errorf("stats/keys not filled: %+v", first)
	}

	second, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !second.CacheInfo.RunHit || !second.Run.Cached {
		t.Error("second run should hit the cache")
	}
	if second.Run.ID == run.ID {
		t.Error("cached runs get their own ID")
	}
	if second.Run.Origin != tracking.OriginInline || second.Run.ProblemHash != first.ProblemHash {
		t.Errorf("cached run origin %q hash %q, want %q %q",
			second.Run.Origin, second.Run.ProblemHash, tracking.OriginInline, first.ProblemHash)
	}
	if second.Run.Result.BestObjective != run.Result.BestObjective || len(second.Run.History) != 15 {
		t.Error("cached run differs from the original")
	}

	opts.Refresh = true
	third, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if third.CacheInfo.RunHit {
		t.Error("refresh should bypass the cache")
	}
	if third.Run.Result.BestObjective != run.Result.BestObjective {
		t.Error("seeded runs should be deterministic")
	}

	runs, err := store.List(ctx, tracking.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 3 {
		t.Errorf("store holds %d runs, want 3", len(runs))
	}
}

func TestExecuteSeedChangesKey(t *testing.T) {
	ctx := context.Background()
	runner, _ := newTestRunner(t)

	a, err := runner.Execute(ctx, Options{Source: hexagon, Config: smallConfig()})
	if err != nil {
		t.Fatal(err)
	}
	cfg := smallConfig()
	cfg.Seed = 12
	b, err := runner.Execute(ctx, Options{Source: hexagon, Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	if a.RunKey == b.RunKey || b.CacheInfo.RunHit {
		t.Error("a different seed must not reuse the cached run")
	}
}

func TestExecuteRendersArtifacts(t *testing.T) {
	ctx := context.Background()
	runner, _ := newTestRunner(t)
	opts := Options{Source: hexagon, Config: smallConfig(), Formats: []string{"dot"}}

	res, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	dot := string(res.Artifacts["dot"])
	if !strings.Contains(dot, "graph T {") || !strings.Contains(dot, "hex6") {
		t.Errorf("unexpected DOT:\n%s", dot)
	}
	if res.CacheInfo.RenderHit {
		t.Error("first render should miss the cache")
	}

	again, err := runner.Execute(ctx, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !again.CacheInfo.RenderHit || string(again.Artifacts["dot"]) != dot {
		t.Error("second render should come from cache")
	}

	direct, err := runner.Render(ctx, res.Instance, res.Run, []string{"dot"}, opts.Render)
	if err != nil {
		t.Fatal(err)
	}
	if string(direct["dot"]) != dot {
		t.Error("Render of a stored run should match the pipeline artifact")
	}
}

func TestExecuteByProblemName(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hex6.tsp"), []byte(hexagon), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(nil, nil, nil, nil)

	res, err := runner.Execute(context.Background(), Options{Problem: "hex6", DataDir: dir, Config: smallConfig()})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Instance.Name != "hex6" {
		t.Errorf("instance = %q", res.Instance.Name)
	}

	_, err = runner.Execute(context.Background(), Options{Problem: "missing", DataDir: dir})
	if err == nil {
		t.Error("missing problem should fail")
	}
}

func TestInstanceForRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hex6.tsp")
	if err := os.WriteFile(path, []byte(hexagon), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := NewRunner(nil, nil, nil, nil)
	res, err := runner.Execute(context.Background(), Options{Problem: "hex6", DataDir: dir, Config: smallConfig()})
	if err != nil {
		t.Fatal(err)
	}
	run := res.Run
	if run.Origin != tracking.OriginDataDir || run.ProblemHash != res.ProblemHash {
		t.Fatalf("origin %q hash %q", run.Origin, run.ProblemHash)
	}

	inst, err := InstanceForRun(dir, "", run)
	if err != nil {
		t.Fatalf("InstanceForRun: %v", err)
	}
	if inst.Name != "hex6" {
		t.Errorf("instance = %q", inst.Name)
	}
	if _, err := InstanceForRun("", path, run); err != nil {
		t.Errorf("explicit path: %v", err)
	}

	// Same name, different coordinates.
	moved := strings.Replace(hexagon, "4 -10 0", "4 -12 0", 1)
	if err := os.WriteFile(path, []byte(moved), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := InstanceForRun(dir, "", run); !errors.Is(err, errors.ErrCodeInstanceMismatch) {
		t.Errorf("changed instance: error = %v, want INSTANCE_MISMATCH", err)
	}

	legacy := *run
	legacy.ProblemHash = ""
	if _, err := InstanceForRun(dir, "", &legacy); err != nil {
		t.Errorf("run without hash: %v", err)
	}

	inline := *run
	inline.Origin = tracking.OriginInline
	if _, err := InstanceForRun(dir, "", &inline); !errors.Is(err, errors.ErrCodeInstanceUnavailable) {
		t.Errorf("inline run: error = %v, want INSTANCE_UNAVAILABLE", err)
	}
	inline.ProblemHash = ""
	if _, err := InstanceForRun("", path, &inline); err != nil {
		t.Errorf("inline run with explicit file: %v", err)
	}
}

func TestExecuteRejectsTourFiles(t *testing.T) {
	runner := NewRunner(nil, nil, nil, nil)
	_, err := runner.Execute(context.Background(), Options{Source: tourFile})
	if !errors.Is(err, errors.ErrCodeInvalidProblem) {
		t.Errorf("error = %v, want INVALID_PROBLEM", err)
	}
}

func TestExecuteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner, store := newTestRunner(t)

	res, err := runner.Execute(ctx, Options{Source: hexagon, Config: smallConfig()})
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if res == nil || res.Run.Status != tracking.StatusCanceled {
		t.Fatalf("result = %+v", res)
	}
	saved, err := store.Get(context.Background(), res.Run.ID)
	if err != nil {
		t.Fatalf("canceled run not stored: %v", err)
	}
	if saved.Status != tracking.StatusCanceled {
		t.Errorf("stored status = %s", saved.Status)
	}

	// Canceled runs are not cached.
	again, err := runner.Execute(context.Background(), Options{Source: hexagon, Config: smallConfig()})
	if err != nil {
		t.Fatal(err)
	}
	if again.CacheInfo.RunHit {
		t.Error("canceled run was cached")
	}
}

type countingHooks struct {
	observability.NoopRunHooks
	observability.NoopCacheHooks
	starts, completes, hits, misses, sets atomic.Int32
}

func (h *countingHooks) OnRunStart(context.Context, string, int) { h.starts.Add(1) }
func (h *countingHooks) OnRunComplete(context.Context, string, int, float64, time.Duration, error) {
	h.completes.Add(1)
}
func (h *countingHooks) OnCacheHit(context.Context, string)      { h.hits.Add(1) }
func (h *countingHooks) OnCacheMiss(context.Context, string)     { h.misses.Add(1) }
func (h *countingHooks) OnCacheSet(context.Context, string, int) { h.sets.Add(1) }

func TestExecuteEmitsHooks(t *testing.T) {
	hooks := &countingHooks{}
	observability.SetRunHooks(hooks)
	observability.SetCacheHooks(hooks)
	defer observability.Reset()

	ctx := context.Background()
	runner, _ := newTestRunner(t)
	opts := Options{Source: hexagon, Config: smallConfig()}
	for range 2 {
		if _, err := runner.Execute(ctx, opts); err != nil {
			t.Fatal(err)
		}
	}

	if hooks.starts.Load() != 1 || hooks.completes.Load() != 1 {
		t.Errorf("run hooks: %d starts, %d completes, want 1 each", hooks.starts.Load(), hooks.completes.Load())
	}
	if hooks.misses.Load() != 1 || hooks.hits.Load() != 1 || hooks.sets.Load() != 1 {
		t.Errorf("cache hooks: %d misses, %d hits, %d sets, want 1 each",
			hooks.misses.Load(), hooks.hits.Load(), hooks.sets.Load())
	}
}
