package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/mallows/pkg/eda"
	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/experiment"
	"github.com/matzehuels/mallows/pkg/tracking"
)

const square5 = `NAME : square5
TYPE : TSP
DIMENSION : 5
EDGE_WEIGHT_TYPE : EUC_2D
NODE_COORD_SECTION
1 0 0
2 4 0
3 4 4
4 2 6
5 0 4
EOF
`

// isolate points every directory the CLI touches at a temp dir and returns
// the TSPLIB directory holding square5.
func isolate(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", filepath.Join(root, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("MALLOWS_DATA_DIR", "")
	t.Setenv("MALLOWS_REDIS_URL", "")
	t.Setenv("MALLOWS_MONGO_URI", "")

	dir := filepath.Join(root, "tsplib")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "square5.tsp"), []byte(square5), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := New(io.Discard, LogInfo).RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func TestRunCommand(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(t.TempDir(), "tours", "square5")

	err := execute(t, "--data-dir", dir, "run", "square5",
		"--population", "30", "--selection-size", "6", "--iterations", "8",
		"--restart", "200", "--seed", "3", "-r", "svg", "-o", out)
	require.NoError(t, err)

	assert.FileExists(t, out+".svg")

	runs, err := runsDir()
	require.NoError(t, err)
	store, err := tracking.NewFileStore(runs)
	require.NoError(t, err)
	list, err := store.List(context.Background(), tracking.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "square5", list[0].Problem)
	assert.Equal(t, tracking.StatusCompleted, list[0].Status)
	assert.Equal(t, 29, list[0].Config.OffspringSize)
	assert.Len(t, list[0].Tour, 5)

	require.NoError(t, execute(t, "runs", "show", list[0].ID))
	require.NoError(t, execute(t, "runs", "delete", list[0].ID))
	_, err = store.Get(context.Background(), list[0].ID)
	assert.ErrorIs(t, err, tracking.ErrNotFound)
}

func TestCacheCommands(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, execute(t, "--data-dir", dir, "run", "square5",
		"--population", "20", "--selection-size", "4", "--iterations", "3", "--seed", "5"))

	fc, err := openDiskCache()
	require.NoError(t, err)
	before, err := fc.Stats()
	require.NoError(t, err)
	assert.Positive(t, before.Entries)

	require.NoError(t, execute(t, "cache", "info"))
	require.NoError(t, execute(t, "cache", "clear", "--expired"))
	kept, err := fc.Stats()
	require.NoError(t, err)
	assert.Equal(t, before.Entries, kept.Entries, "live entries survive --expired")

	require.NoError(t, execute(t, "cache", "clear"))
	after, err := fc.Stats()
	require.NoError(t, err)
	assert.Zero(t, after.Entries)
}

func TestRunCommandErrors(t *testing.T) {
	dir := isolate(t)

	tests := []struct {
		name string
		args []string
		code errors.Code
	}{
		{"missing instance", []string{"--data-dir", dir, "run", "absent", "--no-cache"}, errors.ErrCodeFileNotFound},
		{"bad format", []string{"--data-dir", dir, "run", "square5", "-r", "gif"}, errors.ErrCodeInvalidFormat},
		{"missing config", []string{"--data-dir", dir, "run", "square5", "-c", "nope.toml"}, errors.ErrCodeFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := execute(t, tt.args...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestExperimentGenerate(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(t.TempDir(), "plan.yaml")

	require.NoError(t, execute(t, "--data-dir", dir, "experiment", "generate", "square5",
		"-o", out, "--iterations", "4", "--seed", "9"))

	plan, err := experiment.Load(out)
	require.NoError(t, err)
	require.Len(t, plan.Runs, 6)
	for _, s := range plan.Runs {
		assert.Equal(t, "square5", s.ProblemName)
		assert.Equal(t, 4, s.Iterations)
	}
}

func TestParseFormats(t *testing.T) {
	assert.Nil(t, parseFormats(""))
	assert.Equal(t, []string{"svg"}, parseFormats("svg"))
	assert.Equal(t, []string{"svg", "png", "dot"}, parseFormats(" svg, png ,,dot"))
}

func TestFormatTour(t *testing.T) {
	assert.Equal(t, "1 3 2 5 4", formatTour([]int{0, 2, 1, 4, 3}))
	assert.Equal(t, "", formatTour(nil))
}

func TestBasePath(t *testing.T) {
	tests := []struct{ output, fallback, want string }{
		{"", "burma14", "burma14"},
		{"out/tour.svg", "burma14", "out/tour"},
		{"tour.png", "burma14", "tour"},
		{"tour.v2", "burma14", "tour.v2"},
		{"tour", "burma14", "tour"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, basePath(tt.output, tt.fallback), "basePath(%q)", tt.output)
	}
}

func TestWriteArtifacts(t *testing.T) {
	base := filepath.Join(t.TempDir(), "nested", "gr17")
	paths, err := writeArtifacts(base, map[string][]byte{
		"svg": []byte("<svg/>"),
		"dot": []byte("graph {}"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{base + ".dot", base + ".svg"}, paths)

	data, err := os.ReadFile(base + ".svg")
	require.NoError(t, err)
	assert.Equal(t, "<svg/>", string(data))
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"run.toml": "population_size = 40\nselection_size = 8\nn_iter = 12\nselection_function = \"linear_ranking\"\n\n[selection_params]\nalpha = 0.5\nbeta = 1.5\n",
		"run.yaml": "population_size: 40\nselection_size: 8\nn_iter: 12\nselection_function: linear_ranking\nselection_params:\n  alpha: 0.5\n  beta: 1.5\n",
		"run.json": `{"population_size": 40, "selection_size": 8, "n_iter": 12, "selection_function": "linear_ranking", "selection_params": {"alpha": 0.5, "beta": 1.5}}`,
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			cfg, err := loadConfigFile(path)
			require.NoError(t, err)
			assert.Equal(t, 40, cfg.PopulationSize)
			assert.Equal(t, 8, cfg.SelectionSize)
			assert.Equal(t, 12, cfg.Iterations)
			assert.Equal(t, "linear_ranking", cfg.SelectionFunction)
			assert.Equal(t, 1.5, cfg.Selection.Beta)
		})
	}

	t.Run("unsupported", func(t *testing.T) {
		path := filepath.Join(dir, "run.ini")
		require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))
		_, err := loadConfigFile(path)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidFormat))
	})

	t.Run("malformed", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
		_, err := loadConfigFile(path)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
	})
}

func TestRunOptsConfig(t *testing.T) {
	opts := runOpts{cfg: eda.Config{PopulationSize: 50}}
	assert.Equal(t, 49, opts.config().OffspringSize)

	opts.cfg.OffspringSize = 20
	assert.Equal(t, 20, opts.config().OffspringSize)

	empty := runOpts{}
	assert.Zero(t, empty.config().OffspringSize)
}

func TestFilterSeries(t *testing.T) {
	plan := experiment.Generate("burma14", 14)
	got := filterSeries(plan, []string{"A", " C"})
	require.Len(t, got.Runs, 2)
	assert.Equal(t, "A", got.Runs[0].Series)
	assert.Equal(t, "C", got.Runs[1].Series)

	assert.Empty(t, filterSeries(plan, []string{"Z"}).Runs)
}

func TestListProblems(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "square5.tsp"), []byte(square5), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "square5.opt.tour"), []byte("TYPE : TOUR\nDIMENSION : 5\nTOUR_SECTION\n1 2 3 4 5 -1\n"), 0o644))

	problems, err := listProblems(dir)
	require.NoError(t, err)
	require.Len(t, problems, 1)
	assert.Equal(t, "square5", problems[0].Name)
	assert.True(t, problems[0].HasOptimum)
	assert.Equal(t, int64(len(square5)), problems[0].Size)
}

func TestProblemListModel(t *testing.T) {
	m := NewProblemListModel([]problemEntry{{Name: "burma14"}, {Name: "gr17"}, {Name: "gr24"}, {Name: "bayg29"}})

	key := func(m ProblemListModel, msg tea.KeyMsg) ProblemListModel {
		next, _ := m.Update(msg)
		return next.(ProblemListModel)
	}

	m = key(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("gr")})
	assert.Equal(t, "gr", m.Filter)
	assert.Len(t, m.visible, 2)

	m = key(m, tea.KeyMsg{Type: tea.KeyDown})
	m = key(m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, m.Cursor, "cursor stops at the last match")

	m = key(m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, "g", m.Filter)
	assert.Equal(t, 0, m.Cursor, "filtering resets the cursor")

	m = key(m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r2")})
	m = key(m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "gr24", m.Selected)
	assert.Contains(t, m.View(), "Select Instance")
}

func TestProblemListModelEscape(t *testing.T) {
	m := NewProblemListModel([]problemEntry{{Name: "burma14"}})
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, next.(ProblemListModel).Selected)
	assert.NotNil(t, cmd)
}
