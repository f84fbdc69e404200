package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/mallows/pkg/eda"
	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/pipeline"
	"github.com/matzehuels/mallows/pkg/render"
	"github.com/matzehuels/mallows/pkg/telemetry"
	"github.com/matzehuels/mallows/pkg/tsplib"
)

// runOpts holds the command-line flags for the run command.
type runOpts struct {
	file       string  // TSPLIB file instead of a named instance
	configFile string  // TOML, YAML or JSON run configuration
	scale      float64 // sizing scale for unset population fields
	formats    string  // comma-separated render formats
	output     string  // artifact base path
	jsonl      string  // generation records as JSON lines ("-" for stdout)
	every      int     // log every N-th generation at info level
	noCache    bool
	refresh    bool
	asJSON     bool // print the run as JSON instead of a summary
	size       float64
	edgeLabels bool

	shakeMoves  int
	shakeWindow int

	cfg eda.Config
}

// runCommand creates the run command.
func (c *CLI) runCommand() *cobra.Command {
	var opts runOpts

	cmd := &cobra.Command{
		Use:   "run [instance]",
		Short: "Optimize a TSPLIB instance",
		Long: `Optimize a TSPLIB instance with the Mallows EDA.

The instance is resolved by name in the data directory (see "mallows data
download"), or read from --file. Without either, an interactive picker lists
the downloaded instances.

Population, selection and iteration counts left at zero are derived from the
instance size: population and n_iter 1000n, selection 100n, all multiplied
by --scale.`,
		Example: `  mallows run burma14
  mallows run gr17 --seed 7 --selection linear_ranking --beta 1.5
  mallows run --file my.tsp --render svg,png -o tour
  mallows run bayg29 --jsonl history.jsonl --scale 0.1`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: c.completeProblems,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.resolveConfig(cmd); err != nil {
				return err
			}
			if len(args) == 0 && opts.file == "" {
				name, err := c.pickProblem()
				if err != nil {
					return err
				}
				if name == "" {
					return nil
				}
				args = []string{name}
			}
			return c.runRun(cmd.Context(), args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.file, "file", "", "TSPLIB file to optimize instead of a named instance")
	f.StringVarP(&opts.configFile, "config", "c", "", "run configuration file (.toml, .yaml or .json)")
	f.Float64Var(&opts.scale, "scale", pipeline.DefaultScale, "scale of the derived population and iteration counts")
	f.StringVarP(&opts.formats, "render", "r", "", "render the tour: svg, png, dot (comma-separated)")
	f.StringVarP(&opts.output, "output", "o", "", "base path of rendered files (default: instance name)")
	f.StringVar(&opts.jsonl, "jsonl", "", "write generation records as JSON lines to a file (- for stdout)")
	f.IntVar(&opts.every, "every", 100, "log every N-th generation at info level")
	f.BoolVar(&opts.noCache, "no-cache", false, "disable the run cache")
	f.BoolVar(&opts.refresh, "refresh", false, "ignore cached results and overwrite them")
	f.BoolVar(&opts.asJSON, "json", false, "print the run as JSON")
	f.Float64Var(&opts.size, "size", 0, "size of rendered drawings in inches (default 8)")
	f.BoolVar(&opts.edgeLabels, "edge-labels", false, "label tour edges with their length")

	f.IntVar(&opts.cfg.PopulationSize, "population", 0, "population size (offspring is population-1)")
	f.IntVar(&opts.cfg.SelectionSize, "selection-size", 0, "number of parents selected per generation")
	f.IntVar(&opts.cfg.Iterations, "iterations", 0, "number of generations")
	f.StringVar(&opts.cfg.SelectionFunction, "selection", "", "selection policy: top_k, linear_ranking, exponential_ranking, adaptation_roulette")
	f.Float64Var(&opts.cfg.Selection.Alpha, "alpha", 0, "linear ranking: weight of the worst individual")
	f.Float64Var(&opts.cfg.Selection.Beta, "beta", 0, "linear ranking: weight of the best individual")
	f.IntVar(&opts.cfg.Restart, "restart", 0, "generations with an unchanged center before a shake")
	f.IntVar(&opts.shakeMoves, "shake-moves", eda.DefaultShakeMoves, "relocations per shaken individual")
	f.IntVar(&opts.shakeWindow, "shake-window", eda.DefaultShakeWindow, "maximum distance of a shake relocation")
	f.Uint64Var(&opts.cfg.Seed, "seed", eda.DefaultSeed, "random seed")

	return cmd
}

// resolveConfig merges the config file with the flags set on the command
// line. Flags win.
func (o *runOpts) resolveConfig(cmd *cobra.Command) error {
	changed := cmd.Flags().Changed
	if changed("shake-moves") {
		o.cfg.ShakeMoves = eda.Int(o.shakeMoves)
	}
	if changed("shake-window") {
		o.cfg.ShakeWindow = eda.Int(o.shakeWindow)
	}
	if o.configFile == "" {
		return nil
	}
	fileCfg, err := loadConfigFile(o.configFile)
	if err != nil {
		return err
	}
	if !changed("population") {
		o.cfg.PopulationSize = fileCfg.PopulationSize
	}
	if !changed("selection-size") {
		o.cfg.SelectionSize = fileCfg.SelectionSize
	}
	if !changed("iterations") {
		o.cfg.Iterations = fileCfg.Iterations
	}
	if !changed("selection") {
		o.cfg.SelectionFunction = fileCfg.SelectionFunction
	}
	if !changed("alpha") && !changed("beta") {
		o.cfg.Selection = fileCfg.Selection
	}
	if !changed("restart") {
		o.cfg.Restart = fileCfg.Restart
	}
	if !changed("shake-moves") {
		o.cfg.ShakeMoves = fileCfg.ShakeMoves
	}
	if !changed("shake-window") {
		o.cfg.ShakeWindow = fileCfg.ShakeWindow
	}
	if !changed("seed") && fileCfg.Seed != 0 {
		o.cfg.Seed = fileCfg.Seed
	}
	o.cfg.ProblemSize = fileCfg.ProblemSize
	o.cfg.OffspringSize = fileCfg.OffspringSize
	return nil
}

// config returns the run configuration. The offspring count always follows
// the population unless a config file set both.
func (o *runOpts) config() eda.Config {
	cfg := o.cfg
	if cfg.PopulationSize > 0 && cfg.OffspringSize == 0 {
		cfg.OffspringSize = cfg.PopulationSize - 1
	}
	return cfg
}

func (c *CLI) runRun(ctx context.Context, args []string, opts runOpts) error {
	logger := loggerFromContext(ctx)
	formats := parseFormats(opts.formats)
	if err := pipeline.ValidateFormats(formats); err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	dir, err := c.problemDir()
	if err != nil {
		return err
	}

	sinks := []telemetry.Sink{telemetry.NewLogSink(logger, opts.every)}
	if opts.jsonl != "" {
		w, closeFn, err := openOutput(opts.jsonl)
		if err != nil {
			return err
		}
		defer closeFn()
		sinks = append(sinks, telemetry.NewJSONLSink(w))
	}

	popts := pipeline.Options{
		Path:    opts.file,
		DataDir: dir,
		Config:  opts.config(),
		Scale:   opts.scale,
		Formats: formats,
		Render:  render.Options{Size: opts.size, EdgeLabels: opts.edgeLabels},
		Refresh: opts.refresh,
		Logger:  logger,
		Sink:    telemetry.NewMulti(sinks...),
	}
	if len(args) > 0 {
		popts.Problem = args[0]
	}

	prog := newProgress(logger)
	result, err := runner.Execute(ctx, popts)
	if err != nil {
		if result != nil && result.Run != nil {
			printWarning("Run %s %s after %s", result.Run.ID, result.Run.Status, prog.elapsed())
		}
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result.Run.Summary())
	}

	printRunResult(result)

	if len(result.Artifacts) > 0 {
		base := opts.output
		if base == "" {
			base = result.Instance.Name
		}
		paths, err := writeArtifacts(base, result.Artifacts)
		if err != nil {
			return err
		}
		printNewline()
		for _, p := range paths {
			printFile(p)
		}
	}
	printNewline()
	printNextStep("Inspect the run", fmt.Sprintf("%s runs show %s", appName, result.Run.ID))
	return nil
}

// printRunResult prints the summary of a finished run.
func printRunResult(result *pipeline.Result) {
	run := result.Run
	res := run.Result
	printSuccess("Solved %s", StyleHighlight.Render(result.Instance.Name))
	printStats(result.Stats.Cities, res.Generations, res.Shakes, result.CacheInfo.RunHit)
	printNewline()
	printKeyValue("Run", run.ID)
	printKeyValue("Best", formatCost(res.BestObjective))
	if opt := result.Instance.OptimalTour; len(opt) == result.Instance.Dimension {
		optimum := result.Instance.Matrix.TourCost(opt)
		printKeyValue("Optimum", formatCost(optimum))
		if optimum > 0 {
			printKeyValue("Gap", fmt.Sprintf("%.2f%%", 100*(res.BestObjective-optimum)/optimum))
		}
	}
	printKeyValue("Theta", strconv.FormatFloat(res.Theta, 'f', 4, 64))
	printKeyValue("Seed", strconv.FormatUint(run.Config.Seed, 10))
	printKeyValue("Tour", formatTour(run.Tour))
}

func formatCost(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatTour prints a tour 1-indexed, as TSPLIB numbers cities.
func formatTour(tour []int) string {
	parts := make([]string, len(tour))
	for i, c := range tour {
		parts[i] = strconv.Itoa(c + 1)
	}
	return strings.Join(parts, " ")
}

// writeArtifacts writes each artifact to base.<format> and returns the
// written paths, sorted.
func writeArtifacts(base string, artifacts map[string][]byte) ([]string, error) {
	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	var paths []string
	for format, data := range artifacts {
		path := base + "." + format
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths, nil
}

// openOutput opens path for writing, with "-" meaning stdout.
func openOutput(path string) (io.Writer, func(), error) {
	if path == "-" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// loadConfigFile reads a run configuration, choosing the format by
// extension.
func loadConfigFile(path string) (eda.Config, error) {
	var cfg eda.Config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config %s", path)
	}
	if err != nil {
		return cfg, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err = toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return cfg, errors.New(errors.ErrCodeInvalidFormat, "unsupported config format %q (want .toml, .yaml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	return cfg, nil
}

// pickProblem lets the user choose a downloaded instance. It returns "" when
// the picker was dismissed.
func (c *CLI) pickProblem() (string, error) {
	dir, err := c.problemDir()
	if err != nil {
		return "", err
	}
	problems, err := listProblems(dir)
	if err != nil {
		return "", err
	}
	if len(problems) == 0 {
		return "", errors.New(errors.ErrCodeNotFound,
			"no instances in %s; run %q first or pass --file", dir, appName+" data download")
	}
	return runProblemPicker(problems)
}

// listProblems describes the instances in dir for the picker.
func listProblems(dir string) ([]problemEntry, error) {
	names, err := tsplib.List(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]problemEntry, 0, len(names))
	for _, name := range names {
		e := problemEntry{Name: name}
		if info, err := os.Stat(filepath.Join(dir, name+".tsp")); err == nil {
			e.Size = info.Size()
		}
		if _, err := os.Stat(filepath.Join(dir, name+".opt.tour")); err == nil {
			e.HasOptimum = true
		}
		entries = append(entries, e)
	}
	return entries, nil
}
