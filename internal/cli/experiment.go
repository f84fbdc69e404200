package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/experiment"
	"github.com/matzehuels/mallows/pkg/tsplib"
)

// experimentCommand creates the experiment command.
func (c *CLI) experimentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Generate and execute batches of runs",
	}

	cmd.AddCommand(c.experimentGenerateCommand())
	cmd.AddCommand(c.experimentRunCommand())

	return cmd
}

func (c *CLI) experimentGenerateCommand() *cobra.Command {
	var (
		output     string
		iterations int
		seed       uint64
	)
	cmd := &cobra.Command{
		Use:   "generate <instance>...",
		Short: "Write the reference sweep for instances to a plan file",
		Long: `Write the reference sweep for each instance to a plan file: population
sizes 10n, 100n and 1000n, each run with restart thresholds 100 and 250
(series A to F). The format follows the extension of --output: .toml,
.yaml or .json.`,
		Example: `  mallows experiment generate burma14 gr17 -o plan.toml`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.problemDir()
			if err != nil {
				return err
			}
			var plan experiment.Plan
			for _, name := range args {
				inst, err := tsplib.Load(dir, name)
				if err != nil {
					return err
				}
				p := experiment.Generate(name, inst.Dimension)
				for i := range p.Runs {
					if iterations > 0 {
						p.Runs[i].Iterations = iterations
					}
					p.Runs[i].Seed = seed
				}
				plan.Runs = append(plan.Runs, p.Runs...)
			}
			if err := experiment.Save(output, plan); err != nil {
				return err
			}
			printSuccess("Wrote %d runs", len(plan.Runs))
			printFile(output)
			printNewline()
			printNextStep("Execute the plan", fmt.Sprintf("%s experiment run %s", appName, output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "experiments.toml", "plan file (.toml, .yaml or .json)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "override the number of generations (default 100000)")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random seed of every run")
	return cmd
}

func (c *CLI) experimentRunCommand() *cobra.Command {
	var (
		opts    experiment.Options
		formats string
		noCache bool
		only    string
	)
	cmd := &cobra.Command{
		Use:   "run <plan>",
		Short: "Execute every run of a plan in parallel",
		Example: `  mallows experiment run plan.toml -j 4
  mallows experiment run plan.json --only A,C --render svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Formats = parseFormats(formats)
			return c.runExperiment(cmd.Context(), args[0], only, noCache, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Parallelism, "parallel", "j", 0, "concurrent runs (default: number of CPUs)")
	cmd.Flags().StringVarP(&formats, "render", "r", "", "render every tour: svg, png, dot (comma-separated)")
	cmd.Flags().StringVar(&only, "only", "", "run only these series (comma-separated)")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "ignore cached results and overwrite them")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the run cache")
	return cmd
}

func (c *CLI) runExperiment(ctx context.Context, path, only string, noCache bool, opts experiment.Options) error {
	logger := loggerFromContext(ctx)

	plan, err := experiment.Load(path)
	if err != nil {
		return err
	}
	if only != "" {
		plan = filterSeries(plan, strings.Split(only, ","))
		if len(plan.Runs) == 0 {
			return errors.New(errors.ErrCodeInvalidInput, "no runs of series %s in %s", only, path)
		}
	}

	runner, err := c.newRunner(ctx, noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	if opts.DataDir, err = c.problemDir(); err != nil {
		return err
	}
	opts.Logger = logger

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Running %d experiments", len(plan.Runs)))
	spinner.Start()
	var (
		mu   sync.Mutex
		done int
	)
	opts.OnDone = func(int, experiment.Outcome) {
		mu.Lock()
		done++
		spinner.Update(fmt.Sprintf("Running experiments %d/%d", done, len(plan.Runs)))
		mu.Unlock()
	}

	prog := newProgress(logger)
	outcomes, err := experiment.Execute(ctx, runner, plan, opts)
	spinner.Stop()
	if outcomes != nil {
		fmt.Println(outcomesTable(outcomes))
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	prog.done(fmt.Sprintf("Finished %d runs", len(outcomes)))
	if failed > 0 {
		return fmt.Errorf("%d of %d runs failed", failed, len(outcomes))
	}
	return nil
}

// filterSeries keeps the runs whose series is listed.
func filterSeries(plan experiment.Plan, series []string) experiment.Plan {
	keep := make(map[string]bool, len(series))
	for _, s := range series {
		keep[strings.TrimSpace(s)] = true
	}
	var out experiment.Plan
	for _, s := range plan.Runs {
		if keep[s.Series] {
			out.Runs = append(out.Runs, s)
		}
	}
	return out
}

// outcomesTable renders one row per run of a batch.
func outcomesTable(outcomes []experiment.Outcome) string {
	rows := make([][]string, 0, len(outcomes))
	for _, o := range outcomes {
		row := []string{o.Spec.Name(), strconv.Itoa(o.Spec.PopulationSize), strconv.Itoa(o.Spec.Restart), "-", "-", "-"}
		switch {
		case o.Err != nil:
			row[5] = errors.UserMessage(o.Err)
		case o.Result != nil && o.Result.Run.Result != nil:
			res := o.Result.Run.Result
			row[3] = formatCost(res.BestObjective)
			row[4] = strconv.Itoa(res.Shakes)
			row[5] = o.Result.Run.ID
			if o.Result.CacheInfo.RunHit {
				row[5] += " (" + iconCached + ")"
			}
		}
		rows = append(rows, row)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Run", "Population", "Restart", "Best", "Shakes", "Result").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col == 5 && row < len(outcomes) && outcomes[row].Err != nil {
				return base.Foreground(colorFail)
			}
			if col == 3 {
				return base.Foreground(colorAccent)
			}
			return base
		}).
		Render()
}
