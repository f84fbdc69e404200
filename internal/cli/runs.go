package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mallows/pkg/tracking"
)

// runsCommand creates the runs command for inspecting tracked runs.
func (c *CLI) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect tracked runs",
	}

	cmd.AddCommand(c.runsListCommand())
	cmd.AddCommand(c.runsShowCommand())
	cmd.AddCommand(c.runsDeleteCommand())

	return cmd
}

func (c *CLI) runsListCommand() *cobra.Command {
	var (
		opts   tracking.ListOptions
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Status = tracking.Status(status)
			store, err := c.newStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				printInfo("No runs")
				return nil
			}
			fmt.Println(runsTable(runs))
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.Problem, "problem", "p", "", "only runs of this problem")
	cmd.Flags().StringVarP(&status, "status", "s", "", "only runs with this status: running, completed, failed, canceled")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum number of runs (0 for all)")
	return cmd
}

func (c *CLI) runsShowCommand() *cobra.Command {
	var asJSON, history bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.newStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := loadRun(cmd.Context(), store, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				if !history {
					run = run.Summary()
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			if history {
				enc := json.NewEncoder(os.Stdout)
				for _, rec := range run.History {
					if err := enc.Encode(rec); err != nil {
						return err
					}
				}
				return nil
			}
			printRun(run)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run as JSON")
	cmd.Flags().BoolVar(&history, "history", false, "print the generation history as JSON lines (with --json: include it)")
	return cmd
}

func (c *CLI) runsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.deleteRuns(cmd.Context(), args)
		},
	}
}

func (c *CLI) deleteRuns(ctx context.Context, ids []string) error {
	store, err := c.newStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	for _, id := range ids {
		if err := store.Delete(ctx, id); err != nil {
			if isNotFound(err) {
				printWarning("Run %s not found", id)
				continue
			}
			return err
		}
		printSuccess("Deleted %s", id)
	}
	return nil
}

// printRun prints the details of a run.
func printRun(run *tracking.Run) {
	fmt.Println(StyleTitle.Render(run.Problem) + " " + statusStyle(run.Status).Render(string(run.Status)))
	printNewline()
	printKeyValue("Run", run.ID)
	printKeyValue("Created", run.CreatedAt.Local().Format(time.DateTime))
	if !run.FinishedAt.IsZero() {
		printKeyValue("Duration", run.FinishedAt.Sub(run.CreatedAt).Round(time.Millisecond).String())
	}
	cfg := run.Config
	printKeyValue("Population", strconv.Itoa(cfg.PopulationSize))
	printKeyValue("Selection", fmt.Sprintf("%s (%d)", cfg.SelectionFunction, cfg.SelectionSize))
	printKeyValue("Iterations", strconv.Itoa(cfg.Iterations))
	printKeyValue("Restart", strconv.Itoa(cfg.Restart))
	printKeyValue("Seed", strconv.FormatUint(cfg.Seed, 10))
	if run.Error != "" {
		printKeyValue("Error", run.Error)
	}
	if res := run.Result; res != nil {
		printKeyValue("Best", formatCost(res.BestObjective))
		printKeyValue("Generations", strconv.Itoa(res.Generations))
		printKeyValue("Shakes", strconv.Itoa(res.Shakes))
		printKeyValue("Theta", strconv.FormatFloat(res.Theta, 'f', 4, 64))
	}
	if len(run.Tour) > 0 {
		printKeyValue("Tour", formatTour(run.Tour))
	}
	if run.Cached {
		printDetail("result served from cache")
	}
}

// runsTable renders runs as a bordered table.
func runsTable(runs []*tracking.Run) string {
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		best, gens := "-", "-"
		if r.Result != nil {
			best = formatCost(r.Result.BestObjective)
			gens = strconv.Itoa(r.Result.Generations)
		}
		rows = append(rows, []string{
			r.ID,
			r.Problem,
			string(r.Status),
			best,
			gens,
			formatRelativeTime(r.CreatedAt),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Run", "Problem", "Status", "Best", "Gens", "Created").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col == 2 && row < len(runs) {
				return statusStyle(runs[row].Status).Padding(0, 1)
			}
			if col == 0 || col == 5 {
				return base.Foreground(colorGray)
			}
			return base
		})
	return t.Render()
}

func statusStyle(s tracking.Status) lipgloss.Style {
	switch s {
	case tracking.StatusCompleted:
		return StyleSuccess
	case tracking.StatusFailed:
		return lipgloss.NewStyle().Foreground(colorFail)
	case tracking.StatusCanceled:
		return StyleWarning
	default:
		return StyleHighlight
	}
}

func isNotFound(err error) bool {
	return stderrors.Is(err, tracking.ErrNotFound)
}
