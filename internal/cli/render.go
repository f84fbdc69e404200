package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/pipeline"
	"github.com/matzehuels/mallows/pkg/render"
	"github.com/matzehuels/mallows/pkg/tracking"
	"github.com/matzehuels/mallows/pkg/tsplib"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output     string   // output file (single format) or base path
	formats    []string // output formats: "svg", "png", "dot"
	file       string   // TSPLIB file when the problem is not in the data dir
	size       float64  // drawing size in inches
	edgeLabels bool     // label edges with their length
	labels     bool     // draw city numbers inside the nodes
}

// renderCommand creates the render command for drawing tracked runs.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render <run-id | run.json>",
		Short: "Draw the best tour of a run",
		Long: `Draw the best tour of a run as SVG, PNG or Graphviz DOT.

The run is looked up by ID in the run store, or read from a JSON file as
written by "mallows run --json". Its instance is resolved by name in the
data directory unless --file is given.`,
		Example: `  mallows render 0b6f3c1e-8c1d-4b52-9a55-2f4c1f0e7a11
  mallows render run.json --file my.tsp -f svg,png -o tour`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if len(opts.formats) == 0 {
				opts.formats = []string{render.FormatSVG}
			}
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), png, dot (comma-separated)")
	cmd.Flags().StringVar(&opts.file, "file", "", "TSPLIB file of the run's instance")
	cmd.Flags().Float64Var(&opts.size, "size", 0, "drawing size in inches (default 8)")
	cmd.Flags().BoolVar(&opts.edgeLabels, "edge-labels", false, "label tour edges with their length")
	cmd.Flags().BoolVar(&opts.labels, "labels", false, "draw city numbers inside the nodes")

	return cmd
}

// basePath derives the base output path. If output is empty, the run's
// problem name is used. A known format extension on output is stripped.
func basePath(output, fallback string) string {
	if output == "" {
		return fallback
	}
	ext := filepath.Ext(output)
	if slices.Contains(render.Formats(), strings.TrimPrefix(ext, ".")) {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

func (c *CLI) runRender(ctx context.Context, ref string, opts *renderOpts) error {
	logger := loggerFromContext(ctx)

	runner, err := c.newRunner(ctx, false)
	if err != nil {
		return err
	}
	defer runner.Close()

	run, err := loadRun(ctx, runner.Store, ref)
	if err != nil {
		return err
	}
	if len(run.Tour) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "run %s has no tour (status %s)", run.ID, run.Status)
	}

	inst, err := c.loadInstance(run, opts.file)
	if err != nil {
		return err
	}
	logger.Infof("Rendering run %s of %s", run.ID, inst.Name)

	artifacts, err := runner.Render(ctx, inst, run, opts.formats, render.Options{
		Size:       opts.size,
		EdgeLabels: opts.edgeLabels,
		Labels:     opts.labels,
	})
	if err != nil {
		return err
	}

	base := basePath(opts.output, run.Problem)
	if len(opts.formats) == 1 && opts.output != "" && filepath.Ext(opts.output) == "."+opts.formats[0] {
		if err := os.WriteFile(opts.output, artifacts[opts.formats[0]], 0o644); err != nil {
			return err
		}
		printFile(opts.output)
		return nil
	}
	paths, err := writeArtifacts(base, artifacts)
	if err != nil {
		return err
	}
	for _, p := range paths {
		printFile(p)
	}
	return nil
}

// loadRun resolves ref as a JSON file when it exists on disk and as a run ID
// otherwise.
func loadRun(ctx context.Context, store tracking.Store, ref string) (*tracking.Run, error) {
	if data, err := os.ReadFile(ref); err == nil {
		var run tracking.Run
		if err := json.Unmarshal(data, &run); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse run %s", ref)
		}
		if len(run.Tour) == 0 && run.Result != nil && len(run.Result.Best) > 0 {
			run.Tour = run.Result.Tour()
		}
		return &run, nil
	}
	run, err := store.Get(ctx, ref)
	if err != nil {
		if errors.Is(err, errors.ErrCodeRunNotFound) || isNotFound(err) {
			return nil, errors.Wrap(errors.ErrCodeRunNotFound, err, "run %s", ref)
		}
		return nil, err
	}
	return run, nil
}

// loadInstance parses file when given and otherwise resolves the run's
// problem in the data directory. Either way the instance must match the
// one the run was solved on.
func (c *CLI) loadInstance(run *tracking.Run, file string) (*tsplib.Instance, error) {
	var dir string
	if file == "" {
		d, err := c.problemDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	inst, err := pipeline.InstanceForRun(dir, file, run)
	if err != nil && file == "" {
		return nil, fmt.Errorf("%w (pass --file with the instance the run was solved on)", err)
	}
	return inst, err
}
