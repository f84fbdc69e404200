package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mallows/pkg/tsplib"
)

// archiveTTL is how long a downloaded TSPLIB archive is reused.
const archiveTTL = 30 * 24 * time.Hour

// dataCommand creates the data command for managing TSPLIB instances.
func (c *CLI) dataCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Manage TSPLIB instances",
	}

	cmd.AddCommand(c.dataDownloadCommand())
	cmd.AddCommand(c.dataListCommand())
	cmd.AddCommand(c.dataPathCommand())

	return cmd
}

func (c *CLI) dataDownloadCommand() *cobra.Command {
	var (
		url     string
		noCache bool
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download the TSPLIB symmetric TSP instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDownload(cmd.Context(), url, noCache)
		},
	}
	cmd.Flags().StringVar(&url, "url", tsplib.DefaultURL, "archive URL")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "download the archive even if a cached copy exists")
	return cmd
}

func (c *CLI) runDownload(ctx context.Context, url string, noCache bool) error {
	logger := loggerFromContext(ctx)
	dir, err := c.problemDir()
	if err != nil {
		return err
	}

	opts := tsplib.DownloadOptions{URL: url, Dir: dir, Logger: logger}
	if !noCache {
		if hc, err := openArchiveCache(); err == nil {
			opts.Cache = hc
		}
	}

	spinner := newSpinnerWithContext(ctx, "Downloading TSPLIB archive")
	spinner.Start()
	prog := newProgress(logger)
	n, err := tsplib.Download(ctx, opts)
	if err != nil {
		spinner.StopWithError("Download failed")
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Extracted %d files (%s)", n, prog.elapsed()))
	printDetail("Directory: %s", dir)
	if opts.Cache != nil {
		printDetail("Archive cache: %s", opts.Cache.Dir())
	}
	printNewline()
	printNextStep("Solve an instance", appName+" run burma14")
	return nil
}

func (c *CLI) dataListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List downloaded instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.problemDir()
			if err != nil {
				return err
			}
			problems, err := listProblems(dir)
			if err != nil {
				return err
			}
			if len(problems) == 0 {
				printInfo("No instances in %s", dir)
				printNextStep("Download them", appName+" data download")
				return nil
			}
			for _, p := range problems {
				line := fmt.Sprintf("%-12s %s", p.Name, StyleDim.Render(formatBytes(p.Size)))
				if p.HasOptimum {
					line += " " + StyleSuccess.Render("optimum")
				}
				fmt.Println(line)
			}
			printNewline()
			printDetail("%d instances in %s", len(problems), dir)
			return nil
		},
	}
}

func (c *CLI) dataPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the data directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.problemDir()
			if err != nil {
				return err
			}
			fmt.Println(dir)
			return nil
		},
	}
}
