package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mallows/pkg/cache"
	"github.com/matzehuels/mallows/pkg/httputil"
)

func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the on-disk run cache",
		Long: `Inspect and clear the on-disk run cache.

Cached entries are run results and rendered tours keyed by instance,
configuration and build version, plus downloaded TSPLIB archives. A Redis cache (--redis) expires its own
entries and is not managed here.`,
	}
	cmd.AddCommand(c.cacheInfoCommand(), c.cacheClearCommand())
	return cmd
}

func (c *CLI) cacheInfoCommand() *cobra.Command {
	var pathOnly bool
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show the cache directory and its size",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := openDiskCache()
			if err != nil {
				return err
			}
			if pathOnly {
				fmt.Println(fc.Dir())
				return nil
			}
			s, err := fc.Stats()
			if err != nil {
				return err
			}
			printKeyValue("Directory", fc.Dir())
			printKeyValue("Entries", fmt.Sprintf("%d (%d expired)", s.Entries, s.Expired))
			printKeyValue("Size", formatBytes(s.Bytes))
			if hc, err := openArchiveCache(); err == nil {
				if files, size, err := hc.Usage(); err == nil {
					printKeyValue("Archives", fmt.Sprintf("%d (%s)", files, formatBytes(size)))
				}
			}
			if c.redisURL != "" {
				printNewline()
				printWarning("runs currently cache in Redis at %s", c.redisURL)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pathOnly, "path", false, "print only the cache directory")
	return cmd
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	var expiredOnly bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached run results and rendered tours",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, err := openDiskCache()
			if err != nil {
				return err
			}
			remove, what := fc.Clear, "cached"
			if expiredOnly {
				remove, what = fc.Prune, "expired"
			}
			n, err := remove()
			if err != nil {
				return err
			}
			if !expiredOnly {
				if hc, err := openArchiveCache(); err == nil {
					archives, err := hc.Clear()
					if err != nil {
						return err
					}
					n += archives
				}
			}
			if n == 0 {
				printInfo("No %s entries in %s", what, fc.Dir())
				return nil
			}
			printSuccess("Removed %d %s entries", n, what)
			printDetail("Directory: %s", fc.Dir())
			return nil
		},
	}
	cmd.Flags().BoolVar(&expiredOnly, "expired", false, "remove only expired entries")
	return cmd
}

func openDiskCache() (*cache.FileCache, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, fmt.Errorf("locate cache dir: %w", err)
	}
	return cache.NewFileCache(dir)
}

// openArchiveCache opens the cache of downloaded archives used by
// "data download".
func openArchiveCache() (*httputil.Cache, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	return httputil.NewCache(filepath.Join(dir, "http"), archiveTTL)
}
