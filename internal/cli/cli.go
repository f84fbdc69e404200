package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mallows/pkg/buildinfo"
	"github.com/matzehuels/mallows/pkg/cache"
	"github.com/matzehuels/mallows/pkg/pipeline"
	"github.com/matzehuels/mallows/pkg/tracking"
)

const (
	appName = "mallows"

	// backendTimeout bounds connecting to Redis or MongoDB.
	backendTimeout = 10 * time.Second
)

// Log levels for [New].
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI is the state shared by all commands: the logger and the root flags.
type CLI struct {
	Logger *log.Logger

	verbose  bool
	dataDir  string
	redisURL string
	mongoURI string
}

func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand builds the command tree. Every subcommand receives the logger
// through its context.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Solve TSPLIB instances with a Mallows-model EDA",
		Long: `mallows optimizes travelling salesman tours with an estimation-of-distribution
algorithm: each generation fits a Mallows model under the Kendall-Tau distance
to the best tours and samples the next population from it.

Runs are cached and tracked, so results can be listed, redrawn and compared
later. The same pipeline backs experiment batches and the HTTP API.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
		},
	}
	root.SetVersionTemplate(buildinfo.Template())

	flags := root.PersistentFlags()
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&c.dataDir, "data-dir", envOr("MALLOWS_DATA_DIR", ""), "TSPLIB data directory (default ~/.local/share/mallows/tsplib)")
	flags.StringVar(&c.redisURL, "redis", envOr("MALLOWS_REDIS_URL", ""), "cache run results in Redis at this URL instead of on disk")
	flags.StringVar(&c.mongoURI, "mongo", envOr("MALLOWS_MONGO_URI", ""), "track runs in MongoDB at this URI instead of on disk")

	root.AddCommand(
		c.runCommand(),
		c.experimentCommand(),
		c.dataCommand(),
		c.runsCommand(),
		c.renderCommand(),
		c.serveCommand(),
		c.cacheCommand(),
		c.completionCommand(),
	)
	return root
}

// newRunner wires the cache and run store selected by the root flags into a
// pipeline runner.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	rc, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	store, err := c.newStore(ctx)
	if err != nil {
		rc.Close()
		return nil, err
	}
	// Results of another build may differ for the same seed.
	keyer := cache.NewScopedKeyer(nil, buildinfo.Version+":")
	return pipeline.NewRunner(rc, keyer, store, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if c.redisURL != "" {
		ctx, cancel := context.WithTimeout(ctx, backendTimeout)
		defer cancel()
		return cache.NewRedisCache(ctx, cache.RedisOptions{URL: c.redisURL, Prefix: appName + ":"})
	}
	dir, err := cacheDir()
	if err != nil {
		c.Logger.Warn("cache disabled", "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

func (c *CLI) newStore(ctx context.Context) (tracking.Store, error) {
	if c.mongoURI != "" {
		return tracking.NewMongoStore(ctx, tracking.MongoOptions{URI: c.mongoURI, Timeout: backendTimeout})
	}
	dir, err := runsDir()
	if err != nil {
		return nil, err
	}
	return tracking.NewFileStore(dir)
}

// problemDir returns the TSPLIB directory, honoring --data-dir.
func (c *CLI) problemDir() (string, error) {
	if c.dataDir != "" {
		return c.dataDir, nil
	}
	return dataDir("tsplib")
}

// xdgDir resolves $env/mallows, or ~/fallback/mallows when env is unset.
func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appName), nil
}

// cacheDir is ~/.cache/mallows.
func cacheDir() (string, error) { return xdgDir("XDG_CACHE_HOME", ".cache") }

// dataDir is ~/.local/share/mallows/<sub>.
func dataDir(sub string) (string, error) {
	dir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	return filepath.Join(dir, sub), err
}

func runsDir() (string, error) { return dataDir("runs") }

// parseFormats splits a comma-separated format list, dropping blanks.
func parseFormats(s string) []string {
	var out []string
	for f := range strings.SplitSeq(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
