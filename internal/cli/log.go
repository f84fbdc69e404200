// Package cli implements the mallows command line.
//
// Commands are built with cobra. The root command carries the data,
// cache and backend flags; subcommands solve one instance (run), run
// experiment plans (experiment), manage TSPLIB files (data), inspect
// tracked runs (runs), redraw tours (render), serve the HTTP API (serve)
// and maintain the local cache (cache).
//
// Diagnostics go to a charmbracelet/log logger that travels in the command
// context; --verbose lowers its level to debug. Results are printed to
// stdout with lipgloss styles.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           level,
	})
}

// progress times one long operation.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

// done logs msg with the elapsed time as the "took" field.
func (p *progress) done(msg string) {
	p.logger.Info(msg, "took", p.elapsed())
}

type loggerKey struct{}

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// loggerFromContext returns the logger attached by withLogger, or the
// package default.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
