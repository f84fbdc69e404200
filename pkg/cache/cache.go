// Package cache stores the results of deterministic optimizer runs.
//
// A run with an explicit seed always produces the same result for the same
// problem and configuration, so its JSON encoding can be memoized under a key
// derived from both. Backends share the [Cache] interface: [NullCache]
// disables caching, [FileCache] serves the CLI and [RedisCache] serves the
// HTTP API when several processes share results.
//
// Keys are produced by a [Keyer]. [DefaultKeyer] hashes its inputs so keys
// have a fixed length; [ScopedKeyer] adds a prefix for namespacing.
package cache

import (
	"context"
	"time"
)

// TTLRun is how long a memoized run result stays valid.
const TTLRun = 30 * 24 * time.Hour

// TTLArtifact is how long a rendered tour stays valid.
const TTLArtifact = 7 * 24 * time.Hour

// Cache is a byte-oriented key/value store with expiration.
type Cache interface {
	// Get returns the value for key. A miss is reported as (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A non-positive ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// RunKeyOpts are the run parameters that influence a run result.
type RunKeyOpts struct {
	ProblemSize    int     `json:"problem_size"`
	PopulationSize int     `json:"population_size"`
	SelectionSize  int     `json:"selection_size"`
	OffspringSize  int     `json:"offspring_size"`
	Iterations     int     `json:"n_iter"`
	Selection      string  `json:"selection"`
	Alpha          float64 `json:"alpha"`
	Beta           float64 `json:"beta"`
	Restart        int     `json:"restart"`
	ShakeMoves     int     `json:"shake_moves"`
	ShakeWindow    int     `json:"shake_window"`
	Seed           uint64  `json:"seed"`
}

// ArtifactKeyOpts are the render parameters that influence an artifact.
type ArtifactKeyOpts struct {
	Format     string  `json:"format"`
	Size       float64 `json:"size"`
	EdgeLabels bool    `json:"edge_labels"`
	Labels     bool    `json:"labels"`
}

// Keyer builds cache keys.
type Keyer interface {
	// RunKey keys a run result by problem content hash and run parameters.
	RunKey(problemHash string, opts RunKeyOpts) string
	// ArtifactKey keys a rendered tour by run key and render parameters.
	ArtifactKey(runKey string, opts ArtifactKeyOpts) string
}

// DefaultKeyer hashes key components with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RunKey returns "run:<sha256>".
func (DefaultKeyer) RunKey(problemHash string, opts RunKeyOpts) string {
	return hashKey("run", problemHash, opts)
}

// ArtifactKey returns "artifact:<sha256>".
func (DefaultKeyer) ArtifactKey(runKey string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", runKey, opts)
}

var _ Keyer = DefaultKeyer{}
