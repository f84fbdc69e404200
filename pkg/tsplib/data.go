package tsplib

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/mallows/pkg/errors"
	"github.com/matzehuels/mallows/pkg/httputil"
)

// DefaultURL is the TSPLIB archive of symmetric TSP instances.
const DefaultURL = "http://comopt.ifi.uni-heidelberg.de/software/TSPLIB95/tsp/ALL_tsp.tar.gz"

// maxMemberSize bounds a single extracted file.
const maxMemberSize = 256 << 20

// Load parses <dir>/<name>.tsp and, when present, attaches the optimal tour
// from <dir>/<name>.opt.tour.
func Load(dir, name string) (*Instance, error) {
	if err := errors.ValidateProblemName(name); err != nil {
		return nil, err
	}
	inst, err := ParseFile(filepath.Join(dir, name+".tsp"))
	if err != nil {
		return nil, err
	}
	if inst.Name == "" {
		inst.Name = name
	}
	tourPath := filepath.Join(dir, name+".opt.tour")
	if _, err := os.Stat(tourPath); err == nil {
		tour, err := LoadTour(tourPath)
		if err != nil {
			return nil, err
		}
		inst.OptimalTour = tour
	}
	return inst, nil
}

// List returns the instance names (file names without .tsp) in dir, sorted.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "data directory %s", dir)
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if name, ok := strings.CutSuffix(e.Name(), ".tsp"); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// DownloadOptions configures [Download].
type DownloadOptions struct {
	URL    string
	Dir    string
	Client *http.Client
	// Cache keeps the archive between downloads. Nil disables caching.
	Cache  *httputil.Cache
	Logger *log.Logger
}

// Download fetches the TSPLIB archive, extracts every member into Dir and
// decompresses gzipped members in place of their .gz name. It returns the
// number of files written.
func Download(ctx context.Context, opts DownloadOptions) (int, error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if err := errors.ValidateURL(opts.URL); err != nil {
		return 0, err
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return 0, err
	}

	archive, err := fetchArchive(ctx, opts)
	if err != nil {
		return 0, err
	}
	n, err := Extract(bytes.NewReader(archive), opts.Dir)
	if err != nil {
		return n, err
	}
	opts.Logger.Info("extracted TSPLIB archive", "files", n, "dir", opts.Dir)
	return n, nil
}

func fetchArchive(ctx context.Context, opts DownloadOptions) ([]byte, error) {
	var stale []byte
	cache := opts.Cache
	if cache != nil {
		cache = cache.Namespace("tsplib:")
		data, err := cache.Get(opts.URL)
		switch {
		case err == nil && data != nil:
			opts.Logger.Debug("archive cache hit", "url", opts.URL)
			return data, nil
		case stderrors.Is(err, httputil.ErrExpired):
			stale = data
		}
	}

	opts.Logger.Info("downloading", "url", opts.URL)
	data, err := httputil.Fetch(ctx, opts.Client, opts.URL)
	if err != nil {
		if stale != nil {
			opts.Logger.Warn("download failed, using stale archive", "err", err)
			return stale, nil
		}
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "download %s", opts.URL)
		}
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "download %s", opts.URL)
	}
	if cache != nil {
		if err := cache.Set(opts.URL, data); err != nil {
			opts.Logger.Warn("cache archive", "err", err)
		}
	}
	return data, nil
}

// Extract unpacks a .tar.gz stream into dir. Members are flattened to their
// base name; members ending in .gz are decompressed.
func Extract(r io.Reader, dir string) (int, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidFormat, err, "open archive")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	written := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, errors.Wrap(errors.ErrCodeInvalidFormat, err, "read archive")
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := filepath.Base(hdr.Name)
		if name == "." || name == ".." || strings.HasPrefix(name, ".") {
			continue
		}

		if err := extractMember(dir, name, io.LimitReader(tr, maxMemberSize)); err != nil {
			return written, err
		}
		written++
	}
}

// extractMember writes one archive member into dir, decompressing it when
// its name ends in .gz.
func extractMember(dir, name string, r io.Reader) error {
	base, gzipped := strings.CutSuffix(name, ".gz")
	if !gzipped {
		return writeFile(filepath.Join(dir, name), r)
	}
	zr, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "gunzip %s", name)
	}
	err = writeFile(filepath.Join(dir, base), io.LimitReader(zr, maxMemberSize))
	if cerr := zr.Close(); err == nil {
		err = cerr
	}
	if stderrors.Is(err, gzip.ErrChecksum) || stderrors.Is(err, gzip.ErrHeader) {
		return errors.Wrap(errors.ErrCodeInvalidFormat, err, "gunzip %s", name)
	}
	return err
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
