package httputil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ErrExpired is returned by [Cache.Get] together with the stale payload, so
// a caller whose refresh fails can still use it.
var ErrExpired = errors.New("cache entry expired")

// Cache keeps downloaded payloads as plain files named by the SHA-256 of
// their key. Age is the file modification time; a zero TTL never expires.
// Writes go through a rename, so several processes may share a directory.
type Cache struct {
	dir    string
	ttl    time.Duration
	prefix string
}

// NewCache opens a cache in dir, defaulting to ~/.cache/mallows/http.
func NewCache(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "mallows", "http")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, ttl: ttl}, nil
}

func (c *Cache) Dir() string { return c.dir }

// Namespace returns a view whose keys are prefixed by prefix. Views share
// the directory and the TTL.
func (c *Cache) Namespace(prefix string) *Cache {
	ns := *c
	ns.prefix += prefix
	return &ns
}

// Get returns (data, nil) on a fresh hit, (nil, nil) on a miss and
// (data, ErrExpired) on a stale hit.
func (c *Cache) Get(key string) ([]byte, error) {
	f, err := os.Open(c.file(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	data := make([]byte, info.Size())
	if _, err := f.ReadAt(data, 0); err != nil && info.Size() > 0 {
		return nil, err
	}
	if c.ttl > 0 && time.Since(info.ModTime()) > c.ttl {
		return data, ErrExpired
	}
	return data, nil
}

// Set stores data under key and resets its age.
func (c *Cache) Set(key string, data []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp.Name(), c.file(key))
	}
	if err != nil {
		os.Remove(tmp.Name())
	}
	return err
}

// Usage reports the number of stored payloads and their total size, across
// all namespaces.
func (c *Cache) Usage() (files int, bytes int64, err error) {
	err = c.each(func(path string, info fs.FileInfo) error {
		files++
		bytes += info.Size()
		return nil
	})
	return files, bytes, err
}

// Clear removes every stored payload, across all namespaces, and returns
// how many it removed.
func (c *Cache) Clear() (int, error) {
	removed := 0
	err := c.each(func(path string, _ fs.FileInfo) error {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		return nil
	})
	return removed, err
}

func (c *Cache) each(fn func(path string, info fs.FileInfo) error) error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || len(e.Name()) != sha256.Size*2 {
			continue
		}
		info, err := e.Info()
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(filepath.Join(c.dir, e.Name()), info); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) file(key string) string {
	sum := sha256.Sum256([]byte(c.prefix + key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:]))
}
