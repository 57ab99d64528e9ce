package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// PageCache stores rendered HTML pages on disk, one file per key.
// A nil *PageCache is valid and caches nothing.
type PageCache struct {
	dir string
}

// New returns a cache rooted at dir, or nil when dir is empty or "off".
func New(dir string) (*PageCache, error) {
	if dir == "" || dir == "off" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &PageCache{dir: dir}, nil
}

// path returns the cache file for key
func (pc *PageCache) path(key string) string {
	return filepath.Join(pc.dir, fmt.Sprintf("%016x.html", xxhash.Sum64String(key)))
}

// Read returns the cached page for key if it is younger than maxAge.
func (pc *PageCache) Read(key string, maxAge time.Duration) ([]byte, bool) {
	if pc == nil {
		return nil, false
	}

	p := pc.path(key)
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}

	// Check if cache is still valid
	if time.Since(info.ModTime()) > maxAge {
		return nil, false
	}

	content, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	return content, true
}

// Write stores html under key. The file is renamed into place so readers
// never see a partial page.
func (pc *PageCache) Write(key string, html []byte) error {
	if pc == nil {
		return nil
	}

	// Write to a temp file first, then rename
	tmp, err := os.CreateTemp(pc.dir, "page-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(html); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), pc.path(key))
}

// Clear removes every cached page.
func (pc *PageCache) Clear() error {
	if pc == nil {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(pc.dir, "*.html"))
	if err != nil {
		return err
	}
	var errs []error
	for _, match := range matches {
		if err := os.Remove(match); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Prune removes cache files older than maxAge, including leftover temp files.
func (pc *PageCache) Prune(maxAge time.Duration) error {
	if pc == nil {
		return nil
	}

	return filepath.Walk(pc.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.HasSuffix(path, ".html") && !strings.HasSuffix(path, ".tmp") {
			return nil
		}
		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}
		return nil
	})
}
