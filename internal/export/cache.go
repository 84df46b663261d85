// internal/export/cache.go
package export

import (
	"os"
	"sync"
	"time"
)

// Cache memoizes parsed artifacts. Load calls fn for the given path unless
// a cached value exists whose recorded (mtime, size) still match the file;
// stale entries are overwritten, never served.
type Cache interface {
	Load(path string, fn func(string) (interface{}, error)) (interface{}, error)
}

type statEntry struct {
	mtime time.Time
	size  int64
	data  interface{}
}

type statCache struct {
	mu      sync.Mutex
	entries map[string]statEntry
}

// NewStatCache returns the default cache keyed by (path, mtime, size).
func NewStatCache() Cache {
	return &statCache{entries: make(map[string]statEntry)}
}

func (c *statCache) Load(path string, fn func(string) (interface{}, error)) (interface{}, error) {
	fi, err := os.Stat(path)
	if err != nil {
		// Cannot validate freshness; bypass the cache entirely.
		return fn(path)
	}

	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if ok && e.mtime.Equal(fi.ModTime()) && e.size == fi.Size() {
		return e.data, nil
	}

	data, err := fn(path)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.entries[path] = statEntry{mtime: fi.ModTime(), size: fi.Size(), data: data}
	c.mu.Unlock()
	return data, nil
}

type nopCache struct{}

// NopCache returns a cache that never memoizes, for tests.
func NopCache() Cache { return nopCache{} }

func (nopCache) Load(path string, fn func(string) (interface{}, error)) (interface{}, error) {
	return fn(path)
}
