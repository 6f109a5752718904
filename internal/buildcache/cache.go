// Package buildcache is the per-path file-build cache shared across
// compilation sessions. It is keyed by normalized absolute path with a
// content hash for invalidation, and hands out claims with check-then-claim
// semantics: the first caller to claim a path builds it, later callers block
// on the winner's completion instead of rebuilding.
package buildcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/vk/atograph/internal/typegraph"
)

// Entry is one cached file build. Losers of a claim race wait on it; the
// winner completes it exactly once.
type Entry struct {
	Path  string
	Hash  string
	Types *typegraph.FileTypes
	Err   error
	done  chan struct{}

	resolveOnce sync.Once
	resolveErr  error
}

// Complete publishes the build result and releases every waiter.
func (e *Entry) Complete(types *typegraph.FileTypes, err error) {
	e.Types = types
	e.Err = err
	close(e.done)
}

// Wait blocks until the entry is complete or the context is canceled, then
// returns the build's error.
func (e *Entry) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return e.Err
	}
}

// Resolve runs fn at most once per entry, across every session sharing the
// cache. The entry's types are shared between sessions, so the reference
// resolution that mutates them must also happen exactly once; concurrent
// callers block until the first finishes and then observe its result.
func (e *Entry) Resolve(fn func() error) error {
	e.resolveOnce.Do(func() { e.resolveErr = fn() })
	return e.resolveErr
}

// Done reports whether the entry has completed without blocking.
func (e *Entry) Done() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}

// Cache is the process-wide build cache. All methods are safe for
// concurrent use.
type Cache struct {
	mutex   sync.Mutex
	entries map[string]*Entry
	builds  map[string]int
	// evicted collects paths invalidated since the last drain, so the owner
	// of the graph store can drop their regions.
	evicted []string
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]*Entry),
		builds:  make(map[string]int),
	}
}

// Claim checks for a usable entry under the given content hash and claims
// the build if there is none. It returns the entry and whether the caller
// won the claim and must build (then Complete the entry). A cached entry
// whose hash no longer matches is evicted and rebuilt.
func (c *Cache) Claim(path, hash string) (*Entry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, ok := c.entries[path]; ok {
		if existing.Hash == hash {
			return existing, false
		}
		// Content changed: whole-file eviction, then rebuild.
		delete(c.entries, path)
		c.evicted = append(c.evicted, path)
	}

	e := &Entry{Path: path, Hash: hash, done: make(chan struct{})}
	c.entries[path] = e
	c.builds[path]++
	return e, true
}

// Lookup returns the current entry for a path, if any.
func (c *Cache) Lookup(path string) (*Entry, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	e, ok := c.entries[path]
	return e, ok
}

// Invalidate drops a path's entry regardless of hash. The next claim
// rebuilds it.
func (c *Cache) Invalidate(path string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if _, ok := c.entries[path]; ok {
		delete(c.entries, path)
		c.evicted = append(c.evicted, path)
	}
}

// DrainEvicted returns the paths evicted since the previous call. The
// compilation session evicts their graph regions before rebuilding.
func (c *Cache) DrainEvicted() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	out := c.evicted
	c.evicted = nil
	return out
}

// BuildCount returns how many builds have been claimed for a path. Exposed
// for tests observing import caching.
func (c *Cache) BuildCount(path string) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.builds[path]
}

// HashContent returns the content hash used for invalidation.
func HashContent(src []byte) string {
	sum := sha256.Sum256(src)
	return hex.EncodeToString(sum[:])
}
