// Package cache implements the Validation Cache: a content-addressed
// store keyed by model.Fingerprint, so re-validating an unchanged file
// against an unchanged tool and configuration never re-runs the tool.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"synx/internal/model"
)

// Options configures a Cache.
type Options struct {
	// Path is the on-disk JSON file backing the cache. Empty disables
	// persistence: the cache still works in-memory for the process
	// lifetime, it just never survives a restart.
	Path string
	// TTL evicts entries older than this when GetOrCompute looks them
	// up and on Prune. Zero disables TTL eviction.
	TTL time.Duration
	// MaxEntries evicts the least-recently-inserted entries once the
	// cache holds more than this many. Zero disables the limit.
	MaxEntries int
}

// Cache is the Validation Cache. Safe for concurrent use; concurrent
// GetOrCompute calls for the same fingerprint collapse into a single
// invocation of compute via singleflight, satisfying the
// exactly-once-per-inflight-key property callers rely on to avoid
// duplicate tool runs under concurrent scans.
type Cache struct {
	opts  Options
	mu    sync.RWMutex
	entries map[model.Fingerprint]model.CacheEntry
	order   []model.Fingerprint // insertion order, oldest first, for MaxEntries eviction
	group   singleflight.Group

	hits   uint64
	misses uint64
}

// New constructs a Cache, loading any existing persisted state. A
// corrupt or unreadable persisted file is never fatal: it is moved
// aside and the cache starts fresh, so a damaged cache file can never
// block a scan.
func New(opts Options) *Cache {
	c := &Cache{
		opts:    opts,
		entries: make(map[model.Fingerprint]model.CacheEntry),
	}
	if opts.Path != "" {
		c.load()
	}
	return c
}

func (c *Cache) load() {
	data, err := os.ReadFile(c.opts.Path)
	if err != nil {
		return // no cache file yet, or unreadable: start empty
	}
	var persisted map[model.Fingerprint]model.CacheEntry
	if err := json.Unmarshal(data, &persisted); err != nil {
		corrupt := c.opts.Path + ".corrupt"
		os.Rename(c.opts.Path, corrupt)
		fmt.Fprintf(os.Stderr, "synx: cache file %s was corrupt, moved to %s and starting fresh\n", c.opts.Path, corrupt)
		return
	}
	c.entries = persisted
	c.order = make([]model.Fingerprint, 0, len(persisted))
	// Order is not preserved by the JSON map, so approximate by
	// InsertedAt; exact original insertion order doesn't matter once
	// reloaded, only relative eviction priority does.
	for fp := range persisted {
		c.order = append(c.order, fp)
	}
	sortByInsertedAt(c.order, c.entries)
}

// GetOrCompute returns the cached outcome for fp if present and not
// expired, otherwise calls compute exactly once even if many goroutines
// request the same fp concurrently, stores the result, and returns it.
func (c *Cache) GetOrCompute(fp model.Fingerprint, toolVersion string, compute func() model.ValidationOutcome) model.ValidationOutcome {
	if entry, ok := c.get(fp, true); ok {
		return entry.Result
	}

	v, _, _ := c.group.Do(string(fp), func() (any, error) {
		// Re-check under the singleflight key: another goroutine may
		// have finished computing and stored it while we waited to
		// enter Do. The miss was already counted above.
		if entry, ok := c.get(fp, false); ok {
			return entry.Result, nil
		}
		result := compute()
		c.put(fp, toolVersion, result)
		return result, nil
	})
	return v.(model.ValidationOutcome)
}

func (c *Cache) get(fp model.Fingerprint, countMiss bool) (model.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fp]
	if !ok {
		if countMiss {
			c.misses++
		}
		return model.CacheEntry{}, false
	}
	if c.opts.TTL > 0 && time.Since(entry.InsertedAt) > c.opts.TTL {
		delete(c.entries, fp)
		if countMiss {
			c.misses++
		}
		return model.CacheEntry{}, false
	}
	entry.HitCount++
	c.entries[fp] = entry
	c.hits++
	return entry, true
}

func (c *Cache) put(fp model.Fingerprint, toolVersion string, result model.ValidationOutcome) {
	c.mu.Lock()
	if _, exists := c.entries[fp]; !exists {
		c.order = append(c.order, fp)
	}
	c.entries[fp] = model.CacheEntry{
		Result:      result,
		ToolVersion: toolVersion,
		InsertedAt:  time.Now().UTC(),
	}
	c.evictLocked()
	c.mu.Unlock()
	c.persist()
}

// evictLocked drops the oldest entries once MaxEntries is exceeded.
// Caller must hold c.mu.
func (c *Cache) evictLocked() {
	if c.opts.MaxEntries <= 0 {
		return
	}
	for len(c.entries) > c.opts.MaxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
}

// Invalidate removes the cached entry for fp. The cache does not record
// which path a fingerprint was derived from, so it cannot drop every
// entry for a path; other entries computed from the same file are kept.
func (c *Cache) Invalidate(fp model.Fingerprint) {
	c.mu.Lock()
	delete(c.entries, fp)
	for i, f := range c.order {
		if f == fp {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	c.persist()
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[model.Fingerprint]model.CacheEntry)
	c.order = nil
	c.hits = 0
	c.misses = 0
	c.mu.Unlock()
	c.persist()
}

// Stats summarizes the cache's current state.
func (c *Cache) Stats() model.CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	ratio := 0.0
	if total > 0 {
		ratio = float64(c.hits) / float64(total)
	}

	var memBytes int64
	for _, e := range c.entries {
		for _, issue := range e.Result.Issues {
			memBytes += int64(len(issue.Message))
		}
	}

	return model.CacheStats{
		TotalEntries: len(c.entries),
		Hits:         c.hits,
		Misses:       c.misses,
		HitRatio:     ratio,
		MemoryBytes:  memBytes,
	}
}

// Prune drops entries older than opts.TTL. A no-op when TTL is zero.
func (c *Cache) Prune() int {
	if c.opts.TTL <= 0 {
		return 0
	}
	c.mu.Lock()
	removed := 0
	cutoff := time.Now().Add(-c.opts.TTL)
	for fp, entry := range c.entries {
		if entry.InsertedAt.Before(cutoff) {
			delete(c.entries, fp)
			removed++
		}
	}
	if removed > 0 {
		kept := c.order[:0]
		for _, fp := range c.order {
			if _, ok := c.entries[fp]; ok {
				kept = append(kept, fp)
			}
		}
		c.order = kept
	}
	c.mu.Unlock()
	if removed > 0 {
		c.persist()
	}
	return removed
}

// persist writes the cache to disk atomically (temp file + rename), so
// a crash mid-write never leaves a half-written cache file behind.
func (c *Cache) persist() {
	if c.opts.Path == "" {
		return
	}
	c.mu.RLock()
	data, err := json.Marshal(c.entries)
	c.mu.RUnlock()
	if err != nil {
		return
	}

	dir := filepath.Dir(c.opts.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return
	}
	tmp, err := os.CreateTemp(dir, ".validation_cache-*.tmp")
	if err != nil {
		return
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return
	}
	if err := os.Rename(tmpPath, c.opts.Path); err != nil {
		os.Remove(tmpPath)
	}
}

func sortByInsertedAt(order []model.Fingerprint, entries map[model.Fingerprint]model.CacheEntry) {
	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && entries[order[j]].InsertedAt.Before(entries[order[j-1]].InsertedAt); j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}
}

// DefaultPath returns the conventional on-disk cache location,
// os.UserCacheDir()/synx/validation_cache.json, falling back to a
// relative path if the user cache directory cannot be determined.
func DefaultPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "synx", "validation_cache.json")
}
