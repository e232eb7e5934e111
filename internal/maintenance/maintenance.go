// Package maintenance prunes stale validation cache entries and
// rotated audit logs so neither grows without bound between runs.
package maintenance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"synx/internal/cache"
)

// Options configures a maintenance pass.
type Options struct {
	// CacheDir is the directory holding validation_cache.json.
	CacheDir string
	// AuditDir is the directory holding the active and rotated audit
	// log files.
	AuditDir string
	// MaxAge is how old a rotated audit log may get before it is
	// deleted. Defaults to 30 days.
	MaxAge time.Duration
	// DryRun reports what would be deleted without deleting it.
	DryRun bool
}

// DefaultOptions returns maintenance options pointed at the
// conventional synx cache/config directories with a 30-day retention.
func DefaultOptions() Options {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = "."
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	return Options{
		CacheDir: filepath.Join(cacheDir, "synx"),
		AuditDir: filepath.Join(configDir, "synx"),
		MaxAge:   30 * 24 * time.Hour,
	}
}

// Result summarizes one maintenance pass.
type Result struct {
	PrunedCacheEntries int
	DeletedAuditLogs   int
	Errors             []string
}

// Run prunes TTL-expired cache entries (via c.Prune, if c is non-nil)
// and deletes rotated audit log files older than opts.MaxAge. A nil
// cache skips the cache step — callers that only want audit cleanup
// can pass nil.
func Run(opts Options, c *cache.Cache) Result {
	if opts.MaxAge == 0 {
		opts.MaxAge = 30 * 24 * time.Hour
	}
	result := Result{}

	if c != nil {
		result.PrunedCacheEntries = c.Prune()
	}

	if opts.AuditDir != "" {
		if err := pruneAuditLogs(opts.AuditDir, time.Now().Add(-opts.MaxAge), opts.DryRun, &result); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("prune audit logs: %v", err))
		}
	}

	return result
}

// pruneAuditLogs removes rotated audit files (audit.jsonl.<nanos>)
// older than cutoff. The active audit.jsonl file is never touched
// here — it rotates on its own once it exceeds its size limit.
func pruneAuditLogs(dir string, cutoff time.Time, dryRun bool, result *Result) error {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat audit directory: %w", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl.*"))
	if err != nil {
		return fmt.Errorf("glob rotated audit logs: %w", err)
	}

	for _, path := range matches {
		if !strings.Contains(filepath.Base(path), ".jsonl.") {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed concurrently
			}
			result.Errors = append(result.Errors, fmt.Sprintf("stat %s: %v", path, err))
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if dryRun {
			result.DeletedAuditLogs++
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			result.Errors = append(result.Errors, fmt.Sprintf("remove %s: %v", path, err))
			continue
		}
		result.DeletedAuditLogs++
	}
	return nil
}
