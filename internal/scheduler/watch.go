package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchOptions controls Watch's debouncing and rescan behavior.
type WatchOptions struct {
	Inputs   []string
	Exclude  []string
	Parallel int
	Interval time.Duration // debounce window; defaults to 500ms
}

// Watch rescans inputs whenever a file under them changes, debounced
// by Interval so a burst of writes (e.g. a save-all in an editor)
// triggers one rescan instead of one per file. It blocks until ctx is
// cancelled or a non-recoverable watcher error occurs. Each completed
// scan is delivered to onScan.
func Watch(ctx context.Context, opts WatchOptions, s *Scheduler, onScan func(ScanReport)) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, root := range opts.Inputs {
		if err := addRecursive(watcher, root); err != nil {
			return fmt.Errorf("watch %s: %w", root, err)
		}
	}

	scanOpts := Options{Exclude: opts.Exclude, Parallel: opts.Parallel}
	runScan := func() {
		report, err := s.Scan(ctx, opts.Inputs, scanOpts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "synx: watch rescan failed: %v\n", err)
			return
		}
		onScan(report)
	}

	runScan() // initial scan before watching for changes

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if isExcluded(event.Name, opts.Exclude) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(interval)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(interval)
			}
			timerC = timer.C

		case <-timerC:
			runScan()
			timerC = nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "synx: watch error: %v\n", err)
		}
	}
}

// addRecursive adds root and, if it is a directory, every subdirectory
// to the watcher. fsnotify watches are not recursive on their own.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return watcher.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
