// Package scheduler is the integrating glue: it walks input paths,
// asks the Detector for each file's tag, consults the Policy Engine
// and Cache, dispatches cache misses to the Executor, and aggregates
// results into a ScanReport ordered by file path.
package scheduler

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"synx/internal/cache"
	"synx/internal/detect"
	"synx/internal/model"
	"synx/internal/plugin"
	"synx/internal/policy"
)

// Options controls one Scan invocation.
type Options struct {
	Exclude  []string // doublestar glob patterns, matched against slash-form relative paths
	Parallel int      // bounded worker pool size; <=0 defaults to 4
}

// FileReport is the aggregated outcome for one discovered file: its
// detected tag and the ValidationOutcome from every plugin dispatched
// against it, in registry order.
type FileReport struct {
	Path     string                   `json:"path"`
	Tag      string                   `json:"tag"`
	Outcomes []model.ValidationOutcome `json:"outcomes"`
}

// AllValid reports whether every outcome recorded for this file counts
// as valid.
func (f FileReport) AllValid() bool {
	for _, o := range f.Outcomes {
		if !o.IsValid() {
			return false
		}
	}
	return true
}

// ScanReport is the result of one Scan call: per-file outcomes in
// file-path lexicographic order, regardless of completion order.
type ScanReport struct {
	ScanID       string       `json:"scan_id"`
	Files        []FileReport `json:"files"`
	FilesScanned int          `json:"files_scanned"`
	FilesValid   int          `json:"files_valid"`
	FilesInvalid int          `json:"files_invalid"`
}

// Scheduler wires the Detector, Registry, Policy Engine, Cache, and
// Executor together to run scans.
type Scheduler struct {
	detector *detect.Detector
	registry *plugin.Registry
	executor *plugin.Executor
	cache    *cache.Cache
	policy   *policy.Evaluator
}

// New builds a Scheduler from its component dependencies.
func New(detector *detect.Detector, registry *plugin.Registry, executor *plugin.Executor, c *cache.Cache, ev *policy.Evaluator) *Scheduler {
	return &Scheduler{detector: detector, registry: registry, executor: executor, cache: c, policy: ev}
}

// Scan walks inputs (files and directories), classifies and validates
// each discovered file against its candidate plugins, and returns a
// report ordered by file path. ctx cancellation stops new work from
// starting and cancels in-flight plugin executions; already-flushed
// results are kept.
func (s *Scheduler) Scan(ctx context.Context, inputs []string, opts Options) (ScanReport, error) {
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = 4
	}

	files, err := discoverFiles(inputs, opts.Exclude)
	if err != nil {
		return ScanReport{}, fmt.Errorf("discover files: %w", err)
	}

	sem := semaphore.NewWeighted(int64(parallel))
	var mu sync.Mutex
	var wg sync.WaitGroup
	results := make([]FileReport, 0, len(files))

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break // ctx cancelled while waiting for a slot
		}
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(1)

			report := s.scanOne(ctx, path)

			mu.Lock()
			results = append(results, report)
			mu.Unlock()
		}(path)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })

	out := ScanReport{ScanID: uuid.NewString(), Files: results, FilesScanned: len(results)}
	for _, r := range results {
		if r.AllValid() {
			out.FilesValid++
		} else {
			out.FilesInvalid++
		}
	}
	return out, nil
}

// scanOne runs the per-file pipeline: detect -> select candidates ->
// policy check -> fingerprint -> cache.GetOrCompute -> aggregate.
// Plugins run sequentially within one file, in registry order, so a
// file's own result is deterministic regardless of how many workers
// are scanning other files concurrently.
func (s *Scheduler) scanOne(ctx context.Context, path string) FileReport {
	tag := s.detector.Classify(path)
	report := FileReport{Path: path, Tag: tag.String()}

	if tag.IsUnknown() {
		return report
	}

	content, err := os.ReadFile(path)
	if err != nil {
		report.Outcomes = append(report.Outcomes, model.InternalError("scheduler", err.Error()))
		return report
	}

	candidates := s.registry.ForTag(tag)
	for _, pluginID := range candidates {
		if ctx.Err() != nil {
			report.Outcomes = append(report.Outcomes, model.Timeout(pluginID, 0))
			continue
		}

		if s.policy != nil {
			decision := s.policy.Check(pluginID, model.ActionUseTool, path)
			if !decision.Allowed {
				report.Outcomes = append(report.Outcomes, model.PolicyDenied(pluginID))
				continue
			}
		}

		p, ok := s.registry.Get(pluginID)
		if !ok {
			report.Outcomes = append(report.Outcomes, model.ToolMissing(pluginID))
			continue
		}
		desc := p.Descriptor()
		toolVersion := desc.Version

		fp := model.ComputeFingerprint(content, pluginID, toolVersion, desc.ConfigFingerprint)
		outcome := s.cache.GetOrCompute(fp, toolVersion, func() model.ValidationOutcome {
			return s.executor.Execute(ctx, pluginID, path, content)
		})
		report.Outcomes = append(report.Outcomes, outcome)
	}

	return report
}

// discoverFiles walks every input (a file is included directly, a
// directory is walked recursively), applying exclude globs against
// slash-form paths relative to the input root.
func discoverFiles(inputs []string, exclude []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, root := range inputs {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if !isExcluded(root, exclude) && !seen[root] {
				files = append(files, root)
				seen[root] = true
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			if isExcluded(rel, exclude) {
				return nil
			}
			if !seen[path] {
				files = append(files, path)
				seen[path] = true
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return files, nil
}

func isExcluded(path string, patterns []string) bool {
	slashPath := filepath.ToSlash(path)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, slashPath); ok {
			return true
		}
	}
	return false
}
