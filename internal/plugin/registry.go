// Package plugin implements the Plugin Registry and Executor: the set
// of compiled-in and out-of-process validators, their lifecycle state
// machine, and the execution contract that runs one against one file.
package plugin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"synx/internal/model"
)

// Plugin is the uniform interface both in-process (compiled-in) and
// out-of-process (subprocess) plugins satisfy. The registry never
// dynamically loads code to produce one — a Plugin value is either
// constructed in Go source (see builtin.go) or wraps a subprocess
// manifest resolved at startup (see executor.go's SubprocessPlugin).
type Plugin interface {
	Descriptor() model.PluginDescriptor
	Initialize(ctx context.Context) error
	Validate(ctx context.Context, path string, content []byte) (model.ValidationOutcome, error)
	Cleanup(ctx context.Context) error
}

// entry pairs a Plugin with its lifecycle state and running stats.
type entry struct {
	mu     sync.Mutex
	plugin Plugin
	state  model.PluginState
	stats  model.PluginStats
	failErr error
}

// Registry holds every registered plugin, indexed by id, FileTag, and
// category, and enforces the Registered -> Initializing -> Active |
// Disabled | Failed lifecycle described in spec.md §4.3.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	byTag     map[model.FileTag][]string
	byCategory map[model.PluginCategory][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries:    make(map[string]*entry),
		byTag:      make(map[model.FileTag][]string),
		byCategory: make(map[model.PluginCategory][]string),
	}
}

// Register adds a plugin in the Registered state. It does not
// initialize it — call InitializeAll (or Initialize for a single
// plugin) to transition it toward Active.
func (r *Registry) Register(p Plugin) error {
	desc := p.Descriptor()
	if desc.ID == "" {
		return fmt.Errorf("plugin descriptor has empty id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[desc.ID]; exists {
		return fmt.Errorf("plugin %q already registered", desc.ID)
	}
	r.entries[desc.ID] = &entry{plugin: p, state: model.StateRegistered}

	for _, tag := range desc.SupportedTags {
		r.byTag[tag] = append(r.byTag[tag], desc.ID)
	}
	for _, cat := range desc.Categories {
		r.byCategory[cat] = append(r.byCategory[cat], desc.ID)
	}
	return nil
}

// InitializeAll transitions every Registered plugin to Active (or
// Failed on error), per spec.md's lifecycle. Already Active/Disabled/
// Failed plugins are left untouched, so InitializeAll is safe to call
// again after registering more plugins at runtime.
func (r *Registry) InitializeAll(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Initialize(ctx, id)
	}
}

// Initialize transitions a single plugin Registered -> Initializing ->
// Active|Failed.
func (r *Registry) Initialize(ctx context.Context, id string) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown plugin %q", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != model.StateRegistered {
		return nil
	}
	e.state = model.StateInitializing
	if err := e.plugin.Initialize(ctx); err != nil {
		e.state = model.StateFailed
		e.failErr = err
		return fmt.Errorf("initialize plugin %q: %w", id, err)
	}
	e.state = model.StateActive
	return nil
}

// Disable transitions a plugin to Disabled, excluding it from
// dispatch. Safe to call from any state.
func (r *Registry) Disable(id string) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown plugin %q", id)
	}
	e.mu.Lock()
	e.state = model.StateDisabled
	e.mu.Unlock()
	return nil
}

// CleanupAll calls Cleanup on every plugin regardless of state, for
// shutdown. Errors are collected but do not stop cleanup of the
// remaining plugins.
func (r *Registry) CleanupAll(ctx context.Context) []error {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	var errs []error
	for _, e := range entries {
		e.mu.Lock()
		err := e.plugin.Cleanup(ctx)
		e.mu.Unlock()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Get returns the plugin registered under id.
func (r *Registry) Get(id string) (Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.plugin, true
}

// State reports the current lifecycle state of a registered plugin.
func (r *Registry) State(id string) (model.PluginState, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return 0, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, true
}

// ForTag returns the ids of Active plugins that support tag, in
// registration order.
func (r *Registry) ForTag(tag model.FileTag) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byTag[tag]
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if e := r.entries[id]; e != nil {
			e.mu.Lock()
			active := e.state == model.StateActive
			e.mu.Unlock()
			if active {
				out = append(out, id)
			}
		}
	}
	return out
}

// ForCategory returns the ids of Active plugins advertising cat.
func (r *Registry) ForCategory(cat model.PluginCategory) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := r.byCategory[cat]
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if e := r.entries[id]; e != nil {
			e.mu.Lock()
			active := e.state == model.StateActive
			e.mu.Unlock()
			if active {
				out = append(out, id)
			}
		}
	}
	return out
}

// HealthCheck reports (enabled AND state == Active) for every
// registered plugin, per spec.md §4.3.
func (r *Registry) HealthCheck() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.entries))
	for id, e := range r.entries {
		e.mu.Lock()
		out[id] = e.state == model.StateActive
		e.mu.Unlock()
	}
	return out
}

// Stats returns a snapshot of one plugin's running execution counters.
func (r *Registry) Stats(id string) (model.PluginStats, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return model.PluginStats{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats, true
}

// recordExecution updates one plugin's running stats after an
// execution completes. wall is the observed wall-clock time; success
// marks whether the outcome counted as valid.
func (r *Registry) recordExecution(id string, wall time.Duration, success bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.Executions++
	if success {
		e.stats.Successes++
	} else {
		e.stats.Failures++
	}
	ms := uint64(wall.Milliseconds())
	e.stats.TotalWallMS += ms
	if ms > e.stats.MaxWallMS {
		e.stats.MaxWallMS = ms
	}
	e.stats.LastRun = time.Now().UTC()
}
