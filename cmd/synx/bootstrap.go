package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"synx/internal/cache"
	"synx/internal/config"
	"synx/internal/detect"
	"synx/internal/maintenance"
	"synx/internal/manifest"
	"synx/internal/plugin"
	"synx/internal/policy"
	"synx/internal/scheduler"
)

// Application holds every wired dependency the CLI verbs dispatch
// against. Each phase of Bootstrap is separated for testability, the
// way app.Bootstrap builds a cosmos Application in explicit stages.
type Application struct {
	Config    config.Config
	Detector  *detect.Detector
	Registry  *plugin.Registry
	Cache     *cache.Cache
	Audit     *policy.AuditLogger
	Evaluator *policy.Evaluator
	Executor  *plugin.Executor
	Scheduler *scheduler.Scheduler
}

// Bootstrap loads configuration, ensures its directories exist, and
// constructs every runtime component in dependency order: config ->
// detector -> policy/audit -> cache -> plugin registry -> executor ->
// scheduler.
func Bootstrap(ctx context.Context) (*Application, error) {
	cfg, warnings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "synx: warning: %s\n", w)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("preparing directories: %w", err)
	}

	det := detect.New(cfg.DetectConfig())

	var audit *policy.AuditLogger
	if cfg.Audit.Enabled {
		audit, err = policy.NewAuditLogger(cfg.AuditConfig(nil))
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
	}

	evaluator := policy.NewEvaluator(cfg.SecurityPolicy(), audit)

	var c *cache.Cache
	if cfg.Cache.Enabled {
		c = cache.New(cache.Options{
			Path:       filepath.Join(cfg.Cache.Dir, "validation_cache.json"),
			TTL:        time.Duration(cfg.Cache.TTL) * time.Hour,
			MaxEntries: cfg.Cache.MaxEntries,
		})
	}

	registry := plugin.NewRegistry()
	registerBuiltinPlugins(registry)
	if err := registerConfiguredPlugins(registry, cfg); err != nil {
		return nil, fmt.Errorf("registering validators: %w", err)
	}
	registerDiscoveredPlugins(registry, cfg)
	registry.InitializeAll(ctx)

	executor := plugin.NewExecutor(registry, evaluator, audit, cfg.DefaultResourceLimits())
	sched := scheduler.New(det, registry, executor, c, evaluator)

	return &Application{
		Config:    cfg,
		Detector:  det,
		Registry:  registry,
		Cache:     c,
		Audit:     audit,
		Evaluator: evaluator,
		Executor:  executor,
		Scheduler: sched,
	}, nil
}

// registerBuiltinPlugins registers the validators synx ships with no
// external configuration required.
func registerBuiltinPlugins(registry *plugin.Registry) {
	_ = registry.Register(plugin.NewJSONSyntaxPlugin())
	_ = registry.Register(plugin.NewTrailingWhitespacePlugin())
}

// registerConfiguredPlugins wraps each enabled [validators.<tag>]
// section with a command set as an out-of-process SubprocessPlugin.
// Sections with no command configured rely on a builtin instead.
func registerConfiguredPlugins(registry *plugin.Registry, cfg config.Config) error {
	for tagName, v := range cfg.Validators {
		if !v.Enabled || v.Command == "" {
			continue
		}
		tag, ok := tagFromName(tagName)
		if !ok {
			return fmt.Errorf("unknown validator tag %q", tagName)
		}
		desc := pluginDescriptorFor(tagName, tag, v, cfg)
		wd, _ := os.Getwd()
		if err := registry.Register(plugin.NewSubprocessPlugin(desc, v.Command, wd)); err != nil {
			return err
		}
	}
	return nil
}

// registerDiscoveredPlugins scans the builtin plugins directory next to
// the synx binary and the user's own ConfigDir/plugins directory for
// synx.plugin.json manifests, registering each as an out-of-process
// SubprocessPlugin. A manifest directory that fails to load is logged
// as a warning rather than aborting startup.
func registerDiscoveredPlugins(registry *plugin.Registry, cfg config.Config) {
	var builtinDir string
	if exe, err := os.Executable(); err == nil {
		builtinDir = filepath.Join(filepath.Dir(exe), "plugins")
	}
	userDir := filepath.Join(cfg.ConfigDir, "plugins")

	plugins, errs := plugin.Discover(builtinDir, userDir, manifest.VerifyConfig{})
	for _, e := range errs {
		fmt.Fprintf(os.Stderr, "synx: warning: skipping plugin: %s\n", e)
	}
	for _, p := range plugins {
		if err := registry.Register(p); err != nil {
			fmt.Fprintf(os.Stderr, "synx: warning: %v\n", err)
		}
	}
}

// Close releases resources Bootstrap opened (the audit log file).
func (a *Application) Close() {
	if a.Audit != nil {
		a.Audit.Close()
	}
}

// RunMaintenance runs a maintenance pass using the application's own
// cache and configured directories. No CLI verb calls it: `cache
// clear` empties the cache directly and the daemon does no pruning.
func (a *Application) RunMaintenance(dryRun bool) maintenance.Result {
	opts := maintenance.DefaultOptions()
	opts.CacheDir = a.Config.Cache.Dir
	opts.AuditDir = a.Config.ConfigDir
	opts.DryRun = dryRun
	return maintenance.Run(opts, a.Cache)
}
