package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"synx/internal/metrics"
	"synx/internal/report"
	"synx/internal/scheduler"
)

// Dispatch parses argv (os.Args[1:]) and runs the matching verb,
// returning the process exit code per scan's 0/1/2 contract: 0 all
// valid, 1 at least one invalid, 2 a system error (bad arguments,
// i/o failure, config error).
func (a *Application) Dispatch(ctx context.Context, argv []string) (int, error) {
	defer a.Close()

	if len(argv) == 0 {
		return 2, fmt.Errorf("usage: synx <scan|cache|daemon|config|performance> ...")
	}

	switch argv[0] {
	case "scan":
		return a.cmdScan(ctx, argv[1:])
	case "cache":
		return a.cmdCache(argv[1:])
	case "daemon":
		return a.cmdDaemon(ctx, argv[1:])
	case "config":
		return a.cmdConfig(argv[1:])
	case "performance":
		return a.cmdPerformance(ctx, argv[1:])
	default:
		return 2, fmt.Errorf("unknown command %q", argv[0])
	}
}

// cmdScan implements `scan <paths...> [--exclude PATTERN]...
// [--parallel N] [--format text|json] [--report PATH]`.
func (a *Application) cmdScan(ctx context.Context, args []string) (int, error) {
	var inputs, exclude []string
	format := a.Config.General.Format
	if format == "" {
		format = "text"
	}
	parallel := a.Config.General.Parallel
	reportPath := ""

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--exclude":
			i++
			if i >= len(args) {
				return 2, fmt.Errorf("--exclude requires a pattern")
			}
			exclude = append(exclude, args[i])
		case "--parallel":
			i++
			if i >= len(args) {
				return 2, fmt.Errorf("--parallel requires a number")
			}
			var n int
			if _, err := fmt.Sscanf(args[i], "%d", &n); err != nil {
				return 2, fmt.Errorf("invalid --parallel value %q", args[i])
			}
			parallel = n
		case "--format":
			i++
			if i >= len(args) {
				return 2, fmt.Errorf("--format requires text or json")
			}
			format = args[i]
		case "--report":
			i++
			if i >= len(args) {
				return 2, fmt.Errorf("--report requires a path")
			}
			reportPath = args[i]
		default:
			inputs = append(inputs, args[i])
		}
	}
	if len(inputs) == 0 {
		inputs = []string{"."}
	}

	scanReport, err := a.Scheduler.Scan(ctx, inputs, scheduler.Options{Exclude: exclude, Parallel: parallel})
	if err != nil {
		return 2, fmt.Errorf("scan: %w", err)
	}

	if a.Cache != nil {
		metrics.RecordCacheStats(a.Cache.Stats())
	}

	var rendered []byte
	switch format {
	case "json":
		rendered, err = report.FormatJSON(scanReport)
		if err != nil {
			return 2, err
		}
	default:
		rendered = []byte(report.FormatText(scanReport))
	}

	if reportPath != "" {
		if err := os.WriteFile(reportPath, rendered, 0o644); err != nil {
			return 2, fmt.Errorf("write report: %w", err)
		}
	} else {
		fmt.Print(string(rendered))
		if format == "json" {
			fmt.Println()
		}
	}

	if scanReport.FilesInvalid > 0 {
		return 1, nil
	}
	return 0, nil
}

// cmdCache implements `cache stats|clear|info`.
func (a *Application) cmdCache(args []string) (int, error) {
	if a.Cache == nil {
		return 2, fmt.Errorf("cache is disabled in configuration")
	}
	if len(args) == 0 {
		return 2, fmt.Errorf("usage: synx cache <stats|clear|info>")
	}
	switch args[0] {
	case "stats":
		stats := a.Cache.Stats()
		fmt.Printf("entries: %d\nhits: %d\nmisses: %d\nhit_ratio: %.4f\nmemory_bytes: %d\n",
			stats.TotalEntries, stats.Hits, stats.Misses, stats.HitRatio, stats.MemoryBytes)
		return 0, nil
	case "clear":
		a.Cache.Clear()
		fmt.Println("cache cleared")
		return 0, nil
	case "info":
		fmt.Printf("path: %s\nttl_hours: %d\nmax_entries: %d\n",
			a.Config.Cache.Dir, a.Config.Cache.TTL, a.Config.Cache.MaxEntries)
		return 0, nil
	default:
		return 2, fmt.Errorf("unknown cache subcommand %q", args[0])
	}
}

// cmdDaemon implements `daemon start|status|stop`: a long-lived
// watch-mode scan loop with a metrics HTTP endpoint, tracked via a
// pidfile under the configured directory.
func (a *Application) cmdDaemon(ctx context.Context, args []string) (int, error) {
	if len(args) == 0 {
		return 2, fmt.Errorf("usage: synx daemon <start|status|stop>")
	}
	pidPath := a.Config.ConfigDir + "/daemon.pid"

	switch args[0] {
	case "status":
		data, err := os.ReadFile(pidPath)
		if err != nil {
			fmt.Println("daemon not running")
			return 0, nil
		}
		fmt.Printf("daemon running, pid %s\n", string(data))
		return 0, nil

	case "stop":
		data, err := os.ReadFile(pidPath)
		if err != nil {
			return 2, fmt.Errorf("daemon is not running")
		}
		var pid int
		if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
			return 2, fmt.Errorf("corrupt pidfile: %w", err)
		}
		proc, err := os.FindProcess(pid)
		if err != nil {
			return 2, fmt.Errorf("find daemon process: %w", err)
		}
		if err := proc.Kill(); err != nil {
			return 2, fmt.Errorf("stop daemon: %w", err)
		}
		os.Remove(pidPath)
		fmt.Println("daemon stopped")
		return 0, nil

	case "start":
		if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
			return 2, fmt.Errorf("write pidfile: %w", err)
		}
		defer os.Remove(pidPath)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: ":9090", Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				fmt.Fprintf(os.Stderr, "synx: metrics server: %v\n", err)
			}
		}()
		defer server.Close()

		onScan := func(r scheduler.ScanReport) {
			for id := range a.Registry.HealthCheck() {
				if stats, ok := a.Registry.Stats(id); ok {
					metrics.RecordPluginStats(id, stats)
				}
			}
			fmt.Printf("scan %s: %d valid, %d invalid\n", r.ScanID, r.FilesValid, r.FilesInvalid)
		}

		opts := scheduler.WatchOptions{
			Inputs:   []string{"."},
			Parallel: a.Config.General.Parallel,
			Interval: time.Duration(a.Config.General.WatchInterval) * time.Millisecond,
		}
		if err := scheduler.Watch(ctx, opts, a.Scheduler, onScan); err != nil {
			return 2, fmt.Errorf("daemon watch loop: %w", err)
		}
		return 0, nil

	default:
		return 2, fmt.Errorf("unknown daemon subcommand %q", args[0])
	}
}

// cmdConfig implements `config init|show|validate`.
func (a *Application) cmdConfig(args []string) (int, error) {
	if len(args) == 0 {
		return 2, fmt.Errorf("usage: synx config <init|show|validate>")
	}
	switch args[0] {
	case "init":
		if err := a.Config.EnsureDirs(); err != nil {
			return 2, err
		}
		path := a.Config.ConfigFilePath()
		if _, err := os.Stat(path); err == nil {
			fmt.Printf("config already exists at %s\n", path)
			return 0, nil
		}
		if err := os.WriteFile(path, []byte(defaultConfigTOML), 0o644); err != nil {
			return 2, fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("wrote default config to %s\n", path)
		return 0, nil

	case "show":
		fmt.Printf("%+v\n", a.Config)
		return 0, nil

	case "validate":
		_, warnings, err := loadedConfigWithWarnings(a.Config.ConfigFilePath())
		if err != nil {
			return 2, err
		}
		for _, w := range warnings {
			fmt.Println(w)
		}
		if len(warnings) > 0 {
			return 1, nil
		}
		fmt.Println("config OK")
		return 0, nil

	default:
		return 2, fmt.Errorf("unknown config subcommand %q", args[0])
	}
}

// cmdPerformance implements `performance stats|clear|benchmark PATH`.
func (a *Application) cmdPerformance(ctx context.Context, args []string) (int, error) {
	if len(args) == 0 {
		return 2, fmt.Errorf("usage: synx performance <stats|clear|benchmark>")
	}
	switch args[0] {
	case "stats":
		ids := make([]string, 0)
		for id := range a.Registry.HealthCheck() {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			stats, _ := a.Registry.Stats(id)
			fmt.Printf("%s: executions=%d success_rate=%.2f avg_ms=%.1f max_ms=%d\n",
				id, stats.Executions, stats.SuccessRate(), stats.AvgWallMS(), stats.MaxWallMS)
		}
		return 0, nil

	case "clear":
		if a.Cache != nil {
			a.Cache.Clear()
		}
		fmt.Println("performance counters reset (cache cleared)")
		return 0, nil

	case "benchmark":
		if len(args) < 2 {
			return 2, fmt.Errorf("usage: synx performance benchmark PATH [N]")
		}
		path := args[1]
		iterations := 5
		if len(args) > 2 {
			fmt.Sscanf(args[2], "%d", &iterations)
		}
		durations := make([]time.Duration, 0, iterations)
		for i := 0; i < iterations; i++ {
			start := time.Now()
			if _, err := a.Scheduler.Scan(ctx, []string{path}, scheduler.Options{}); err != nil {
				return 2, fmt.Errorf("benchmark scan: %w", err)
			}
			durations = append(durations, time.Since(start))
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		fmt.Printf("iterations=%d min=%s median=%s max=%s\n",
			iterations, durations[0], durations[len(durations)/2], durations[len(durations)-1])
		return 0, nil

	default:
		return 2, fmt.Errorf("unknown performance subcommand %q", args[0])
	}
}
