package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"synx/internal/cache"
	"synx/internal/config"
	"synx/internal/detect"
	"synx/internal/model"
	"synx/internal/plugin"
	"synx/internal/policy"
	"synx/internal/scheduler"
)

func testApp(t *testing.T) *Application {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ConfigDir = t.TempDir()
	cfg.Cache.Dir = t.TempDir()
	cfg.Audit.Path = filepath.Join(cfg.ConfigDir, "audit.jsonl")

	registry := plugin.NewRegistry()
	if err := registry.Register(plugin.NewJSONSyntaxPlugin()); err != nil {
		t.Fatal(err)
	}
	registry.InitializeAll(context.Background())

	c := cache.New(cache.Options{})
	evaluator := policy.NewEvaluator(policy.NewPolicy(), nil)
	executor := plugin.NewExecutor(registry, evaluator, nil, model.ResourceLimits{MaxWallTime: 5 * time.Second})
	sched := scheduler.New(detect.New(detect.Config{}), registry, executor, c, evaluator)

	return &Application{
		Config:    cfg,
		Registry:  registry,
		Cache:     c,
		Evaluator: evaluator,
		Executor:  executor,
		Scheduler: sched,
	}
}

func TestCmdScanReturnsZeroOnAllValid(t *testing.T) {
	app := testApp(t)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"ok":true}`), 0o644)

	code, err := app.cmdScan(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("cmdScan: %v", err)
	}
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestCmdScanReturnsOneOnInvalid(t *testing.T) {
	app := testApp(t)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{not valid`), 0o644)

	code, err := app.cmdScan(context.Background(), []string{dir})
	if err != nil {
		t.Fatalf("cmdScan: %v", err)
	}
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

func TestCmdScanRejectsBadParallelFlag(t *testing.T) {
	app := testApp(t)
	code, err := app.cmdScan(context.Background(), []string{"--parallel", "not-a-number", "."})
	if err == nil {
		t.Fatal("expected an error for a non-numeric --parallel value")
	}
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestCmdCacheStatsAndClear(t *testing.T) {
	app := testApp(t)
	if code, err := app.cmdCache([]string{"stats"}); err != nil || code != 0 {
		t.Fatalf("cache stats: code=%d err=%v", code, err)
	}
	if code, err := app.cmdCache([]string{"clear"}); err != nil || code != 0 {
		t.Fatalf("cache clear: code=%d err=%v", code, err)
	}
	if code, err := app.cmdCache([]string{"bogus"}); err == nil || code != 2 {
		t.Fatalf("expected error+code 2 for unknown cache subcommand, got code=%d err=%v", code, err)
	}
}

func TestCmdConfigInitWritesFile(t *testing.T) {
	app := testApp(t)
	code, err := app.cmdConfig([]string{"init"})
	if err != nil || code != 0 {
		t.Fatalf("config init: code=%d err=%v", code, err)
	}
	if _, statErr := os.Stat(app.Config.ConfigFilePath()); statErr != nil {
		t.Errorf("expected config file to be written: %v", statErr)
	}
}

func TestCmdPerformanceStatsDoesNotError(t *testing.T) {
	app := testApp(t)
	if code, err := app.cmdPerformance(context.Background(), []string{"stats"}); err != nil || code != 0 {
		t.Fatalf("performance stats: code=%d err=%v", code, err)
	}
}

func TestDispatchUnknownCommand(t *testing.T) {
	app := testApp(t)
	code, err := app.Dispatch(context.Background(), []string{"bogus"})
	if err == nil || code != 2 {
		t.Fatalf("expected code 2 + error for unknown command, got code=%d err=%v", code, err)
	}
}
