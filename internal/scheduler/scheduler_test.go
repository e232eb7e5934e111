package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"synx/internal/cache"
	"synx/internal/detect"
	"synx/internal/model"
	"synx/internal/plugin"
	"synx/internal/policy"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	d := detect.New(detect.Config{})
	r := plugin.NewRegistry()
	if err := r.Register(plugin.NewJSONSyntaxPlugin()); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.InitializeAll(context.Background())
	c := cache.New(cache.Options{})
	ev := policy.NewEvaluator(policy.NewPolicy(), nil)
	x := plugin.NewExecutor(r, ev, nil, model.ResourceLimits{MaxWallTime: 5 * time.Second})
	return New(d, r, x, c, ev)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// TestScanOrdersResultsByPath covers the report's ordering guarantee:
// output order is file-path lexicographic regardless of completion order.
func TestScanOrdersResultsByPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "zeta.json", `{"ok":true}`)
	writeFile(t, dir, "alpha.json", `{"ok":true}`)
	writeFile(t, dir, "mid.json", `{"ok":true}`)

	s := newTestScheduler(t)
	report, err := s.Scan(context.Background(), []string{dir}, Options{Parallel: 4})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Files) != 3 {
		t.Fatalf("got %d files, want 3", len(report.Files))
	}
	for i := 1; i < len(report.Files); i++ {
		if report.Files[i-1].Path > report.Files[i].Path {
			t.Errorf("results not sorted: %s before %s", report.Files[i-1].Path, report.Files[i].Path)
		}
	}
}

func TestScanDetectsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.json", `{not json`)

	s := newTestScheduler(t)
	report, err := s.Scan(context.Background(), []string{dir}, Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.FilesInvalid != 1 || report.FilesValid != 0 {
		t.Errorf("report = %+v, want 1 invalid file", report)
	}
}

func TestScanExcludeGlob(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "keep.json", `{}`)
	vendorDir := filepath.Join(dir, "vendor")
	os.MkdirAll(vendorDir, 0o755)
	writeFile(t, vendorDir, "skip.json", `{}`)

	s := newTestScheduler(t)
	report, err := s.Scan(context.Background(), []string{dir}, Options{Exclude: []string{"**/vendor/**"}})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if report.FilesScanned != 1 {
		t.Errorf("FilesScanned = %d, want 1 (vendor excluded)", report.FilesScanned)
	}
}

func TestScanUnknownFileSkipsValidation(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "mystery.xyz", "plain prose, nothing special")

	s := newTestScheduler(t)
	report, err := s.Scan(context.Background(), []string{dir}, Options{})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(report.Files) != 1 || len(report.Files[0].Outcomes) != 0 {
		t.Errorf("expected unknown-tagged file to have no outcomes, got %+v", report.Files)
	}
}

// countingPlugin records how many times Validate actually ran, so tests
// can tell a cache hit from a re-run.
type countingPlugin struct {
	desc  model.PluginDescriptor
	calls int
}

func (p *countingPlugin) Descriptor() model.PluginDescriptor { return p.desc }
func (p *countingPlugin) Initialize(ctx context.Context) error { return nil }
func (p *countingPlugin) Cleanup(ctx context.Context) error    { return nil }
func (p *countingPlugin) Validate(ctx context.Context, path string, content []byte) (model.ValidationOutcome, error) {
	p.calls++
	return model.Success(p.desc.ID, 0), nil
}

// TestScanFingerprintVariesWithPluginConfig covers spec property 4: two
// scans of identical content against a plugin whose ConfigFingerprint
// differs must not share a cache entry.
func TestScanFingerprintVariesWithPluginConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.json", `{"ok":true}`)

	cp := &countingPlugin{desc: model.PluginDescriptor{
		ID:                "test.counting",
		Name:              "counting",
		Version:           "1.0.0",
		SupportedTags:     []model.FileTag{model.TagJSON},
		SupportedTagNames: []string{"json"},
		Categories:        []model.PluginCategory{model.CategoryValidator},
		ConfigFingerprint: []byte(`{"strict":false}`),
	}}

	r := plugin.NewRegistry()
	if err := r.Register(cp); err != nil {
		t.Fatalf("register: %v", err)
	}
	r.InitializeAll(context.Background())

	c := cache.New(cache.Options{})
	ev := policy.NewEvaluator(policy.NewPolicy(), nil)
	x := plugin.NewExecutor(r, ev, nil, model.ResourceLimits{MaxWallTime: 5 * time.Second})
	s := New(detect.New(detect.Config{}), r, x, c, ev)

	if _, err := s.Scan(context.Background(), []string{dir}, Options{}); err != nil {
		t.Fatalf("first scan: %v", err)
	}
	if _, err := s.Scan(context.Background(), []string{dir}, Options{}); err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if cp.calls != 1 {
		t.Fatalf("calls = %d, want 1 (second scan should hit the cache)", cp.calls)
	}

	cp.desc.ConfigFingerprint = []byte(`{"strict":true}`)
	if _, err := s.Scan(context.Background(), []string{dir}, Options{}); err != nil {
		t.Fatalf("third scan: %v", err)
	}
	if cp.calls != 2 {
		t.Fatalf("calls = %d, want 2 (changed config must invalidate the cache entry)", cp.calls)
	}
}
