package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromMissingFileReturnsDefaults(t *testing.T) {
	defaults := DefaultConfig()
	cfg, warnings, err := LoadFrom(filepath.Join(t.TempDir(), "does-not-exist.toml"), defaults)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if cfg.General.Timeout != defaults.General.Timeout {
		t.Errorf("Timeout = %d, want default %d", cfg.General.Timeout, defaults.General.Timeout)
	}
}

func TestLoadFromOverlaysTOMLOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[general]
strict = true
parallel = 16

[validators.python]
enabled = true
command = "/usr/bin/pyflakes-plugin"
timeout = 10

[file_mappings]
"Jenkinsfile" = "shell"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := LoadFrom(path, DefaultConfig())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if !cfg.General.Strict {
		t.Error("expected General.Strict = true")
	}
	if cfg.General.Parallel != 16 {
		t.Errorf("Parallel = %d, want 16", cfg.General.Parallel)
	}
	v, ok := cfg.Validators["python"]
	if !ok || v.Command != "/usr/bin/pyflakes-plugin" || v.Timeout != 10 {
		t.Errorf("Validators[python] = %+v", v)
	}
	if cfg.FileMappings["Jenkinsfile"] != "shell" {
		t.Errorf("FileMappings[Jenkinsfile] = %q, want shell", cfg.FileMappings["Jenkinsfile"])
	}
}

func TestLoadFromWarnsOnUnknownKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[general]\nstrict = true\nbogus_key = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, warnings, err := LoadFrom(path, DefaultConfig())
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if len(warnings) == 0 {
		t.Error("expected a warning for the unknown key")
	}
}

func TestLoadFromMalformedFileErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("not = [valid toml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, _, err := LoadFrom(path, DefaultConfig()); err == nil {
		t.Error("expected an error for malformed TOML")
	}
}

func TestEnsureDirsCreatesConfiguredDirectories(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.ConfigDir = filepath.Join(root, "config")
	cfg.Cache.Dir = filepath.Join(root, "cache")
	cfg.Audit.Path = filepath.Join(root, "audit-dir", "audit.jsonl")

	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{cfg.ConfigDir, cfg.Cache.Dir, filepath.Dir(cfg.Audit.Path)} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("expected directory %s to exist", dir)
		}
	}
}

func TestDetectConfigCarriesFileMappings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FileMappings = map[string]string{"Jenkinsfile": "shell"}

	dc := cfg.DetectConfig()
	if dc.FileMappings["Jenkinsfile"] != "shell" {
		t.Errorf("DetectConfig did not carry file_mappings through")
	}
}

func TestSecurityPolicyCarriesRestrictedPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RestrictedPaths = []string{"/etc/**"}
	cfg.Policy.AllowNetwork = true

	p := cfg.SecurityPolicy()
	if len(p.RestrictedPaths) != 1 || p.RestrictedPaths[0] != "/etc/**" {
		t.Errorf("RestrictedPaths = %v", p.RestrictedPaths)
	}
	if !p.Global.AllowNetwork {
		t.Error("expected Global.AllowNetwork = true")
	}
}

func TestValidatorLimitsFallsBackToGeneralTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.General.Timeout = 45

	limits := cfg.ValidatorLimits("json")
	if limits.MaxWallTime.Seconds() != 45 {
		t.Errorf("MaxWallTime = %v, want 45s", limits.MaxWallTime)
	}

	cfg.Validators["json"] = ValidatorConfig{Enabled: true, Timeout: 5}
	limits = cfg.ValidatorLimits("json")
	if limits.MaxWallTime.Seconds() != 5 {
		t.Errorf("MaxWallTime = %v, want 5s (validator override)", limits.MaxWallTime)
	}
}
