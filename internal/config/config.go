// Package config loads the synx TOML configuration file and resolves
// it into the narrow configuration types each runtime component
// actually consumes (detect.Config, policy.SecurityPolicy,
// policy.AuditConfig, model.ResourceLimits), so no component depends on
// this package's Config struct directly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"synx/internal/detect"
	"synx/internal/model"
	"synx/internal/policy"
)

// ValidatorConfig is one [validators.<tag>] section: how to run (or
// disable) the validator for a given file tag.
type ValidatorConfig struct {
	Enabled bool     `toml:"enabled"`
	Command string   `toml:"command"` // path to a subprocess plugin entry point; empty uses the built-in
	Args    []string `toml:"args"`
	Strict  bool     `toml:"strict"`
	Timeout int      `toml:"timeout"` // seconds; 0 uses General.Timeout
}

// Config holds all synx configuration values, loaded from
// ~/.config/synx/config.toml and overlaid on DefaultConfig.
type Config struct {
	General struct {
		Strict        bool   `toml:"strict"`
		Verbose       bool   `toml:"verbose"`
		Watch         bool   `toml:"watch"`
		WatchInterval int    `toml:"watch_interval"` // milliseconds
		Timeout       int    `toml:"timeout"`        // seconds, per-plugin default
		Parallel      int    `toml:"parallel"`
		Format        string `toml:"format"` // "text" or "json"
	} `toml:"general"`

	Validators map[string]ValidatorConfig `toml:"validators"`

	// FileMappings is the [file_mappings] table: exact filename -> tag
	// name, checked before the built-in special-name table.
	FileMappings map[string]string `toml:"file_mappings"`

	Cache struct {
		Enabled    bool   `toml:"enabled"`
		Dir        string `toml:"dir"`
		TTL        int    `toml:"ttl"` // hours
		MaxEntries int    `toml:"max_entries"`
	} `toml:"cache"`

	Policy struct {
		Strict          bool     `toml:"strict"`
		AllowNetwork    bool     `toml:"allow_network"`
		MaxProcesses    int      `toml:"max_processes"`
		RestrictedPaths []string `toml:"restricted_paths"`
	} `toml:"policy"`

	Audit struct {
		Enabled         bool   `toml:"enabled"`
		Path            string `toml:"path"`
		MinSeverity     string `toml:"min_severity"`
		MaxLogSizeBytes int64  `toml:"max_log_size_bytes"`
		LogRetention    int    `toml:"log_retention"`
	} `toml:"audit"`

	// ConfigDir is not TOML-configurable — it is taken from the
	// defaults passed to LoadFrom (the user config directory's synx/
	// subdirectory for DefaultConfig), and holds config.toml. Relative
	// cache/audit paths are not resolved against it.
	ConfigDir string `toml:"-"`
}

// DefaultConfig returns a Config with all defaults populated.
func DefaultConfig() Config {
	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = "."
	}
	synxDir := filepath.Join(configDir, "synx")

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = "."
	}

	cfg := Config{ConfigDir: synxDir}
	cfg.General.Strict = false
	cfg.General.Verbose = false
	cfg.General.Watch = false
	cfg.General.WatchInterval = 500
	cfg.General.Timeout = 30
	cfg.General.Parallel = 4
	cfg.General.Format = "text"

	cfg.Validators = map[string]ValidatorConfig{}
	cfg.FileMappings = map[string]string{}

	cfg.Cache.Enabled = true
	cfg.Cache.Dir = filepath.Join(cacheDir, "synx")
	cfg.Cache.TTL = 720 // 30 days
	cfg.Cache.MaxEntries = 10000

	cfg.Policy.MaxProcesses = 8

	cfg.Audit.Enabled = true
	cfg.Audit.Path = filepath.Join(synxDir, "audit.jsonl")
	cfg.Audit.MinSeverity = "info"
	cfg.Audit.MaxLogSizeBytes = 10 << 20 // 10 MiB
	cfg.Audit.LogRetention = 5

	return cfg
}

// ConfigFilePath returns the path to the config file inside ConfigDir.
func (c Config) ConfigFilePath() string {
	return filepath.Join(c.ConfigDir, "config.toml")
}

// Load loads configuration from the default location
// (~/.config/synx/config.toml), falling back to defaults if the file
// does not exist.
func Load() (Config, []string, error) {
	defaults := DefaultConfig()
	return LoadFrom(defaults.ConfigFilePath(), defaults)
}

// LoadFrom loads configuration from path, overlaying TOML values onto
// defaults. A missing file is not an error (first-run case); a
// malformed one is. Unrecognized keys are returned as warnings rather
// than failing the load, since they are most often typos in an
// otherwise-valid file.
func LoadFrom(path string, defaults Config) (Config, []string, error) {
	cfg := defaults

	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return defaults, nil, nil
		}
		return Config{}, nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg.ConfigDir = defaults.ConfigDir

	var warnings []string
	for _, key := range meta.Undecoded() {
		warnings = append(warnings, fmt.Sprintf("unknown config key: %s", key))
	}
	return cfg, warnings, nil
}

// EnsureDirs creates ConfigDir, the cache dir, and the audit log's
// parent directory if they do not already exist.
func (c Config) EnsureDirs() error {
	dirs := []string{c.ConfigDir, c.Cache.Dir}
	if c.Audit.Path != "" {
		dirs = append(dirs, filepath.Dir(c.Audit.Path))
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}

// DetectConfig narrows c down to the subset the Detector consumes.
func (c Config) DetectConfig() detect.Config {
	return detect.Config{FileMappings: c.FileMappings}
}

// SecurityPolicy builds a declarative SecurityPolicy from the
// [policy] section. Per-tool and per-path entries are not
// TOML-configurable in this version — they default empty and are
// populated programmatically by callers that need finer-grained
// restrictions than the global section expresses.
func (c Config) SecurityPolicy() policy.SecurityPolicy {
	p := policy.NewPolicy()
	p.Global = policy.GlobalPolicy{
		Strict:       c.Policy.Strict,
		AllowNetwork: c.Policy.AllowNetwork,
		MaxProcesses: c.Policy.MaxProcesses,
	}
	p.RestrictedPaths = c.Policy.RestrictedPaths
	return p
}

// AuditConfig builds an policy.AuditConfig from the [audit] section.
// signingKey is passed through unchanged; a nil key leaves audit
// events unsigned — signing is optional, not a hard requirement.
func (c Config) AuditConfig(signingKey []byte) policy.AuditConfig {
	return policy.AuditConfig{
		Path:            c.Audit.Path,
		MinSeverity:     model.ParseAuditSeverity(c.Audit.MinSeverity),
		MaxLogSizeBytes: c.Audit.MaxLogSizeBytes,
		LogRetention:    c.Audit.LogRetention,
		SigningKey:      signingKey,
		AlertSeverity:   model.AuditCritical,
	}
}

// DefaultResourceLimits builds the registry-wide fallback
// model.ResourceLimits from [general].timeout.
func (c Config) DefaultResourceLimits() model.ResourceLimits {
	timeout := c.General.Timeout
	if timeout <= 0 {
		timeout = 30
	}
	return model.ResourceLimits{MaxWallTime: time.Duration(timeout) * time.Second}
}

// ValidatorLimits resolves the effective ResourceLimits for one
// validator tag, falling back to DefaultResourceLimits when the
// section is absent or its own timeout is unset.
func (c Config) ValidatorLimits(tag string) model.ResourceLimits {
	limits := c.DefaultResourceLimits()
	if v, ok := c.Validators[tag]; ok && v.Timeout > 0 {
		limits.MaxWallTime = time.Duration(v.Timeout) * time.Second
	}
	return limits
}
