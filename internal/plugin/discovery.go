package plugin

import (
	"fmt"
	"maps"
	"path/filepath"
	"sort"
	"strings"

	"synx/internal/manifest"
)

// DiscoveryError describes one plugin directory that failed to load.
// Discovery collects these rather than failing outright, so one broken
// plugin directory doesn't take down every other plugin.
type DiscoveryError struct {
	Dir string
	Err error
}

func (e DiscoveryError) Error() string { return fmt.Sprintf("%s: %v", e.Dir, e.Err) }

type discoveredEntry struct {
	manifestPath string
	source       string // "builtin" or "user"
}

// Discover scans builtinDir/<name>/synx.plugin.json and
// userDir/<name>/synx.plugin.json for plugin manifests, verifying each
// against cfg, and returns one *SubprocessPlugin per valid manifest. A
// user plugin with the same directory name as a builtin one overrides
// it. Neither directory needs to exist; a missing one simply
// contributes no plugins.
func Discover(builtinDir, userDir string, cfg manifest.VerifyConfig) ([]*SubprocessPlugin, []DiscoveryError) {
	found := discoverManifests(builtinDir, "builtin")
	maps.Copy(found, discoverManifests(userDir, "user"))

	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)

	var plugins []*SubprocessPlugin
	var errs []DiscoveryError

	for _, name := range names {
		entry := found[name]
		p, err := loadPlugin(entry.manifestPath, cfg)
		if err != nil {
			errs = append(errs, DiscoveryError{Dir: filepath.Dir(entry.manifestPath), Err: err})
			continue
		}
		plugins = append(plugins, p)
	}
	return plugins, errs
}

func discoverManifests(dir, source string) map[string]discoveredEntry {
	result := make(map[string]discoveredEntry)
	if dir == "" {
		return result
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*", "synx.plugin.json"))
	if err != nil {
		return result
	}
	for _, m := range matches {
		name := filepath.Base(filepath.Dir(m))
		result[name] = discoveredEntry{manifestPath: m, source: source}
	}
	return result
}

// loadPlugin parses one plugin manifest and resolves its entry
// executable, guarding against the entry path escaping the plugin's
// own directory.
func loadPlugin(manifestPath string, cfg manifest.VerifyConfig) (*SubprocessPlugin, error) {
	m, err := manifest.ParseFile(manifestPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	pluginDir := filepath.Dir(manifestPath)
	entryPath := filepath.Clean(filepath.Join(pluginDir, m.Entry))
	if !strings.HasPrefix(entryPath, filepath.Clean(pluginDir)+string(filepath.Separator)) {
		return nil, fmt.Errorf("entry %q escapes plugin directory", m.Entry)
	}

	desc, err := manifest.Descriptor(m)
	if err != nil {
		return nil, fmt.Errorf("build descriptor: %w", err)
	}

	return NewSubprocessPlugin(desc, entryPath, pluginDir), nil
}
