// Package model holds the data types shared across synx's subsystems:
// file tags, validation outcomes, plugin descriptors, resource limits,
// and audit events. Nothing in this package touches the filesystem or
// a clock; it is pure data plus small pure helpers.
package model

import "fmt"

// FileTag is the closed set of language/format identifiers the Detector
// can produce, plus an open-ended Unknown case carrying a hint.
type FileTag struct {
	name string
	hint string // only set when name == "Unknown"
}

var (
	TagPython     = FileTag{name: "Python"}
	TagJavaScript = FileTag{name: "JavaScript"}
	TagTypeScript = FileTag{name: "TypeScript"}
	TagJSX        = FileTag{name: "JSX"}
	TagTSX        = FileTag{name: "TSX"}
	TagVue        = FileTag{name: "Vue"}
	TagSvelte     = FileTag{name: "Svelte"}
	TagHTML       = FileTag{name: "HTML"}
	TagCSS        = FileTag{name: "CSS"}
	TagSCSS       = FileTag{name: "SCSS"}
	TagJSON       = FileTag{name: "JSON"}
	TagYAML       = FileTag{name: "YAML"}
	TagTOML       = FileTag{name: "TOML"}
	TagDockerfile = FileTag{name: "Dockerfile"}
	TagShell      = FileTag{name: "Shell"}
	TagMarkdown   = FileTag{name: "Markdown"}
	TagGraphQL    = FileTag{name: "GraphQL"}
	TagC          = FileTag{name: "C"}
	TagCPP        = FileTag{name: "C++"}
	TagRust       = FileTag{name: "Rust"}
)

// Unknown builds the catch-all tag, carrying the extension or other hint
// that the Detector could not otherwise resolve.
func Unknown(hint string) FileTag {
	return FileTag{name: "Unknown", hint: hint}
}

// Name returns the tag's canonical display name, e.g. "JavaScript" or
// "Unknown (no-extension)".
func (t FileTag) Name() string {
	if t.name == "Unknown" {
		if t.hint == "" {
			return "Unknown"
		}
		return fmt.Sprintf("Unknown (%s)", t.hint)
	}
	return t.name
}

// String implements fmt.Stringer so FileTag values print sensibly in
// logs and error messages.
func (t FileTag) String() string { return t.Name() }

// IsUnknown reports whether classification fell through every rule in
// the Detector's chain.
func (t FileTag) IsUnknown() bool { return t.name == "Unknown" }

// Hint returns the extension-or-reason carried by an Unknown tag, or
// "" for a resolved tag.
func (t FileTag) Hint() string { return t.hint }

// Key returns a stable, comparable identifier for use as a map key
// (config sections, registry indexes). Unknown tags all share one key
// regardless of hint, since configuration is keyed by resolved language.
func (t FileTag) Key() string { return t.name }

// Equal reports whether two tags denote the same language, ignoring
// the Unknown hint.
func (t FileTag) Equal(other FileTag) bool { return t.name == other.name }
