package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"synx/internal/model"
)

// jsonSyntaxPlugin is a compiled-in validator: it checks that JSON-
// tagged files decode as well-formed JSON. It never spawns a
// subprocess and never reads outside the file it is given, so it
// needs no resource limits beyond the defaults.
type jsonSyntaxPlugin struct{}

// NewJSONSyntaxPlugin returns the built-in JSON well-formedness checker.
func NewJSONSyntaxPlugin() Plugin { return jsonSyntaxPlugin{} }

func (jsonSyntaxPlugin) Descriptor() model.PluginDescriptor {
	return model.PluginDescriptor{
		ID:                "builtin.json-syntax",
		Name:              "JSON Syntax",
		Version:           "1.0.0",
		SupportedTags:     []model.FileTag{model.TagJSON},
		SupportedTagNames: []string{"json"},
		Categories:        []model.PluginCategory{model.CategoryValidator},
	}
}

func (jsonSyntaxPlugin) Initialize(ctx context.Context) error { return nil }
func (jsonSyntaxPlugin) Cleanup(ctx context.Context) error    { return nil }

func (p jsonSyntaxPlugin) Validate(ctx context.Context, path string, content []byte) (model.ValidationOutcome, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	var v any
	if err := dec.Decode(&v); err != nil {
		return model.Failure(p.Descriptor().ID, []model.Issue{{
			Severity: model.SeverityHigh,
			Message:  fmt.Sprintf("invalid JSON: %s", err),
			Location: &model.Location{Path: path},
		}}, 0), nil
	}
	if dec.More() {
		return model.Failure(p.Descriptor().ID, []model.Issue{{
			Severity: model.SeverityHigh,
			Message:  "trailing content after top-level JSON value",
			Location: &model.Location{Path: path},
		}}, 0), nil
	}
	return model.Success(p.Descriptor().ID, 0), nil
}

// trailingWhitespacePlugin is a compiled-in linter: it flags lines
// ending in spaces or tabs. It supports any text-like tag, since
// trailing whitespace is a meaningful complaint regardless of
// language.
type trailingWhitespacePlugin struct{}

// NewTrailingWhitespacePlugin returns the built-in trailing-whitespace
// linter.
func NewTrailingWhitespacePlugin() Plugin { return trailingWhitespacePlugin{} }

func (trailingWhitespacePlugin) Descriptor() model.PluginDescriptor {
	return model.PluginDescriptor{
		ID:      "builtin.trailing-whitespace",
		Name:    "Trailing Whitespace",
		Version: "1.0.0",
		SupportedTags: []model.FileTag{
			model.TagPython, model.TagJavaScript, model.TagTypeScript,
			model.TagJSX, model.TagTSX, model.TagRust,
			model.TagC, model.TagCPP, model.TagShell, model.TagMarkdown,
			model.TagYAML, model.TagTOML, model.TagCSS, model.TagSCSS,
		},
		SupportedTagNames: []string{
			"python", "javascript", "typescript", "jsx", "tsx",
			"rust", "c", "cpp", "shell", "markdown", "yaml", "toml",
			"css", "scss",
		},
		Categories: []model.PluginCategory{model.CategoryLinter},
	}
}

func (trailingWhitespacePlugin) Initialize(ctx context.Context) error { return nil }
func (trailingWhitespacePlugin) Cleanup(ctx context.Context) error    { return nil }

func (p trailingWhitespacePlugin) Validate(ctx context.Context, path string, content []byte) (model.ValidationOutcome, error) {
	var issues []model.Issue
	lineNo := 0
	for _, line := range bytes.Split(content, []byte("\n")) {
		lineNo++
		trimmed := bytes.TrimRight(line, " \t")
		if len(trimmed) != len(line) {
			issues = append(issues, model.Issue{
				Severity: model.SeverityLow,
				Message:  "trailing whitespace",
				Location: &model.Location{Path: path, StartLine: lineNo, EndLine: lineNo},
			})
		}
	}
	if len(issues) == 0 {
		return model.Success(p.Descriptor().ID, 0), nil
	}
	return model.Failure(p.Descriptor().ID, issues, 0), nil
}
