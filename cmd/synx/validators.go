package main

import (
	"encoding/json"

	"synx/internal/config"
	"synx/internal/model"
)

// tagFromName maps a [validators.<tag>] section key to the FileTag it
// configures. Kept local to the CLI wiring layer rather than exported
// from internal/detect, since the config file's tag names are a CLI
// concern, not something the Detector itself needs to parse.
func tagFromName(name string) (model.FileTag, bool) {
	switch name {
	case "python":
		return model.TagPython, true
	case "javascript":
		return model.TagJavaScript, true
	case "typescript":
		return model.TagTypeScript, true
	case "jsx":
		return model.TagJSX, true
	case "tsx":
		return model.TagTSX, true
	case "vue":
		return model.TagVue, true
	case "svelte":
		return model.TagSvelte, true
	case "html":
		return model.TagHTML, true
	case "css":
		return model.TagCSS, true
	case "scss":
		return model.TagSCSS, true
	case "json":
		return model.TagJSON, true
	case "yaml":
		return model.TagYAML, true
	case "toml":
		return model.TagTOML, true
	case "dockerfile":
		return model.TagDockerfile, true
	case "shell":
		return model.TagShell, true
	case "markdown":
		return model.TagMarkdown, true
	case "graphql":
		return model.TagGraphQL, true
	case "c":
		return model.TagC, true
	case "cpp", "c++":
		return model.TagCPP, true
	case "rust":
		return model.TagRust, true
	default:
		return model.FileTag{}, false
	}
}

// pluginDescriptorFor builds the PluginDescriptor for a configured
// subprocess validator. Its ID is "config.<tag>" so it never collides
// with a builtin.* ID, and its resource limits come from the
// validator's own [validators.<tag>] section (falling back to the
// general default).
func pluginDescriptorFor(tagName string, tag model.FileTag, v config.ValidatorConfig, cfg config.Config) model.PluginDescriptor {
	return model.PluginDescriptor{
		ID:                "config." + tagName,
		Name:              tagName + " validator",
		Version:           "configured",
		SupportedTags:     []model.FileTag{tag},
		SupportedTagNames: []string{tagName},
		Categories:        []model.PluginCategory{model.CategoryValidator},
		ResourceLimits:    cfg.ValidatorLimits(tagName),
		ConfigFingerprint: validatorConfigFingerprint(v),
	}
}

// validatorConfigFingerprint canonically encodes the [validators.<tag>]
// fields that change what this validator actually does, so toggling
// strict mode or an extra argument invalidates any cache entry computed
// under the old configuration.
func validatorConfigFingerprint(v config.ValidatorConfig) []byte {
	payload := struct {
		Args    []string `json:"args"`
		Strict  bool     `json:"strict"`
		Timeout int      `json:"timeout"`
	}{Args: v.Args, Strict: v.Strict, Timeout: v.Timeout}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}
