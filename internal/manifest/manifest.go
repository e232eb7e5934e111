// Package manifest parses and (optionally) verifies the declarative
// descriptor that accompanies an out-of-process plugin: its resource
// limits, supported file tags, and categories, signed with Ed25519 so
// a registry configured to require signatures can reject a tampered or
// forged descriptor before ever executing it.
package manifest

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"synx/internal/model"
)

// PluginManifest is the on-disk schema of a plugin's synx.plugin.json
// descriptor.
type PluginManifest struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Version              string   `json:"version"`
	Entry                string   `json:"entry"` // executable path, relative to the manifest's directory
	SupportedTags        []string `json:"supported_tags"`
	Categories           []string `json:"categories"`
	DeclaredDependencies []string `json:"declared_dependencies,omitempty"`
	ResourceLimits       Limits   `json:"resource_limits"`
	Signature            string   `json:"signature,omitempty"`

	ParsedLimits model.ResourceLimits `json:"-"`
}

// Limits is the on-disk form of model.ResourceLimits (durations as
// strings, so the JSON file stays human-editable).
type Limits struct {
	MaxWallTime        string   `json:"max_wall_time"`
	MaxMemoryBytes     int64    `json:"max_memory_bytes"`
	MaxOutputBytes     int64    `json:"max_output_bytes"`
	AllowedFSRoots     []string `json:"allowed_fs_roots,omitempty"`
	MayNetwork         bool     `json:"may_network"`
	MaySpawnSubprocess bool     `json:"may_spawn_subprocess"`
}

// VerifyConfig controls signature enforcement during Parse.
type VerifyConfig struct {
	RequireSignature bool
	TrustedPublicKeys []ed25519.PublicKey
}

// ParseFile reads and parses a plugin manifest from disk.
func ParseFile(path string, cfg VerifyConfig) (PluginManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PluginManifest{}, fmt.Errorf("read plugin manifest: %w", err)
	}
	return Parse(data, cfg)
}

// Parse decodes, validates, and (if a signature is present or required)
// verifies a plugin manifest payload.
func Parse(data []byte, cfg VerifyConfig) (PluginManifest, error) {
	m, err := decode(data)
	if err != nil {
		return PluginManifest{}, err
	}
	if err := validate(&m); err != nil {
		return PluginManifest{}, err
	}
	if err := verifySignature(m, cfg); err != nil {
		return PluginManifest{}, err
	}
	return m, nil
}

func decode(data []byte) (PluginManifest, error) {
	var m PluginManifest
	dec := json.NewDecoder(bytes.NewReader(data))
	// Unknown fields are rejected so a manifest cannot smuggle in keys
	// that bypass validation (e.g. a future "resource_limits.override").
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return PluginManifest{}, fmt.Errorf("decode plugin manifest: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return PluginManifest{}, errors.New("decode plugin manifest: trailing content")
		}
		return PluginManifest{}, fmt.Errorf("decode plugin manifest: %w", err)
	}
	return m, nil
}

func validate(m *PluginManifest) error {
	if strings.TrimSpace(m.ID) == "" {
		return errors.New("manifest.id is required")
	}
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("manifest.name is required")
	}
	if strings.TrimSpace(m.Version) == "" {
		return errors.New("manifest.version is required")
	}
	if strings.TrimSpace(m.Entry) == "" {
		return errors.New("manifest.entry is required")
	}
	if len(m.SupportedTags) == 0 {
		return errors.New("manifest.supported_tags is required")
	}
	if len(m.Categories) == 0 {
		return errors.New("manifest.categories is required")
	}

	limits := model.ResourceLimits{
		MaxMemoryBytes:     m.ResourceLimits.MaxMemoryBytes,
		MaxOutputBytes:     m.ResourceLimits.MaxOutputBytes,
		AllowedFSRoots:     m.ResourceLimits.AllowedFSRoots,
		MayNetwork:         m.ResourceLimits.MayNetwork,
		MaySpawnSubprocess: m.ResourceLimits.MaySpawnSubprocess,
	}
	if strings.TrimSpace(m.ResourceLimits.MaxWallTime) != "" {
		d, err := time.ParseDuration(m.ResourceLimits.MaxWallTime)
		if err != nil {
			return fmt.Errorf("manifest.resource_limits.max_wall_time is invalid: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("manifest.resource_limits.max_wall_time must be positive (got %s)", m.ResourceLimits.MaxWallTime)
		}
		limits.MaxWallTime = d
	}
	m.ParsedLimits = limits

	return nil
}

// CanonicalPayload returns deterministic JSON for the fields a
// signature covers: id, version, supported_tags (sorted), and the
// resource limits block. Sorting makes the payload stable regardless
// of slice ordering on disk.
func CanonicalPayload(m PluginManifest) ([]byte, error) {
	tags := append([]string(nil), m.SupportedTags...)
	sort.Strings(tags)

	payload := struct {
		ID      string `json:"id"`
		Version string `json:"version"`
		Tags    []string `json:"supported_tags"`
		Limits  Limits `json:"resource_limits"`
	}{
		ID:      m.ID,
		Version: m.Version,
		Tags:    tags,
		Limits:  m.ResourceLimits,
	}
	return json.Marshal(payload)
}

// Sign signs the canonical payload with an Ed25519 private key.
func Sign(m PluginManifest, priv ed25519.PrivateKey) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", errors.New("invalid ed25519 private key size")
	}
	payload, err := CanonicalPayload(m)
	if err != nil {
		return "", err
	}
	sig := ed25519.Sign(priv, payload)
	return base64.StdEncoding.EncodeToString(sig), nil
}

func verifySignature(m PluginManifest, cfg VerifyConfig) error {
	sigText := strings.TrimSpace(m.Signature)
	if sigText == "" {
		if cfg.RequireSignature {
			return errors.New("manifest.signature is required")
		}
		return nil
	}

	if len(cfg.TrustedPublicKeys) == 0 {
		return errors.New("manifest.signature is present but no trusted public keys are configured")
	}

	sig, err := base64.StdEncoding.DecodeString(sigText)
	if err != nil {
		return fmt.Errorf("manifest.signature must be base64: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return errors.New("manifest.signature has invalid size")
	}

	payload, err := CanonicalPayload(m)
	if err != nil {
		return fmt.Errorf("canonicalize manifest: %w", err)
	}

	for _, key := range cfg.TrustedPublicKeys {
		if len(key) != ed25519.PublicKeySize {
			continue
		}
		if ed25519.Verify(key, payload, sig) {
			return nil
		}
	}
	return errors.New("manifest.signature verification failed")
}

// Descriptor converts a parsed PluginManifest into the shared
// model.PluginDescriptor used by the registry.
func Descriptor(m PluginManifest) (model.PluginDescriptor, error) {
	tags := make([]model.FileTag, 0, len(m.SupportedTags))
	for _, name := range m.SupportedTags {
		tag, ok := tagByName(name)
		if !ok {
			return model.PluginDescriptor{}, fmt.Errorf("unknown supported_tags entry %q", name)
		}
		tags = append(tags, tag)
	}

	cats := make([]model.PluginCategory, 0, len(m.Categories))
	for _, c := range m.Categories {
		cat, ok := categoryByName(c)
		if !ok {
			return model.PluginDescriptor{}, fmt.Errorf("unknown categories entry %q", c)
		}
		cats = append(cats, cat)
	}

	return model.PluginDescriptor{
		ID:                   m.ID,
		Name:                 m.Name,
		Version:              m.Version,
		SupportedTags:        tags,
		SupportedTagNames:    m.SupportedTags,
		Categories:           cats,
		DeclaredDependencies: m.DeclaredDependencies,
		ResourceLimits:       m.ParsedLimits,
	}, nil
}

func tagByName(name string) (model.FileTag, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

func categoryByName(name string) (model.PluginCategory, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "validator":
		return model.CategoryValidator, true
	case "formatter":
		return model.CategoryFormatter, true
	case "analyzer":
		return model.CategoryAnalyzer, true
	case "linter":
		return model.CategoryLinter, true
	default:
		return "", false
	}
}
