package detect

import (
	"os"
	"path/filepath"
	"testing"

	"synx/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestClassifyExtension(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{})

	cases := map[string]model.FileTag{
		"a.py":   model.TagPython,
		"b.js":   model.TagJavaScript,
		"c.json": model.TagJSON,
		"d.rs":   model.TagRust,
	}
	for name, want := range cases {
		path := writeFile(t, dir, name, "irrelevant content")
		if got := d.Classify(path); !got.Equal(want) {
			t.Errorf("Classify(%s) = %s, want %s", name, got, want)
		}
	}
}

func TestClassifySpecialFilenames(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{})

	path := writeFile(t, dir, "Dockerfile", "FROM ubuntu:22.04\n")
	if got := d.Classify(path); !got.Equal(model.TagDockerfile) {
		t.Errorf("Classify(Dockerfile) = %s, want Dockerfile", got)
	}
}

func TestClassifyUserFileMappingOverridesBuiltin(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{FileMappings: map[string]string{"Dockerfile": "shell"}})

	path := writeFile(t, dir, "Dockerfile", "FROM ubuntu:22.04\n")
	if got := d.Classify(path); !got.Equal(model.TagShell) {
		t.Errorf("Classify(Dockerfile) with override = %s, want Shell", got)
	}
}

func TestClassifyShebang(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{})

	bash := writeFile(t, dir, "run", "#!/bin/bash\necho hello\n")
	if got := d.Classify(bash); !got.Equal(model.TagShell) {
		t.Errorf("Classify(shebang bash) = %s, want Shell", got)
	}

	py := writeFile(t, dir, "run2", "#!/usr/bin/env python\nprint('hi')\n")
	if got := d.Classify(py); !got.Equal(model.TagPython) {
		t.Errorf("Classify(shebang python) = %s, want Python", got)
	}
}

// TestDetectorDeterminism covers spec property 1: classifying the same
// stable content twice returns the same tag.
func TestDetectorDeterminism(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{})
	path := writeFile(t, dir, "sample.unknownext", `
const greet = (name) => {
  console.log("hi " + name);
  return name;
};
module.exports = greet;
`)

	first := d.Classify(path)
	second := d.Classify(path)
	if !first.Equal(second) {
		t.Errorf("classification not deterministic: %s vs %s", first, second)
	}
}

// TestDetectorPriority covers spec property 2's three worked examples.
func TestDetectorPriority(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{})

	htmlNamedJS := writeFile(t, dir, "foo.html", `
function render() {
  const el = document.createElement("div");
  el.className = "box";
  return el;
}
const handler = () => { return 1; };
export default render;
`)
	if got := d.Classify(htmlNamedJS); !got.Equal(model.TagJavaScript) {
		t.Errorf("foo.html with heavy JS classified as %s, want JavaScript", got)
	}

	txtNamedHTML := writeFile(t, dir, "foo.txt", `<!doctype html>
<html><body><p>hi</p></body></html>`)
	if got := d.Classify(txtNamedHTML); !got.Equal(model.TagHTML) {
		t.Errorf("foo.txt with doctype classified as %s, want HTML", got)
	}

	tsxBoth := writeFile(t, dir, "component.tsx", `
interface Props {
  name: string;
  onClick: () => void;
}
const Widget = (props: Props) => {
  return <div className="widget">{props.name}</div>;
};
export default Widget;
`)
	// .tsx has an extension-table entry, so this exercises rule 1, not the
	// content heuristic directly — included for completeness.
	if got := d.Classify(tsxBoth); !got.Equal(model.TagTSX) {
		t.Errorf("component.tsx classified as %s, want TSX", got)
	}
}

func TestContentHeuristicTSXWithoutExtension(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{})

	path := writeFile(t, dir, "widget.nolang", `
interface Props {
  name: string;
  count: number;
  enabled: boolean;
}
const Widget = (props: Props) => {
  return <div className="widget">{props.name}</div>;
};
export default Widget;
`)
	if got := d.Classify(path); !got.Equal(model.TagTSX) {
		t.Errorf("Classify(tsx-like content, no ext) = %s, want TSX", got)
	}
}

func TestClassifyUnknownFallsBackWithHint(t *testing.T) {
	dir := t.TempDir()
	d := New(Config{})

	path := writeFile(t, dir, "mystery.xyz", "just some plain prose, nothing special here")
	got := d.Classify(path)
	if !got.IsUnknown() {
		t.Errorf("Classify(plain prose) = %s, want Unknown", got)
	}
	if got.Hint() != "xyz" {
		t.Errorf("Unknown hint = %q, want %q", got.Hint(), "xyz")
	}
}
