package main

import (
	"bytes"
	"testing"

	"synx/internal/config"
	"synx/internal/model"
)

func TestPluginDescriptorForCarriesConfigFingerprint(t *testing.T) {
	cfg := config.DefaultConfig()
	strict := config.ValidatorConfig{Enabled: true, Command: "/usr/bin/pyflakes", Strict: true, Timeout: 5}
	lenient := config.ValidatorConfig{Enabled: true, Command: "/usr/bin/pyflakes", Strict: false, Timeout: 5}

	d1 := pluginDescriptorFor("python", model.TagPython, strict, cfg)
	d2 := pluginDescriptorFor("python", model.TagPython, lenient, cfg)

	if len(d1.ConfigFingerprint) == 0 {
		t.Fatal("expected a non-empty ConfigFingerprint")
	}
	if bytes.Equal(d1.ConfigFingerprint, d2.ConfigFingerprint) {
		t.Error("strict and lenient validator configs produced the same ConfigFingerprint")
	}
}

func TestPluginDescriptorForStableForIdenticalConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	v := config.ValidatorConfig{Enabled: true, Command: "/usr/bin/pyflakes", Args: []string{"--select", "E"}, Timeout: 5}

	d1 := pluginDescriptorFor("python", model.TagPython, v, cfg)
	d2 := pluginDescriptorFor("python", model.TagPython, v, cfg)

	if !bytes.Equal(d1.ConfigFingerprint, d2.ConfigFingerprint) {
		t.Error("identical validator configs produced different ConfigFingerprints")
	}
}
