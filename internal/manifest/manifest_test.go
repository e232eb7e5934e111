package manifest

import (
	"crypto/ed25519"
	"encoding/json"
	"testing"
)

func sampleManifest() PluginManifest {
	return PluginManifest{
		ID:            "eslint-wrapper",
		Name:          "eslint-wrapper",
		Version:       "1.0.0",
		Entry:         "./eslint-wrapper",
		SupportedTags: []string{"javascript", "typescript"},
		Categories:    []string{"linter"},
		ResourceLimits: Limits{
			MaxWallTime:    "30s",
			MaxMemoryBytes: 256 << 20,
		},
	}
}

func TestParseRoundTrip(t *testing.T) {
	m := sampleManifest()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	parsed, err := Parse(data, VerifyConfig{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.ID != m.ID {
		t.Errorf("ID = %q, want %q", parsed.ID, m.ID)
	}
	if parsed.ParsedLimits.MaxWallTime.Seconds() != 30 {
		t.Errorf("ParsedLimits.MaxWallTime = %v, want 30s", parsed.ParsedLimits.MaxWallTime)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	data := []byte(`{"id":"x","name":"x","version":"1","entry":"./x","supported_tags":["javascript"],"categories":["linter"],"resource_limits":{"max_wall_time":"1s","max_memory_bytes":1},"sneaky_field":true}`)
	if _, err := Parse(data, VerifyConfig{}); err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	m := sampleManifest()
	sig, err := Sign(m, priv)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	m.Signature = sig

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if _, err := Parse(data, VerifyConfig{RequireSignature: true, TrustedPublicKeys: []ed25519.PublicKey{pub}}); err != nil {
		t.Errorf("Parse with valid signature failed: %v", err)
	}

	// Tampering with a signed field must invalidate the signature.
	tampered := m
	tampered.ResourceLimits.MaxMemoryBytes = 1
	tamperedData, _ := json.Marshal(tampered)
	if _, err := Parse(tamperedData, VerifyConfig{RequireSignature: true, TrustedPublicKeys: []ed25519.PublicKey{pub}}); err == nil {
		t.Error("expected verification failure after tampering, got nil error")
	}
}

func TestParseRequiresSignatureWhenConfigured(t *testing.T) {
	m := sampleManifest()
	data, _ := json.Marshal(m)
	if _, err := Parse(data, VerifyConfig{RequireSignature: true}); err == nil {
		t.Error("expected error for missing required signature, got nil")
	}
}

func TestDescriptorRejectsUnknownTag(t *testing.T) {
	m := sampleManifest()
	m.SupportedTags = []string{"cobol"}
	if _, err := Descriptor(m); err == nil {
		t.Error("expected error for unknown tag, got nil")
	}
}
