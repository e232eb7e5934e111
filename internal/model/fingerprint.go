package model

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Fingerprint is a fixed-size digest of (file content, tool identity,
// tool version, relevant configuration). Two inputs that differ in any
// of those components must produce different fingerprints.
type Fingerprint string

// ComputeFingerprint derives the cache key for one (file, plugin,
// configuration) triple. configBytes should be a canonical encoding of
// only the configuration fields that affect this plugin's behavior —
// callers decide what's "relevant" per plugin.
func ComputeFingerprint(content []byte, toolID, toolVersion string, configBytes []byte) Fingerprint {
	h := sha256.New()
	h.Write(content)
	h.Write([]byte{0})
	h.Write([]byte(toolID))
	h.Write([]byte{0})
	h.Write([]byte(toolVersion))
	h.Write([]byte{0})
	h.Write(configBytes)
	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// CacheEntry is one record in the Validation Cache.
type CacheEntry struct {
	Result     ValidationOutcome `json:"result"`
	ToolVersion string           `json:"tool_version"`
	InsertedAt time.Time         `json:"inserted_at"`
	HitCount   uint64            `json:"hit_count"`
}

// CacheStats summarizes a Cache's current state for `cache stats`/
// `performance stats`.
type CacheStats struct {
	TotalEntries int     `json:"total_entries"`
	Hits         uint64  `json:"hits"`
	Misses       uint64  `json:"misses"`
	HitRatio     float64 `json:"hit_ratio"`
	MemoryBytes  int64   `json:"memory_bytes"`
}
