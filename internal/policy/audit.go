package policy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"synx/internal/model"
)

// AuditConfig controls what the Audit Log records and how it rotates.
type AuditConfig struct {
	Path           string
	MinSeverity    model.AuditSeverity
	MaxLogSizeBytes int64         // rotate once the active file exceeds this; 0 disables rotation
	LogRetention    int           // number of rotated files to keep; 0 keeps all
	SigningKey      []byte        // HMAC-SHA256 key; nil disables signing
	AlertSeverity   model.AuditSeverity // events at or above this also go to OnAlert
	OnAlert         func(model.AuditEvent)
}

// AuditLogger appends AuditEvent records to an append-only JSON-lines
// file, signing each with a keyed hash when a SigningKey is configured
// and rotating the file once it passes MaxLogSizeBytes, following the
// append-then-rename discipline engine/policy/audit.go uses for its own
// session logs.
type AuditLogger struct {
	mu   sync.Mutex
	cfg  AuditConfig
	file *os.File
	size int64
}

// NewAuditLogger opens (creating if necessary) the audit log described
// by cfg.
func NewAuditLogger(cfg AuditConfig) (*AuditLogger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("create audit log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat audit log: %w", err)
	}
	return &AuditLogger{cfg: cfg, file: f, size: info.Size()}, nil
}

// Emit signs (if configured) and appends one event, rotating the log
// first if it has grown past MaxLogSizeBytes. Events below
// cfg.MinSeverity are dropped silently. Events at or above
// cfg.AlertSeverity are additionally forwarded to cfg.OnAlert,
// best-effort and never blocking the write.
func (a *AuditLogger) Emit(event model.AuditEvent) error {
	if event.Severity < a.cfg.MinSeverity {
		return nil
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if a.cfg.SigningKey != nil {
		event.Signature = signEvent(event, a.cfg.SigningKey)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return fmt.Errorf("audit logger closed")
	}
	if a.cfg.MaxLogSizeBytes > 0 && a.size+int64(len(data)) > a.cfg.MaxLogSizeBytes {
		if err := a.rotateLocked(); err != nil {
			return err
		}
	}
	n, err := a.file.Write(data)
	if err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	a.size += int64(n)

	if a.cfg.OnAlert != nil && event.Severity >= a.cfg.AlertSeverity {
		go a.cfg.OnAlert(event)
	}
	return nil
}

// rotateLocked renames the active log to a timestamped sibling and
// opens a fresh one, pruning old rotations past LogRetention. Caller
// must hold a.mu.
func (a *AuditLogger) rotateLocked() error {
	if err := a.file.Close(); err != nil {
		return fmt.Errorf("close audit log before rotation: %w", err)
	}
	rotated := fmt.Sprintf("%s.%d", a.cfg.Path, time.Now().UnixNano())
	if err := os.Rename(a.cfg.Path, rotated); err != nil {
		return fmt.Errorf("rotate audit log: %w", err)
	}
	f, err := os.OpenFile(a.cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("reopen audit log after rotation: %w", err)
	}
	a.file = f
	a.size = 0
	a.pruneRotations()
	return nil
}

func (a *AuditLogger) pruneRotations() {
	if a.cfg.LogRetention <= 0 {
		return
	}
	matches, err := filepath.Glob(a.cfg.Path + ".*")
	if err != nil || len(matches) <= a.cfg.LogRetention {
		return
	}
	sort.Strings(matches) // nanosecond suffix sorts chronologically
	excess := len(matches) - a.cfg.LogRetention
	for _, path := range matches[:excess] {
		os.Remove(path)
	}
}

// Close flushes and closes the active log file.
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

// signEvent computes an HMAC-SHA256 over the event's canonical fields
// (excluding Signature itself), so any later mutation of a logged line
// is detectable by Verify.
func signEvent(event model.AuditEvent, key []byte) string {
	event.Signature = ""
	payload, _ := json.Marshal(event)
	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether event's signature is valid for key. A nil or
// empty key always fails closed (returns false) unless the event also
// carries no signature, in which case signing was never enabled.
func Verify(event model.AuditEvent, key []byte) bool {
	if event.Signature == "" {
		return len(key) == 0
	}
	if len(key) == 0 {
		return false
	}
	want := signEvent(event, key)
	return hmac.Equal([]byte(want), []byte(event.Signature))
}

// ReadAuditLog reads and decodes every event from path, in file order.
// Corrupt trailing lines (e.g. from a crash mid-write) are reported but
// do not prevent earlier, well-formed lines from being returned.
func ReadAuditLog(path string) ([]model.AuditEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read audit log: %w", err)
	}
	var events []model.AuditEvent
	start := 0
	for i := 0; i <= len(data); i++ {
		if i < len(data) && data[i] != '\n' {
			continue
		}
		line := data[start:i]
		lineStart := start
		start = i + 1
		if len(line) == 0 {
			continue
		}
		var event model.AuditEvent
		if err := json.Unmarshal(line, &event); err != nil {
			return events, fmt.Errorf("parse audit log at byte %d: %w", lineStart, err)
		}
		events = append(events, event)
	}
	return events, nil
}

func (e *Evaluator) recordAuthorization(subject string, action model.Action, resource string, decision model.PolicyDecision) {
	if e.audit == nil {
		return
	}
	severity := model.AuditInfo
	if !decision.Allowed {
		severity = model.AuditError
	}
	e.audit.Emit(model.AuditEvent{
		Kind:            model.AuditAuthorizationEvent,
		Severity:        severity,
		User:            subject,
		SourceComponent: "policy.Evaluator",
		Description:     fmt.Sprintf("%s %s -> allowed=%v (%s)", action, resource, decision.Allowed, decision.Reason),
		Context: map[string]any{
			"action":   string(action),
			"resource": resource,
			"allowed":  decision.Allowed,
			"reason":   decision.Reason,
		},
	})
}

func (e *Evaluator) recordResourceEvent(pluginID string, usage ResourceUsage, verdict ResourceVerdict, reason string) {
	if e.audit == nil {
		return
	}
	severity := model.AuditInfo
	switch verdict {
	case ResourceWarning:
		severity = model.AuditWarning
	case ResourceCritical:
		severity = model.AuditError
	}
	e.audit.Emit(model.AuditEvent{
		Kind:            model.AuditResourceEvent,
		Severity:        severity,
		SourceComponent: "policy.Evaluator",
		Description:     fmt.Sprintf("plugin %s resource check: %s", pluginID, reason),
		Context: map[string]any{
			"plugin_id":    pluginID,
			"memory_bytes": usage.MemoryBytes,
			"cpu_percent":  usage.CPUPercent,
			"wall_seconds": usage.WallSeconds,
			"verdict":      int(verdict),
		},
	})
}

func (e *Evaluator) recordConfigurationEvent(path string, issues []string) {
	if e.audit == nil {
		return
	}
	severity := model.AuditInfo
	if len(issues) > 0 {
		severity = model.AuditError
	}
	e.audit.Emit(model.AuditEvent{
		Kind:            model.AuditConfigurationEvent,
		Severity:        severity,
		SourceComponent: "policy.Evaluator",
		Description:     fmt.Sprintf("configuration check for %s (%d issues)", path, len(issues)),
		Context: map[string]any{
			"path":   path,
			"issues": issues,
		},
	})
}
