package maintenance

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPruneAuditLogsRemovesOldRotations(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "audit.jsonl.100")
	newPath := filepath.Join(dir, "audit.jsonl.200")
	os.WriteFile(oldPath, []byte("{}\n"), 0o644)
	os.WriteFile(newPath, []byte("{}\n"), 0o644)

	old := time.Now().Add(-48 * time.Hour)
	os.Chtimes(oldPath, old, old)

	result := Run(Options{AuditDir: dir, MaxAge: 24 * time.Hour}, nil)
	if result.DeletedAuditLogs != 1 {
		t.Fatalf("DeletedAuditLogs = %d, want 1", result.DeletedAuditLogs)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("expected old rotation to be removed")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("expected recent rotation to survive")
	}
}

func TestPruneAuditLogsDryRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "audit.jsonl.100")
	os.WriteFile(path, []byte("{}\n"), 0o644)
	old := time.Now().Add(-48 * time.Hour)
	os.Chtimes(path, old, old)

	result := Run(Options{AuditDir: dir, MaxAge: 24 * time.Hour, DryRun: true}, nil)
	if result.DeletedAuditLogs != 1 {
		t.Fatalf("DeletedAuditLogs = %d, want 1 (reported even in dry run)", result.DeletedAuditLogs)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("dry run must not actually delete the file")
	}
}

func TestRunMissingDirectoriesIsNotFatal(t *testing.T) {
	result := Run(Options{AuditDir: filepath.Join(t.TempDir(), "does-not-exist")}, nil)
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors for a missing audit dir, got %v", result.Errors)
	}
}
