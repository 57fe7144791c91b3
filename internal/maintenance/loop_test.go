package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mikroscope/sidecar/internal/store"
)

func newTestLoop(t *testing.T, cfg Config) (*Loop, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	st.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { st.Close() })
	return New(cfg, st), st
}

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"event":"old"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
}

func TestRunOnceDeletesExpiredNormalFile(t *testing.T) {
	root := t.TempDir()
	loop, _ := newTestLoop(t, Config{LogsRoot: root, LogRetentionDays: 7})

	path := filepath.Join(root, "app.ndjson")
	writeAged(t, path, 8*24*time.Hour)

	report, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.FilesDeleted != 1 {
		t.Fatalf("got FilesDeleted=%d, want 1", report.FilesDeleted)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("expected file to be removed")
	}
}

func TestRunOnceKeepsFreshFile(t *testing.T) {
	root := t.TempDir()
	loop, _ := newTestLoop(t, Config{LogsRoot: root, LogRetentionDays: 7})

	path := filepath.Join(root, "app.ndjson")
	writeAged(t, path, time.Hour)

	report, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.FilesDeleted != 0 {
		t.Fatalf("got FilesDeleted=%d, want 0", report.FilesDeleted)
	}
}

func TestRunOnceBacksUpAuditFileBeforeDelete(t *testing.T) {
	root := t.TempDir()
	backupDir := t.TempDir()
	loop, _ := newTestLoop(t, Config{
		LogsRoot:              root,
		LogAuditRetentionDays: 7,
		AuditBackupDirectory:  backupDir,
	})

	path := filepath.Join(root, "audit", "a.ndjson")
	writeAged(t, path, 8*24*time.Hour)

	report, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.FilesBackedUp != 1 || report.FilesDeleted != 1 {
		t.Fatalf("got %+v", report)
	}

	backupPath := filepath.Join(backupDir, "audit", "a.ndjson")
	if _, err := os.Stat(backupPath); err != nil {
		t.Fatalf("expected backup at %s: %v", backupPath, err)
	}
}

func TestRunOncePrunesStoreAndVacuums(t *testing.T) {
	root := t.TempDir()
	loop, st := newTestLoop(t, Config{LogsRoot: root, DBRetentionDays: 30})

	old := time.Now().Add(-60 * 24 * time.Hour).Format(time.RFC3339Nano)
	if _, _, err := st.UpsertEntry(store.EntryInput{
		Timestamp: old, Level: "INFO", Event: "e", DataJSON: "{}", SourceFile: "a.ndjson", LineNumber: 1,
	}); err != nil {
		t.Fatal(err)
	}

	report, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.EntriesPruned != 1 {
		t.Fatalf("got EntriesPruned=%d, want 1", report.EntriesPruned)
	}
	if !report.VacuumRun {
		t.Fatal("expected vacuum to run after a prune")
	}
}

func TestRunOnceNoopWhenRetentionDisabled(t *testing.T) {
	root := t.TempDir()
	loop, _ := newTestLoop(t, Config{LogsRoot: root})

	path := filepath.Join(root, "app.ndjson")
	writeAged(t, path, 999*24*time.Hour)

	report, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.FilesDeleted != 0 || report.VacuumRun {
		t.Fatalf("expected a full no-op when every retention knob is 0, got %+v", report)
	}
}

func TestLastErrorClearsOnSuccessfulPass(t *testing.T) {
	root := t.TempDir()
	loop, _ := newTestLoop(t, Config{LogsRoot: root, LogRetentionDays: 7})

	if _, err := loop.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if loop.LastError() != "" {
		t.Fatalf("expected empty LastError after a clean pass, got %q", loop.LastError())
	}
}
