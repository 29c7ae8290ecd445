package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := New(filepath.Join(t.TempDir(), "ws"), zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return w
}

func TestCreateAndDeleteTempFile(t *testing.T) {
	w := newTestWorkspace(t)

	path, err := w.CreateTempFile(".mp4")
	if err != nil {
		t.Fatalf("CreateTempFile() error = %v", err)
	}
	if filepath.Ext(path) != ".mp4" {
		t.Errorf("extension = %q, want .mp4", filepath.Ext(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("temp file missing: %v", err)
	}

	if err := w.DeleteTempFile(path); err != nil {
		t.Fatalf("DeleteTempFile() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file still exists after delete")
	}

	// Idempotent: deleting again is not an error.
	if err := w.DeleteTempFile(path); err != nil {
		t.Errorf("DeleteTempFile() on missing file error = %v, want nil", err)
	}
}

func TestDeleteTempFileRefusesEscape(t *testing.T) {
	w := newTestWorkspace(t)

	outside := filepath.Join(t.TempDir(), "outside.txt")
	if err := os.WriteFile(outside, []byte("x"), 0644); err != nil {
		t.Fatalf("seed outside file: %v", err)
	}

	if err := w.DeleteTempFile(outside); err == nil {
		t.Error("DeleteTempFile() on path outside workspace, want error")
	}
	if _, err := os.Stat(outside); err != nil {
		t.Errorf("outside file was removed: %v", err)
	}
}

func TestGetStatsCountsOldFiles(t *testing.T) {
	w := newTestWorkspace(t)

	freshPath, err := w.CreateTempFile(".tmp")
	if err != nil {
		t.Fatalf("CreateTempFile() error = %v", err)
	}

	oldPath, err := w.CreateTempFile(".tmp")
	if err != nil {
		t.Fatalf("CreateTempFile() error = %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldPath, old, old); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	stats, err := w.GetStats(24 * time.Hour)
	if err != nil {
		t.Fatalf("GetStats() error = %v", err)
	}
	if stats.TotalFiles != 2 {
		t.Errorf("TotalFiles = %d, want 2", stats.TotalFiles)
	}
	if stats.OldFiles != 1 {
		t.Errorf("OldFiles = %d, want 1", stats.OldFiles)
	}
	_ = freshPath
}

func TestCleanupOldFilesRemovesOnlyStale(t *testing.T) {
	w := newTestWorkspace(t)

	freshPath, err := w.CreateTempFile(".tmp")
	if err != nil {
		t.Fatalf("CreateTempFile() error = %v", err)
	}
	stalePath, err := w.CreateTempFile(".tmp")
	if err != nil {
		t.Fatalf("CreateTempFile() error = %v", err)
	}
	old := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(stalePath, old, old); err != nil {
		t.Fatalf("Chtimes() error = %v", err)
	}

	n, err := w.CleanupOldFiles(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldFiles() error = %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	if _, err := os.Stat(stalePath); !os.IsNotExist(err) {
		t.Error("stale file was not removed")
	}
	if _, err := os.Stat(freshPath); err != nil {
		t.Error("fresh file was removed")
	}
}
