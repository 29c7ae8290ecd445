// Package workspace provides scoped acquisition of temp files and
// directories for the pipeline, plus usage statistics and age-based
// cleanup.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const cleanupConcurrency = 8

// Stats summarizes the current contents of the workspace root.
type Stats struct {
	TotalFiles       int
	TotalSizeBytes   int64
	OldFiles         int
	OldFilesSizeBytes int64
}

// Workspace sandboxes temp file/dir creation under Root; DeleteTempFile
// refuses any path that escapes it.
type Workspace struct {
	root string
	log  zerolog.Logger
}

// New creates a Workspace rooted at root, creating the directory if needed.
func New(root string, log zerolog.Logger) (*Workspace, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	return &Workspace{root: abs, log: log.With().Str("component", "workspace").Logger()}, nil
}

// CreateTempFile creates a new empty file under the workspace root with the
// given extension (including the leading dot, e.g. ".mp4").
func (w *Workspace) CreateTempFile(extension string) (string, error) {
	f, err := os.CreateTemp(w.root, "job-*"+extension)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	return path, nil
}

// CreateTempDirectory creates a new empty directory under the workspace
// root.
func (w *Workspace) CreateTempDirectory() (string, error) {
	dir, err := os.MkdirTemp(w.root, "job-")
	if err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	return dir, nil
}

// DeleteTempFile removes path if it exists. Idempotent: a missing file is
// not an error. Refuses to delete anything outside the workspace root.
func (w *Workspace) DeleteTempFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || rel == ".." || len(rel) >= 3 && rel[:3] == "../" {
		return fmt.Errorf("refusing to delete path outside workspace: %s", path)
	}

	if err := os.RemoveAll(abs); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// GetStats walks the workspace root and summarizes file counts/sizes, and
// how many predate maxAge.
func (w *Workspace) GetStats(maxAge time.Duration) (Stats, error) {
	var stats Stats
	cutoff := time.Now().Add(-maxAge)

	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		stats.TotalFiles++
		stats.TotalSizeBytes += info.Size()
		if info.ModTime().Before(cutoff) {
			stats.OldFiles++
			stats.OldFilesSizeBytes += info.Size()
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("walk workspace: %w", err)
	}
	return stats, nil
}

// CleanupOldFiles deletes every file under the workspace root older than
// maxAge: it walks the tree once, then deletes the stale entries
// concurrently (bounded) since a large temp
// directory can hold thousands of stale files.
func (w *Workspace) CleanupOldFiles(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	var stale []string
	err := filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			stale = append(stale, path)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk workspace: %w", err)
	}

	sem := semaphore.NewWeighted(cleanupConcurrency)
	deleted := make(chan bool, len(stale))

	for _, path := range stale {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		go func(path string) {
			defer sem.Release(1)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				w.log.Warn().Err(err).Str("path", path).Msg("failed to remove stale temp file")
				deleted <- false
				return
			}
			deleted <- true
		}(path)
	}

	if err := sem.Acquire(ctx, cleanupConcurrency); err != nil {
		w.log.Warn().Err(err).Msg("cleanup sweep interrupted before completion")
	}
	close(deleted)

	count := 0
	for ok := range deleted {
		if ok {
			count++
		}
	}
	return count, nil
}

// Root returns the absolute workspace root path.
func (w *Workspace) Root() string { return w.root }
