package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Workspace hands out one scratch directory per job run under BaseDir.
type Workspace struct {
	BaseDir string
	now     func() time.Time
}

func NewWorkspace(baseDir string) *Workspace {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "hana-migration")
	}
	return &Workspace{BaseDir: baseDir, now: time.Now}
}

// Create makes a fresh directory for jobID. Two runs of the same job id never
// share a directory.
func (w *Workspace) Create(jobID string) (string, error) {
	if err := os.MkdirAll(w.BaseDir, 0o755); err != nil {
		return "", fmt.Errorf("create workspace root %s: %w", w.BaseDir, err)
	}

	dir := filepath.Join(w.BaseDir, sanitize(jobID)+"-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("create workspace %s: %w", dir, err)
	}
	return dir, nil
}

// CreateFile creates name inside dir, dropping any directory part of name.
func (w *Workspace) CreateFile(dir, name string) (*os.File, error) {
	base := filepath.Base(filepath.Clean("/" + name))
	if base == "/" || base == "." {
		base = "source.zip"
	}

	path := filepath.Join(dir, base)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create file %s: %w", path, err)
	}
	return f, nil
}

func (w *Workspace) Remove(dir string) error {
	if !w.owns(dir) {
		return fmt.Errorf("refusing to remove %s outside %s", dir, w.BaseDir)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", dir, err)
	}
	return nil
}

// Sweep removes job directories last modified more than maxAge ago.
func (w *Workspace) Sweep(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(w.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read workspace root %s: %w", w.BaseDir, err)
	}

	cutoff := w.now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.BaseDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove stale workspace %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func (w *Workspace) owns(dir string) bool {
	rel, err := filepath.Rel(w.BaseDir, dir)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func sanitize(jobID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, jobID)
}
