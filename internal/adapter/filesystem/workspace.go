package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// Workspace is the temp directory one download works in
type Workspace struct {
	dir         string
	partialExts []string
}

// Ensure Workspace implements port.Workspace
var _ port.Workspace = (*Workspace)(nil)

// NewWorkspace creates a workspace rooted at dir
func NewWorkspace(dir string, partialExts []string) *Workspace {
	if len(partialExts) == 0 {
		partialExts = DefaultPartialExtensions
	}
	return &Workspace{dir: dir, partialExts: partialExts}
}

// Dir returns the workspace directory
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the path of name inside the workspace
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Ensure creates the workspace directory
func (w *Workspace) Ensure() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}
	return nil
}

// Purge removes everything inside the workspace
func (w *Workspace) Purge() error {
	entries, err := os.ReadDir(w.dir)
	if os.IsNotExist(err) {
		return w.Ensure()
	}
	if err != nil {
		return fmt.Errorf("failed to list workspace: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(w.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to purge %s: %w", e.Name(), err)
		}
	}
	return nil
}

// Remove deletes the workspace directory
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}
	return nil
}

// ReadMarker returns the freshness marker content
func (w *Workspace) ReadMarker() (string, bool, error) {
	data, err := os.ReadFile(w.Path(domain.MarkerFileName))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read marker: %w", err)
	}
	return strings.TrimSpace(string(data)), true, nil
}

// WriteMarker stores the freshness marker
func (w *Workspace) WriteMarker(name string) error {
	if err := w.Ensure(); err != nil {
		return err
	}
	tmp := w.Path(domain.MarkerFileName + ".tmp")
	if err := os.WriteFile(tmp, []byte(name+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	if err := os.Rename(tmp, w.Path(domain.MarkerFileName)); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	return nil
}

// Exists checks if a regular file exists inside the workspace
func (w *Workspace) Exists(name string) bool {
	info, err := os.Stat(w.Path(name))
	return err == nil && !info.IsDir()
}

// FileSize returns the size of a file inside the workspace
func (w *Workspace) FileSize(name string) (int64, error) {
	info, err := os.Stat(w.Path(name))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Rename renames a file inside the workspace
func (w *Workspace) Rename(from, to string) error {
	if err := os.Rename(w.Path(from), w.Path(to)); err != nil {
		return fmt.Errorf("failed to rename %s: %w", from, err)
	}
	return nil
}

// IsPartial reports whether name is an in-progress download
func (w *Workspace) IsPartial(name string) bool {
	return isPartialName(name, w.partialExts)
}
