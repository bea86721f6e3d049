package filesystem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vertextoedge/romhustler-mirror/internal/domain"
	"github.com/vertextoedge/romhustler-mirror/internal/port"
)

// DefaultTempDirName is the workspace directory kept inside the data dir
const DefaultTempDirName = "_tmp"

// DefaultPartialExtensions are the in-progress suffixes browsers and fetch tools use
var DefaultPartialExtensions = []string{".crdownload", ".part", ".partial"}

// Options contains optional manager configuration
type Options struct {
	TempDirName       string
	PartialExtensions []string
}

// Manager handles data directory operations
type Manager struct {
	rootDir     string
	tempDirName string
	partialExts []string
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManagerWithOptions creates a new filesystem manager. A nil opts uses
// the default temp dir and partial extensions.
func NewManagerWithOptions(rootDir string, opts *Options) (*Manager, error) {
	// Ensure root directory exists
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	m := &Manager{
		rootDir:     rootDir,
		tempDirName: DefaultTempDirName,
		partialExts: DefaultPartialExtensions,
	}
	if opts != nil {
		if opts.TempDirName != "" {
			m.tempDirName = opts.TempDirName
		}
		if len(opts.PartialExtensions) > 0 {
			m.partialExts = opts.PartialExtensions
		}
	}
	return m, nil
}

// RootDir returns the data directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// TargetDir returns the directory a game is mirrored into
func (m *Manager) TargetDir(gameID string) string {
	return filepath.Join(m.rootDir, filepath.FromSlash(gameID))
}

// TargetExists checks if a game directory exists
func (m *Manager) TargetExists(gameID string) bool {
	info, err := os.Stat(m.TargetDir(gameID))
	return err == nil && info.IsDir()
}

// Workspace returns the temp download directory
func (m *Manager) Workspace() port.Workspace {
	return m.workspace()
}

// DownloadProbe returns a probe over the workspace directory
func (m *Manager) DownloadProbe() port.DownloadProbe {
	return NewDirProbe(m.workspace())
}

func (m *Manager) workspace() *Workspace {
	return NewWorkspace(filepath.Join(m.rootDir, m.tempDirName), m.partialExts)
}

// Staging siblings of a target directory. Game ids never contain a path
// part starting with "_", so these names cannot collide with a game.
const (
	incomingPrefix = "_incoming."
	previousPrefix = "_previous."
)

// stagingPaths returns the staging siblings Finalize uses for target
func stagingPaths(target string) (incoming, previous string) {
	dir, base := filepath.Split(target)
	return filepath.Join(dir, incomingPrefix+base), filepath.Join(dir, previousPrefix+base)
}

// Finalize moves artifactPath into <root>/<gameID>/<basename>.
// The new directory is assembled next to the target and swapped in, so a
// crash never leaves a half-written target directory behind. The previous
// version is removed only once the new one is in place.
func (m *Manager) Finalize(gameID, artifactPath string) (string, error) {
	target := m.TargetDir(gameID)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("failed to create parent dir: %w", err)
	}

	incoming, previous := stagingPaths(target)
	if err := os.RemoveAll(incoming); err != nil {
		return "", fmt.Errorf("failed to clear staging dir: %w", err)
	}
	if err := os.Mkdir(incoming, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}

	name := filepath.Base(artifactPath)
	if err := os.Rename(artifactPath, filepath.Join(incoming, name)); err != nil {
		os.RemoveAll(incoming)
		return "", fmt.Errorf("failed to move artifact: %w", err)
	}

	hadPrevious := false
	if _, err := os.Stat(target); err == nil {
		if err := os.RemoveAll(previous); err != nil {
			return "", fmt.Errorf("failed to clear previous backup: %w", err)
		}
		if err := os.Rename(target, previous); err != nil {
			return "", fmt.Errorf("failed to move previous version aside: %w", err)
		}
		hadPrevious = true
	}

	if err := os.Rename(incoming, target); err != nil {
		if hadPrevious {
			if restoreErr := os.Rename(previous, target); restoreErr != nil {
				return "", fmt.Errorf("failed to rename staging dir: %w (previous version left in %s: %v)",
					err, previous, restoreErr)
			}
		}
		return "", fmt.Errorf("failed to rename staging dir: %w", err)
	}

	if hadPrevious {
		// a leftover backup is removed by the next CleanStaleStaging
		os.RemoveAll(previous)
	}

	return filepath.Join(target, name), nil
}

// GetDataSize returns total size of files under the data dir
func (m *Manager) GetDataSize() (int64, error) {
	var size int64
	err := filepath.Walk(m.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// CleanOldTempFiles removes partial files older than the specified duration
func (m *Manager) CleanOldTempFiles(olderThan time.Duration) (int, error) {
	ws := m.workspace()
	if _, err := os.Stat(ws.Dir()); os.IsNotExist(err) {
		return 0, nil
	}

	count := 0
	threshold := time.Now().Add(-olderThan)

	err := filepath.Walk(ws.Dir(), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && ws.IsPartial(info.Name()) && info.ModTime().Before(threshold) {
			if removeErr := os.Remove(path); removeErr == nil {
				count++
			}
		}
		return nil
	})
	return count, err
}

// CleanStaleStaging repairs what an interrupted Finalize left behind.
// When the target is missing, the previous version is restored, or else a
// complete incoming version is promoted. Remaining staging dirs are removed.
func (m *Manager) CleanStaleStaging() error {
	targets := make(map[string]struct{})
	err := filepath.Walk(m.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() || path == m.rootDir {
			return nil
		}
		name := info.Name()
		if name == m.tempDirName && filepath.Dir(path) == m.rootDir {
			return filepath.SkipDir
		}
		for _, prefix := range []string{incomingPrefix, previousPrefix} {
			if strings.HasPrefix(name, prefix) {
				targets[filepath.Join(filepath.Dir(path), strings.TrimPrefix(name, prefix))] = struct{}{}
				return filepath.SkipDir
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for target := range targets {
		if err := recoverStaging(target); err != nil {
			return err
		}
	}
	return nil
}

func recoverStaging(target string) error {
	incoming, previous := stagingPaths(target)

	if _, err := os.Stat(target); os.IsNotExist(err) {
		switch {
		case dirExists(previous):
			if err := os.Rename(previous, target); err != nil {
				return fmt.Errorf("failed to restore %s: %w", target, err)
			}
		case !dirEmpty(incoming):
			// the artifact is moved in with a single rename, so a non-empty
			// incoming dir holds a complete download
			if err := os.Rename(incoming, target); err != nil {
				return fmt.Errorf("failed to promote %s: %w", incoming, err)
			}
		}
	}

	for _, dir := range []string{incoming, previous} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", dir, err)
		}
	}
	return nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func dirEmpty(path string) bool {
	entries, err := os.ReadDir(path)
	return err != nil || len(entries) == 0
}

// isPartialName reports whether name carries one of exts
func isPartialName(name string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return strings.HasSuffix(name, domain.PartialSuffix)
}
