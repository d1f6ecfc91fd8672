package filesystem

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
	"github.com/vertextoedge/gdc-fetch/internal/port"
)

// Manager handles local filesystem operations under the save directory
type Manager struct {
	rootDir string
}

// Ensure Manager implements port.FileSystem
var _ port.FileSystem = (*Manager)(nil)

// NewManager creates a new filesystem manager, creating rootDir if absent
func NewManager(rootDir string) (*Manager, error) {
	if rootDir == "" {
		rootDir = "."
	}
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create save dir: %w", err)
	}

	return &Manager{
		rootDir: rootDir,
	}, nil
}

// RootDir returns the save directory
func (m *Manager) RootDir() string {
	return m.rootDir
}

// DestinationPath returns the local path for a manifest filename
func (m *Manager) DestinationPath(filename string) string {
	return filepath.Join(m.rootDir, filename)
}

// Stat returns the size of path and whether it exists
func (m *Manager) Stat(path string) (int64, bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, false, fmt.Errorf("destination %s is a directory", path)
	}
	return info.Size(), true, nil
}

// Open opens path for writing. OpenCreate truncates; OpenAppend requires the
// file to exist so a vanished partial file is never silently recreated at
// the wrong offset.
func (m *Manager) Open(path string, mode domain.OpenMode) (io.WriteCloser, error) {
	var (
		f   *os.File
		err error
	)

	switch mode {
	case domain.OpenAppend:
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open file for resume: %w", err)
		}
	default:
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to create file: %w", err)
		}
	}

	return f, nil
}
