package port

import (
	"io"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
)

// DiskUsage represents disk usage statistics
type DiskUsage struct {
	Total   uint64  // Total disk space in bytes
	Used    uint64  // Used disk space in bytes
	Free    uint64  // Free disk space in bytes
	UsedPct float64 // Used percentage (0-100)
}

// FileSystem defines the interface for destination file operations
type FileSystem interface {
	// RootDir returns the save directory
	RootDir() string

	// DestinationPath returns the local path for a manifest filename
	DestinationPath(filename string) string

	// Stat returns the size of path and whether it exists
	Stat(path string) (size int64, exists bool, err error)

	// Open opens path for writing in the given mode
	Open(path string, mode domain.OpenMode) (io.WriteCloser, error)

	// GetDiskUsage returns disk usage statistics of the save directory
	GetDiskUsage() (*DiskUsage, error)
}
