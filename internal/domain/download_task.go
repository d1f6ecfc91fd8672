package domain

import (
	"fmt"
	"path/filepath"
	"strings"
)

// UnknownSize is the declared size of a task whose manifest row has no size.
const UnknownSize int64 = -1

// DownloadTask is one manifest row resolved to a URL and a destination.
// It is not modified after construction.
type DownloadTask struct {
	Index int
	ID    string
	URL   string
	Path  string
	Size  int64
	Label string
}

// SizeKnown reports whether the manifest declared a size for the task.
func (t *DownloadTask) SizeKnown() bool {
	return t.Size >= 0
}

// Filename returns the destination basename
func (t *DownloadTask) Filename() string {
	return filepath.Base(t.Path)
}

// TaskLabel builds the display label for a manifest row.
func TaskLabel(index int, filename string) string {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	if name == "" {
		name = filename
	}
	return fmt.Sprintf("index: %d, filename: %s", index, name)
}
