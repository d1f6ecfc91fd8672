// Package manifest reads GDC download manifests.
package manifest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
)

// DefaultBaseURL is the GDC data endpoint
const DefaultBaseURL = "https://api.gdc.cancer.gov/data/"

// Entry is one manifest row
type Entry struct {
	ID       string
	Filename string
	Size     int64 // domain.UnknownSize when blank
	MD5      string
}

// DestinationResolver maps a filename to a local path
type DestinationResolver interface {
	DestinationPath(filename string) string
}

// Load reads the manifest at path.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a tab-separated manifest with a header row. The id and
// filename columns are required; size and md5 are optional.
func Parse(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: empty manifest", domain.ErrInvalidManifest)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidManifest, err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		cols[name] = i
	}
	for _, required := range []string{"id", "filename"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q column", domain.ErrInvalidManifest, required)
		}
	}

	var entries []Entry
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidManifest, err)
		}
		if isBlank(record) {
			continue
		}

		line, _ := cr.FieldPos(0)
		entry, err := parseEntry(record, cols)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", domain.ErrInvalidManifest, line, err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseEntry(record []string, cols map[string]int) (Entry, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	entry := Entry{
		ID:       field("id"),
		Filename: field("filename"),
		Size:     domain.UnknownSize,
		MD5:      field("md5"),
	}

	if entry.ID == "" {
		return Entry{}, errors.New("empty id")
	}
	if entry.Filename == "" {
		return Entry{}, errors.New("empty filename")
	}
	if strings.ContainsAny(entry.Filename, `/\`) || entry.Filename == "." || entry.Filename == ".." {
		return Entry{}, fmt.Errorf("filename %q must not contain a path", entry.Filename)
	}

	switch size := field("size"); strings.ToUpper(size) {
	case "", "NA", "NAN":
	default:
		n, err := strconv.ParseInt(size, 10, 64)
		if err != nil {
			// Sizes written by spreadsheet tools may carry a ".0"
			f, ferr := strconv.ParseFloat(size, 64)
			if ferr != nil || f != float64(int64(f)) {
				return Entry{}, fmt.Errorf("invalid size %q", size)
			}
			n = int64(f)
		}
		if n < 0 {
			return Entry{}, fmt.Errorf("negative size %d", n)
		}
		entry.Size = n
	}

	return entry, nil
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// NormalizeBaseURL returns base with exactly one trailing slash
func NormalizeBaseURL(base string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/"
}

// Tasks resolves entries into download tasks. Two rows that write the same
// destination are rejected.
func Tasks(entries []Entry, baseURL string, dest DestinationResolver) ([]*domain.DownloadTask, error) {
	base := NormalizeBaseURL(baseURL)
	seen := make(map[string]int, len(entries))

	tasks := make([]*domain.DownloadTask, 0, len(entries))
	for i, e := range entries {
		path := dest.DestinationPath(e.Filename)
		key := filepath.Clean(path)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: rows %d and %d both write %s",
				domain.ErrInvalidManifest, prev, i, e.Filename)
		}
		seen[key] = i

		tasks = append(tasks, &domain.DownloadTask{
			Index: i,
			ID:    e.ID,
			URL:   base + e.ID,
			Path:  path,
			Size:  e.Size,
			Label: domain.TaskLabel(i, e.Filename),
		})
	}
	return tasks, nil
}
