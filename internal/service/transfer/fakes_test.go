package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
	"github.com/vertextoedge/gdc-fetch/internal/port"
)

// step scripts the outcome of one Get on fakeServer.
type step struct {
	err error // returned by Get instead of a response

	// a non-nil readErr fails the body after cut bytes
	cut     int
	readErr error
}

// fakeServer serves one object and records every request.
type fakeServer struct {
	data            []byte
	noContentLength bool
	ignoreRange     bool
	contentRange    string // overrides the computed Content-Range
	contentLength   int64  // overrides the computed Content-Length when > 0

	script   []step
	requests []int64

	live   int
	opened int
}

var _ port.Fetcher = (*fakeServer)(nil)

func (s *fakeServer) Get(ctx context.Context, url string, rangeStart int64) (*domain.RemoteStream, error) {
	s.requests = append(s.requests, rangeStart)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var st step
	if len(s.script) > 0 {
		st, s.script = s.script[0], s.script[1:]
	}
	if st.err != nil {
		return nil, st.err
	}

	start := int64(0)
	status := http.StatusOK
	contentRange := ""
	if rangeStart >= 0 && !s.ignoreRange {
		start = rangeStart
		status = http.StatusPartialContent
		contentRange = fmt.Sprintf("bytes %d-%d/%d", start, len(s.data)-1, len(s.data))
	}
	if s.contentRange != "" {
		contentRange = s.contentRange
	}

	payload := s.data[start:]
	contentLength := int64(len(payload))
	if s.contentLength > 0 {
		contentLength = s.contentLength
	}
	if s.noContentLength {
		contentLength = -1
	}

	var r io.Reader = bytes.NewReader(payload)
	if st.readErr != nil {
		r = io.MultiReader(bytes.NewReader(payload[:st.cut]), errReader{st.readErr})
	}

	s.live++
	s.opened++
	return &domain.RemoteStream{
		Body:          &trackedBody{r: r, server: s},
		StatusCode:    status,
		ContentLength: contentLength,
		ContentRange:  contentRange,
	}, nil
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

type trackedBody struct {
	r      io.Reader
	server *fakeServer
	closed bool
}

func (b *trackedBody) Read(p []byte) (int, error) { return b.r.Read(p) }

func (b *trackedBody) Close() error {
	if !b.closed {
		b.closed = true
		b.server.live--
	}
	return nil
}

// memFS is an in-memory port.FileSystem
type memFS struct {
	files    map[string][]byte
	writeErr error
	free     uint64
}

var _ port.FileSystem = (*memFS)(nil)

func newMemFS() *memFS {
	return &memFS{files: make(map[string][]byte), free: 1 << 40}
}

func (m *memFS) RootDir() string { return "/save" }

func (m *memFS) DestinationPath(filename string) string { return "/save/" + filename }

func (m *memFS) Stat(path string) (int64, bool, error) {
	b, ok := m.files[path]
	return int64(len(b)), ok, nil
}

func (m *memFS) Open(path string, mode domain.OpenMode) (io.WriteCloser, error) {
	if mode == domain.OpenAppend {
		if _, ok := m.files[path]; !ok {
			return nil, errors.New("file does not exist")
		}
	} else {
		m.files[path] = []byte{}
	}
	return &memFile{fs: m, path: path}, nil
}

func (m *memFS) GetDiskUsage() (*port.DiskUsage, error) {
	return &port.DiskUsage{Total: 1 << 41, Free: m.free}, nil
}

type memFile struct {
	fs   *memFS
	path string
}

func (f *memFile) Write(p []byte) (int, error) {
	if f.fs.writeErr != nil {
		return 0, f.fs.writeErr
	}
	f.fs.files[f.path] = append(f.fs.files[f.path], p...)
	return len(p), nil
}

func (f *memFile) Close() error { return nil }

// recordingReporter keeps every reported byte count per pass
type recordingReporter struct {
	passes   [][]int64
	finished int
}

func (r *recordingReporter) Start(_ string, _ domain.ErrorHistogram, _, current int64) {
	r.passes = append(r.passes, []int64{current})
}

func (r *recordingReporter) Update(current int64) {
	last := len(r.passes) - 1
	r.passes[last] = append(r.passes[last], current)
}

func (r *recordingReporter) Finish() { r.finished++ }

func makeData(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + i%26)
	}
	return b
}

func newTask(size int64) *domain.DownloadTask {
	return &domain.DownloadTask{
		Index: 0,
		ID:    "0b7a8c3e-1f6d-4c2e-9a51-3f0e2d4b6c71",
		URL:   "https://api.gdc.cancer.gov/data/0b7a8c3e-1f6d-4c2e-9a51-3f0e2d4b6c71",
		Path:  "/save/slide.svs",
		Size:  size,
		Label: domain.TaskLabel(0, "slide.svs"),
	}
}

func testConfig() Config {
	return Config{
		Retry:     RetryConfig{Delay: time.Millisecond},
		ChunkSize: 128,
	}
}

func newTestDownloader(server *fakeServer, fs *memFS, reporter ProgressReporter) *Downloader {
	return NewDownloader(server, fs, reporter, testConfig(), zap.NewNop())
}

func transient(kind string) error {
	return domain.NewTransientError(kind, errors.New("simulated "+kind))
}
