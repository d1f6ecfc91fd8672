package domain

import (
	"io"
	"sort"
	"strconv"
	"strings"
)

// OpenMode selects how the destination file is opened for a streaming pass.
type OpenMode int

const (
	// OpenCreate creates or truncates the destination.
	OpenCreate OpenMode = iota
	// OpenAppend appends to the existing partial destination.
	OpenAppend
)

func (m OpenMode) String() string {
	if m == OpenAppend {
		return "append"
	}
	return "create"
}

// PlanKind is the outcome of planning one pass.
type PlanKind int

const (
	PlanSkip PlanKind = iota
	PlanFresh
	PlanResume
)

func (k PlanKind) String() string {
	switch k {
	case PlanSkip:
		return "skip"
	case PlanFresh:
		return "fresh"
	case PlanResume:
		return "resume"
	default:
		return "unknown"
	}
}

// RemoteStream is an open HTTP response body together with the headers the
// transfer engine cares about. ContentLength is -1 when the server sent none.
type RemoteStream struct {
	Body          io.ReadCloser
	StatusCode    int
	ContentLength int64
	ContentRange  string
}

// Close closes the response body
func (s *RemoteStream) Close() error {
	if s == nil || s.Body == nil {
		return nil
	}
	return s.Body.Close()
}

// ErrorHistogram counts transient failures by kind.
type ErrorHistogram map[string]int

// Record adds one occurrence of kind
func (h ErrorHistogram) Record(kind string) {
	h[kind]++
}

// Total returns the number of recorded failures
func (h ErrorHistogram) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// String renders the histogram as "Kind:n,Kind:n" sorted by kind.
func (h ErrorHistogram) String() string {
	if len(h) == 0 {
		return ""
	}
	kinds := make([]string, 0, len(h))
	for k := range h {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, k+":"+strconv.Itoa(h[k]))
	}
	return strings.Join(parts, ",")
}

// Clone returns a copy of the histogram
func (h ErrorHistogram) Clone() ErrorHistogram {
	c := make(ErrorHistogram, len(h))
	for k, v := range h {
		c[k] = v
	}
	return c
}

// TransferState is the mutable state of one task's download. It is created by
// the orchestrator for a single task and never shared between tasks.
type TransferState struct {
	// Total is the declared size; UnknownSize until probed.
	Total int64

	// Downloaded is the number of bytes present in the destination.
	Downloaded int64

	// Offset is the byte offset the current pass started from.
	Offset int64

	Mode   OpenMode
	Errors ErrorHistogram

	// Stream is the single live response of this task, if any.
	Stream *RemoteStream

	// Probed is set when Total was learned from a size probe.
	Probed bool

	// Passes counts streaming passes started for the task.
	Passes int
}

// NewTransferState creates the state for a task
func NewTransferState(task *DownloadTask) *TransferState {
	return &TransferState{
		Total:  task.Size,
		Errors: make(ErrorHistogram),
	}
}

// SizeKnown reports whether Total has been established
func (s *TransferState) SizeKnown() bool {
	return s.Total >= 0
}

// Remaining returns the bytes left to download, or -1 if unknown
func (s *TransferState) Remaining() int64 {
	if !s.SizeKnown() {
		return -1
	}
	return s.Total - s.Downloaded
}

// Complete reports whether the destination has reached the declared size
func (s *TransferState) Complete() bool {
	return s.SizeKnown() && s.Downloaded == s.Total
}

// SetStream replaces the live response, closing the previous one.
func (s *TransferState) SetStream(stream *RemoteStream) {
	if s.Stream != nil && s.Stream != stream {
		s.Stream.Close()
	}
	s.Stream = stream
}

// CloseStream closes and forgets the live response
func (s *TransferState) CloseStream() {
	if s.Stream != nil {
		s.Stream.Close()
		s.Stream = nil
	}
}
