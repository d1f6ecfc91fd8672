package transfer

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
	"github.com/vertextoedge/gdc-fetch/internal/port"
)

func openStream(t *testing.T, server *fakeServer, state *domain.TransferState, rangeStart int64) {
	t.Helper()
	stream, err := server.Get(context.Background(), "url", rangeStart)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	state.SetStream(stream)
}

func TestExecutor_StreamFresh(t *testing.T) {
	data := makeData(1000)
	server := &fakeServer{data: data}
	fs := newMemFS()
	task := newTask(1000)
	state := domain.NewTransferState(task)
	openStream(t, server, state, port.NoRange)

	reporter := &recordingReporter{}
	if err := NewExecutor(fs, 100, zap.NewNop()).Stream(context.Background(), task, state, reporter); err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if !bytes.Equal(fs.files[task.Path], data) {
		t.Error("file content mismatch")
	}
	if state.Downloaded != 1000 {
		t.Errorf("Downloaded = %d, want 1000", state.Downloaded)
	}
	if state.Stream != nil || server.live != 0 {
		t.Error("live response not closed")
	}
	// start + one update per 100-byte chunk
	if got := len(reporter.passes[0]); got != 11 {
		t.Errorf("reported %d values, want 11", got)
	}
	if reporter.finished != 1 {
		t.Errorf("Finish called %d times", reporter.finished)
	}
}

func TestExecutor_StreamAppend(t *testing.T) {
	data := makeData(1000)
	server := &fakeServer{data: data}
	fs := newMemFS()
	task := newTask(1000)
	fs.files[task.Path] = append([]byte(nil), data[:400]...)

	state := domain.NewTransferState(task)
	state.Downloaded = 400
	state.Offset = 400
	state.Mode = domain.OpenAppend
	openStream(t, server, state, 400)

	if err := NewExecutor(fs, 0, nil).Stream(context.Background(), task, state, nil); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if !bytes.Equal(fs.files[task.Path], data) {
		t.Error("file content mismatch")
	}
	if state.Downloaded != 1000 {
		t.Errorf("Downloaded = %d, want 1000", state.Downloaded)
	}
}

func TestExecutor_ReadFailureEndsPassEarly(t *testing.T) {
	data := makeData(1000)
	server := &fakeServer{
		data:   data,
		script: []step{{cut: 250, readErr: errors.New("connection lost")}},
	}
	fs := newMemFS()
	task := newTask(1000)
	state := domain.NewTransferState(task)
	openStream(t, server, state, port.NoRange)

	err := NewExecutor(fs, 100, zap.NewNop()).Stream(context.Background(), task, state, nil)
	if err != nil {
		t.Fatalf("read failure should not be an error, got %v", err)
	}
	if state.Downloaded != 250 {
		t.Errorf("Downloaded = %d, want 250", state.Downloaded)
	}
	if !bytes.Equal(fs.files[task.Path], data[:250]) {
		t.Error("bytes read before the failure were not written")
	}
	if state.Errors["ReadError"] != 1 {
		t.Errorf("histogram = %v, want ReadError:1", state.Errors)
	}
}

func TestExecutor_WriteFailureIsFatal(t *testing.T) {
	server := &fakeServer{data: makeData(1000)}
	fs := newMemFS()
	fs.writeErr = errors.New("no space left on device")
	task := newTask(1000)
	state := domain.NewTransferState(task)
	openStream(t, server, state, port.NoRange)

	err := NewExecutor(fs, 100, zap.NewNop()).Stream(context.Background(), task, state, nil)
	if !errors.Is(err, fs.writeErr) {
		t.Fatalf("error = %v, want write failure", err)
	}
	if domain.IsTransient(err) {
		t.Error("write failure must be fatal")
	}
	if state.Downloaded != 0 {
		t.Errorf("Downloaded = %d, want 0", state.Downloaded)
	}
	if server.live != 0 {
		t.Error("live response not closed")
	}
}

// cancellingReporter cancels the context once the counter reaches limit
type cancellingReporter struct {
	recordingReporter
	limit  int64
	cancel context.CancelFunc
}

func (r *cancellingReporter) Update(current int64) {
	r.recordingReporter.Update(current)
	if current >= r.limit {
		r.cancel()
	}
}

func TestExecutor_CancelAtChunkBoundary(t *testing.T) {
	data := makeData(1000)
	server := &fakeServer{data: data}
	fs := newMemFS()
	task := newTask(1000)
	state := domain.NewTransferState(task)
	openStream(t, server, state, port.NoRange)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reporter := &cancellingReporter{limit: 300, cancel: cancel}

	err := NewExecutor(fs, 100, zap.NewNop()).Stream(ctx, task, state, reporter)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if state.Downloaded != 300 {
		t.Errorf("Downloaded = %d, want 300", state.Downloaded)
	}
	if !bytes.Equal(fs.files[task.Path], data[:300]) {
		t.Error("completed chunks must be on disk")
	}
	if reporter.finished != 1 {
		t.Error("reporter not finished on cancel")
	}
}

func TestExecutor_NoLiveResponse(t *testing.T) {
	task := newTask(10)
	state := domain.NewTransferState(task)
	if err := NewExecutor(newMemFS(), 0, nil).Stream(context.Background(), task, state, nil); err == nil {
		t.Error("expected error without a live response")
	}
}
