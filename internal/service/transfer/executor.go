package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
	"github.com/vertextoedge/gdc-fetch/internal/port"
)

// DefaultChunkSize is the read size of a streaming pass
const DefaultChunkSize = 32 * 1024

// ProgressReporter receives progress of streaming passes
type ProgressReporter interface {
	Start(label string, errors domain.ErrorHistogram, total, current int64)
	Update(current int64)
	Finish()
}

type nopReporter struct{}

func (nopReporter) Start(string, domain.ErrorHistogram, int64, int64) {}
func (nopReporter) Update(int64)                                      {}
func (nopReporter) Finish()                                           {}

// Executor streams the live response of a task into its destination.
type Executor struct {
	fs        port.FileSystem
	chunkSize int
	logger    *zap.Logger
}

// NewExecutor creates a transfer executor
func NewExecutor(fs port.FileSystem, chunkSize int, logger *zap.Logger) *Executor {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		fs:        fs,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Stream copies state.Stream into the destination opened with state.Mode,
// advancing state.Downloaded chunk by chunk. A failed read ends the pass
// early and returns nil after counting the failure; the caller re-plans.
// The live response is closed on return.
func (e *Executor) Stream(ctx context.Context, task *domain.DownloadTask, state *domain.TransferState, reporter ProgressReporter) (err error) {
	defer state.CloseStream()

	if state.Stream == nil || state.Stream.Body == nil {
		return errors.New("no live response to stream")
	}
	if reporter == nil {
		reporter = nopReporter{}
	}

	w, err := e.fs.Open(task.Path, state.Mode)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", task.Path, cerr)
		}
	}()

	reporter.Start(task.Label, state.Errors, state.Total, state.Downloaded)
	defer reporter.Finish()

	body := state.Stream.Body
	buf := make([]byte, e.chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if state.SizeKnown() && state.Downloaded+int64(n) > state.Total {
				return fmt.Errorf("%w: body of %s runs past %d bytes",
					domain.ErrSizeMismatch, task.URL, state.Total)
			}
			if _, werr := w.Write(buf[:n]); werr != nil {
				return fmt.Errorf("failed to write %s: %w", task.Path, werr)
			}
			state.Downloaded += int64(n)
			reporter.Update(state.Downloaded)
		}

		if rerr == nil {
			continue
		}
		if rerr == io.EOF {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		kind := domain.TransientKind(rerr)
		if kind == "" {
			kind = "ReadError"
		}
		state.Errors.Record(kind)

		e.logger.Warn("stream interrupted, will resume",
			zap.String("task", task.Label),
			zap.String("kind", kind),
			zap.Int64("downloaded", state.Downloaded),
			zap.Int64("total", state.Total),
			zap.Error(rerr))
		return nil
	}
}
