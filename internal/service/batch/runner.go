package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/juju/clock"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
	"github.com/vertextoedge/gdc-fetch/internal/port"
)

// ErrTasksFailed is returned when a run that continues past fatal errors
// finishes with at least one failed task.
var ErrTasksFailed = errors.New("one or more tasks failed")

// Downloader downloads a single task
type Downloader interface {
	Download(ctx context.Context, task *domain.DownloadTask) (*domain.DownloadResult, error)
}

// MetricsRecorder receives task outcomes
type MetricsRecorder interface {
	ObserveTask(status string, res *domain.DownloadResult, elapsed time.Duration)
	RunFinished(at time.Time)
	WriteTextfile(path string) error
}

// Config contains batch runner configuration
type Config struct {
	// ContinueOnFatal moves on to the next task after a fatal error instead
	// of stopping the run.
	ContinueOnFatal bool

	// MetricsTextfile is rewritten after every task when set
	MetricsTextfile string

	// RunID tags journal rows; generated when empty
	RunID string

	Clock clock.Clock
}

// Summary describes a finished or stopped run
type Summary struct {
	RunID       string
	Total       int
	Attempted   int
	Complete    int
	Skipped     int
	Failed      int
	Interrupted int

	BytesWritten int64
	Errors       domain.ErrorHistogram
	Failures     []*domain.TaskError
}

// Runner downloads manifest tasks strictly one after another.
type Runner struct {
	config     Config
	downloader Downloader
	journal    port.TransferJournal
	metrics    MetricsRecorder
	logger     *zap.Logger
}

// New creates a batch runner. journal and metrics may be nil.
func New(cfg Config, downloader Downloader, journal port.TransferJournal, metrics MetricsRecorder, logger *zap.Logger) *Runner {
	if cfg.RunID == "" {
		cfg.RunID = ksuid.New().String()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		config:     cfg,
		downloader: downloader,
		journal:    journal,
		metrics:    metrics,
		logger:     logger.With(zap.String("run_id", cfg.RunID)),
	}
}

// RunID returns the id journal rows of this run are tagged with
func (r *Runner) RunID() string {
	return r.config.RunID
}

// Run downloads tasks in order. It stops at the first fatal error unless
// ContinueOnFatal is set, and at cancellation of ctx, in which case the
// current task is recorded as interrupted and ctx.Err() is returned.
func (r *Runner) Run(ctx context.Context, tasks []*domain.DownloadTask) (*Summary, error) {
	summary := &Summary{
		RunID:  r.config.RunID,
		Total:  len(tasks),
		Errors: make(domain.ErrorHistogram),
	}

	r.logger.Info("starting downloads", zap.Int("tasks", len(tasks)))
	defer r.finishRun(summary)

	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		status, err := r.runTask(ctx, task, summary)
		switch status {
		case domain.TransferStatusInterrupted:
			r.logger.Warn("download interrupted",
				zap.String("task", task.Label),
				zap.Error(err))
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			return summary, err

		case domain.TransferStatusFailed:
			taskErr := domain.NewTaskError(task, err)
			summary.Failures = append(summary.Failures, taskErr)
			r.logger.Error("download failed",
				zap.String("task", task.Label),
				zap.String("url", task.URL),
				zap.Error(err))
			if !r.config.ContinueOnFatal {
				return summary, taskErr
			}
		}
	}

	if len(summary.Failures) > 0 {
		return summary, fmt.Errorf("%w: %d of %d", ErrTasksFailed, len(summary.Failures), len(tasks))
	}
	return summary, nil
}

func (r *Runner) runTask(ctx context.Context, task *domain.DownloadTask, summary *Summary) (string, error) {
	rec := domain.NewTransferRecord(r.config.RunID, task)
	if r.journal != nil {
		if err := r.journal.BeginTransfer(rec); err != nil {
			r.logger.Warn("failed to journal transfer start", zap.String("task", task.Label), zap.Error(err))
		}
	}

	start := r.config.Clock.Now()
	res, err := r.downloader.Download(ctx, task)
	elapsed := r.config.Clock.Now().Sub(start)

	status := statusOf(ctx, res, err)
	summary.Attempted++
	switch status {
	case domain.TransferStatusComplete:
		summary.Complete++
	case domain.TransferStatusSkipped:
		summary.Skipped++
	case domain.TransferStatusFailed:
		summary.Failed++
	case domain.TransferStatusInterrupted:
		summary.Interrupted++
	}
	if res != nil {
		summary.BytesWritten += res.BytesWritten
		for kind, n := range res.Errors {
			summary.Errors[kind] += n
		}
	}

	rec.ApplyResult(res)
	rec.Finish(status, err)
	if r.journal != nil && rec.ID != 0 {
		if jerr := r.journal.FinishTransfer(rec); jerr != nil {
			r.logger.Warn("failed to journal transfer result", zap.String("task", task.Label), zap.Error(jerr))
		}
	}

	if r.metrics != nil {
		r.metrics.ObserveTask(status, res, elapsed)
		r.writeMetrics()
	}

	return status, err
}

func statusOf(ctx context.Context, res *domain.DownloadResult, err error) string {
	switch {
	case err == nil && res != nil && res.Skipped:
		return domain.TransferStatusSkipped
	case err == nil:
		return domain.TransferStatusComplete
	case ctx.Err() != nil, errors.Is(err, context.Canceled):
		return domain.TransferStatusInterrupted
	default:
		return domain.TransferStatusFailed
	}
}

func (r *Runner) finishRun(summary *Summary) {
	if r.metrics != nil {
		r.metrics.RunFinished(r.config.Clock.Now())
		r.writeMetrics()
	}

	r.logger.Info("run finished",
		zap.Int("tasks", summary.Total),
		zap.Int("attempted", summary.Attempted),
		zap.Int("complete", summary.Complete),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed),
		zap.Int("interrupted", summary.Interrupted),
		zap.String("downloaded", humanize.IBytes(uint64(summary.BytesWritten))),
		zap.String("errors", summary.Errors.String()))
}

func (r *Runner) writeMetrics() {
	if r.config.MetricsTextfile == "" {
		return
	}
	if err := r.metrics.WriteTextfile(r.config.MetricsTextfile); err != nil {
		r.logger.Warn("failed to write metrics", zap.String("path", r.config.MetricsTextfile), zap.Error(err))
	}
}
