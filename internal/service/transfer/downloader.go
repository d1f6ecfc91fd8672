package transfer

import (
	"context"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
	"github.com/vertextoedge/gdc-fetch/internal/port"
)

// Downloader drives one task through PLANNING, STREAMING and RECHECK until
// the destination holds the declared number of bytes.
type Downloader struct {
	fs       port.FileSystem
	retrier  *Retrier
	planner  *Planner
	executor *Executor
	reporter ProgressReporter
	logger   *zap.Logger
}

// Config contains the transfer engine settings
type Config struct {
	Retry     RetryConfig
	ChunkSize int
}

// NewDownloader wires the transfer engine around a fetcher and a filesystem.
func NewDownloader(fetcher port.Fetcher, fs port.FileSystem, reporter ProgressReporter, cfg Config, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	retrier := NewRetrier(fetcher, cfg.Retry, logger)
	return &Downloader{
		fs:       fs,
		retrier:  retrier,
		planner:  NewPlanner(fs, retrier, logger),
		executor: NewExecutor(fs, cfg.ChunkSize, logger),
		reporter: reporter,
		logger:   logger,
	}
}

// Download brings task.Path to its full size. The returned result is never
// nil, and on error describes how far the task got.
func (d *Downloader) Download(ctx context.Context, task *domain.DownloadTask) (*domain.DownloadResult, error) {
	state := domain.NewTransferState(task)
	defer state.CloseStream()

	result := &domain.DownloadResult{
		Path:         task.Path,
		DeclaredSize: task.Size,
	}
	defer func() { result.Errors = state.Errors.Clone() }()

	for first := true; ; first = false {
		plan, err := d.planner.Plan(ctx, task, state)
		result.DeclaredSize = state.Total
		if err != nil {
			return result, err
		}

		if first && plan.Kind == domain.PlanResume {
			result.Resumed = true
			result.ResumedFrom = plan.Offset
		}

		if first && plan.Kind != domain.PlanSkip {
			d.checkDiskSpace(task, state)
		}

		if plan.Kind == domain.PlanSkip {
			if first {
				result.Skipped = true
				d.logger.Info("already downloaded, skipping",
					zap.String("task", task.Label),
					zap.String("path", task.Path),
					zap.Int64("size", state.Total))
			}
			break
		}

		state.Passes++
		result.Passes = state.Passes
		before := state.Downloaded

		err = d.executor.Stream(ctx, task, state, d.reporter)
		result.BytesWritten += state.Downloaded - before
		if err != nil {
			return result, err
		}

		if state.Complete() {
			break
		}

		if state.Downloaded == before {
			d.logger.Warn("pass made no progress, waiting before retrying",
				zap.String("task", task.Label),
				zap.Duration("delay", d.retrier.Delay()))
			if err := d.retrier.Wait(ctx); err != nil {
				return result, err
			}
		}
	}

	if !result.Skipped {
		d.logger.Info("download complete",
			zap.String("task", task.Label),
			zap.String("path", task.Path),
			zap.String("size", humanize.IBytes(uint64(state.Total))),
			zap.Int("passes", state.Passes),
			zap.String("errors", state.Errors.String()))
	}

	return result, nil
}

// checkDiskSpace warns when the bytes still missing from the destination do
// not fit on its filesystem. It runs after the first plan, so probed sizes are
// covered too.
func (d *Downloader) checkDiskSpace(task *domain.DownloadTask, state *domain.TransferState) {
	need := state.Remaining()
	if need <= 0 {
		return
	}

	usage, err := d.fs.GetDiskUsage()
	if err != nil {
		d.logger.Debug("failed to get disk usage", zap.Error(err))
		return
	}
	if usage.Free < uint64(need) {
		d.logger.Warn("not enough free disk space for download",
			zap.String("task", task.Label),
			zap.String("needed", humanize.IBytes(uint64(need))),
			zap.String("free", humanize.IBytes(usage.Free)))
	}
}
