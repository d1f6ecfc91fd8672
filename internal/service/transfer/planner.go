package transfer

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
	"github.com/vertextoedge/gdc-fetch/internal/port"
)

// Plan is the outcome of one planning pass
type Plan struct {
	Kind   domain.PlanKind
	Offset int64
}

// Planner decides, from the local file and the declared size, whether a
// pass skips, starts fresh or resumes, and opens the matching response.
type Planner struct {
	fs      port.FileSystem
	retrier *Retrier
	logger  *zap.Logger
}

// NewPlanner creates a transfer planner
func NewPlanner(fs port.FileSystem, retrier *Retrier, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{
		fs:      fs,
		retrier: retrier,
		logger:  logger,
	}
}

// Plan runs one planning pass. On PlanFresh and PlanResume the live response
// is left in state.Stream and state.Mode is set; on PlanSkip and on error no
// response is left open.
func (p *Planner) Plan(ctx context.Context, task *domain.DownloadTask, state *domain.TransferState) (Plan, error) {
	plan, err := p.plan(ctx, task, state)
	if err != nil || plan.Kind == domain.PlanSkip {
		state.CloseStream()
	}
	return plan, err
}

func (p *Planner) plan(ctx context.Context, task *domain.DownloadTask, state *domain.TransferState) (Plan, error) {
	probed := false
	if !state.SizeKnown() {
		if err := p.probeSize(ctx, task, state); err != nil {
			return Plan{}, err
		}
		probed = true
	}

	size, exists, err := p.fs.Stat(task.Path)
	if err != nil {
		return Plan{}, err
	}

	if !exists {
		return p.planFresh(ctx, task, state, probed)
	}

	state.Downloaded = size
	state.Offset = size

	switch {
	case size == state.Total:
		return Plan{Kind: domain.PlanSkip, Offset: size}, nil
	case size > state.Total:
		return Plan{}, fmt.Errorf("%w: %s has %d bytes, expected %d",
			domain.ErrInconsistentLocalFile, task.Path, size, state.Total)
	default:
		return p.planResume(ctx, task, state, size)
	}
}

// probeSize learns Total from the Content-Length of a plain GET. The probe
// stays open as the live response so a fresh download can stream it.
func (p *Planner) probeSize(ctx context.Context, task *domain.DownloadTask, state *domain.TransferState) error {
	stream, err := p.retrier.Attempt(ctx, task, state, Request{URL: task.URL, RangeStart: port.NoRange})
	if err != nil {
		return err
	}
	if stream.ContentLength < 0 {
		return fmt.Errorf("%w: cannot determine size of %s", domain.ErrMissingContentLength, task.URL)
	}

	state.Total = stream.ContentLength
	state.Probed = true

	p.logger.Info("probed remote size",
		zap.String("task", task.Label),
		zap.Int64("size", state.Total))
	return nil
}

func (p *Planner) planFresh(ctx context.Context, task *domain.DownloadTask, state *domain.TransferState, probed bool) (Plan, error) {
	state.Downloaded = 0
	state.Offset = 0
	state.Mode = domain.OpenCreate

	if probed {
		return Plan{Kind: domain.PlanFresh}, nil
	}

	stream, err := p.retrier.Attempt(ctx, task, state, Request{URL: task.URL, RangeStart: port.NoRange})
	if err != nil {
		return Plan{}, err
	}
	if err := p.checkFullLength(task, state, stream); err != nil {
		return Plan{}, err
	}
	return Plan{Kind: domain.PlanFresh}, nil
}

func (p *Planner) planResume(ctx context.Context, task *domain.DownloadTask, state *domain.TransferState, offset int64) (Plan, error) {
	stream, err := p.retrier.Attempt(ctx, task, state, Request{URL: task.URL, RangeStart: offset})
	if err != nil {
		return Plan{}, err
	}

	if stream.StatusCode != http.StatusPartialContent {
		// Range ignored: the body is the whole object, start over
		p.logger.Warn("server ignored range request, starting fresh",
			zap.String("task", task.Label),
			zap.Int64("offset", offset),
			zap.Int("status", stream.StatusCode))

		if err := p.checkFullLength(task, state, stream); err != nil {
			return Plan{}, err
		}
		state.Downloaded = 0
		state.Offset = 0
		state.Mode = domain.OpenCreate
		return Plan{Kind: domain.PlanFresh}, nil
	}

	cr, err := domain.ParseContentRange(stream.ContentRange)
	if err != nil {
		return Plan{}, fmt.Errorf("%w: %v", domain.ErrSizeMismatch, err)
	}
	if cr.Start != offset {
		return Plan{}, fmt.Errorf("%w: requested offset %d, server sent range starting at %d",
			domain.ErrSizeMismatch, offset, cr.Start)
	}
	if cr.Total >= 0 && cr.Total != state.Total {
		return Plan{}, domain.SizeMismatchError(state.Total, cr.Total)
	}
	if stream.ContentLength >= 0 && offset+stream.ContentLength != state.Total {
		return Plan{}, domain.SizeMismatchError(state.Total, offset+stream.ContentLength)
	}

	state.Mode = domain.OpenAppend

	p.logger.Info("resuming download",
		zap.String("task", task.Label),
		zap.Int64("offset", offset),
		zap.Int64("total", state.Total))
	return Plan{Kind: domain.PlanResume, Offset: offset}, nil
}

// checkFullLength verifies a whole-object response against Total. A missing
// Content-Length is accepted; the executor still bounds the body.
func (p *Planner) checkFullLength(task *domain.DownloadTask, state *domain.TransferState, stream *domain.RemoteStream) error {
	if stream.ContentLength < 0 {
		p.logger.Warn("response has no content-length, size cannot be verified up front",
			zap.String("task", task.Label))
		return nil
	}
	if stream.ContentLength != state.Total {
		return domain.SizeMismatchError(state.Total, stream.ContentLength)
	}
	return nil
}
