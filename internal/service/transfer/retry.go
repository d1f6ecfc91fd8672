package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.uber.org/zap"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
	"github.com/vertextoedge/gdc-fetch/internal/port"
)

// DefaultRetryDelay is the wait between attempts when none is configured.
const DefaultRetryDelay = 5 * time.Second

// RetryConfig configures the retry controller
type RetryConfig struct {
	Delay time.Duration

	// MaxAttempts bounds attempts per request; 0 retries forever.
	MaxAttempts int

	Clock clock.Clock
}

// Request is one GET the retry controller keeps issuing until it succeeds.
type Request struct {
	URL        string
	RangeStart int64 // port.NoRange for a plain GET
}

// Retrier issues requests through a Fetcher and waits out transient failures.
type Retrier struct {
	fetcher     port.Fetcher
	delay       time.Duration
	maxAttempts int
	clock       clock.Clock
	logger      *zap.Logger
}

// NewRetrier creates a retry controller
func NewRetrier(fetcher port.Fetcher, cfg RetryConfig, logger *zap.Logger) *Retrier {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultRetryDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{
		fetcher:     fetcher,
		delay:       cfg.Delay,
		maxAttempts: cfg.MaxAttempts,
		clock:       cfg.Clock,
		logger:      logger,
	}
}

// Delay returns the wait between attempts
func (r *Retrier) Delay() time.Duration {
	return r.delay
}

// Attempt issues req until a response is obtained and installs it as the
// task's live response. The previous live response is closed before every
// attempt. Each transient failure is counted in state.Errors.
func (r *Retrier) Attempt(ctx context.Context, task *domain.DownloadTask, state *domain.TransferState, req Request) (*domain.RemoteStream, error) {
	attempts := r.maxAttempts
	if attempts <= 0 {
		attempts = -1 // forever
	}

	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			state.CloseStream()
			stream, err := r.fetcher.Get(ctx, req.URL, req.RangeStart)
			if err != nil {
				return err
			}
			state.SetStream(stream)
			return nil
		},
		IsFatalError: func(err error) bool {
			return !domain.IsTransient(err)
		},
		NotifyFunc: func(err error, attempt int) {
			lastErr = err
			kind := domain.TransientKind(err)
			state.Errors.Record(kind)
			r.logger.Warn("request failed, retrying",
				zap.String("task", task.Label),
				zap.Int("attempt", attempt),
				zap.String("kind", kind),
				zap.Int("errors", state.Errors.Total()),
				zap.Duration("delay", r.delay),
				zap.Error(err))
		},
		Attempts: attempts,
		Delay:    r.delay,
		Clock:    r.clock,
		Stop:     ctx.Done(),
	})

	if err == nil {
		return state.Stream, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if retry.IsAttemptsExceeded(err) {
		if lastErr == nil {
			lastErr = err
		}
		return nil, fmt.Errorf("giving up after %d attempts: %w", r.maxAttempts, lastErr)
	}
	return nil, err
}

// Wait sleeps for the retry delay or until ctx is done.
func (r *Retrier) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clock.After(r.delay):
		return nil
	}
}
