package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/juju/clock"
	"github.com/mattn/go-isatty"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
	"github.com/vertextoedge/gdc-fetch/internal/util/ratelimiter"
)

// Mode selects how frames are drawn.
type Mode int

const (
	// ModeAuto picks ModeTerminal when the output is a TTY.
	ModeAuto Mode = iota
	// ModeTerminal redraws a single line in place.
	ModeTerminal
	// ModeLog prints one line per log interval.
	ModeLog
)

// Options configures the progress reporter.
type Options struct {
	// Output is where frames are written. Default: os.Stdout
	Output io.Writer

	// Disabled turns the reporter into a no-op.
	Disabled bool

	Mode Mode

	// Window is the trailing window rate and ETA are computed over. Default: 1s
	Window time.Duration

	// RefreshInterval throttles in-place redraws. Default: 200ms
	RefreshInterval time.Duration

	// LogInterval throttles non-terminal lines. Default: 10s
	LogInterval time.Duration

	Clock clock.Clock
}

type sample struct {
	at    time.Time
	bytes int64
}

// Reporter draws the progress of one transfer at a time.
// It is not safe for concurrent use.
type Reporter struct {
	out      io.Writer
	disabled bool
	terminal bool
	window   time.Duration
	clock    clock.Clock
	limiter  *ratelimiter.Limiter

	active  bool
	label   string
	errors  string
	total   int64
	current int64
	samples []sample
}

// NewReporter creates a progress reporter
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Window <= 0 {
		opts.Window = time.Second
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = 200 * time.Millisecond
	}
	if opts.LogInterval <= 0 {
		opts.LogInterval = 10 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}

	terminal := opts.Mode == ModeTerminal
	if opts.Mode == ModeAuto {
		terminal = isTerminal(opts.Output)
	}

	interval := opts.LogInterval
	if terminal {
		interval = opts.RefreshInterval
	}

	return &Reporter{
		out:      opts.Output,
		disabled: opts.Disabled,
		terminal: terminal,
		window:   opts.Window,
		clock:    opts.Clock,
		limiter:  ratelimiter.New(interval, opts.Clock),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Terminal reports whether frames are redrawn in place
func (r *Reporter) Terminal() bool {
	return r.terminal
}

// Start begins a streaming pass. errors is the transient failure histogram
// accumulated so far for the task.
func (r *Reporter) Start(label string, errors domain.ErrorHistogram, total, current int64) {
	r.active = true
	r.label = label
	r.errors = errors.String()
	r.total = total
	r.current = current
	r.samples = append(r.samples[:0], sample{at: r.clock.Now(), bytes: current})

	r.limiter.Reset()
	r.limiter.Allow()
	r.draw(false)
}

// Update records the new byte count and redraws when the limiter allows.
func (r *Reporter) Update(current int64) {
	if !r.active {
		return
	}
	r.current = current
	r.addSample(sample{at: r.clock.Now(), bytes: current})

	if allowed, _ := r.limiter.Allow(); allowed {
		r.draw(false)
	}
}

// Finish prints a final frame and ends the line, whether or not the
// transfer completed.
func (r *Reporter) Finish() {
	if !r.active {
		return
	}
	r.active = false
	r.limiter.Mark()
	r.draw(true)
}

// Frame returns the current snapshot.
func (r *Reporter) Frame() Frame {
	rate, eta := r.estimate()
	return Frame{
		Label:   r.label,
		Errors:  r.errors,
		Total:   r.total,
		Current: r.current,
		Rate:    rate,
		ETA:     eta,
	}
}

// addSample appends s and drops samples older than the window, keeping one
// sample at or before the window start as the rate baseline.
func (r *Reporter) addSample(s sample) {
	r.samples = append(r.samples, s)

	cutoff := s.at.Add(-r.window)
	drop := 0
	for drop+1 < len(r.samples) && !r.samples[drop+1].at.After(cutoff) {
		drop++
	}
	if drop > 0 {
		r.samples = append(r.samples[:0], r.samples[drop:]...)
	}
}

func (r *Reporter) estimate() (float64, time.Duration) {
	if len(r.samples) < 2 {
		return -1, -1
	}
	first, last := r.samples[0], r.samples[len(r.samples)-1]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return -1, -1
	}

	rate := float64(last.bytes-first.bytes) / elapsed
	if rate <= 0 || r.total < 0 {
		return rate, -1
	}
	remaining := r.total - r.current
	if remaining <= 0 {
		return rate, 0
	}
	return rate, time.Duration(float64(remaining) / rate * float64(time.Second))
}

func (r *Reporter) draw(final bool) {
	if r.disabled {
		return
	}
	line := Render(r.Frame())

	switch {
	case r.terminal && final:
		fmt.Fprintf(r.out, "\r%s\033[K\n", line)
	case r.terminal:
		fmt.Fprintf(r.out, "\r%s\033[K", line)
	default:
		fmt.Fprintln(r.out, line)
	}
}
