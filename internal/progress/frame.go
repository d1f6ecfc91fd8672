package progress

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const barWidth = 30

// Frame is one snapshot of a transfer.
type Frame struct {
	Label   string
	Errors  string
	Total   int64
	Current int64

	// Rate is bytes per second; negative when not yet known.
	Rate float64

	// ETA is the estimated time left; negative when not yet known.
	ETA time.Duration
}

// Percent returns the completed percentage, clamped to [0, 100].
func (f Frame) Percent() float64 {
	if f.Total <= 0 {
		if f.Total == 0 {
			return 100
		}
		return 0
	}
	p := float64(f.Current) / float64(f.Total) * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

// Render formats f as a single line without a trailing newline.
func Render(f Frame) string {
	var b strings.Builder

	b.WriteString(f.Label)
	if f.Errors != "" {
		b.WriteString(" ")
		b.WriteString(f.Errors)
	}
	fmt.Fprintf(&b, " %3.0f%% %s %s %s (%s/%s)",
		f.Percent(),
		renderBar(f.Percent()),
		renderETA(f.ETA),
		renderRate(f.Rate),
		humanize.IBytes(uint64(max(f.Current, 0))),
		humanize.IBytes(uint64(max(f.Total, 0))),
	)

	return b.String()
}

func renderBar(percent float64) string {
	filled := int(percent / 100 * barWidth)
	if filled >= barWidth {
		return "[" + strings.Repeat("=", barWidth) + "]"
	}
	if filled <= 0 {
		return "[" + strings.Repeat(" ", barWidth) + "]"
	}
	return "[" + strings.Repeat("=", filled-1) + ">" + strings.Repeat(" ", barWidth-filled) + "]"
}

func renderETA(eta time.Duration) string {
	if eta < 0 {
		return "ETA --:--:--"
	}
	return "ETA " + formatClock(eta)
}

func renderRate(rate float64) string {
	if rate < 0 {
		return "--- B/s"
	}
	return humanize.IBytes(uint64(rate)) + "/s"
}

// formatClock formats d as h:mm:ss.
func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
