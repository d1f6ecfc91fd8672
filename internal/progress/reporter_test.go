package progress

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestReporter_LogMode(t *testing.T) {
	var buf bytes.Buffer
	clk := testclock.NewClock(epoch)
	r := NewReporter(Options{Output: &buf, Mode: ModeLog, Clock: clk})

	r.Start("index: 0, filename: a", domain.ErrorHistogram{"Timeout": 2}, 1000, 0)

	clk.Advance(500 * time.Millisecond)
	r.Update(500)
	clk.Advance(500 * time.Millisecond)
	r.Update(1000)

	frame := r.Frame()
	if frame.Rate != 1000 {
		t.Errorf("Rate = %v, want 1000", frame.Rate)
	}
	if frame.ETA != 0 {
		t.Errorf("ETA = %v, want 0", frame.ETA)
	}

	r.Finish()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want start and final frame:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "  0%") {
		t.Errorf("start line = %q", lines[0])
	}
	if !strings.Contains(lines[1], "Timeout:2") || !strings.Contains(lines[1], "100%") {
		t.Errorf("final line = %q", lines[1])
	}
}

func TestReporter_LogIntervalThrottles(t *testing.T) {
	var buf bytes.Buffer
	clk := testclock.NewClock(epoch)
	r := NewReporter(Options{Output: &buf, Mode: ModeLog, LogInterval: 10 * time.Second, Clock: clk})

	r.Start("label", nil, 100000, 0)
	for i := 1; i <= 25; i++ {
		clk.Advance(time.Second)
		r.Update(int64(i * 1000))
	}

	// start, t=10s, t=20s
	if n := strings.Count(buf.String(), "\n"); n != 3 {
		t.Errorf("got %d lines, want 3:\n%s", n, buf.String())
	}
}

func TestReporter_TrailingWindow(t *testing.T) {
	clk := testclock.NewClock(epoch)
	r := NewReporter(Options{Output: &bytes.Buffer{}, Mode: ModeLog, Window: time.Second, Clock: clk})

	r.Start("label", nil, 10000, 0)
	clk.Advance(time.Second)
	r.Update(1000)
	clk.Advance(time.Second)
	r.Update(5000)

	frame := r.Frame()
	if frame.Rate != 4000 {
		t.Errorf("Rate = %v, want 4000 over the last second only", frame.Rate)
	}
	if frame.ETA != 1250*time.Millisecond {
		t.Errorf("ETA = %v, want 1.25s", frame.ETA)
	}
}

func TestReporter_UnknownRateBeforeSamples(t *testing.T) {
	clk := testclock.NewClock(epoch)
	r := NewReporter(Options{Output: &bytes.Buffer{}, Mode: ModeLog, Clock: clk})

	r.Start("label", nil, 1000, 400)
	frame := r.Frame()
	if frame.Rate >= 0 || frame.ETA >= 0 {
		t.Errorf("expected unknown rate and ETA, got %v %v", frame.Rate, frame.ETA)
	}
	if frame.Current != 400 {
		t.Errorf("Current = %d, want 400", frame.Current)
	}
}

func TestReporter_TerminalMode(t *testing.T) {
	var buf bytes.Buffer
	clk := testclock.NewClock(epoch)
	r := NewReporter(Options{
		Output:          &buf,
		Mode:            ModeTerminal,
		RefreshInterval: 200 * time.Millisecond,
		Clock:           clk,
	})
	if !r.Terminal() {
		t.Fatal("expected terminal mode")
	}

	r.Start("label", nil, 1000, 0)
	clk.Advance(100 * time.Millisecond)
	r.Update(100) // throttled
	clk.Advance(200 * time.Millisecond)
	r.Update(300)
	r.Finish()

	out := buf.String()
	if n := strings.Count(out, "\r"); n != 3 {
		t.Errorf("got %d redraws, want 3: %q", n, out)
	}
	if strings.Count(out, "\n") != 1 || !strings.HasSuffix(out, "\n") {
		t.Errorf("final frame should end the line once: %q", out)
	}
}

func TestReporter_FinishIncomplete(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(Options{Output: &buf, Mode: ModeLog, Clock: testclock.NewClock(epoch)})

	r.Start("label", nil, 1000, 0)
	r.Update(400)
	buf.Reset()
	r.Finish()

	if !strings.Contains(buf.String(), " 40%") {
		t.Errorf("final frame = %q, want partial progress", buf.String())
	}

	// A second Finish is a no-op
	buf.Reset()
	r.Finish()
	if buf.Len() != 0 {
		t.Errorf("unexpected output after second Finish: %q", buf.String())
	}
}

func TestReporter_Disabled(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(Options{Output: &buf, Disabled: true, Clock: testclock.NewClock(epoch)})

	r.Start("label", nil, 1000, 0)
	r.Update(1000)
	r.Finish()

	if buf.Len() != 0 {
		t.Errorf("disabled reporter wrote %q", buf.String())
	}
}

func TestReporter_AutoModeOnBuffer(t *testing.T) {
	r := NewReporter(Options{Output: &bytes.Buffer{}})
	if r.Terminal() {
		t.Error("a buffer is not a terminal")
	}
}
