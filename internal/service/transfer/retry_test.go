package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vertextoedge/gdc-fetch/internal/domain"
	"github.com/vertextoedge/gdc-fetch/internal/port"
)

func TestRetrier_ClosesPreviousResponse(t *testing.T) {
	server := &fakeServer{data: makeData(100)}
	retrier := NewRetrier(server, RetryConfig{Delay: time.Millisecond}, zap.NewNop())
	task := newTask(100)
	state := domain.NewTransferState(task)

	req := Request{URL: task.URL, RangeStart: port.NoRange}
	first, err := retrier.Attempt(context.Background(), task, state, req)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}
	second, err := retrier.Attempt(context.Background(), task, state, req)
	if err != nil {
		t.Fatalf("Attempt: %v", err)
	}

	if first == second {
		t.Fatal("expected a new response")
	}
	if state.Stream != second {
		t.Error("state does not hold the latest response")
	}
	if server.opened != 2 || server.live != 1 {
		t.Errorf("opened=%d live=%d, want 2 and 1", server.opened, server.live)
	}

	state.CloseStream()
	if server.live != 0 {
		t.Errorf("live = %d after CloseStream", server.live)
	}
}

func TestRetrier_RecordsEachTransientFailure(t *testing.T) {
	tests := []struct {
		name   string
		script []step
		want   map[string]int
	}{
		{
			name: "no failures",
			want: map[string]int{},
		},
		{
			name:   "single failure",
			script: []step{{err: transient("DNSError")}},
			want:   map[string]int{"DNSError": 1},
		},
		{
			name: "mixed kinds",
			script: []step{
				{err: transient("Timeout")},
				{err: transient("ConnectionRefused")},
				{err: transient("Timeout")},
			},
			want: map[string]int{"Timeout": 2, "ConnectionRefused": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := &fakeServer{data: makeData(10), script: tt.script}
			retrier := NewRetrier(server, RetryConfig{Delay: time.Millisecond}, zap.NewNop())
			task := newTask(10)
			state := domain.NewTransferState(task)

			if _, err := retrier.Attempt(context.Background(), task, state, Request{URL: task.URL, RangeStart: port.NoRange}); err != nil {
				t.Fatalf("Attempt: %v", err)
			}

			if len(state.Errors) != len(tt.want) {
				t.Fatalf("histogram = %v, want %v", state.Errors, tt.want)
			}
			for kind, n := range tt.want {
				if state.Errors[kind] != n {
					t.Errorf("histogram[%s] = %d, want %d", kind, state.Errors[kind], n)
				}
			}
			if len(server.requests) != len(tt.script)+1 {
				t.Errorf("requests = %d, want %d", len(server.requests), len(tt.script)+1)
			}
		})
	}
}

func TestRetrier_MaxAttempts(t *testing.T) {
	script := make([]step, 10)
	for i := range script {
		script[i] = step{err: transient("HTTP503")}
	}
	server := &fakeServer{data: makeData(10), script: script}
	retrier := NewRetrier(server, RetryConfig{Delay: time.Millisecond, MaxAttempts: 3}, zap.NewNop())
	task := newTask(10)
	state := domain.NewTransferState(task)

	_, err := retrier.Attempt(context.Background(), task, state, Request{URL: task.URL, RangeStart: port.NoRange})
	if err == nil {
		t.Fatal("expected error after max attempts")
	}
	if domain.TransientKind(err) != "HTTP503" {
		t.Errorf("error = %v, want the last transient failure", err)
	}
	if len(server.requests) != 3 {
		t.Errorf("requests = %d, want 3", len(server.requests))
	}
	if state.Stream != nil {
		t.Error("no response should be live")
	}
}

func TestRetrier_FatalErrorStopsImmediately(t *testing.T) {
	fatal := errors.New("disk on fire")
	server := &fakeServer{data: makeData(10), script: []step{{err: fatal}}}
	retrier := NewRetrier(server, RetryConfig{Delay: time.Millisecond}, zap.NewNop())
	task := newTask(10)
	state := domain.NewTransferState(task)

	_, err := retrier.Attempt(context.Background(), task, state, Request{URL: task.URL, RangeStart: port.NoRange})
	if !errors.Is(err, fatal) {
		t.Fatalf("error = %v, want %v", err, fatal)
	}
	if len(server.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(server.requests))
	}
	if state.Errors.Total() != 0 {
		t.Errorf("fatal error was counted: %v", state.Errors)
	}
}

func TestRetrier_Wait(t *testing.T) {
	retrier := NewRetrier(&fakeServer{}, RetryConfig{Delay: time.Millisecond}, nil)
	if err := retrier.Wait(context.Background()); err != nil {
		t.Errorf("Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := NewRetrier(&fakeServer{}, RetryConfig{Delay: time.Hour}, nil)
	if err := slow.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait on cancelled context = %v", err)
	}

	if got := NewRetrier(&fakeServer{}, RetryConfig{}, nil).Delay(); got != DefaultRetryDelay {
		t.Errorf("default delay = %v, want %v", got, DefaultRetryDelay)
	}
}
