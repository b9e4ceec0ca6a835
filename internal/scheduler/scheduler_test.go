package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunFiresBothCycles(t *testing.T) {
	var decisions, broadcasts atomic.Int32
	s := New(
		func(ctx context.Context) error { decisions.Add(1); return nil }, 10*time.Millisecond,
		func(ctx context.Context) error { broadcasts.Add(1); return nil }, 10*time.Millisecond,
		testLogger(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = s.Run(ctx)

	if decisions.Load() == 0 {
		t.Error("decision cycle never fired")
	}
	if broadcasts.Load() == 0 {
		t.Error("broadcast cycle never fired")
	}
}

func TestSkipsFiringWhileCycleStillRunning(t *testing.T) {
	release := make(chan struct{})
	var started atomic.Int32
	var active atomic.Int32
	var maxActive atomic.Int32

	slow := func(ctx context.Context) error {
		started.Add(1)
		n := active.Add(1)
		for {
			prev := maxActive.Load()
			if n <= prev || maxActive.CompareAndSwap(prev, n) {
				break
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		active.Add(-1)
		return nil
	}
	noop := func(ctx context.Context) error { return nil }

	s := New(slow, 5*time.Millisecond, noop, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	// Let several ticks elapse while the first invocation is still blocked.
	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done
	close(release)

	if got := started.Load(); got != 1 {
		t.Errorf("cycle invocations = %d, want 1 while the first is still running", got)
	}
	if got := maxActive.Load(); got > 1 {
		t.Errorf("max concurrent invocations = %d, want at most 1", got)
	}
}

func TestIndependentCadences(t *testing.T) {
	// A slow decision cycle must not delay the broadcast cycle.
	release := make(chan struct{})
	var broadcasts atomic.Int32

	s := New(
		func(ctx context.Context) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		}, 5*time.Millisecond,
		func(ctx context.Context) error { broadcasts.Add(1); return nil }, 5*time.Millisecond,
		testLogger(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	cancel()
	<-done
	close(release)

	if broadcasts.Load() < 3 {
		t.Errorf("broadcast cycles = %d, want several despite blocked decision cycle", broadcasts.Load())
	}
}
