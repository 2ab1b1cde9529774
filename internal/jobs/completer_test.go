package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSweeper struct {
	calls atomic.Int64
	err   error
}

func (f *fakeSweeper) CompleteReleased(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 0, f.err
}

func TestNewCompleterValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewCompleter(nil, time.Minute, nil); err == nil {
		t.Fatal("expected error for nil sweeper")
	}
	if _, err := NewCompleter(&fakeSweeper{}, 0, nil); err == nil {
		t.Fatal("expected error for zero interval")
	}
	if _, err := NewCompleter(&fakeSweeper{}, time.Minute, nil); err != nil {
		t.Fatalf("NewCompleter() error = %v", err)
	}
}

func TestRunSweepsImmediatelyAndOnTicks(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{}
	completer, err := NewCompleter(sweeper, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewCompleter() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		completer.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d sweeps before deadline", sweeper.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunKeepsGoingAfterSweepErrors(t *testing.T) {
	t.Parallel()

	sweeper := &fakeSweeper{err: errors.New("db down")}
	completer, err := NewCompleter(sweeper, 10*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewCompleter() error = %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		completer.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sweeper.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("sweep did not retry after an error")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
