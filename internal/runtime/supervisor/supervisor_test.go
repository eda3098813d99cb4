package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "richard/pkg/logx"
)

func TestGoRecoversPanicAndReportsIdle(t *testing.T) {
	t.Parallel()

	var panics atomic.Int32
	s := New(context.Background(),
		WithLogger(logx.Nop()),
		WithPanicHook(func(string, any) { panics.Add(1) }),
	)

	release := s.Hold()
	s.Go0("boom", func(context.Context) { panic("kaput") })
	s.Go("fails", func(context.Context) error { return errors.New("nope") })

	select {
	case <-s.Idle():
		t.Fatal("idle reported while held")
	case <-time.After(50 * time.Millisecond):
	}
	release()

	select {
	case <-s.Idle():
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor never became idle")
	}
	if got := panics.Load(); got != 1 {
		t.Fatalf("panic hook calls = %d, want 1", got)
	}
	if s.Err() == nil {
		t.Fatal("expected first error to be recorded")
	}
	if s.Context().Err() != nil {
		t.Fatal("context canceled without cancel-on-error")
	}
}

func TestCancelOnError(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithCancelOnError(true))
	s.Go0("waiter", func(ctx context.Context) { <-ctx.Done() })
	s.Go("fails", func(context.Context) error { return errors.New("fatal") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want the goroutine error", err)
	}
}

func TestGoRestartRetriesUntilClean(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	s := New(context.Background())
	s.GoRestart("flaky", func(context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 5*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait = %v", err)
	}
	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
}

func TestStopCancelsContext(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	s.Go0("loop", func(ctx context.Context) { <-ctx.Done() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop = %v", err)
	}
	if c := s.Counters(); c.Active != 0 || c.Started != 1 {
		t.Fatalf("counters = %+v", c)
	}
}
