package agent

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yanun0323/errors"

	"main/pkg/exception"
)

func TestRunTaskRetriesRecoverableErrors(t *testing.T) {
	a := New(context.Background())
	defer func() {
		a.Shutdown()
		a.Wait()
	}()

	var attempts int32
	done := make(chan struct{})
	a.RunTask("flaky", func(ctx context.Context) (Step, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return StepContinue, errors.New("transient")
		}
		close(done)
		return StepStop, nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("task did not retry to completion, attempts=%d", atomic.LoadInt32(&attempts))
	}
}

func TestRunTaskFailureDoesNotKillSiblings(t *testing.T) {
	a := New(context.Background())
	defer func() {
		a.Shutdown()
		a.Wait()
	}()

	a.RunTask("broken", func(ctx context.Context) (Step, error) {
		return StepStop, nil
	})
	a.RunTask("panicky", func(ctx context.Context) (Step, error) {
		select {
		case <-ctx.Done():
			return StepStop, nil
		default:
			panic("boom")
		}
	})

	var alive int32
	a.RunTask("sibling", func(ctx context.Context) (Step, error) {
		atomic.AddInt32(&alive, 1)
		select {
		case <-ctx.Done():
			return StepStop, nil
		case <-time.After(10 * time.Millisecond):
			return StepContinue, nil
		}
	})

	time.Sleep(100 * time.Millisecond)
	if atomic.LoadInt32(&alive) < 2 {
		t.Fatalf("sibling task stopped iterating")
	}
}

func TestFatalErrorTriggersShutdown(t *testing.T) {
	a := New(context.Background())

	a.RunTask("doomed", func(ctx context.Context) (Step, error) {
		return StepContinue, exception.Fatal(errors.New("broken invariant"))
	})

	waitDone := make(chan struct{})
	go func() {
		a.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(time.Second):
		t.Fatalf("fatal error did not shut the agent down")
	}
	select {
	case <-a.Context().Done():
	default:
		t.Fatalf("agent context not cancelled")
	}
}

func TestShutdownSetsFlags(t *testing.T) {
	a := New(context.Background())
	f := a.NewFlag()

	if f.IsSet() {
		t.Fatalf("flag set before shutdown")
	}
	a.Shutdown()
	a.Shutdown() // idempotent
	a.Wait()
	if !f.IsSet() {
		t.Fatalf("flag not set by shutdown")
	}
}

func TestFlagSetIdempotentAndUnblocksWaiters(t *testing.T) {
	f := NewFlag()

	released := make(chan struct{})
	go func() {
		f.Wait()
		close(released)
	}()

	f.Set()
	f.Set()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatalf("Wait did not unblock")
	}
	select {
	case <-f.Done():
	default:
		t.Fatalf("Done channel not closed")
	}
}

func TestParentCancelPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := New(ctx)

	var stopped int32
	a.RunTask("loop", func(ctx context.Context) (Step, error) {
		select {
		case <-ctx.Done():
			atomic.StoreInt32(&stopped, 1)
			return StepStop, nil
		case <-time.After(10 * time.Millisecond):
			return StepContinue, nil
		}
	})

	cancel()
	a.Wait()
	if atomic.LoadInt32(&stopped) != 1 && a.Context().Err() == nil {
		t.Fatalf("parent cancellation did not stop the agent")
	}
}
