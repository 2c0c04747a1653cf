package agent

import (
	"context"
	"runtime"
	"sync"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"

	"main/pkg/exception"
)

// Step is the explicit result of one task iteration.
type Step uint8

const (
	// StepContinue loops the task again.
	StepContinue Step = iota
	// StepStop ends the task cleanly.
	StepStop
)

// TaskFunc is one iteration of a supervised long-lived loop. Returning an
// error retries the loop unless the error is fatal; see RunTask.
type TaskFunc func(ctx context.Context) (Step, error)

// BlockingFunc is one iteration of a loop pinned to its own OS thread,
// for operations that block in syscalls (socket accept/read).
type BlockingFunc func() (Step, error)

// Agent supervises a named set of long-lived tasks. Tasks fail
// independently: a recoverable error in one never terminates its
// siblings. A fatal error, or an external interrupt, tears everything
// down through Shutdown.
type Agent struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	flags []*Flag

	shutdownOnce sync.Once
}

// New creates an agent whose lifetime is bounded by parent. Cancelling
// parent (e.g. via signal.NotifyContext) triggers Shutdown.
func New(parent context.Context) *Agent {
	ctx, cancel := context.WithCancel(parent)
	a := &Agent{ctx: ctx, cancel: cancel}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		<-ctx.Done()
		a.Shutdown()
	}()
	return a
}

// Context returns the agent's root context.
func (a *Agent) Context() context.Context {
	return a.ctx
}

// NewFlag creates a flag that Shutdown will set.
func (a *Agent) NewFlag() *Flag {
	f := NewFlag()
	a.mu.Lock()
	a.flags = append(a.flags, f)
	a.mu.Unlock()
	return f
}

// RunTask schedules op to run repeatedly until it returns StepStop, the
// agent shuts down, or op fails fatally. Recoverable errors and panics
// are logged and the loop retried from the top.
func (a *Agent) RunTask(name string, op TaskFunc) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for {
			select {
			case <-a.ctx.Done():
				return
			default:
			}

			step, err := a.step(name, op)
			if err != nil {
				if exception.IsFatal(err) {
					logs.Errorf("task %s failed fatally: %+v", name, err)
					a.Shutdown()
					return
				}
				logs.Errorf("task %s: %+v", name, err)
				continue
			}
			if step == StepStop {
				return
			}
		}
	}()
}

// RunBlocking runs op's loop on a dedicated OS thread. The loop must be
// unblocked externally on shutdown (close the socket, set a flag); the
// supervisor only checks for cancellation between iterations.
func (a *Agent) RunBlocking(name string, op BlockingFunc) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		for {
			select {
			case <-a.ctx.Done():
				return
			default:
			}

			step, err := a.step(name, func(context.Context) (Step, error) { return op() })
			if err != nil {
				if exception.IsFatal(err) {
					logs.Errorf("thread %s failed fatally: %+v", name, err)
					a.Shutdown()
					return
				}
				logs.Errorf("thread %s: %+v", name, err)
				continue
			}
			if step == StepStop {
				return
			}
		}
	}()
}

func (a *Agent) step(name string, op TaskFunc) (step Step, err error) {
	defer func() {
		if r := recover(); r != nil {
			step = StepContinue
			err = errors.Errorf("task %s panicked: %v", name, r)
		}
	}()
	return op(a.ctx)
}

// Shutdown cancels every task and sets every registered flag so blocked
// OS-thread loops unblock and exit. Idempotent.
func (a *Agent) Shutdown() {
	a.shutdownOnce.Do(func() {
		logs.Info("agent shutting down")
		a.cancel()
		a.mu.Lock()
		flags := a.flags
		a.mu.Unlock()
		for _, f := range flags {
			f.Set()
		}
	})
}

// Wait blocks until every task has exited.
func (a *Agent) Wait() {
	a.wg.Wait()
}
