package agent

import "sync"

// Flag is a one-way boolean latch: a waiter blocks until it is set, and
// setting it is idempotent. Blocking OS-thread loops select on Done to
// learn about shutdown without sharing mutable state with the scheduler.
type Flag struct {
	once sync.Once
	ch   chan struct{}
}

// NewFlag creates an unset flag.
func NewFlag() *Flag {
	return &Flag{ch: make(chan struct{})}
}

// Set latches the flag. Safe to call from any goroutine, any number of
// times.
func (f *Flag) Set() {
	f.once.Do(func() {
		close(f.ch)
	})
}

// IsSet reports whether the flag has been set.
func (f *Flag) IsSet() bool {
	select {
	case <-f.ch:
		return true
	default:
		return false
	}
}

// Wait blocks until the flag is set.
func (f *Flag) Wait() {
	<-f.ch
}

// Done returns a channel closed when the flag is set, for use in select.
func (f *Flag) Done() <-chan struct{} {
	return f.ch
}
