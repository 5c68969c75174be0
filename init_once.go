package slimsync

import (
	"bytes"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/llxisdsh/slimsync/internal/opt"
)

var (
	// ErrNotPending is returned by Complete when no initialization is in
	// progress in the requested mode.
	ErrNotPending = errors.New("slimsync: no initialization in progress")
	// ErrAlreadyInitialized is returned by an asynchronous Complete that lost
	// the race to another one.
	ErrAlreadyInitialized = errors.New("slimsync: already initialized")
	// ErrInitMode is returned when synchronous and asynchronous
	// initialization are mixed on one InitOnce.
	ErrInitMode = errors.New("slimsync: synchronous and asynchronous initialization mixed")
)

// InitOnce runs an initializer exactly once and keeps its result, with the
// semantics of the Win32 INIT_ONCE.
//
// Synchronous mode (Do, or BeginInitialize(false)) elects one goroutine to
// run the initializer while the others block. If the initializer fails the
// cell goes back to its initial state: one of the blocked goroutines, or a
// later caller, tries again.
//
// Asynchronous mode (BeginInitialize(true)) lets every caller run its own
// initializer concurrently; the first Complete publishes its value and the
// rest are told they lost.
//
// It is zero-value usable.
type InitOnce[T any] struct {
	_ noCopy
	// state 64-bit:
	//   bits 0-1: onceIdle, onceRunning, onceDone or onceAsync
	//   bit 2:    an asynchronous winner is publishing its value
	//   bits 3+:  goroutines parked on sema waiting for a synchronous run
	state atomic.Uint64
	sema  opt.Sema
	value T
}

const (
	onceIdle    = 0
	onceRunning = 1
	onceDone    = 2
	onceAsync   = 3
	onceMask    = 3

	oncePublishing = 1 << 2
	onceOneWaiter  = 1 << 3
)

// Do calls fn if and only if no call to fn has succeeded yet, and returns the
// value of the successful call. Concurrent callers block until the running
// call finishes. If fn returns an error the error is returned to its caller
// only, and the next caller (possibly one that was blocked) calls its own fn.
//
// If fn panics, the InitOnce is reset as for an error and the panic is
// propagated as a *PanicError.
func (o *InitOnce[T]) Do(fn func() (T, error)) (T, error) {
	if o.state.Load() == onceDone {
		return o.value, nil
	}
	pending, v, err := o.BeginInitialize(false)
	if err != nil || !pending {
		return v, err
	}
	return o.run(fn)
}

func (o *InitOnce[T]) run(fn func() (T, error)) (v T, err error) {
	normalReturn := false
	defer func() {
		if normalReturn {
			return
		}
		// fn panicked or called runtime.Goexit.
		r := recover()
		_ = o.Complete(false, true, *new(T))
		if r != nil {
			panic(newPanicError(r))
		}
	}()

	v, err = fn()
	normalReturn = true
	if err != nil {
		_ = o.Complete(false, true, *new(T))
		return *new(T), err
	}
	if err = o.Complete(false, false, v); err != nil {
		return *new(T), err
	}
	return v, nil
}

// BeginInitialize starts an initialization.
//
// In synchronous mode the first caller gets pending=true and must call
// Complete(false, ...); later callers block until then. In asynchronous mode
// every caller gets pending=true until one of them completes. Once
// initialized, pending is false and v is the stored value.
//
// Beginning in one mode while a run in the other mode is in progress returns
// ErrInitMode.
func (o *InitOnce[T]) BeginInitialize(async bool) (pending bool, v T, err error) {
	var spins int
	for {
		s := o.state.Load()
		switch s & onceMask {
		case onceIdle:
			next := uint64(onceRunning)
			if async {
				next = onceAsync
			}
			if o.state.CompareAndSwap(s, next) {
				return true, v, nil
			}
		case onceDone:
			return false, o.value, nil
		case onceAsync:
			if !async {
				return false, v, ErrInitMode
			}
			if s&oncePublishing == 0 {
				return true, v, nil
			}
			// A winner is storing its value; it turns into onceDone next.
			delay(&spins)
		case onceRunning:
			if async {
				return false, v, ErrInitMode
			}
			if o.state.CompareAndSwap(s, s+onceOneWaiter) {
				o.sema.Acquire()
			}
		}
	}
}

// Complete ends an initialization started with BeginInitialize.
//
// With failed set (synchronous mode only) the InitOnce returns to its initial
// state and blocked callers retry. Otherwise v becomes the stored value.
// An asynchronous Complete that finds the value already stored returns
// ErrAlreadyInitialized; the stored value is kept.
func (o *InitOnce[T]) Complete(async, failed bool, v T) error {
	if async {
		if failed {
			return ErrInitMode
		}
		return o.completeAsync(v)
	}
	for {
		s := o.state.Load()
		if s&onceMask != onceRunning {
			return fmt.Errorf("complete synchronous: %w", ErrNotPending)
		}
		next := uint64(onceIdle)
		if !failed {
			// Only the elected goroutine is in this branch.
			o.value = v
			next = onceDone
		}
		if o.state.CompareAndSwap(s, next) {
			for range s / onceOneWaiter {
				o.sema.Release()
			}
			return nil
		}
	}
}

func (o *InitOnce[T]) completeAsync(v T) error {
	var spins int
	for {
		s := o.state.Load()
		switch {
		case s == onceDone:
			return ErrAlreadyInitialized
		case s == onceAsync:
			if o.state.CompareAndSwap(onceAsync, onceAsync|oncePublishing) {
				o.value = v
				o.state.Store(onceDone)
				return nil
			}
		case s == onceAsync|oncePublishing:
			delay(&spins)
		default:
			return fmt.Errorf("complete asynchronous: %w", ErrNotPending)
		}
	}
}

// Load returns the stored value and true if initialization has completed.
// It never blocks or starts an initialization.
func (o *InitOnce[T]) Load() (T, bool) {
	if o.state.Load() == onceDone {
		return o.value, true
	}
	var zero T
	return zero, false
}

// -------------------------
// Panic handling
// -------------------------

// PanicError is an arbitrary value recovered from a panic in an initializer,
// with the stack trace of the panicking goroutine.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements error interface.
func (p *PanicError) Error() string {
	return fmt.Sprintf("%v\n\n%s", p.Value, p.Stack)
}

// Unwrap returns the underlying error value, if any.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(v any) error {
	stack := debug.Stack()
	// Trim first line "goroutine N [status]:" which can be misleading.
	if line := bytes.IndexByte(stack, '\n'); line >= 0 {
		stack = stack[line+1:]
	}
	return &PanicError{Value: v, Stack: stack}
}
