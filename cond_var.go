package slimsync

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/llxisdsh/slimsync/internal/goid"
	"github.com/llxisdsh/slimsync/internal/opt"
)

// CondVar is a condition variable in the style of the Win32
// CONDITION_VARIABLE, usable with any sync.Locker: a sync.Mutex, an SRWLock,
// or an SRWLock in shared mode through SRWLock.RLocker.
//
// The locker is an argument of each wait rather than a field, so one CondVar
// may be used with different lockers over its life and the zero value is
// ready to use.
//
// Waits are Mesa style: re-check the predicate in a loop.
//
//	mu.Lock()
//	for !ready {
//		cv.Wait(&mu)
//	}
//	mu.Unlock()
//
// State word:
//
//	0:                  no waiters
//	index << 5:         arena index of the newest waiter entry
//	locked:             a goroutine is editing the waiter list; it holds the
//	                    real head until it stores it back (debug builds also
//	                    store its goroutine id above bit 5)
type CondVar struct {
	_     noCopy
	state atomic.Uintptr
}

const (
	cvLocked = 1
	cvShift  = 5
)

// cvEntry is one goroutine blocked in a wait. Every field is guarded by the
// lock on the owning CondVar word.
type cvEntry struct {
	next uint32
	prev uint32
	// last is the oldest entry; only meaningful on the head.
	last     uint32
	signaled bool
	// wake receives one value per signal. It is sent to while the word is
	// locked, so a waiter that holds the lock and sees signaled can drain it
	// without blocking.
	wake chan struct{}
}

var cvEntries arena[cvEntry]

// cvToken is the value stored in a locked word. Debug builds tag it with the
// goroutine id so unlock can check ownership.
func cvToken() uintptr {
	if !opt.Assert_ {
		return cvLocked
	}
	return uintptr(goid.Get())<<cvShift | cvLocked
}

// lock takes the waiter list and returns its head.
func (c *CondVar) lock(token uintptr) uint32 {
	var spins int
	for {
		s := c.state.Load()
		if s&cvLocked == 0 && c.state.CompareAndSwap(s, token) {
			return uint32(s >> cvShift)
		}
		delay(&spins)
	}
}

func (c *CondVar) unlock(token uintptr, head uint32) {
	if opt.Assert_ && c.state.Load() != token {
		panic("slimsync: CondVar list released by a goroutine that does not hold it")
	}
	c.state.Store(uintptr(head) << cvShift)
}

// Wait atomically unlocks l and suspends the calling goroutine until a Signal
// or Broadcast wakes it, then locks l again before returning.
func (c *CondVar) Wait(l sync.Locker) {
	c.wait(l, nil, nil)
}

// WaitTimeout is like Wait but gives up after d. It reports whether the
// goroutine was woken by a Signal or Broadcast; false means the timeout
// expired. In both cases l is held again on return.
func (c *CondVar) WaitTimeout(l sync.Locker, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	return c.wait(l, t.C, nil)
}

// WaitContext is like Wait but also returns when ctx is done, with ctx.Err().
// A wake that races with cancellation is reported as a wake (nil error).
func (c *CondVar) WaitContext(ctx context.Context, l sync.Locker) error {
	if c.wait(l, nil, ctx.Done()) {
		return nil
	}
	return ctx.Err()
}

func (c *CondVar) wait(l sync.Locker, expire <-chan time.Time, cancel <-chan struct{}) bool {
	token := cvToken()
	ei, e := cvEntries.alloc()
	if e.wake == nil {
		e.wake = make(chan struct{}, 1)
	}

	// Publish the entry before releasing l, so a waker that takes l after
	// us cannot miss it.
	head := c.lock(token)
	e.signaled = false
	e.prev = 0
	e.next = head
	if head != 0 {
		h := cvEntries.at(head)
		h.prev = ei
		e.last = h.last
	} else {
		e.last = ei
	}
	c.unlock(token, ei)
	l.Unlock()

	woken := true
	select {
	case <-e.wake:
	case <-expire:
		woken = false
	case <-cancel:
		woken = false
	}

	l.Lock()
	head = c.lock(token)
	if !woken && e.signaled {
		<-e.wake
		woken = true
	}
	head = c.unlink(head, ei, e)
	c.unlock(token, head)
	cvEntries.release(ei)
	return woken
}

// unlink removes entry ei from the list and returns the new head.
func (c *CondVar) unlink(head, ei uint32, e *cvEntry) uint32 {
	if e.prev == 0 {
		if opt.Assert_ && head != ei {
			panic("slimsync: corrupt CondVar waiter list")
		}
		if e.next != 0 {
			n := cvEntries.at(e.next)
			n.prev = 0
			n.last = e.last
		}
		return e.next
	}
	cvEntries.at(e.prev).next = e.next
	if e.next != 0 {
		cvEntries.at(e.next).prev = e.prev
	} else {
		cvEntries.at(head).last = e.prev
	}
	return head
}

func (e *cvEntry) signal() {
	e.signaled = true
	e.wake <- struct{}{}
}

// Signal wakes the longest-waiting goroutine that has not been woken yet, if
// there is one.
func (c *CondVar) Signal() {
	if c.state.Load() == 0 {
		return
	}
	token := cvToken()
	head := c.lock(token)
	if head != 0 {
		for i := cvEntries.at(head).last; i != 0; {
			e := cvEntries.at(i)
			if !e.signaled {
				e.signal()
				break
			}
			i = e.prev
		}
	}
	c.unlock(token, head)
}

// Broadcast wakes all goroutines waiting on c.
func (c *CondVar) Broadcast() {
	if c.state.Load() == 0 {
		return
	}
	token := cvToken()
	head := c.lock(token)
	for i := head; i != 0; {
		e := cvEntries.at(i)
		if !e.signaled {
			e.signal()
		}
		i = e.next
	}
	c.unlock(token, head)
}
