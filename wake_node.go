package slimsync

import (
	"sync/atomic"
	"unsafe"

	"github.com/llxisdsh/slimsync/internal/opt"
)

// wakeNode is the parking spot of one goroutine blocked in Lock or RLock.
//
// state moves idle -> signaled when the releaser gets there first, or
// idle -> parked -> signaled when the waiter gave up spinning. The semaphore
// is released only in the second case, so every Release is matched by exactly
// one Acquire and a recycled node never carries a stale permit.
type wakeNode struct {
	wakeNodeCore
	_ [opt.Padding_ * ((opt.CacheLineSize_ - unsafe.Sizeof(wakeNodeCore{})%opt.CacheLineSize_) % opt.CacheLineSize_)]byte
}

type wakeNodeCore struct {
	state atomic.Uint32
	sema  opt.Sema
	// next links the readers of one shared wait block; guarded by the
	// contention bit of the lock the node is queued on.
	next uint32
}

const (
	wakeIdle uint32 = iota
	wakeSignaled
	wakeParked
)

var wakeNodes arena[wakeNode]

func newWakeNode() (uint32, *wakeNode) {
	i, n := wakeNodes.alloc()
	n.next = 0
	n.state.Store(wakeIdle)
	return i, n
}

// park blocks until signal is called. The node belongs to the caller and is
// released by it afterwards.
func (n *wakeNode) park() {
	if !opt.Race_ {
		var spins int
		for trySpin(&spins) {
			if n.state.Load() == wakeSignaled {
				return
			}
		}
	}
	if n.state.CompareAndSwap(wakeIdle, wakeParked) {
		n.sema.Acquire()
	}
	// The load pairs with the Swap in signal; the semaphore alone is
	// invisible to the race detector.
	if s := n.state.Load(); opt.Assert_ && s != wakeSignaled {
		panic("slimsync: wait node woken without a signal")
	}
}

// signal wakes the owner of n. The owner may recycle n as soon as the state
// changes, so nothing is read from n after the swap unless the owner is
// known to be parked.
func (n *wakeNode) signal() {
	if n.state.Swap(wakeSignaled) == wakeParked {
		n.sema.Release()
	}
}

// signalChain wakes every node linked from i.
func signalChain(i uint32) {
	for i != 0 {
		n := wakeNodes.at(i)
		next := n.next
		n.signal()
		i = next
	}
}
