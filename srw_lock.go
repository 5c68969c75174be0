package slimsync

import (
	"sync"
	"sync/atomic"

	"github.com/llxisdsh/slimsync/internal/opt"
)

// SRWLock is a slim reader/writer lock backed by a single uintptr.
//
// It has the semantics of the Win32 SRWLOCK: any number of shared holders or
// one exclusive holder, no recursion, no owner tracking. Unlike sync.RWMutex,
// blocked goroutines are served strictly in arrival order: a reader that
// arrives while a writer is queued waits behind that writer, and readers
// queued back to back share a single place in line.
//
// It is zero-value usable.
//
// Word layout:
//
//	bit 0:  owned
//	bit 1:  contended (a wait chain exists)
//	bit 2:  shared (current holders are readers)
//	bit 3:  contention bit, serializes edits of the wait chain
//	bit 4+: shared holder count, or the arena index of the head wait block
//	        when contended
//
// When contended with shared holders, the holder count lives in the head
// block, which is then always exclusive. A release hands ownership directly
// to the head block, so a chain never exists without an owner.
type SRWLock struct {
	_     noCopy
	state atomic.Uintptr
}

const (
	srwOwned     = 1 << 0
	srwContended = 1 << 1
	srwShared    = 1 << 2
	srwSpin      = 1 << 3
	srwShift     = 4
	srwOneShared = 1 << srwShift
)

// waitBlock is one place in the wait chain: a single writer, or every reader
// that queued while it was the tail. All fields are guarded by the contention
// bit of the lock the block is linked into.
type waitBlock struct {
	next uint32
	// last is the tail of the chain; only meaningful on the head.
	last      uint32
	exclusive bool
	// sharedCount is the number of shared holders still to leave before the
	// head may run; only meaningful on the head.
	sharedCount uintptr
	// readers is the length of the wakeHead list of a shared block.
	readers  uintptr
	wakeHead uint32
	wakeTail uint32
}

var waitBlocks arena[waitBlock]

func newWaitBlock(exclusive bool, node uint32) (uint32, *waitBlock) {
	i, b := waitBlocks.alloc()
	*b = waitBlock{
		last:      i,
		exclusive: exclusive,
		readers:   1,
		wakeHead:  node,
		wakeTail:  node,
	}
	return i, b
}

//go:nosplit
func srwHead(s uintptr) uint32 {
	return uint32(s >> srwShift)
}

// Lock acquires the lock for exclusive use, blocking until it is available.
func (l *SRWLock) Lock() {
	if l.state.CompareAndSwap(0, srwOwned) {
		return
	}
	l.lockSlow()
}

func (l *SRWLock) lockSlow() {
	ni, n := newWakeNode()
	bi, b := newWaitBlock(true, ni)
	var spins int
	for {
		s := l.state.Load()
		switch {
		case s == 0:
			if l.state.CompareAndSwap(0, srwOwned) {
				waitBlocks.release(bi)
				wakeNodes.release(ni)
				return
			}
		case s&srwContended == 0:
			// First waiter: the block becomes the head and inherits the
			// count of any shared holders.
			b.sharedCount = 0
			if s&srwShared != 0 {
				b.sharedCount = s >> srwShift
			}
			if l.state.CompareAndSwap(s, srwOwned|srwContended|s&srwShared|uintptr(bi)<<srwShift) {
				n.park()
				wakeNodes.release(ni)
				return
			}
		case s&srwSpin == 0:
			if l.state.CompareAndSwap(s, s|srwSpin) {
				b.sharedCount = 0
				head := waitBlocks.at(srwHead(s))
				waitBlocks.at(head.last).next = bi
				head.last = bi
				l.state.And(^uintptr(srwSpin))
				n.park()
				wakeNodes.release(ni)
				return
			}
		}
		delay(&spins)
	}
}

// TryLock tries to acquire the lock for exclusive use without blocking.
func (l *SRWLock) TryLock() bool {
	return l.state.CompareAndSwap(0, srwOwned)
}

// Unlock releases an exclusive hold.
// Releasing a lock not held exclusively corrupts it; builds tagged
// slimsync_debug panic instead.
func (l *SRWLock) Unlock() {
	if l.state.CompareAndSwap(srwOwned, 0) {
		return
	}
	l.unlockSlow()
}

func (l *SRWLock) unlockSlow() {
	var spins int
	for {
		s := l.state.Load()
		if opt.Assert_ && (s&srwOwned == 0 || s&srwShared != 0) {
			panic("slimsync: Unlock of SRWLock not held exclusively")
		}
		if s&srwContended == 0 {
			if l.state.CompareAndSwap(s, 0) {
				return
			}
		} else if s&srwSpin == 0 && l.state.CompareAndSwap(s, s|srwSpin) {
			l.handoff(s)
			return
		}
		delay(&spins)
	}
}

// RLock acquires the lock for shared use, blocking while a writer holds it or
// is queued.
func (l *SRWLock) RLock() {
	if l.state.CompareAndSwap(0, srwOwned|srwShared|srwOneShared) {
		return
	}
	l.rlockSlow()
}

func (l *SRWLock) rlockSlow() {
	var (
		ni, bi uint32
		n      *wakeNode
		b      *waitBlock
		spins  int
	)
	// Nodes are only needed once the lock turns out to be contended, and are
	// taken before the contention bit so the section under it stays O(1).
	prepare := func() {
		if ni == 0 {
			ni, n = newWakeNode()
		}
		if bi == 0 {
			bi, b = newWaitBlock(false, ni)
		}
	}
	done := func(blockUsed bool) {
		if bi != 0 && !blockUsed {
			waitBlocks.release(bi)
		}
		if ni != 0 {
			wakeNodes.release(ni)
		}
	}
	for {
		s := l.state.Load()
		switch {
		case s == 0:
			if l.state.CompareAndSwap(0, srwOwned|srwShared|srwOneShared) {
				done(false)
				return
			}
		case s&srwContended == 0 && s&srwShared != 0:
			if l.state.CompareAndSwap(s, s+srwOneShared) {
				done(false)
				return
			}
		case s&srwContended == 0:
			// A writer holds the lock and nobody waits yet.
			prepare()
			if l.state.CompareAndSwap(s, srwOwned|srwContended|uintptr(bi)<<srwShift) {
				n.park()
				done(true)
				return
			}
		case s&srwSpin == 0:
			prepare()
			if l.state.CompareAndSwap(s, s|srwSpin) {
				used := l.enqueueShared(s, ni, bi, b)
				l.state.And(^uintptr(srwSpin))
				n.park()
				done(used)
				return
			}
		}
		delay(&spins)
	}
}

// enqueueShared queues reader node ni behind the current tail: it joins the
// tail if that is a shared block, otherwise block bi is appended. Reports
// whether bi was linked. Requires the contention bit.
func (l *SRWLock) enqueueShared(s uintptr, ni, bi uint32, b *waitBlock) bool {
	head := waitBlocks.at(srwHead(s))
	tail := waitBlocks.at(head.last)
	if !tail.exclusive {
		wakeNodes.at(tail.wakeTail).next = ni
		tail.wakeTail = ni
		tail.readers++
		return false
	}
	b.next = 0
	tail.next = bi
	head.last = bi
	return true
}

// TryRLock tries to acquire the lock for shared use without blocking.
// It fails whenever a writer holds the lock or anyone is queued.
func (l *SRWLock) TryRLock() bool {
	for {
		s := l.state.Load()
		switch {
		case s == 0:
			if l.state.CompareAndSwap(0, srwOwned|srwShared|srwOneShared) {
				return true
			}
		case s&srwContended == 0 && s&srwShared != 0:
			if l.state.CompareAndSwap(s, s+srwOneShared) {
				return true
			}
		default:
			return false
		}
	}
}

// RUnlock releases one shared hold. Only the last reader out wakes the
// next place in line.
func (l *SRWLock) RUnlock() {
	if l.state.CompareAndSwap(srwOwned|srwShared|srwOneShared, 0) {
		return
	}
	var spins int
	for {
		s := l.state.Load()
		if opt.Assert_ && (s&srwOwned == 0 || s&srwShared == 0) {
			panic("slimsync: RUnlock of SRWLock not held shared")
		}
		if s&srwContended == 0 {
			next := s - srwOneShared
			if next>>srwShift == 0 {
				next = 0
			}
			if l.state.CompareAndSwap(s, next) {
				return
			}
		} else if s&srwSpin == 0 && l.state.CompareAndSwap(s, s|srwSpin) {
			head := waitBlocks.at(srwHead(s))
			if opt.Assert_ && (!head.exclusive || head.sharedCount == 0) {
				panic("slimsync: corrupt SRWLock wait chain")
			}
			head.sharedCount--
			if head.sharedCount > 0 {
				l.state.And(^uintptr(srwSpin))
				return
			}
			l.handoff(s)
			return
		}
		delay(&spins)
	}
}

// handoff pops the head block and passes ownership to it. s is the word as
// it was before the caller set the contention bit; storing the new word
// releases the bit. The popped block's goroutines are woken last.
func (l *SRWLock) handoff(s uintptr) {
	hi := srwHead(s)
	head := waitBlocks.at(hi)
	wake := head.wakeHead

	var next uintptr
	switch {
	case head.next == 0 && head.exclusive:
		next = srwOwned
	case head.next == 0:
		next = srwOwned | srwShared | head.readers<<srwShift
	default:
		nh := waitBlocks.at(head.next)
		nh.last = head.last
		next = srwOwned | srwContended | uintptr(head.next)<<srwShift
		if !head.exclusive {
			// Readers never queue behind a shared block, they join it.
			if opt.Assert_ && !nh.exclusive {
				panic("slimsync: adjacent shared blocks in SRWLock wait chain")
			}
			nh.sharedCount = head.readers
			next |= srwShared
		}
	}
	l.state.Store(next)
	waitBlocks.release(hi)
	signalChain(wake)
}

// IsLocked reports whether the lock is held in either mode. The answer may be
// stale by the time it is returned; use it for assertions and diagnostics.
func (l *SRWLock) IsLocked() bool {
	return l.state.Load()&srwOwned != 0
}

// IsRLocked reports whether the lock is held by readers.
func (l *SRWLock) IsRLocked() bool {
	return l.state.Load()&(srwOwned|srwShared) == srwOwned|srwShared
}

// RLocker returns a sync.Locker that maps Lock and Unlock to RLock and
// RUnlock, for waiting on a CondVar in shared mode.
func (l *SRWLock) RLocker() sync.Locker {
	return (*srwRLocker)(l)
}

type srwRLocker SRWLock

func (r *srwRLocker) Lock()   { (*SRWLock)(r).RLock() }
func (r *srwRLocker) Unlock() { (*SRWLock)(r).RUnlock() }
