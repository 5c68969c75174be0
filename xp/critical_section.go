package xp

import (
	"sync/atomic"

	"github.com/llxisdsh/slimsync"
	"github.com/llxisdsh/slimsync/internal/goid"
)

// CRITICAL_SECTION is a recursive mutex: the owning goroutine may enter it
// again, and must leave it as many times as it entered.
//
// It implements sync.Locker so it can be passed to SleepConditionVariableCS
// or any CondVar wait. Waiting on a condition variable releases one level of
// recursion only, as in Win32; wait with a recursion count of one.
type CRITICAL_SECTION struct {
	mu        slimsync.SRWLock
	owner     atomic.Uint64
	recursion int
}

// InitializeCriticalSection resets cs to the unowned state. cs must not be
// in use.
func InitializeCriticalSection(cs *CRITICAL_SECTION) {
	*cs = CRITICAL_SECTION{}
}

// DeleteCriticalSection exists for call-site compatibility; a
// CRITICAL_SECTION holds no resources.
func DeleteCriticalSection(*CRITICAL_SECTION) {}

// EnterCriticalSection blocks until the calling goroutine owns cs, or
// increments the recursion count if it already does.
func EnterCriticalSection(cs *CRITICAL_SECTION) {
	gid := goid.Get()
	if cs.owner.Load() == gid {
		cs.recursion++
		return
	}
	cs.mu.Lock()
	cs.owner.Store(gid)
	cs.recursion = 1
}

// TryEnterCriticalSection is EnterCriticalSection without blocking; it
// reports whether cs is now owned by the caller.
func TryEnterCriticalSection(cs *CRITICAL_SECTION) bool {
	gid := goid.Get()
	if cs.owner.Load() == gid {
		cs.recursion++
		return true
	}
	if !cs.mu.TryLock() {
		return false
	}
	cs.owner.Store(gid)
	cs.recursion = 1
	return true
}

// LeaveCriticalSection releases one level of ownership. Leaving a critical
// section the calling goroutine does not own panics.
func LeaveCriticalSection(cs *CRITICAL_SECTION) {
	if cs.owner.Load() != goid.Get() {
		panic("xp: LeaveCriticalSection by a goroutine that does not own it")
	}
	cs.recursion--
	if cs.recursion > 0 {
		return
	}
	cs.owner.Store(0)
	cs.mu.Unlock()
}

// Lock enters cs.
func (cs *CRITICAL_SECTION) Lock() { EnterCriticalSection(cs) }

// Unlock leaves cs.
func (cs *CRITICAL_SECTION) Unlock() { LeaveCriticalSection(cs) }
