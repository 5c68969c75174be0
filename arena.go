package slimsync

import (
	"sync/atomic"
)

const (
	arenaPageShift = 8
	arenaPageSize  = 1 << arenaPageShift
	arenaPageMask  = arenaPageSize - 1

	// arenaMaxIndex keeps index<<srwShift (and index<<cvShift) inside a
	// uintptr on 32-bit platforms.
	arenaMaxIndex = 1<<26 - 1
)

// arena hands out slots of T addressed by a uint32 index.
//
// Wait blocks, wake nodes and condition variable entries are threaded through
// atomic words as indices rather than pointers: the garbage collector does not
// trace pointers packed into a uintptr, and an index leaves the low bits of the
// word free for flags without any alignment tricks.
//
// Slots never move once allocated. The page table is copy-on-grow and
// published atomically, so at() needs no lock. Index 0 is never handed out and
// stands for "none".
type arena[T any] struct {
	mu    ticketLock
	pages atomic.Pointer[[]*[arenaPageSize]T]
	free  []uint32
	next  uint32
}

func (a *arena[T]) at(i uint32) *T {
	pages := *a.pages.Load()
	return &pages[i>>arenaPageShift][i&arenaPageMask]
}

// alloc returns a slot that is not in use by anyone else. The caller resets
// the fields it relies on.
func (a *arena[T]) alloc() (uint32, *T) {
	a.mu.Lock()
	if n := len(a.free); n > 0 {
		i := a.free[n-1]
		a.free = a.free[:n-1]
		a.mu.Unlock()
		return i, a.at(i)
	}
	if a.next == 0 {
		a.next = 1
	}
	i := a.next
	if i > arenaMaxIndex {
		a.mu.Unlock()
		panic("slimsync: too many blocked goroutines")
	}
	a.next++

	var pages []*[arenaPageSize]T
	if p := a.pages.Load(); p != nil {
		pages = *p
	}
	if page := int(i >> arenaPageShift); page == len(pages) {
		grown := make([]*[arenaPageSize]T, page+1)
		copy(grown, pages)
		grown[page] = new([arenaPageSize]T)
		a.pages.Store(&grown)
		pages = grown
	}
	a.mu.Unlock()
	return i, &pages[i>>arenaPageShift][i&arenaPageMask]
}

// release returns slot i to the free list. The slot must no longer be
// reachable from any lock or condition variable word.
func (a *arena[T]) release(i uint32) {
	a.mu.Lock()
	a.free = append(a.free, i)
	a.mu.Unlock()
}

// inUse reports the number of slots currently handed out.
func (a *arena[T]) inUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.next == 0 {
		return 0
	}
	return int(a.next-1) - len(a.free)
}
