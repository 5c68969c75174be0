package slimsync

import (
	"github.com/llxisdsh/pb"
)

// SRWLockGroup provides an SRWLock per key (string, int, struct, etc.).
//
// Features:
//   - Shared and exclusive locking with the queueing order of SRWLock.
//   - Infinite Keys: no need to pre-allocate locks.
//   - Auto-Cleanup: a key's lock is dropped once nobody holds or waits on it.
//
// Usage:
//
//	var group SRWLockGroup[string]
//
//	// Readers
//	group.RLock("config")
//	read(config)
//	group.RUnlock("config")
//
//	// Writer
//	group.Lock("config")
//	write(config)
//	group.Unlock("config")
type SRWLockGroup[K comparable] struct {
	_ noCopy
	m pb.MapOf[K, *srwGroupEntry]
}

type srwGroupEntry struct {
	mu SRWLock
	// ref counts holders and waiters; only touched inside ProcessEntry.
	ref int32
}

func (g *SRWLockGroup[K]) acquire(k K) *srwGroupEntry {
	v, _ := g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *srwGroupEntry]) (*pb.EntryOf[K, *srwGroupEntry], *srwGroupEntry, bool) {
			if l != nil {
				l.Value.ref++
				return l, l.Value, true
			}
			e := &srwGroupEntry{ref: 1}
			return &pb.EntryOf[K, *srwGroupEntry]{Value: e}, e, false
		},
	)
	return v
}

func (g *SRWLockGroup[K]) release(k K) {
	_, _ = g.m.ProcessEntry(
		k,
		func(l *pb.EntryOf[K, *srwGroupEntry]) (*pb.EntryOf[K, *srwGroupEntry], *srwGroupEntry, bool) {
			if l == nil {
				return nil, nil, false
			}
			l.Value.ref--
			if l.Value.ref <= 0 {
				return nil, nil, true
			}
			return l, l.Value, true
		},
	)
}

func (g *SRWLockGroup[K]) held(k K) *srwGroupEntry {
	v, ok := g.m.Load(k)
	if !ok {
		panic("slimsync: unlock of unlocked SRWLockGroup key")
	}
	return v
}

// Lock acquires the lock for k exclusively.
func (g *SRWLockGroup[K]) Lock(k K) {
	g.acquire(k).mu.Lock()
}

// Unlock releases an exclusive hold on k.
func (g *SRWLockGroup[K]) Unlock(k K) {
	g.held(k).mu.Unlock()
	g.release(k)
}

// RLock acquires the lock for k in shared mode.
func (g *SRWLockGroup[K]) RLock(k K) {
	g.acquire(k).mu.RLock()
}

// RUnlock releases a shared hold on k.
func (g *SRWLockGroup[K]) RUnlock(k K) {
	g.held(k).mu.RUnlock()
	g.release(k)
}

// TryLock acquires the lock for k exclusively if that does not block.
func (g *SRWLockGroup[K]) TryLock(k K) bool {
	if g.acquire(k).mu.TryLock() {
		return true
	}
	g.release(k)
	return false
}

// Len returns the number of keys that are currently held or waited on.
func (g *SRWLockGroup[K]) Len() int {
	return g.m.Size()
}
