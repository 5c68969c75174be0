package xp

import (
	"github.com/llxisdsh/slimsync"
)

// SRWLOCK is a slim reader/writer lock. The zero value is unlocked, as after
// InitializeSRWLock.
type SRWLOCK = slimsync.SRWLock

// InitializeSRWLock resets l to the unlocked state. l must not be in use.
func InitializeSRWLock(l *SRWLOCK) {
	*l = SRWLOCK{}
}

// AcquireSRWLockExclusive blocks until l is held exclusively.
func AcquireSRWLockExclusive(l *SRWLOCK) { l.Lock() }

// AcquireSRWLockShared blocks until l is held in shared mode.
func AcquireSRWLockShared(l *SRWLOCK) { l.RLock() }

// TryAcquireSRWLockExclusive takes l exclusively if that does not block.
func TryAcquireSRWLockExclusive(l *SRWLOCK) bool { return l.TryLock() }

// TryAcquireSRWLockShared takes l in shared mode if that does not block.
func TryAcquireSRWLockShared(l *SRWLOCK) bool { return l.TryRLock() }

// ReleaseSRWLockExclusive releases an exclusive hold on l.
func ReleaseSRWLockExclusive(l *SRWLOCK) { l.Unlock() }

// ReleaseSRWLockShared releases one shared hold on l.
func ReleaseSRWLockShared(l *SRWLOCK) { l.RUnlock() }
