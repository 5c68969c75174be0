package slimsync

import (
	"sync/atomic"
)

// ticketLock is a FIFO spin-lock guarding the arena free lists.
//
// Lock takes a ticket and spins (with the package backoff) until `serving`
// reaches it; Unlock advances `serving`. Critical sections under it are a
// slice push or pop, so a queue of spinners drains quickly and no goroutine
// is overtaken by later arrivals.
type ticketLock struct {
	_       noCopy
	next    atomic.Uint32
	serving atomic.Uint32
}

func (m *ticketLock) Lock() {
	my := m.next.Add(1) - 1
	var spins int
	for m.serving.Load() != my {
		delay(&spins)
	}
}

func (m *ticketLock) Unlock() {
	m.serving.Add(1)
}
