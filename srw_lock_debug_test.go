//go:build slimsync_debug

package slimsync

import (
	"testing"
)

func mustPanic(t *testing.T, name string, f func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatalf("%s did not panic", name)
		}
	}()
	f()
}

func TestSRWLock_MisuseDetected(t *testing.T) {
	var l SRWLock
	mustPanic(t, "Unlock of a free lock", l.Unlock)
	mustPanic(t, "RUnlock of a free lock", l.RUnlock)

	l.RLock()
	mustPanic(t, "Unlock of a shared hold", l.Unlock)
	l.RUnlock()

	l.Lock()
	mustPanic(t, "RUnlock of an exclusive hold", l.RUnlock)
	l.Unlock()
}
