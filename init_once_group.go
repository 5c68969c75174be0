package slimsync

import (
	"github.com/llxisdsh/pb"
)

// InitOnceGroup keeps one InitOnce per key: Do runs the initializer for a key
// until it succeeds once, and returns the stored value from then on.
//
// Unlike a singleflight group the result is retained until Forget.
type InitOnceGroup[K comparable, V any] struct {
	_ noCopy
	m pb.MapOf[K, *InitOnce[V]]
}

func (g *InitOnceGroup[K, V]) once(key K) *InitOnce[V] {
	o, _ := g.m.ProcessEntry(
		key,
		func(l *pb.EntryOf[K, *InitOnce[V]]) (*pb.EntryOf[K, *InitOnce[V]], *InitOnce[V], bool) {
			if l != nil {
				return l, l.Value, true
			}
			o := &InitOnce[V]{}
			return &pb.EntryOf[K, *InitOnce[V]]{Value: o}, o, false
		},
	)
	return o
}

// Do returns the value initialized for key, calling fn if no call for this
// key has succeeded yet. See InitOnce.Do.
func (g *InitOnceGroup[K, V]) Do(key K, fn func() (V, error)) (V, error) {
	return g.once(key).Do(fn)
}

// Load returns the value stored for key, if its initialization completed.
func (g *InitOnceGroup[K, V]) Load(key K) (V, bool) {
	if o, ok := g.m.Load(key); ok {
		return o.Load()
	}
	var zero V
	return zero, false
}

// Forget drops the value for key. The next Do for key initializes again;
// callers already blocked on the old run still receive its result.
func (g *InitOnceGroup[K, V]) Forget(key K) {
	g.m.Delete(key)
}
