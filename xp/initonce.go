package xp

import (
	"errors"

	"github.com/llxisdsh/slimsync"
)

const (
	INIT_ONCE_CHECK_ONLY  = 0x1
	INIT_ONCE_ASYNC       = 0x2
	INIT_ONCE_INIT_FAILED = 0x4
)

// INIT_ONCE is a one-time initialization cell holding an untyped context.
// The zero value is uninitialized, as after InitOnceInitialize.
type INIT_ONCE = slimsync.InitOnce[any]

// PINIT_ONCE_FN is the initializer of InitOnceExecuteOnce. It stores its
// result in *context and reports success.
type PINIT_ONCE_FN func(once *INIT_ONCE, param any, context *any) bool

var errInitFailed = errors.New("xp: init once callback failed")

// InitOnceInitialize resets once. once must not be in use.
func InitOnceInitialize(once *INIT_ONCE) {
	*once = INIT_ONCE{}
}

// InitOnceExecuteOnce runs fn exactly once across all callers and stores the
// context it produced into *context. If fn fails, false is returned and a
// later call runs fn again.
func InitOnceExecuteOnce(once *INIT_ONCE, fn PINIT_ONCE_FN, param any, context *any) bool {
	v, err := once.Do(func() (any, error) {
		var ctx any
		if !fn(once, param, &ctx) {
			return nil, errInitFailed
		}
		return ctx, nil
	})
	if err != nil {
		return false
	}
	if context != nil {
		*context = v
	}
	return true
}

// InitOnceBeginInitialize starts a one-time initialization. On success
// *pending tells whether the caller must initialize and then call
// InitOnceComplete; when it is false, *context holds the stored value.
//
// With INIT_ONCE_CHECK_ONLY it never starts anything and fails if the
// initialization has not completed.
func InitOnceBeginInitialize(once *INIT_ONCE, flags uint32, pending *bool, context *any) bool {
	if flags&INIT_ONCE_CHECK_ONLY != 0 {
		if flags != INIT_ONCE_CHECK_ONLY {
			return false
		}
		v, ok := once.Load()
		if !ok {
			return false
		}
		*pending = false
		if context != nil {
			*context = v
		}
		return true
	}
	if flags&^INIT_ONCE_ASYNC != 0 {
		return false
	}
	p, v, err := once.BeginInitialize(flags&INIT_ONCE_ASYNC != 0)
	if err != nil {
		return false
	}
	*pending = p
	if !p && context != nil {
		*context = v
	}
	return true
}

// InitOnceComplete ends an initialization begun by InitOnceBeginInitialize,
// storing context, or with INIT_ONCE_INIT_FAILED resetting once so it can be
// attempted again.
func InitOnceComplete(once *INIT_ONCE, flags uint32, context any) bool {
	if flags&^(INIT_ONCE_ASYNC|INIT_ONCE_INIT_FAILED) != 0 {
		return false
	}
	return once.Complete(flags&INIT_ONCE_ASYNC != 0, flags&INIT_ONCE_INIT_FAILED != 0, context) == nil
}
