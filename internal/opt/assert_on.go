//go:build slimsync_debug

package opt

// Assert_ enables invariant checks on lock and condition variable words.
// A failed check panics; without the slimsync_debug tag misuse such as a
// double release silently corrupts the word.
const Assert_ = true
