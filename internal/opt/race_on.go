//go:build race

package opt

// Race_ reports whether the race detector is enabled. Under the detector
// every atomic is instrumented, so active spinning before parking is skipped.
const Race_ = true
