//go:build !slimsync_debug

package opt

const Assert_ = false
