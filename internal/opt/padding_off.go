//go:build !slimsync_enable_padding && (amd64 || 386 || arm || mips || mipsle || wasm || slimsync_disable_padding)

package opt

// Padding_ is 0 when spin targets are packed.
// Use: go build -tags=slimsync_disable_padding
const Padding_ uintptr = 0
