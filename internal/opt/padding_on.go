//go:build slimsync_enable_padding || (!(amd64 || 386 || arm || mips || mipsle || wasm) && !slimsync_disable_padding)

package opt

// Padding_ is 1 when spin targets are padded to a full cache line.
// Padding is enabled by default for architectures that are NOT:
// - amd64 (x86_64): adjacent-line prefetch hides most false sharing
// - 32-bit architectures (386, arm, mips, mipsle, wasm): memory constraints
//
// Force it with: go build -tags=slimsync_enable_padding
const Padding_ uintptr = 1
