// Package goid extracts the id of the calling goroutine.
//
// The id is read from the first line of runtime.Stack, which has the form
// "goroutine 123 [running]:". It is used as an identity token only; nothing
// is scheduled on it.
package goid

import "runtime"

// Get returns the current goroutine id, or 0 if the stack header could not
// be parsed.
func Get() uint64 {
	// Only the header line is needed.
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parse(buf[:n])
}

func parse(buf []byte) uint64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	var id uint64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
