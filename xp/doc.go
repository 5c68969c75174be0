// Package xp exposes the slimsync primitives under the names, argument order
// and return conventions of the Win32 synchronization APIs (SRWLOCK,
// CONDITION_VARIABLE, INIT_ONCE, CRITICAL_SECTION), so that code ported from
// Win32 keeps its call sites.
//
// Functions that return BOOL in Win32 return bool here. There is no thread
// local last-error value; callers that need the reason for a false return use
// the slimsync API directly.
//
//nolint:revive,stylecheck // Win32 names are kept on purpose.
package xp
