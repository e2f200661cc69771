package issue

import "errors"

// Sentinel errors for structural violations, matched with errors.Is.
// Storage-level kinds (not found, parse failure) come from the store
// package unchanged.
var (
	// ErrCycle rejects a dependency edge that would close a loop.
	ErrCycle = errors.New("dependency cycle")
	// ErrCollision means id generation exhausted its retries against
	// the existing id set.
	ErrCollision = errors.New("id collision")
	// ErrTransition rejects a status change the state machine forbids.
	ErrTransition = errors.New("invalid status transition")
)
