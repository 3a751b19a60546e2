package domain

import "errors"

var (
	// ErrNotFound indicates that no active binding exists for a number.
	ErrNotFound = errors.New("resource not found")
	// ErrStoreUnavailable indicates the binding store could not be reached.
	// Callers must not conflate this with ErrNotFound: an unreachable store
	// means "retry later", not "unknown sender".
	ErrStoreUnavailable = errors.New("binding store unavailable")
)
