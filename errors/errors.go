package errors

import "fmt"

var (
	// ErrInvalidIdentifier rejects empty or malformed participant identifiers.
	// Permanent: callers must not retry.
	ErrInvalidIdentifier = fmt.Errorf("invalid participant identifier")

	// ErrEmptyMessage rejects messages that are empty once trimmed.
	// The store is left untouched.
	ErrEmptyMessage = fmt.Errorf("empty message")

	// ErrStoreUnavailable wraps transient persistence failures.
	// Callers retry with backoff; an accepted append is never dropped.
	ErrStoreUnavailable = fmt.Errorf("message store unavailable")

	// ErrChannelUnavailable signals that live delivery is degraded.
	// Sessions fall back to polling the store; no data is lost.
	ErrChannelUnavailable = fmt.Errorf("delivery channel unavailable")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)
