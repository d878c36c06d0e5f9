package queue

import "errors"

// Error classification codes.
//
// Wrapped errors carry context; callers MUST classify using errors.Is.
var (
	// ErrStorage indicates a failure reported by the underlying store
	// (open, read, write, iterate, destroy).
	ErrStorage = errors.New("queue: storage")

	// ErrFull indicates a push that would exceed the queue capacity.
	ErrFull = errors.New("queue: full")

	// ErrInvalidInput indicates unusable options or arguments.
	ErrInvalidInput = errors.New("queue: invalid input")

	// ErrIncompatible indicates the directory holds a different queue
	// flavor than the one being opened.
	ErrIncompatible = errors.New("queue: incompatible queue directory")

	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("queue: closed")

	// ErrUnhealthy indicates a submission against an async façade whose
	// worker has exited.
	ErrUnhealthy = errors.New("queue: unhealthy")

	// ErrDecode indicates persisted state that could not be deserialized:
	// a consumer cursor record, a metadata cell, a data key or the
	// manifest.
	ErrDecode = errors.New("queue: decode persisted state")
)
