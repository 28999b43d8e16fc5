package queue

import "errors"

var (
	// ErrEncodeFailed indicates an invocation could not be serialized.
	ErrEncodeFailed = errors.New("failed to encode invocation")

	// ErrMalformedInvocation indicates a message could not be decoded
	// into a known invocation. Malformed messages are never retried.
	ErrMalformedInvocation = errors.New("malformed invocation")

	// ErrQueueClosed indicates an operation on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)
