// Package queue defines the task queue contract between the upload and
// comparison services (producers) and the worker dispatcher (consumer),
// plus an in-memory implementation for tests and single-process
// deployments. The production implementation on NATS JetStream lives in
// queue/natsq.
package queue

import (
	"context"
	"time"
)

// Delivery is a single received invocation awaiting acknowledgment.
// Exactly one of Ack, Retry, or Terminate must be called.
type Delivery interface {
	// Body returns the encoded invocation envelope.
	Body() []byte

	// Attempt returns the 1-based delivery attempt for this message.
	Attempt() int

	// Ack marks the invocation as successfully processed.
	Ack() error

	// Retry schedules redelivery after the given delay.
	Retry(delay time.Duration) error

	// Terminate drops the invocation permanently; it will not be
	// redelivered.
	Terminate() error
}

// Queue transports invocations from producers to the worker dispatcher.
type Queue interface {
	// Enqueue places an invocation on the queue.
	Enqueue(ctx context.Context, inv Invocation) error

	// Deliveries returns the channel of incoming work. The channel is
	// closed when the queue is closed.
	Deliveries() <-chan Delivery

	// Close stops delivery and releases resources.
	Close() error
}
