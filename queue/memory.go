package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue for tests and single-binary
// deployments. Retries are redelivered after their delay by a timer
// goroutine per retry.
type MemoryQueue struct {
	mu         sync.Mutex
	closed     bool
	deliveries chan Delivery
	wg         sync.WaitGroup
}

var _ Queue = (*MemoryQueue)(nil)

// NewMemoryQueue creates a queue buffering up to size pending deliveries.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 256
	}
	return &MemoryQueue{deliveries: make(chan Delivery, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, inv Invocation) error {
	body, err := EncodeInvocation(inv)
	if err != nil {
		return err
	}
	return q.deliver(ctx, &memoryDelivery{queue: q, body: body, attempt: 1})
}

func (q *MemoryQueue) Deliveries() <-chan Delivery {
	return q.deliveries
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	// Wait for in-flight retry timers before closing the channel.
	q.wg.Wait()
	close(q.deliveries)
	return nil
}

func (q *MemoryQueue) deliver(ctx context.Context, d *memoryDelivery) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.mu.Unlock()

	select {
	case q.deliveries <- d:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) redeliverAfter(d *memoryDelivery, delay time.Duration) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		time.Sleep(delay)

		q.mu.Lock()
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		q.deliveries <- d
	}()
}

type memoryDelivery struct {
	queue   *MemoryQueue
	body    []byte
	attempt int
}

func (d *memoryDelivery) Body() []byte {
	return d.body
}

func (d *memoryDelivery) Attempt() int {
	return d.attempt
}

func (d *memoryDelivery) Ack() error {
	return nil
}

func (d *memoryDelivery) Retry(delay time.Duration) error {
	next := &memoryDelivery{queue: d.queue, body: d.body, attempt: d.attempt + 1}
	d.queue.redeliverAfter(next, delay)
	return nil
}

func (d *memoryDelivery) Terminate() error {
	return nil
}
