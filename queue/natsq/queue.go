// Copyright 2026 Chronolens Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package natsq implements queue.Queue on a NATS JetStream work-queue
// stream. Explicit acknowledgment drives the retry protocol: Retry maps
// to a negative ack with delay, Terminate to a terminal ack that stops
// redelivery.
package natsq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/chronolens/chronolens/queue"
)

// Config holds the JetStream wiring for a task queue.
type Config struct {
	// Stream is the JetStream stream name.
	Stream string

	// Subject is the subject invocations are published to.
	Subject string

	// Durable is the durable consumer name shared by worker processes.
	Durable string

	// MaxDeliver caps delivery attempts per message. Must cover the
	// initial delivery plus every retry the dispatcher may request.
	MaxDeliver int

	// AckWait is how long JetStream waits for an ack before
	// redelivering. It must exceed the dispatcher's hard task time
	// limit.
	AckWait time.Duration

	// FetchBatch is the pull batch size.
	FetchBatch int
}

// DefaultConfig returns the queue wiring used by the worker service.
func DefaultConfig() Config {
	return Config{
		Stream:     "CHRONOLENS_TASKS",
		Subject:    "chronolens.tasks",
		Durable:    "chronolens-workers",
		MaxDeliver: 4,
		AckWait:    11 * time.Minute,
		FetchBatch: 16,
	}
}

// Queue is a queue.Queue on a JetStream work-queue stream.
type Queue struct {
	js         nats.JetStreamContext
	sub        *nats.Subscription
	config     Config
	logger     *slog.Logger
	deliveries chan queue.Delivery

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

var _ queue.Queue = (*Queue)(nil)

// NewQueue binds to the configured stream, creating it if absent, and
// starts pulling work.
func NewQueue(js nats.JetStreamContext, config Config, logger *slog.Logger) (*Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "natsq")

	if err := ensureStream(js, config); err != nil {
		return nil, err
	}

	sub, err := js.PullSubscribe(config.Subject, config.Durable,
		nats.AckExplicit(),
		nats.MaxDeliver(config.MaxDeliver),
		nats.AckWait(config.AckWait),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %q: %w", config.Subject, err)
	}

	q := &Queue{
		js:         js,
		sub:        sub,
		config:     config,
		logger:     logger,
		deliveries: make(chan queue.Delivery),
		done:       make(chan struct{}),
	}
	go q.fetchLoop()
	return q, nil
}

func ensureStream(js nats.JetStreamContext, config Config) error {
	_, err := js.StreamInfo(config.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream %q: %w", config.Stream, err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:      config.Stream,
		Subjects:  []string{config.Subject},
		Retention: nats.WorkQueuePolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream %q: %w", config.Stream, err)
	}
	return nil
}

// Enqueue publishes an invocation to the work-queue stream.
func (q *Queue) Enqueue(ctx context.Context, inv queue.Invocation) error {
	body, err := queue.EncodeInvocation(inv)
	if err != nil {
		return err
	}

	if _, err := q.js.Publish(q.config.Subject, body, nats.Context(ctx)); err != nil {
		return fmt.Errorf("failed to publish invocation: %w", err)
	}
	q.logger.Debug("enqueued invocation", "kind", inv.Kind())
	return nil
}

// Deliveries returns the channel of incoming work.
func (q *Queue) Deliveries() <-chan queue.Delivery {
	return q.deliveries
}

// Close stops the fetch loop and drains the subscription.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	return q.sub.Unsubscribe()
}

func (q *Queue) fetchLoop() {
	defer close(q.deliveries)

	for {
		select {
		case <-q.done:
			return
		default:
		}

		msgs, err := q.sub.Fetch(q.config.FetchBatch, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			select {
			case <-q.done:
				return
			default:
			}
			q.logger.Error("fetch failed", "err", err)
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			select {
			case q.deliveries <- &natsDelivery{msg: msg}:
			case <-q.done:
				// Unprocessed messages redeliver after AckWait.
				return
			}
		}
	}
}

type natsDelivery struct {
	msg *nats.Msg
}

func (d *natsDelivery) Body() []byte {
	return d.msg.Data
}

// Attempt reports the JetStream delivery count, starting at 1.
func (d *natsDelivery) Attempt() int {
	meta, err := d.msg.Metadata()
	if err != nil {
		return 1
	}
	return int(meta.NumDelivered)
}

func (d *natsDelivery) Ack() error {
	return d.msg.Ack()
}

func (d *natsDelivery) Retry(delay time.Duration) error {
	return d.msg.NakWithDelay(delay)
}

func (d *natsDelivery) Terminate() error {
	return d.msg.Term()
}
