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


// Package worker implements the dispatcher that pulls task invocations
// from the queue, executes the registered pipeline for each kind, and
// resolves the outcome: ack on success, delayed retry on transient
// failure, terminal rejection for permanent failures, malformed
// messages, and exhausted retries.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/chronolens/chronolens/queue"
)

// Task time limits. A task past the soft limit gets a warning log; past
// the hard limit its context is cancelled.
const (
	DefaultSoftTimeout = 9 * time.Minute
	DefaultHardTimeout = 10 * time.Minute
)

// Handler executes one decoded invocation to completion or failure.
type Handler func(ctx context.Context, inv queue.Invocation) error

// Dispatcher routes queue deliveries to registered handlers on a worker
// pool.
type Dispatcher struct {
	queue       queue.Queue
	pool        *ants.Pool
	policy      RetryPolicy
	sink        FailureSink
	metrics     *Metrics
	handlers    map[string]Handler
	softTimeout time.Duration
	hardTimeout time.Duration
	logger      *slog.Logger
	wg          sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithPoolSize sets the worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(d *Dispatcher) error {
		if size < 1 {
			size = 1
		}
		if d.pool != nil {
			d.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		d.pool = pool
		return nil
	}
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(d *Dispatcher) error {
		d.policy = policy
		return nil
	}
}

// WithFailureSink sets the destination for permanently failed
// invocations. Default is a LogSink.
func WithFailureSink(sink FailureSink) Option {
	return func(d *Dispatcher) error {
		if sink != nil {
			d.sink = sink
		}
		return nil
	}
}

// WithMetrics attaches dispatcher metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(d *Dispatcher) error {
		d.metrics = metrics
		return nil
	}
}

// WithTimeouts overrides the soft and hard task time limits.
func WithTimeouts(soft, hard time.Duration) Option {
	return func(d *Dispatcher) error {
		if soft <= 0 || hard <= 0 || soft >= hard {
			return fmt.Errorf("invalid timeouts: soft %v must be positive and below hard %v", soft, hard)
		}
		d.softTimeout = soft
		d.hardTimeout = hard
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger.With("component", "dispatcher")
		return nil
	}
}

// NewDispatcher creates a dispatcher pulling from the given queue.
// Handlers are registered with Register before calling Run.
func NewDispatcher(q queue.Queue, opts ...Option) (*Dispatcher, error) {
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		queue:       q,
		pool:        pool,
		policy:      DefaultRetryPolicy(),
		sink:        NewLogSink(nil),
		handlers:    make(map[string]Handler),
		softTimeout: DefaultSoftTimeout,
		hardTimeout: DefaultHardTimeout,
		logger:      slog.Default().With("component", "dispatcher"),
	}

	for _, opt := range opts {
		if optErr := opt(d); optErr != nil {
			d.pool.Release()
			return nil, optErr
		}
	}
	return d, nil
}

// Register binds an invocation kind to its handler. Must be called
// before Run.
func (d *Dispatcher) Register(kind string, handler Handler) {
	d.handlers[kind] = handler
}

// Run consumes deliveries until the context is cancelled or the queue
// is closed, then waits for in-flight tasks.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-d.queue.Deliveries():
			if !ok {
				return nil
			}

			d.wg.Add(1)
			err := d.pool.Submit(func() {
				defer d.wg.Done()
				d.process(ctx, delivery)
			})
			if err != nil {
				d.wg.Done()
				d.logger.Error("failed to submit task to pool", "err", err)
				if nakErr := delivery.Retry(d.policy.BaseDelay); nakErr != nil {
					d.logger.Error("failed to requeue delivery", "err", nakErr)
				}
			}
		}
	}
}

// Close releases the worker pool after in-flight tasks finish.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	d.pool.Release()
	return nil
}

func (d *Dispatcher) process(ctx context.Context, delivery queue.Delivery) {
	inv, err := queue.DecodeInvocation(delivery.Body())
	if err != nil {
		// Malformed messages can never succeed; drop immediately.
		d.fail(ctx, delivery, "unknown", "malformed", err)
		return
	}

	handler, ok := d.handlers[inv.Kind()]
	if !ok {
		d.fail(ctx, delivery, inv.Kind(), "malformed",
			fmt.Errorf("no handler registered for kind %q", inv.Kind()))
		return
	}

	d.metrics.taskStarted()
	defer d.metrics.taskFinished()

	taskCtx, cancel := context.WithTimeout(ctx, d.hardTimeout)
	defer cancel()

	softTimer := time.AfterFunc(d.softTimeout, func() {
		d.logger.Warn("task exceeded soft time limit",
			"kind", inv.Kind(),
			"attempt", delivery.Attempt(),
		)
	})
	defer softTimer.Stop()

	start := time.Now()
	handlerErr := handler(taskCtx, inv)
	d.metrics.observeDuration(inv.Kind(), time.Since(start).Seconds())

	if handlerErr == nil {
		d.metrics.observeOutcome(inv.Kind(), "completed")
		if err := delivery.Ack(); err != nil {
			d.logger.Error("failed to ack delivery", "kind", inv.Kind(), "err", err)
		}
		return
	}

	if IsPermanent(handlerErr) {
		d.fail(ctx, delivery, inv.Kind(), "permanent", handlerErr)
		return
	}

	attempt := delivery.Attempt()
	if d.policy.Exhausted(attempt) {
		d.fail(ctx, delivery, inv.Kind(), "exhausted", handlerErr)
		return
	}

	delay := d.policy.Delay(attempt - 1)
	d.logger.Warn("task failed, scheduling retry",
		"kind", inv.Kind(),
		"attempt", attempt,
		"delay", delay,
		"err", handlerErr,
	)
	d.metrics.observeOutcome(inv.Kind(), "retried")
	if err := delivery.Retry(delay); err != nil {
		d.logger.Error("failed to schedule retry", "kind", inv.Kind(), "err", err)
	}
}

// fail terminates the delivery and hands it to the failure sink.
func (d *Dispatcher) fail(ctx context.Context, delivery queue.Delivery, kind, reason string, err error) {
	d.logger.Error("task failed terminally",
		"kind", kind,
		"reason", reason,
		"attempt", delivery.Attempt(),
		"err", err,
	)
	d.metrics.observeOutcome(kind, reason)

	d.sink.Record(ctx, Failure{
		Kind:     kind,
		Body:     delivery.Body(),
		Attempts: delivery.Attempt(),
		Reason:   reason,
		Err:      err,
		At:       time.Now().UTC(),
	})

	if termErr := delivery.Terminate(); termErr != nil {
		d.logger.Error("failed to terminate delivery", "kind", kind, "err", termErr)
	}
}
