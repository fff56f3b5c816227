/*
 * Copyright 2025 Rally Tactical Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package workqueue provides a FIFO single-consumer task executor with a
// bounded queue depth and a submit-and-wait primitive.
package workqueue

import (
	"sync"

	"github.com/rallytac/magellan/pkg/logger"
)

// DefaultMaxDepth is the maximum number of queued tasks before new
// submissions are denied.
const DefaultMaxDepth = 512

type item struct {
	fn   func()
	done chan bool
}

// Queue runs submitted tasks serially on a single consumer goroutine.
// Tasks submitted by one goroutine execute in submission order.
type Queue struct {
	name string
	log  logger.Logger

	mu               sync.Mutex
	items            []item
	running          bool
	allowSubmissions bool
	maxDepth         int

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a stopped queue with the default maximum depth.
func New(name string, log logger.Logger) *Queue {
	return &Queue{
		name:             name,
		log:              log,
		allowSubmissions: true,
		maxDepth:         DefaultMaxDepth,
	}
}

// SetMaxDepth sets the maximum queue depth.
func (q *Queue) SetMaxDepth(d int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.maxDepth = d
}

// EnableSubmissions allows new task submissions.
func (q *Queue) EnableSubmissions() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.allowSubmissions = true
}

// DisableSubmissions denies new task submissions. Queued tasks still run.
func (q *Queue) DisableSubmissions() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.allowSubmissions = false
}

// Start launches the consumer goroutine. Starting a running queue is a
// no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}

	q.running = true
	q.wake = make(chan struct{}, 1)
	q.quit = make(chan struct{})

	q.wg.Add(1)

	go q.consume()
}

// Stop drains pending tasks without executing them and joins the consumer.
// Waiters blocked in SubmitAndWait on a drained task are released with a
// false result. Stopping a stopped queue is a no-op.
func (q *Queue) Stop() {
	q.mu.Lock()

	if !q.running {
		q.mu.Unlock()
		return
	}

	q.running = false
	drained := q.items
	q.items = nil
	quit := q.quit
	q.mu.Unlock()

	close(quit)
	q.wg.Wait()

	for _, it := range drained {
		if it.done != nil {
			it.done <- false
		}
	}
}

// Restart stops the queue, abandoning queued tasks, and starts it again.
func (q *Queue) Restart() {
	q.Stop()
	q.Start()
}

// Submit enqueues a task for asynchronous execution. It returns false when
// the queue is stopped, submissions are disabled, or the queue is full.
func (q *Queue) Submit(fn func()) bool {
	return q.enqueue(item{fn: fn})
}

// SubmitAndWait enqueues a task and blocks until it has run to completion.
// It returns false if the task was rejected or drained before running.
func (q *Queue) SubmitAndWait(fn func()) bool {
	done := make(chan bool, 1)

	if !q.enqueue(item{fn: fn, done: done}) {
		return false
	}

	return <-done
}

func (q *Queue) enqueue(it item) bool {
	q.mu.Lock()

	if !q.running || !q.allowSubmissions {
		q.mu.Unlock()
		return false
	}

	if len(q.items) >= q.maxDepth {
		q.mu.Unlock()
		q.log.Warn().Str("queue", q.name).Int("depth", q.maxDepth).Msg("queue full, submission denied")

		return false
	}

	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return true
}

func (q *Queue) consume() {
	defer q.wg.Done()

	for {
		select {
		case <-q.quit:
			return
		case <-q.wake:
		}

		for {
			q.mu.Lock()

			if len(q.items) == 0 || !q.running {
				q.mu.Unlock()
				break
			}

			it := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()

			q.run(it)
		}
	}
}

// run executes one task, containing any panic so a misbehaving host
// callback cannot kill the consumer.
func (q *Queue) run(it item) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Str("queue", q.name).Interface("panic", r).Msg("task panicked")
		}

		if it.done != nil {
			it.done <- true
		}
	}()

	it.fn()
}
