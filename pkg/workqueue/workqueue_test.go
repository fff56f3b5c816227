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

package workqueue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rallytac/magellan/pkg/logger"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()

	q := New("test", logger.NewTestLogger())
	q.Start()
	t.Cleanup(q.Stop)

	return q
}

func TestSubmitPreservesSingleSubmitterOrder(t *testing.T) {
	q := newTestQueue(t)

	var mu sync.Mutex

	var got []int

	const n = 200

	for i := 0; i < n; i++ {
		i := i
		require.True(t, q.Submit(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}

	require.True(t, q.SubmitAndWait(func() {}))

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, got, n)

	for i := 0; i < n; i++ {
		assert.Equal(t, i, got[i])
	}
}

func TestSubmitAndWaitRunsToCompletion(t *testing.T) {
	q := newTestQueue(t)

	var ran atomic.Bool

	require.True(t, q.SubmitAndWait(func() {
		time.Sleep(10 * time.Millisecond)
		ran.Store(true)
	}))

	assert.True(t, ran.Load())
}

func TestSubmitDeniedWhenStopped(t *testing.T) {
	q := New("test", logger.NewTestLogger())

	assert.False(t, q.Submit(func() {}))

	q.Start()
	defer q.Stop()

	assert.True(t, q.Submit(func() {}))
}

func TestSubmitDeniedWhenDisabled(t *testing.T) {
	q := newTestQueue(t)

	q.DisableSubmissions()
	assert.False(t, q.Submit(func() {}))

	q.EnableSubmissions()
	assert.True(t, q.Submit(func() {}))
}

func TestSubmitDeniedOverMaxDepth(t *testing.T) {
	q := New("test", logger.NewTestLogger())
	q.SetMaxDepth(2)
	q.Start()
	defer q.Stop()

	block := make(chan struct{})

	// Occupy the consumer so queued items stay queued.
	require.True(t, q.Submit(func() { <-block }))

	// Give the consumer a moment to pop the blocking task.
	time.Sleep(20 * time.Millisecond)

	assert.True(t, q.Submit(func() {}))
	assert.True(t, q.Submit(func() {}))
	assert.False(t, q.Submit(func() {}))

	close(block)
}

func TestStopDrainsWithoutExecuting(t *testing.T) {
	q := New("test", logger.NewTestLogger())
	q.Start()

	block := make(chan struct{})
	require.True(t, q.Submit(func() { <-block }))

	time.Sleep(20 * time.Millisecond)

	var ran atomic.Bool

	waited := make(chan bool, 1)

	require.True(t, q.Submit(func() { ran.Store(true) }))

	go func() {
		waited <- q.SubmitAndWait(func() { ran.Store(true) })
	}()

	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})

	go func() {
		q.Stop()
		close(stopped)
	}()

	// Let Stop drain the queue before the consumer finishes its task.
	time.Sleep(20 * time.Millisecond)
	close(block)
	<-stopped

	assert.False(t, ran.Load(), "drained tasks must not execute")

	select {
	case ok := <-waited:
		assert.False(t, ok, "drained waiter must be released with false")
	case <-time.After(time.Second):
		t.Fatal("SubmitAndWait caller not released by Stop")
	}
}

func TestRestartAcceptsNewWork(t *testing.T) {
	q := New("test", logger.NewTestLogger())
	q.Start()
	q.Restart()

	defer q.Stop()

	assert.True(t, q.SubmitAndWait(func() {}))
}

func TestTaskPanicIsContained(t *testing.T) {
	q := newTestQueue(t)

	require.True(t, q.SubmitAndWait(func() { panic("host callback") }))
	assert.True(t, q.SubmitAndWait(func() {}))
}
