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

// Package timers provides one-shot and repeating timers that fire on a
// single background goroutine with adaptive sleep.
package timers

import (
	"sync"
	"time"

	"github.com/rallytac/magellan/pkg/logger"
)

// dozeInterval is how long the timer goroutine sleeps when no timers are
// registered.
const dozeInterval = 10 * time.Minute

// Callback is invoked on the timer goroutine when a timer fires. Callbacks
// are expected to hand work off to a work queue rather than block.
type Callback func(id uint64)

type timerEvent struct {
	id        uint64
	fn        Callback
	period    time.Duration
	repeat    bool
	expiresAt time.Time
}

// Manager owns a set of timers and the goroutine that fires them.
type Manager struct {
	log logger.Logger

	mu           sync.Mutex
	timers       map[uint64]*timerEvent
	nextID       uint64
	currentSleep time.Duration
	running      bool

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup
}

// New creates a stopped Manager.
func New(log logger.Logger) *Manager {
	return &Manager{
		log:    log,
		timers: make(map[uint64]*timerEvent),
	}
}

// Start launches the timer goroutine. Starting a running manager is a
// no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.running = true
	m.timers = make(map[uint64]*timerEvent)
	m.wake = make(chan struct{}, 1)
	m.quit = make(chan struct{})
	m.recomputeSleep(time.Now())

	m.wg.Add(1)

	go m.loop()

	m.log.Debug().Msg("timer manager started")
}

// Stop halts the timer goroutine and discards all timers.
func (m *Manager) Stop() {
	m.mu.Lock()

	if !m.running {
		m.mu.Unlock()
		return
	}

	m.running = false
	quit := m.quit
	m.mu.Unlock()

	close(quit)
	m.wg.Wait()

	m.mu.Lock()
	m.timers = make(map[uint64]*timerEvent)
	m.mu.Unlock()

	m.log.Debug().Msg("timer manager stopped")
}

// SetTimer registers a timer firing after periodMs milliseconds, repeating
// when repeat is true, and returns its id.
func (m *Manager) SetTimer(fn Callback, periodMs uint64, repeat bool) uint64 {
	m.mu.Lock()

	m.nextID++
	id := m.nextID
	period := time.Duration(periodMs) * time.Millisecond

	m.timers[id] = &timerEvent{
		id:        id,
		fn:        fn,
		period:    period,
		repeat:    repeat,
		expiresAt: time.Now().Add(period),
	}

	m.recomputeSleep(time.Now())
	m.mu.Unlock()

	m.signal()

	return id
}

// CancelTimer removes a timer. Unknown ids are ignored.
func (m *Manager) CancelTimer(id uint64) {
	m.mu.Lock()
	delete(m.timers, id)
	m.recomputeSleep(time.Now())
	m.mu.Unlock()

	m.signal()
}

// RestartTimer pushes a timer's expiry out to now + period.
func (m *Manager) RestartTimer(id uint64) {
	m.mu.Lock()

	if te, ok := m.timers[id]; ok {
		te.expiresAt = time.Now().Add(te.period)
	}

	m.recomputeSleep(time.Now())
	m.mu.Unlock()

	m.signal()
}

func (m *Manager) signal() {
	m.mu.Lock()
	wake := m.wake
	running := m.running
	m.mu.Unlock()

	if !running {
		return
	}

	select {
	case wake <- struct{}{}:
	default:
	}
}

// recomputeSleep picks the next sleep interval: a quarter of the time to
// the nearest expiry, at least 1ms, or a long doze when idle. Called with
// the mutex held.
func (m *Manager) recomputeSleep(now time.Time) {
	if len(m.timers) == 0 {
		m.currentSleep = dozeInterval
		return
	}

	nearest := time.Duration(-1)

	for _, te := range m.timers {
		if !te.expiresAt.Before(now) {
			delta := te.expiresAt.Sub(now)
			if nearest < 0 || delta < nearest {
				nearest = delta
			}
		}
	}

	sleep := nearest / 4

	if sleep < time.Millisecond {
		sleep = time.Millisecond
	}

	m.currentSleep = sleep
}

func (m *Manager) loop() {
	defer m.wg.Done()

	for {
		m.mu.Lock()
		sleepFor := m.currentSleep
		m.mu.Unlock()

		t := time.NewTimer(sleepFor)

		select {
		case <-m.quit:
			t.Stop()
			return
		case <-m.wake:
			t.Stop()
		case <-t.C:
		}

		m.fireExpired()
	}
}

func (m *Manager) fireExpired() {
	now := time.Now()

	m.mu.Lock()

	var woken []*timerEvent

	for _, te := range m.timers {
		if !te.expiresAt.After(now) {
			woken = append(woken, te)

			if !te.repeat {
				delete(m.timers, te.id)
			}
		}
	}

	m.recomputeSleep(now)
	m.mu.Unlock()

	for _, te := range woken {
		te.fn(te.id)

		if te.repeat {
			m.mu.Lock()

			// The callback may have cancelled its own timer.
			if cur, ok := m.timers[te.id]; ok {
				cur.expiresAt = time.Now().Add(cur.period)
			}

			m.recomputeSleep(time.Now())
			m.mu.Unlock()
		}
	}
}
