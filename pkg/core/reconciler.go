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

// Package core holds the reconciler: the single-consumer loop that owns
// device state, schedules configuration fetches, and emits talkgroup
// notifications.
package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/rallytac/magellan/pkg/logger"
	"github.com/rallytac/magellan/pkg/models"
	"github.com/rallytac/magellan/pkg/workqueue"
)

// Reconciler consumes discovery and fetch-result events on the main work
// queue. The device map and registered callbacks are confined to that
// queue's consumer goroutine; no locks are needed.
type Reconciler struct {
	cfg           Config
	fetcher       Fetcher
	mainQueue     *workqueue.Queue
	downloadQueue *workqueue.Queue
	log           zerolog.Logger

	// ctx cancels in-flight fetches at shutdown. A cancelled fetch posts its
	// error result like any other failed fetch; a result whose tracker no
	// longer exists is dropped.
	ctx context.Context

	// Main-queue confined state.
	devices   map[string]*deviceTracker
	callbacks Callbacks

	// Test seams.
	now       func() time.Time
	randInt63 func(n int64) int64
}

// New creates a reconciler. The work queues must be started by the caller
// (the session layer owns their lifecycle).
func New(ctx context.Context, cfg Config, fetcher Fetcher, mainQueue, downloadQueue *workqueue.Queue, log logger.Logger) *Reconciler {
	return &Reconciler{
		cfg:           cfg,
		fetcher:       fetcher,
		mainQueue:     mainQueue,
		downloadQueue: downloadQueue,
		log:           log.WithComponent("core"),
		ctx:           ctx,
		devices:       make(map[string]*deviceTracker),
		now:           time.Now,
		randInt63:     rand.Int63n,
	}
}

// DeviceObserved implements discovery.Sink. Safe to call from any
// goroutine.
func (r *Reconciler) DeviceObserved(dd *models.DiscoveredDevice) {
	r.mainQueue.Submit(func() {
		r.observe(dd)
	})
}

// DeviceLost implements discovery.Sink. Safe to call from any goroutine.
func (r *Reconciler) DeviceLost(key string) {
	r.mainQueue.Submit(func() {
		r.lost(key)
	})
}

// SetCallbacks swaps the host notification functions. The swap rides the
// main queue so in-flight notifications always observe a consistent set.
func (r *Reconciler) SetCallbacks(cb Callbacks) {
	r.mainQueue.Submit(func() {
		r.callbacks = cb
	})
}

// SubmitURLCheck posts a URL-retry scan onto the main queue. Called from
// the timer goroutine.
func (r *Reconciler) SubmitURLCheck() {
	r.mainQueue.Submit(r.performURLChecking)
}

// SubmitHousekeeping posts a housekeeping pass onto the main queue. Called
// from the timer goroutine.
func (r *Reconciler) SubmitHousekeeping() {
	r.mainQueue.Submit(r.performHousekeeping)
}

// observe handles one DeviceObserved event. Main-queue confined.
func (r *Reconciler) observe(dd *models.DiscoveredDevice) {
	dt, exists := r.devices[dd.DiscovererKey]

	if !exists {
		dt = &deviceTracker{
			key:   dd.DiscovererKey,
			url:   dd.RootURL,
			state: StateInProgress,
		}
		r.devices[dd.DiscovererKey] = dt

		r.log.Debug().Str("device", dd.String()).Msg("device not found, querying")
		r.enqueueFetch(dt.key, dt.url)

		return
	}

	if dt.cached.Version == dd.ConfigVersion {
		r.log.Debug().Str("device", dd.String()).Msg("cached version")
		return
	}

	if dt.state == StateInProgress || dt.state == StatePending {
		r.log.Debug().Str("device", dd.String()).Msg("query already in progress or scheduled")
		return
	}

	// Complete at a different version: the device bumped its configuration.
	dt.url = dd.RootURL
	dt.state = StateInProgress

	r.log.Debug().Str("device", dd.String()).Msg("new version, querying")
	r.enqueueFetch(dt.key, dt.url)
}

// lost handles one DeviceLost event. Main-queue confined.
func (r *Reconciler) lost(key string) {
	dt, exists := r.devices[key]
	if !exists {
		return
	}

	r.log.Debug().Str("key", key).Msg("device lost")

	r.notifyOfLostDevice(dt)
	delete(r.devices, key)
}

// enqueueFetch hands a download to the download queue. The result posts
// back to the main queue. Main-queue confined.
func (r *Reconciler) enqueueFetch(key, url string) {
	r.downloadQueue.Submit(func() {
		cfg, err := r.fetcher.Fetch(r.ctx, url, key)

		r.mainQueue.Submit(func() {
			r.onFetchResult(key, cfg, err)
		})
	})
}

// onFetchResult applies one fetch outcome. Main-queue confined.
func (r *Reconciler) onFetchResult(key string, cfg *models.DeviceConfiguration, err error) {
	dt, exists := r.devices[key]
	if !exists {
		// The discoverer already declared the device lost.
		r.log.Debug().Str("key", key).Msg("no tracker for fetch result, dropping")
		return
	}

	if err != nil {
		r.log.Error().Err(err).Str("key", key).Msg("configuration fetch failed")
		r.handleFetchError(dt)

		return
	}

	if cfg.Version < dt.cached.Version {
		r.log.Warn().Str("key", key).
			Uint64("cached", dt.cached.Version).
			Uint64("fetched", cfg.Version).
			Msg("fetched configuration is older than cached, discarding")

		dt.consecutiveErrors = 0
		dt.nextCheckTs = time.Time{}
		dt.state = StateComplete

		return
	}

	dt.consecutiveErrors = 0
	dt.nextCheckTs = time.Time{}

	removed, modified, added := diffTalkgroups(dt.cached.Talkgroups, cfg.Talkgroups)

	if len(removed) > 0 && r.callbacks.OnRemovedTalkgroups != nil {
		for _, id := range removed {
			r.log.Debug().Str("id", id).Msg("notify of removed talkgroup")
		}

		r.callbacks.OnRemovedTalkgroups(removed)
	}

	if len(modified) > 0 && r.callbacks.OnModifiedTalkgroups != nil {
		for i := range modified {
			r.log.Debug().Str("id", modified[i].ID).Msg("notify of modified talkgroup")
		}

		r.callbacks.OnModifiedTalkgroups(modified)
	}

	if len(added) > 0 && r.callbacks.OnNewTalkgroups != nil {
		for i := range added {
			r.log.Debug().Str("id", added[i].ID).Msg("notify of new talkgroup")
		}

		r.callbacks.OnNewTalkgroups(added)
	}

	dt.cached = *cfg
	dt.state = StateComplete
}

// handleFetchError applies the retry policy after a failed fetch.
// Main-queue confined.
func (r *Reconciler) handleFetchError(dt *deviceTracker) {
	dt.consecutiveErrors++

	if dt.consecutiveErrors >= r.cfg.MaxURLConsecutiveErrors {
		if r.cfg.AbandonURLsAfterConsecutiveErrors {
			r.log.Error().Str("key", dt.key).Msg("too many consecutive errors, abandoning")

			r.notifyOfLostDevice(dt)
			delete(r.devices, dt.key)

			return
		}

		dt.consecutiveErrors = r.cfg.MaxURLConsecutiveErrors
	}

	now := r.now()

	backoff := time.Duration(dt.consecutiveErrors) * time.Second

	jitterWindow := int64(dt.consecutiveErrors * r.cfg.URLRetryIntervalMs)
	if jitterWindow > 0 {
		backoff += time.Duration(r.randInt63(jitterWindow)) * time.Millisecond
	}

	dt.nextCheckTs = now.Add(backoff)
	dt.state = StatePending

	r.log.Error().Str("key", dt.key).
		Dur("nextCheckIn", backoff).
		Uint64("consecutiveErrors", dt.consecutiveErrors).
		Msg("scheduled next check")
}

// notifyOfLostDevice emits a removal for every cached talkgroup of a
// tracker that is going away. Main-queue confined.
func (r *Reconciler) notifyOfLostDevice(dt *deviceTracker) {
	if len(dt.cached.Talkgroups) == 0 || r.callbacks.OnRemovedTalkgroups == nil {
		return
	}

	ids := make([]string, 0, len(dt.cached.Talkgroups))

	for i := range dt.cached.Talkgroups {
		r.log.Debug().Str("id", dt.cached.Talkgroups[i].ID).Msg("notify talkgroup has gone")
		ids = append(ids, dt.cached.Talkgroups[i].ID)
	}

	r.callbacks.OnRemovedTalkgroups(ids)
}

// performURLChecking flips due Pending trackers to InProgress and enqueues
// their fetches. Main-queue confined.
func (r *Reconciler) performURLChecking() {
	r.log.Debug().Msg("performUrlChecking")

	now := r.now()

	for _, dt := range r.devices {
		if dt.state != StatePending {
			continue
		}

		if !dt.nextCheckTs.IsZero() && !dt.nextCheckTs.After(now) {
			dt.state = StateInProgress
			dt.nextCheckTs = time.Time{}

			r.enqueueFetch(dt.key, dt.url)
		}
	}
}

// performHousekeeping is reserved for liveness checks and metrics.
// Main-queue confined.
func (r *Reconciler) performHousekeeping() {
	r.log.Debug().Int("trackers", len(r.devices)).Msg("performHousekeeping")
}
