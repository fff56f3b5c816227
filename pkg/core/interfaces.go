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

package core

import (
	"context"

	"github.com/rallytac/magellan/pkg/models"
)

//go:generate mockgen -destination=mock_core.go -package=core github.com/rallytac/magellan/pkg/core Fetcher

// Fetcher downloads and parses one device configuration. Implementations
// block; calls are issued from the download work queue, never the
// reconciler.
type Fetcher interface {
	Fetch(ctx context.Context, url, key string) (*models.DeviceConfiguration, error)
}

// Callbacks are the host notification functions. Nil members are skipped.
// All callbacks are invoked on the reconciler goroutine; they must not
// block.
type Callbacks struct {
	OnNewTalkgroups      func(talkgroups []models.Talkgroup)
	OnModifiedTalkgroups func(talkgroups []models.Talkgroup)
	OnRemovedTalkgroups  func(ids []string)
}

// Config carries the retry policy knobs the reconciler needs.
type Config struct {
	URLRetryIntervalMs                uint64
	MaxURLConsecutiveErrors           uint64
	AbandonURLsAfterConsecutiveErrors bool
}
