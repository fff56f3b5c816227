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
	"time"

	"github.com/rallytac/magellan/pkg/models"
)

// State is a device tracker's fetch-cycle state.
type State int

const (
	// StateNone is the vestigial initial state; trackers are created
	// directly in StateInProgress.
	StateNone State = iota
	// StatePending means a retry is scheduled; nextCheckTs is set.
	StatePending
	// StateInProgress means a fetch is in flight. At most one fetch is in
	// flight per tracker.
	StateInProgress
	// StateComplete means the cached configuration reflects the last
	// successful fetch.
	StateComplete
)

// deviceTracker is the per-device record owned by the reconciler. It exists
// while at least one discoverer believes the device is present or a
// fetch/diff cycle is outstanding, and is only ever touched on the main
// queue.
type deviceTracker struct {
	key               string
	url               string
	state             State
	cached            models.DeviceConfiguration
	nextCheckTs       time.Time
	consecutiveErrors uint64
}

// findTalkgroup returns the talkgroup with the given id, or nil.
func findTalkgroup(id string, talkgroups []models.Talkgroup) *models.Talkgroup {
	for i := range talkgroups {
		if talkgroups[i].ID == id {
			return &talkgroups[i]
		}
	}

	return nil
}

// diffTalkgroups partitions the transition from cached to incoming into
// removed ids, modified talkgroups, and added talkgroups. Structural
// equality per Talkgroup.Matches decides modification.
func diffTalkgroups(cached, incoming []models.Talkgroup) (removed []string, modified, added []models.Talkgroup) {
	for i := range incoming {
		existing := findTalkgroup(incoming[i].ID, cached)

		switch {
		case existing == nil:
			added = append(added, incoming[i])
		case !incoming[i].Matches(existing):
			modified = append(modified, incoming[i])
		}
	}

	for i := range cached {
		if findTalkgroup(cached[i].ID, incoming) == nil {
			removed = append(removed, cached[i].ID)
		}
	}

	return removed, modified, added
}
