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

// Package discovery defines the contract between transport-specific
// discoverers and the reconciler that consumes their events.
package discovery

import (
	"encoding/json"
	"fmt"

	"github.com/rallytac/magellan/pkg/models"
)

//go:generate mockgen -destination=mock_discovery.go -package=discovery github.com/rallytac/magellan/pkg/discovery Discoverer

// Discoverer is a transport-specific source of device observed/lost events.
// Start launches the transport's I/O loop on its own goroutine; Stop joins
// it. Pause and Resume are advisory hints.
type Discoverer interface {
	Start() error
	Stop()
	Pause()
	Resume()
	ServiceType() string
}

// Sink receives discovery events. Implementations must be safe to call
// from transport goroutines; the reconciler's sink posts each event onto
// the main work queue.
type Sink interface {
	DeviceObserved(dd *models.DiscoveredDevice)
	DeviceLost(key string)
}

// FilterDetail summarizes a discovery for the host filter hook.
type FilterDetail struct {
	ServiceType    string `json:"serviceType"`
	Implementation string `json:"implementation"`
	Name           string `json:"name"`
	HostName       string `json:"hostName"`
}

// String renders the detail as its JSON form for logging and for hosts
// that consume the raw summary.
func (d *FilterDetail) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}

	return string(b)
}

// FilterHook is a host-supplied predicate consulted before a discovery is
// accepted. Returning false ignores the discovery. A nil hook proceeds.
type FilterHook func(detail FilterDetail) bool

// Key builds the deterministic discoverer key for a (transport, instance)
// pair. Keys are stable across repeated observations of the same device on
// the same transport.
func Key(impl, serviceType, domain, name string) string {
	return fmt.Sprintf("%s/%s/%s/%s", impl, serviceType, domain, name)
}
