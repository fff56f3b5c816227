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

package models

import "encoding/json"

// DiscoveredDevice is the transient event a discoverer emits when a device
// is observed on a transport. ConfigVersion is a monotonically increasing
// integer the device bumps on every configuration change.
type DiscoveredDevice struct {
	DiscovererKey string `json:"discovererKey"`
	ID            string `json:"id"`
	ConfigVersion uint64 `json:"configVersion"`
	RootURL       string `json:"rootUrl"`
}

// String renders the device as its JSON form for logging.
func (d *DiscoveredDevice) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}

	return string(b)
}

// ThingInfo describes the device publishing a configuration.
type ThingInfo struct {
	ID           string   `json:"id"`
	Type         string   `json:"type"`
	Manufacturer string   `json:"manufacturer"`
	Capabilities []string `json:"capabilities"`
}

// DeviceConfiguration is the payload served at a device's config endpoint.
// DiscovererKey is stamped by the fetch layer, not the device.
type DeviceConfiguration struct {
	DiscovererKey string      `json:"discovererKey"`
	Version       uint64      `json:"version"`
	DateTimeStamp string      `json:"dateTimeStamp"`
	ThingInfo     ThingInfo   `json:"thingInfo"`
	Talkgroups    []Talkgroup `json:"talkgroups"`
}
