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

const (
	// DefaultServiceType is the DNS-SD service type browsed when the host
	// does not configure one.
	DefaultServiceType = "_magellan._tcp"

	defaultHouseKeeperIntervalMs   = 5000
	defaultURLCheckerIntervalMs    = 2500
	defaultURLRetryIntervalMs      = 5000
	defaultMaxURLConsecutiveErrors = 50
	defaultSsdpAddress             = "239.255.255.250"
	defaultSsdpPort                = 1900
	defaultSsdpST                  = "urn:rallytac-magellan:device:Gateway:1"
	defaultSsdpMx                  = 5
	defaultSsdpUserAgent           = "libmagellan"
	defaultSsdpMaxReconnectMs      = 10000
	defaultStaleNeighborCheckMs    = 5000
)

// RestLink configures the HTTPS link used to fetch device configurations.
type RestLink struct {
	CertFile                          string `json:"certFile"`
	CertPass                          string `json:"certPass"`
	KeyFile                           string `json:"keyFile"`
	KeyPass                           string `json:"keyPass"`
	CaBundle                          string `json:"caBundle"`
	VerifyPeer                        bool   `json:"verifyPeer"`
	VerifyHost                        bool   `json:"verifyHost"`
	URLCheckerIntervalMs              uint64 `json:"urlCheckerIntervalMs"`
	URLRetryIntervalMs                uint64 `json:"urlRetryIntervalMs"`
	MaxURLConsecutiveErrors           uint64 `json:"maxUrlConsecutiveErrors"`
	AbandonURLsAfterConsecutiveErrors bool   `json:"abandonUrlsAfterConsecutiveErrors"`
	LogURLOperation                   bool   `json:"logUrlOperation"`
}

// Mdns configures the mDNS/DNS-SD discoverer.
type Mdns struct {
	ServiceType string `json:"serviceType"`
}

// Ssdp configures the SSDP discoverer.
//
// The staleNeighorCheckIntervalMs spelling is preserved on the wire for
// compatibility with existing host configurations.
type Ssdp struct {
	Listener                     NetworkAddress `json:"listener"`
	ST                           string         `json:"st"`
	Mx                           int            `json:"mx"`
	UserAgent                    string         `json:"userAgent"`
	MaxReconnectMs               uint64         `json:"maxReconnectMs"`
	StaleNeighborCheckIntervalMs uint64         `json:"staleNeighorCheckIntervalMs"`
}

// MagellanConfiguration is the process-wide configuration passed to
// Initialize. Values are written once at initialization and read-only
// thereafter.
type MagellanConfiguration struct {
	HouseKeeperIntervalMs uint64   `json:"houseKeeperIntervalMs"`
	RestLink              RestLink `json:"restLink"`
	Mdns                  Mdns     `json:"mdns"`
	Ssdp                  Ssdp     `json:"ssdp"`
}

// NewMagellanConfiguration returns a configuration populated with defaults.
// Parse host JSON onto this value so that fields absent from the document
// keep their defaults (including verifyPeer/verifyHost true) while explicit
// false values survive.
func NewMagellanConfiguration() *MagellanConfiguration {
	cfg := &MagellanConfiguration{}
	cfg.RestLink.VerifyPeer = true
	cfg.RestLink.VerifyHost = true
	cfg.Normalize()

	return cfg
}

// Normalize applies defaults to unset non-boolean fields.
func (c *MagellanConfiguration) Normalize() {
	if c.HouseKeeperIntervalMs == 0 {
		c.HouseKeeperIntervalMs = defaultHouseKeeperIntervalMs
	}

	c.RestLink.normalize()
	c.Mdns.normalize()
	c.Ssdp.normalize()
}

func (r *RestLink) normalize() {
	if r.URLCheckerIntervalMs == 0 {
		r.URLCheckerIntervalMs = defaultURLCheckerIntervalMs
	}

	if r.URLRetryIntervalMs == 0 {
		r.URLRetryIntervalMs = defaultURLRetryIntervalMs
	}

	if r.MaxURLConsecutiveErrors == 0 {
		r.MaxURLConsecutiveErrors = defaultMaxURLConsecutiveErrors
	}
}

func (m *Mdns) normalize() {
	if m.ServiceType == "" {
		m.ServiceType = DefaultServiceType
	}
}

func (s *Ssdp) normalize() {
	if s.Listener.Address == "" {
		s.Listener.Address = defaultSsdpAddress
	}

	if s.Listener.Port <= 0 {
		s.Listener.Port = defaultSsdpPort
	}

	if s.ST == "" {
		s.ST = defaultSsdpST
	}

	if s.Mx <= 0 {
		s.Mx = defaultSsdpMx
	}

	if s.UserAgent == "" {
		s.UserAgent = defaultSsdpUserAgent
	}

	if s.MaxReconnectMs == 0 {
		s.MaxReconnectMs = defaultSsdpMaxReconnectMs
	}

	if s.StaleNeighborCheckIntervalMs == 0 {
		s.StaleNeighborCheckIntervalMs = defaultStaleNeighborCheckMs
	}
}
