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

// Package models defines the Magellan data model: device configurations,
// talkgroups, and the process-wide library configuration.
package models

// NetworkAddress is an address/port pair.
type NetworkAddress struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
}

// Matches reports structural equality.
func (a *NetworkAddress) Matches(other *NetworkAddress) bool {
	return a.Address == other.Address && a.Port == other.Port
}

// Rallypoint is a relay host a talkgroup may be reached through.
type Rallypoint struct {
	Host NetworkAddress `json:"host"`
}

// Matches reports structural equality.
func (r *Rallypoint) Matches(other *Rallypoint) bool {
	return r.Host.Matches(&other.Host)
}

// Presence describes how presence information is published on a talkgroup.
type Presence struct {
	ForceOnAudioTransmit bool `json:"forceOnAudioTransmit"`
	Format               int  `json:"format"`
	IntervalSecs         int  `json:"intervalSecs"`
}

// Matches reports structural equality.
func (p *Presence) Matches(other *Presence) bool {
	return p.ForceOnAudioTransmit == other.ForceOnAudioTransmit &&
		p.Format == other.Format &&
		p.IntervalSecs == other.IntervalSecs
}

// TxAudio carries the audio transmit parameters of a talkgroup.
type TxAudio struct {
	Encoder               string `json:"encoder"`
	Fdx                   bool   `json:"fdx"`
	MaxTxSecs             int    `json:"maxTxSecs"`
	FramingMs             int    `json:"framingMs"`
	NoHdrExt              bool   `json:"noHdrExt"`
	ExtensionSendInterval int    `json:"extensionSendInterval"`
	InitialHeaderBurst    int    `json:"initialHeaderBurst"`
	TrailingHeaderBurst   int    `json:"trailingHeaderBurst"`
}

// Matches reports structural equality.
func (t *TxAudio) Matches(other *TxAudio) bool {
	return t.Encoder == other.Encoder &&
		t.Fdx == other.Fdx &&
		t.MaxTxSecs == other.MaxTxSecs &&
		t.FramingMs == other.FramingMs &&
		t.NoHdrExt == other.NoHdrExt &&
		t.ExtensionSendInterval == other.ExtensionSendInterval &&
		t.InitialHeaderBurst == other.InitialHeaderBurst &&
		t.TrailingHeaderBurst == other.TrailingHeaderBurst
}

// NetworkOptions carries QoS-related socket options for a talkgroup.
type NetworkOptions struct {
	Priority int `json:"priority"`
	TTL      int `json:"ttl"`
}

// Matches reports structural equality.
func (n *NetworkOptions) Matches(other *NetworkOptions) bool {
	return n.Priority == other.Priority && n.TTL == other.TTL
}

// TalkgroupSecurity bounds the security levels offered by a talkgroup.
type TalkgroupSecurity struct {
	MinLevel int `json:"minLevel"`
	MaxLevel int `json:"maxLevel"`
}

// Matches reports structural equality.
func (s *TalkgroupSecurity) Matches(other *TalkgroupSecurity) bool {
	return s.MinLevel == other.MinLevel && s.MaxLevel == other.MaxLevel
}

// Talkgroup is a configured group of network endpoints and audio parameters
// published by a device. ID is unique within the owning device.
type Talkgroup struct {
	DeviceKey      string            `json:"deviceKey"`
	ID             string            `json:"id"`
	Type           int               `json:"type"`
	Name           string            `json:"name"`
	CryptoPassword string            `json:"cryptoPassword"`
	Presence       Presence          `json:"presence"`
	Rallypoints    []Rallypoint      `json:"rallypoints"`
	RX             NetworkAddress    `json:"rx"`
	TX             NetworkAddress    `json:"tx"`
	TxAudio        TxAudio           `json:"txAudio"`
	NetworkOptions NetworkOptions    `json:"networkOptions"`
	Security       TalkgroupSecurity `json:"security"`
}

// Matches reports deep structural equality, including ordered comparison of
// the rallypoint sequence.
func (t *Talkgroup) Matches(other *Talkgroup) bool {
	if t.DeviceKey != other.DeviceKey ||
		t.ID != other.ID ||
		t.Type != other.Type ||
		t.Name != other.Name ||
		t.CryptoPassword != other.CryptoPassword ||
		!t.Presence.Matches(&other.Presence) ||
		!t.RX.Matches(&other.RX) ||
		!t.TX.Matches(&other.TX) ||
		!t.TxAudio.Matches(&other.TxAudio) ||
		!t.NetworkOptions.Matches(&other.NetworkOptions) ||
		!t.Security.Matches(&other.Security) {
		return false
	}

	if len(t.Rallypoints) != len(other.Rallypoints) {
		return false
	}

	for i := range t.Rallypoints {
		if !t.Rallypoints[i].Matches(&other.Rallypoints[i]) {
			return false
		}
	}

	return true
}
