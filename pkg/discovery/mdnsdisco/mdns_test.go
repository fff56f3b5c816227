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

package mdnsdisco

import (
	"sync"
	"testing"

	"github.com/grandcat/zeroconf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rallytac/magellan/pkg/discovery"
	"github.com/rallytac/magellan/pkg/logger"
	"github.com/rallytac/magellan/pkg/models"
)

type recordingSink struct {
	mu       sync.Mutex
	observed []*models.DiscoveredDevice
	lost     []string
}

func (s *recordingSink) DeviceObserved(dd *models.DiscoveredDevice) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observed = append(s.observed, dd)
}

func (s *recordingSink) DeviceLost(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lost = append(s.lost, key)
}

func testEntry(instance string, port int, ttl uint32, txt ...string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{
			Instance: instance,
			Service:  "_magellan._tcp",
			Domain:   "local.",
		},
		HostName: "gw1.local.",
		Port:     port,
		Text:     txt,
		TTL:      ttl,
	}
}

func newTestDiscoverer(t *testing.T, hook discovery.FilterHook) (*Discoverer, *recordingSink) {
	t.Helper()

	sink := &recordingSink{}

	d, err := New("_magellan._tcp", hook, sink, logger.NewTestLogger())
	require.NoError(t, err)

	return d, sink
}

func TestHandleEntryEmitsObserved(t *testing.T) {
	d, sink := newTestDiscoverer(t, nil)

	d.handleEntry(testEntry("gw-one", 8443, 120, "id={ABC}", "cv=7"))

	require.Len(t, sink.observed, 1)

	dd := sink.observed[0]
	assert.Equal(t, "Zeroconf/_magellan._tcp/local/gw-one", dd.DiscovererKey)
	assert.Equal(t, "{ABC}", dd.ID)
	assert.EqualValues(t, 7, dd.ConfigVersion)
	assert.Equal(t, "https://gw1.local:8443/config", dd.RootURL)
}

func TestHandleEntryOmitsZeroPort(t *testing.T) {
	d, sink := newTestDiscoverer(t, nil)

	d.handleEntry(testEntry("gw-one", 0, 120, "id={ABC}", "cv=1"))

	require.Len(t, sink.observed, 1)
	assert.Equal(t, "https://gw1.local/config", sink.observed[0].RootURL)
}

func TestHandleEntryZeroTTLIsRemoval(t *testing.T) {
	d, sink := newTestDiscoverer(t, nil)

	d.handleEntry(testEntry("gw-one", 8443, 0, "id={ABC}", "cv=7"))

	assert.Empty(t, sink.observed)
	require.Len(t, sink.lost, 1)
	assert.Equal(t, "Zeroconf/_magellan._tcp/local/gw-one", sink.lost[0])
}

func TestFilterHookGatesDiscovery(t *testing.T) {
	var seen []discovery.FilterDetail

	hook := func(detail discovery.FilterDetail) bool {
		seen = append(seen, detail)
		return detail.Name != "blocked"
	}

	d, sink := newTestDiscoverer(t, hook)

	d.handleEntry(testEntry("blocked", 8443, 120, "id=x", "cv=1"))
	d.handleEntry(testEntry("allowed", 8443, 120, "id=y", "cv=1"))

	require.Len(t, seen, 2)
	assert.Equal(t, "_magellan._tcp", seen[0].ServiceType)
	assert.Equal(t, "Zeroconf", seen[0].Implementation)
	assert.Equal(t, "gw1.local.", seen[0].HostName)

	require.Len(t, sink.observed, 1)
	assert.Equal(t, "y", sink.observed[0].ID)
}

func TestParseTXT(t *testing.T) {
	id, cv := parseTXT([]string{"other=1", "id={6E7A}", "cv=42"})
	assert.Equal(t, "{6E7A}", id)
	assert.EqualValues(t, 42, cv)

	id, cv = parseTXT([]string{"cv=bogus"})
	assert.Empty(t, id)
	assert.Zero(t, cv)

	id, cv = parseTXT(nil)
	assert.Empty(t, id)
	assert.Zero(t, cv)
}

func TestNewRejectsNilSink(t *testing.T) {
	_, err := New("_magellan._tcp", nil, nil, logger.NewTestLogger())
	assert.ErrorIs(t, err, errNilSink)
}

func TestNewDefaultsServiceType(t *testing.T) {
	d, _ := newTestDiscovererWithType(t, "")
	assert.Equal(t, models.DefaultServiceType, d.ServiceType())
}

func newTestDiscovererWithType(t *testing.T, serviceType string) (*Discoverer, *recordingSink) {
	t.Helper()

	sink := &recordingSink{}

	d, err := New(serviceType, nil, sink, logger.NewTestLogger())
	require.NoError(t, err)

	return d, sink
}
