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

// Package mdnsdisco discovers devices via mDNS/DNS-SD using a zeroconf
// browse across all interfaces.
package mdnsdisco

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog"

	"github.com/rallytac/magellan/pkg/discovery"
	"github.com/rallytac/magellan/pkg/logger"
	"github.com/rallytac/magellan/pkg/models"
)

const (
	implName = "Zeroconf"

	browseDomain = "local."

	// entryBuffer absorbs bursts of resolver entries so the mDNS poll
	// goroutine is never blocked on our processing.
	entryBuffer = 32
)

var errNilSink = errors.New("sink cannot be nil")

// Discoverer browses one DNS-SD service type and reports resolved
// instances.
type Discoverer struct {
	serviceType string
	hook        discovery.FilterHook
	sink        discovery.Sink
	log         zerolog.Logger

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a stopped mDNS discoverer for the given service type. hook
// may be nil, in which case every discovery proceeds.
func New(serviceType string, hook discovery.FilterHook, sink discovery.Sink, log logger.Logger) (*Discoverer, error) {
	if sink == nil {
		return nil, errNilSink
	}

	if serviceType == "" {
		serviceType = models.DefaultServiceType
	}

	return &Discoverer{
		serviceType: serviceType,
		hook:        hook,
		sink:        sink,
		log:         log.WithComponent("mdns"),
	}, nil
}

// ServiceType returns the browsed DNS-SD service type.
func (d *Discoverer) ServiceType() string {
	return d.serviceType
}

// Start begins browsing. Starting a running discoverer is a no-op.
func (d *Discoverer) Start() error {
	if !d.running.CompareAndSwap(false, true) {
		return nil
	}

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		d.running.Store(false)
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	entries := make(chan *zeroconf.ServiceEntry, entryBuffer)

	if err := resolver.Browse(ctx, d.serviceType, browseDomain, entries); err != nil {
		cancel()
		d.running.Store(false)

		return fmt.Errorf("failed to browse %q: %w", d.serviceType, err)
	}

	d.wg.Add(1)

	go d.consumeEntries(entries)

	d.log.Debug().Str("serviceType", d.serviceType).Msg("started")

	return nil
}

// Stop halts the browse and joins the entry consumer.
func (d *Discoverer) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	d.cancel()
	d.wg.Wait()

	d.log.Debug().Msg("stopped")
}

// Pause is an advisory hint; the browse keeps running.
func (d *Discoverer) Pause() {
	d.log.Debug().Msg("paused")
}

// Resume is an advisory hint.
func (d *Discoverer) Resume() {
	d.log.Debug().Msg("resumed")
}

func (d *Discoverer) consumeEntries(entries <-chan *zeroconf.ServiceEntry) {
	defer d.wg.Done()

	for entry := range entries {
		if entry == nil {
			continue
		}

		d.handleEntry(entry)
	}
}

// handleEntry converts one resolved service entry into a discovery event.
// A zero TTL is a goodbye: the instance has left the network.
func (d *Discoverer) handleEntry(entry *zeroconf.ServiceEntry) {
	key := discovery.Key(implName, d.serviceType, trimDot(entry.Domain), entry.Instance)

	if entry.TTL == 0 {
		d.log.Debug().Str("key", key).Msg("service removed")
		d.sink.DeviceLost(key)

		return
	}

	detail := discovery.FilterDetail{
		ServiceType:    d.serviceType,
		Implementation: implName,
		Name:           entry.Instance,
		HostName:       entry.HostName,
	}

	if d.hook != nil && !d.hook(detail) {
		d.log.Debug().Str("detail", detail.String()).Msg("discovery ignored by filter hook")
		return
	}

	id, version := parseTXT(entry.Text)

	dd := &models.DiscoveredDevice{
		DiscovererKey: key,
		ID:            id,
		ConfigVersion: version,
		RootURL:       rootURL(entry.HostName, entry.Port),
	}

	d.log.Debug().
		Str("name", entry.Instance).
		Str("hostName", entry.HostName).
		Str("rootUrl", dd.RootURL).
		Uint64("configVersion", version).
		Msg("resolved service")

	d.sink.DeviceObserved(dd)
}

// parseTXT extracts the device id and configuration version from DNS-SD
// TXT records of the form "id=..." and "cv=...".
func parseTXT(txt []string) (id string, version uint64) {
	for _, record := range txt {
		switch {
		case strings.HasPrefix(record, "id="):
			id = record[len("id="):]
		case strings.HasPrefix(record, "cv="):
			if v, err := strconv.ParseUint(record[len("cv="):], 10, 64); err == nil {
				version = v
			}
		}
	}

	return id, version
}

// rootURL builds the device config endpoint, omitting the port when 0.
func rootURL(hostName string, port int) string {
	host := trimDot(hostName)

	if port > 0 {
		return fmt.Sprintf("https://%s:%d/config", host, port)
	}

	return fmt.Sprintf("https://%s/config", host)
}

func trimDot(s string) string {
	return strings.TrimSuffix(s, ".")
}
