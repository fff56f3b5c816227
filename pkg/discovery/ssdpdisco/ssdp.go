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

// Package ssdpdisco discovers devices via SSDP: a multicast M-SEARCH probe
// plus passive NOTIFY/response parsing, with a TTL'd neighbor table.
package ssdpdisco

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/ipv4"

	"github.com/rallytac/magellan/pkg/discovery"
	"github.com/rallytac/magellan/pkg/logger"
	"github.com/rallytac/magellan/pkg/models"
)

const (
	implName = "Ssdp"

	recvBufferSize = 4096
	readTimeout    = 1 * time.Second

	// defaultNeighborTTL applies when a packet carries no usable
	// cache-control max-age.
	defaultNeighborTTL = 300 * time.Second
)

var errNilSink = errors.New("sink cannot be nil")

type neighbor struct {
	version   uint64
	expiresAt time.Time
}

// Discoverer owns one UDP socket on port 1900 and a background goroutine
// driving the receive loop. The neighbor table is touched only by that
// goroutine.
type Discoverer struct {
	cfg  models.Ssdp
	sink discovery.Sink
	log  zerolog.Logger

	running atomic.Bool
	quit    chan struct{}
	wg      sync.WaitGroup

	neighbors         map[string]*neighbor
	lastNeighborCheck time.Time
}

// New creates a stopped SSDP discoverer.
func New(cfg models.Ssdp, sink discovery.Sink, log logger.Logger) (*Discoverer, error) {
	if sink == nil {
		return nil, errNilSink
	}

	return &Discoverer{
		cfg:       cfg,
		sink:      sink,
		log:       log.WithComponent("ssdp"),
		neighbors: make(map[string]*neighbor),
	}, nil
}

// ServiceType returns the configured search target.
func (d *Discoverer) ServiceType() string {
	return d.cfg.ST
}

// Start launches the receive loop. Starting a running discoverer is a
// no-op.
func (d *Discoverer) Start() error {
	if !d.running.CompareAndSwap(false, true) {
		return nil
	}

	d.quit = make(chan struct{})

	d.wg.Add(1)

	go d.run()

	d.log.Debug().Str("st", d.cfg.ST).Msg("started")

	return nil
}

// Stop halts the receive loop, emits DeviceLost for every remaining
// neighbor, and joins the goroutine.
func (d *Discoverer) Stop() {
	if !d.running.CompareAndSwap(true, false) {
		return
	}

	close(d.quit)
	d.wg.Wait()

	d.log.Debug().Msg("stopped")
}

// Pause is an advisory hint; the transport keeps its socket open.
func (d *Discoverer) Pause() {
	d.log.Debug().Msg("paused")
}

// Resume is an advisory hint.
func (d *Discoverer) Resume() {
	d.log.Debug().Msg("resumed")
}

func (d *Discoverer) run() {
	defer d.wg.Done()

	var errCount uint64

	buf := make([]byte, recvBufferSize)

	for d.running.Load() {
		d.checkNeighbors(time.Now())

		if errCount > 0 && !d.backoff(errCount) {
			break
		}

		conn, err := d.openSocket()
		if err != nil {
			errCount++

			d.log.Error().Err(err).Uint64("errCount", errCount).Msg("socket setup failed")

			continue
		}

		if err := d.sendProbe(conn); err != nil {
			d.log.Warn().Err(err).Msg("M-SEARCH send failed")
		}

		errCount = d.receiveLoop(conn, buf, errCount)

		_ = conn.Close()
	}

	d.flushNeighbors()
}

// flushNeighbors reports every remaining neighbor as lost. Called when the
// transport shuts down; whatever is left in the table is gone as far as the
// host knows.
func (d *Discoverer) flushNeighbors() {
	for key := range d.neighbors {
		d.sink.DeviceLost(key)
	}

	d.neighbors = make(map[string]*neighbor)
}

// backoff sleeps min(errCount*100ms, maxReconnectMs) before the next
// reconnect attempt. It returns false when the discoverer stopped while
// waiting.
func (d *Discoverer) backoff(errCount uint64) bool {
	wait := time.Duration(errCount) * 100 * time.Millisecond

	maxWait := time.Duration(d.cfg.MaxReconnectMs) * time.Millisecond
	if wait > maxWait {
		wait = maxWait
	}

	d.log.Debug().Dur("wait", wait).Msg("waiting before reconnect attempt")

	select {
	case <-d.quit:
		return false
	case <-time.After(wait):
		return true
	}
}

func (d *Discoverer) openSocket() (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: reuseAddrControl}

	pc, err := lc.ListenPacket(context.Background(), "udp4", ":"+strconv.Itoa(d.cfg.Listener.Port))
	if err != nil {
		return nil, fmt.Errorf("bind failed: %w", err)
	}

	conn, ok := pc.(*net.UDPConn)
	if !ok {
		_ = pc.Close()
		return nil, errors.New("unexpected packet conn type")
	}

	group := net.ParseIP(d.cfg.Listener.Address)
	if group == nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bad multicast address %q", d.cfg.Listener.Address)
	}

	p := ipv4.NewPacketConn(conn)

	if err := p.JoinGroup(nil, &net.UDPAddr{IP: group}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("multicast join failed: %w", err)
	}

	if err := p.SetMulticastLoopback(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("multicast loopback off failed: %w", err)
	}

	return conn, nil
}

func (d *Discoverer) sendProbe(conn *net.UDPConn) error {
	probe := fmt.Sprintf(
		"M-SEARCH * HTTP/1.1\r\n"+
			"HOST: %s:%d\r\n"+
			"ST: %s\r\n"+
			"MAN: \"ssdp:discover\"\r\n"+
			"MX: %d\r\n"+
			"USER-AGENT: %s\r\n"+
			"\r\n",
		d.cfg.Listener.Address,
		d.cfg.Listener.Port,
		d.cfg.ST,
		d.cfg.Mx,
		d.cfg.UserAgent)

	dst := &net.UDPAddr{
		IP:   net.ParseIP(d.cfg.Listener.Address),
		Port: d.cfg.Listener.Port,
	}

	if _, err := conn.WriteToUDP([]byte(probe), dst); err != nil {
		return err
	}

	return nil
}

// receiveLoop reads datagrams until an error or shutdown, returning the
// updated consecutive error count.
func (d *Discoverer) receiveLoop(conn *net.UDPConn, buf []byte, errCount uint64) uint64 {
	for d.running.Load() {
		d.checkNeighbors(time.Now())

		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			d.log.Error().Err(err).Msg("set read deadline failed")
			return errCount + 1
		}

		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			d.log.Error().Err(err).Msg("recv failed")

			return errCount + 1
		}

		// Reset errors upon first successful receive.
		errCount = 0

		d.handleMessage(buf[:n], time.Now())
	}

	return errCount
}

// handleMessage applies one datagram to the neighbor table and emits
// DeviceObserved when a neighbor is new or changed version.
func (d *Discoverer) handleMessage(raw []byte, now time.Time) {
	pkt := parsePacket(raw)
	if pkt == nil {
		d.log.Debug().Msg("received unknown SSDP packet")
		return
	}

	if !strings.EqualFold(pkt.st, d.cfg.ST) {
		return
	}

	if pkt.usn == "" {
		d.log.Debug().Msg("no USN - ignoring")
		return
	}

	if pkt.magellanID == "" {
		d.log.Debug().Msg("no Magellan ID - ignoring")
		return
	}

	version, err := strconv.ParseUint(pkt.magellanCv, 10, 64)
	if pkt.magellanCv == "" || err != nil {
		d.log.Debug().Msg("no Magellan version - ignoring")
		return
	}

	key := discovery.Key(implName, pkt.st, pkt.usn, pkt.magellanID)

	nd, known := d.neighbors[key]
	needsProcessing := false

	if !known {
		nd = &neighbor{version: version}
		d.neighbors[key] = nd
		needsProcessing = true

		d.log.Info().Str("key", key).Msg("new neighbor")
	}

	nd.expiresAt = now.Add(defaultNeighborTTL)

	if secs := maxAgeSecs(pkt.cacheControl); secs > 0 {
		nd.expiresAt = now.Add(time.Duration(secs) * time.Second)
	}

	if !needsProcessing && nd.version != version {
		nd.version = version
		needsProcessing = true

		d.log.Info().Str("key", key).Uint64("version", version).Msg("neighbor changed version")
	}

	if !needsProcessing {
		return
	}

	d.sink.DeviceObserved(&models.DiscoveredDevice{
		DiscovererKey: key,
		ID:            pkt.magellanID,
		ConfigVersion: version,
		RootURL:       pkt.location,
	})
}

// checkNeighbors evicts expired neighbors, at most once per configured
// stale-check interval.
func (d *Discoverer) checkNeighbors(now time.Time) {
	interval := time.Duration(d.cfg.StaleNeighborCheckIntervalMs) * time.Millisecond

	if !d.lastNeighborCheck.IsZero() && now.Sub(d.lastNeighborCheck) < interval {
		return
	}

	d.lastNeighborCheck = now

	for key, nd := range d.neighbors {
		if !nd.expiresAt.After(now) {
			d.log.Info().Str("key", key).Msg("neighbor has disappeared")
			delete(d.neighbors, key)
			d.sink.DeviceLost(key)
		}
	}
}
