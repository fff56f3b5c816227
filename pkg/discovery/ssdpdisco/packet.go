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

package ssdpdisco

import (
	"strconv"
	"strings"
)

type ssdpMethod int

const (
	methodUnknown ssdpMethod = iota
	methodMSearch
	methodNotify
	methodResponse
)

const (
	startLineMSearch  = "M-SEARCH * HTTP/1.1"
	startLineNotify   = "NOTIFY * HTTP/1.1"
	startLineResponse = "HTTP/1.1 200 OK"
)

// packet is one parsed SSDP datagram.
type packet struct {
	method       ssdpMethod
	st           string
	usn          string
	location     string
	smID         string
	deviceType   string
	cacheControl string
	server       string
	date         string
	magellanID   string
	magellanCv   string
}

// parsePacket classifies the start line and collects the recognized
// case-insensitive "Field: Value" headers. It returns nil for datagrams
// that are not SSDP.
func parsePacket(raw []byte) *packet {
	if len(raw) == 0 {
		return nil
	}

	msg := string(raw)

	lines := strings.Split(msg, "\r\n")
	if len(lines) < 2 {
		return nil
	}

	p := &packet{}

	switch strings.TrimSpace(lines[0]) {
	case startLineMSearch:
		p.method = methodMSearch
	case startLineNotify:
		p.method = methodNotify
	case startLineResponse:
		p.method = methodResponse
	default:
		return nil
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}

		parseFieldLine(line, p)
	}

	return p
}

func parseFieldLine(line string, p *packet) {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return
	}

	field := strings.TrimSpace(line[:colon])
	value := strings.TrimSpace(line[colon+1:])

	if field == "" {
		return
	}

	switch strings.ToLower(field) {
	case "st", "nt": // NT and ST are the same
		p.st = value
	case "usn":
		p.usn = value
	case "location":
		p.location = value
	case "cache-control":
		p.cacheControl = value
	case "server":
		p.server = value
	case "date":
		p.date = value
	case "sm_id":
		p.smID = value
	case "dev_type":
		p.deviceType = value
	case "x-magellan-id":
		p.magellanID = value
	case "x-magellan-cv":
		p.magellanCv = value
	}
}

// maxAgeSecs extracts N from a "max-age=N" cache-control value, returning 0
// when absent or malformed.
func maxAgeSecs(cacheControl string) int {
	eq := strings.IndexByte(cacheControl, '=')
	if eq < 0 {
		return 0
	}

	n, err := strconv.Atoi(strings.TrimSpace(cacheControl[eq+1:]))
	if err != nil || n < 0 {
		return 0
	}

	return n
}
