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

// magellan-watch runs discovery against the local network and prints every
// talkgroup notification as it arrives.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rallytac/magellan/pkg/core"
	"github.com/rallytac/magellan/pkg/logger"
	"github.com/rallytac/magellan/pkg/models"
	"github.com/rallytac/magellan/pkg/session"
)

// Version is set at build time via ldflags
//
//nolint:gochecknoglobals // Required for build-time ldflags injection
var Version = "dev"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to a MagellanConfiguration JSON file")
	types := flag.String("types", session.DiscoveryTypeMdns, "Comma-separated discovery types (mdns,ssdp)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("magellan-watch %s\n", Version)
		return nil
	}

	if err := logger.Init(&logger.Config{Debug: *debug, Output: "stderr"}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	configJSON := ""

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		configJSON = string(data)
	}

	svc, err := session.Initialize(configJSON)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	defer svc.Shutdown()

	svc.SetTalkgroupCallbacks(core.Callbacks{
		OnNewTalkgroups:      func(tgs []models.Talkgroup) { printEvent("new", tgs) },
		OnModifiedTalkgroups: func(tgs []models.Talkgroup) { printEvent("modified", tgs) },
		OnRemovedTalkgroups:  func(ids []string) { printEvent("removed", ids) },
	})

	tokens := make([]session.Token, 0, 2)

	for _, discoveryType := range strings.Split(*types, ",") {
		discoveryType = strings.TrimSpace(discoveryType)
		if discoveryType == "" {
			continue
		}

		token, err := svc.BeginDiscovery(discoveryType, nil)
		if err != nil {
			return fmt.Errorf("failed to begin %s discovery: %w", discoveryType, err)
		}

		tokens = append(tokens, token)

		logger.Info().Str("discoveryType", discoveryType).Msg("discovery running")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info().Msg("shutting down")

	for _, token := range tokens {
		_ = svc.EndDiscovery(token)
	}

	return nil
}

func printEvent(kind string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	fmt.Printf("%s: %s\n", kind, data)
}
