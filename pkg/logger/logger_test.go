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

package logger

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedEvent struct {
	level int
	tag   string
	msg   string
}

type hookRecorder struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (h *hookRecorder) record(level int, tag, msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, capturedEvent{level: level, tag: tag, msg: msg})
}

func (h *hookRecorder) all() []capturedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]capturedEvent, len(h.events))
	copy(out, h.events)

	return out
}

func TestOutputHookReceivesEvents(t *testing.T) {
	rec := &hookRecorder{}

	SetOutputHook(rec.record)
	defer SetOutputHook(nil)

	SetLevel(zerolog.DebugLevel)

	ssdpLog := WithComponent("ssdp")
	ssdpLog.Warn().Msg("socket closed")

	coreLog := WithComponent("core")
	coreLog.Debug().Msg("housekeeping")

	events := rec.all()
	require.Len(t, events, 2)

	assert.Equal(t, LevelWarn, events[0].level)
	assert.Equal(t, "ssdp", events[0].tag)
	assert.Equal(t, "socket closed", events[0].msg)

	assert.Equal(t, LevelDebug, events[1].level)
	assert.Equal(t, "core", events[1].tag)
}

func TestLogMessageRoutesThroughHook(t *testing.T) {
	rec := &hookRecorder{}

	SetOutputHook(rec.record)
	defer SetOutputHook(nil)

	SetLevel(zerolog.DebugLevel)

	LogMessage(LevelError, "host", "something broke")

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, LevelError, events[0].level)
	assert.Equal(t, "host", events[0].tag)
	assert.Equal(t, "something broke", events[0].msg)
}

func TestLevelMapping(t *testing.T) {
	assert.Equal(t, LevelFatal, hostLevelFor(zerolog.LevelFatalValue))
	assert.Equal(t, LevelError, hostLevelFor(zerolog.LevelErrorValue))
	assert.Equal(t, LevelWarn, hostLevelFor(zerolog.LevelWarnValue))
	assert.Equal(t, LevelInfo, hostLevelFor(zerolog.LevelInfoValue))
	assert.Equal(t, LevelDebug, hostLevelFor(zerolog.LevelDebugValue))
	assert.Equal(t, LevelDebug, hostLevelFor(zerolog.LevelTraceValue))

	assert.Equal(t, zerolog.FatalLevel, zerologLevelFor(LevelFatal))
	assert.Equal(t, zerolog.DebugLevel, zerologLevelFor(LevelDebug))
	assert.Equal(t, zerolog.DebugLevel, zerologLevelFor(99))
}

func TestSetNumericLevelFiltersEvents(t *testing.T) {
	rec := &hookRecorder{}

	SetOutputHook(rec.record)
	defer SetOutputHook(nil)

	SetNumericLevel(LevelWarn)
	defer SetLevel(zerolog.DebugLevel)

	xLog := WithComponent("x")
	xLog.Info().Msg("filtered")
	xLog.Warn().Msg("kept")

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "kept", events[0].msg)
}
