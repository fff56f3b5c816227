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
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Host logging levels, 0..4 fatal..debug.
const (
	LevelFatal = 0
	LevelError = 1
	LevelWarn  = 2
	LevelInfo  = 3
	LevelDebug = 4
)

// Hook receives every emitted log event when registered via SetOutputHook.
type Hook func(level int, tag, msg string)

// switchableWriter is the logger sink. It writes to the fallback writer
// until a host hook is installed, then hands each event to the hook instead.
type switchableWriter struct {
	mu       sync.RWMutex
	fallback io.Writer
	hook     Hook
}

func newSwitchableWriter(fallback io.Writer) *switchableWriter {
	return &switchableWriter{fallback: fallback}
}

func (w *switchableWriter) setFallback(out io.Writer) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.fallback = out
}

func (w *switchableWriter) setHook(hook Hook) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.hook = hook
}

// hookEvent is the subset of a zerolog line the hook cares about.
type hookEvent struct {
	Level     string `json:"level"`
	Component string `json:"component"`
	Message   string `json:"message"`
}

func (w *switchableWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	hook := w.hook
	fallback := w.fallback
	w.mu.RUnlock()

	if hook == nil {
		return fallback.Write(p)
	}

	var ev hookEvent
	if err := json.Unmarshal(p, &ev); err != nil {
		// Not a structured event; pass it through verbatim.
		hook(LevelInfo, "", string(p))
		return len(p), nil
	}

	hook(hostLevelFor(ev.Level), ev.Component, ev.Message)

	return len(p), nil
}

func hostLevelFor(zl string) int {
	switch zl {
	case zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return LevelFatal
	case zerolog.LevelErrorValue:
		return LevelError
	case zerolog.LevelWarnValue:
		return LevelWarn
	case zerolog.LevelInfoValue:
		return LevelInfo
	default:
		return LevelDebug
	}
}

func zerologLevelFor(hostLevel int) zerolog.Level {
	switch hostLevel {
	case LevelFatal:
		return zerolog.FatalLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

// LogMessage emits a message through the active logger on behalf of the host
// application.
func LogMessage(level int, tag, msg string) {
	l := WithComponent(tag)

	switch level {
	case LevelFatal:
		l.Error().Str("severity", "fatal").Msg(msg)
	case LevelError:
		l.Error().Msg(msg)
	case LevelWarn:
		l.Warn().Msg(msg)
	case LevelInfo:
		l.Info().Msg(msg)
	default:
		l.Debug().Msg(msg)
	}
}
