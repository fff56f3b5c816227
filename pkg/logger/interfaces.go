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
	"io"

	"github.com/rs/zerolog"
)

type Logger interface {
	Trace() *zerolog.Event
	Debug() *zerolog.Event
	Info() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
	Fatal() *zerolog.Event
	Panic() *zerolog.Event
	With() zerolog.Context
	WithComponent(component string) zerolog.Logger
	SetLevel(level zerolog.Level)
}

// defaultLogger adapts the package-level singleton to the Logger interface.
type defaultLogger struct{}

// NewDefaultLogger returns a Logger backed by the process-wide logger state.
func NewDefaultLogger() Logger {
	initDefaults()
	return &defaultLogger{}
}

func (*defaultLogger) Trace() *zerolog.Event { return Trace() }
func (*defaultLogger) Debug() *zerolog.Event { return Debug() }
func (*defaultLogger) Info() *zerolog.Event  { return Info() }
func (*defaultLogger) Warn() *zerolog.Event  { return Warn() }
func (*defaultLogger) Error() *zerolog.Event { return Error() }
func (*defaultLogger) Fatal() *zerolog.Event { return Fatal() }
func (*defaultLogger) Panic() *zerolog.Event { return Panic() }
func (*defaultLogger) With() zerolog.Context { return With() }
func (*defaultLogger) WithComponent(component string) zerolog.Logger {
	return WithComponent(component)
}
func (*defaultLogger) SetLevel(level zerolog.Level) { SetLevel(level) }

// NewTestLogger creates a no-op logger for testing that discards all output
func NewTestLogger() Logger {
	nopLogger := zerolog.New(io.Discard).Level(zerolog.Disabled)
	return &testLogger{nop: nopLogger}
}

// testLogger is a simple logger implementation for testing
type testLogger struct {
	nop zerolog.Logger
}

func (t *testLogger) Trace() *zerolog.Event { return t.nop.Trace() }
func (t *testLogger) Debug() *zerolog.Event { return t.nop.Debug() }
func (t *testLogger) Info() *zerolog.Event  { return t.nop.Info() }
func (t *testLogger) Warn() *zerolog.Event  { return t.nop.Warn() }
func (t *testLogger) Error() *zerolog.Event { return t.nop.Error() }
func (t *testLogger) Fatal() *zerolog.Event { return t.nop.Fatal() }
func (t *testLogger) Panic() *zerolog.Event { return t.nop.Panic() }
func (t *testLogger) With() zerolog.Context { return t.nop.With() }
func (t *testLogger) WithComponent(component string) zerolog.Logger {
	return t.nop.With().Str("component", component).Logger()
}
func (t *testLogger) SetLevel(level zerolog.Level) { t.nop = t.nop.Level(level) }
