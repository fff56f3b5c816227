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

// Package logger provides JSON structured logging using zerolog, with an
// optional bridge that forwards every event to a host-registered hook.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerInstance holds the global logger state
type LoggerInstance struct {
	logger zerolog.Logger
	sink   *switchableWriter
}

// instance is the singleton logger instance
//
//nolint:gochecknoglobals // singleton pattern for logger state
var instance *LoggerInstance

type Config struct {
	Level  string `json:"level"`
	Debug  bool   `json:"debug"`
	Output string `json:"output"`
}

// initDefaults initializes the default logger instance
func initDefaults() {
	if instance == nil {
		zerolog.TimeFieldFormat = time.RFC3339
		sink := newSwitchableWriter(os.Stdout)
		instance = &LoggerInstance{
			logger: zerolog.New(sink).With().Timestamp().Logger(),
			sink:   sink,
		}
	}
}

func Init(config *Config) error {
	initDefaults()

	var output io.Writer = os.Stdout

	if config.Output == "stderr" {
		output = os.Stderr
	}

	level := zerolog.InfoLevel

	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error

		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			return err
		}
	}

	instance.sink.setFallback(output)

	instance.logger = zerolog.New(instance.sink).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = instance.logger

	return nil
}

// SetOutputHook routes all subsequent events to the host hook instead of the
// process output. A nil hook restores the previous output.
func SetOutputHook(hook Hook) {
	initDefaults()
	instance.sink.setHook(hook)
}

func SetLevel(level zerolog.Level) {
	initDefaults()

	instance.logger = instance.logger.Level(level)
	log.Logger = instance.logger
}

// SetNumericLevel sets the level from the 0..4 (fatal..debug) scale used by
// host applications.
func SetNumericLevel(level int) {
	SetLevel(zerologLevelFor(level))
}

func Trace() *zerolog.Event {
	initDefaults()
	return instance.logger.Trace()
}

func Debug() *zerolog.Event {
	initDefaults()
	return instance.logger.Debug()
}

func Info() *zerolog.Event {
	initDefaults()
	return instance.logger.Info()
}

func Warn() *zerolog.Event {
	initDefaults()
	return instance.logger.Warn()
}

func Error() *zerolog.Event {
	initDefaults()
	return instance.logger.Error()
}

func Fatal() *zerolog.Event {
	initDefaults()
	return instance.logger.Fatal()
}

func Panic() *zerolog.Event {
	initDefaults()
	return instance.logger.Panic()
}

func With() zerolog.Context {
	initDefaults()
	return instance.logger.With()
}

func WithComponent(component string) zerolog.Logger {
	initDefaults()
	return instance.logger.With().Str("component", component).Logger()
}
