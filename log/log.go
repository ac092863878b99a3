/*
Copyright (C) 2024 The locator-ros-bridge Authors

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as
published by the Free Software Foundation, either version 3 of the
License, or (at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package log provides the leveled loggers used across the bridge.
package log

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Level represents the level of logging.
type Level int

// Different levels of logging.
const (
	DebugLevel Level = iota
	InfoLevel
	ErrorLevel
	DisabledLevel
)

// The set of default loggers for each log level.
var (
	Debug = &logger{DebugLevel}
	Info  = &logger{InfoLevel}
	Error = &logger{ErrorLevel}
)

var (
	mu           sync.RWMutex
	currentLevel = InfoLevel
	zl           = newZerolog(os.Stderr)
)

func newZerolog(w io.Writer) zerolog.Logger {
	cw := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006/01/02 15:04:05.000000",
		NoColor:    true,
	}

	return zerolog.New(cw).With().Timestamp().Logger()
}

// SetLevel sets the minimum level that will actually be written out.
func SetLevel(l Level) {
	mu.Lock()
	currentLevel = l
	mu.Unlock()
}

// SetOutput redirects the log output to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	zl = newZerolog(w)
	mu.Unlock()
}

// Printf writes a formatted message to the log.
func Printf(format string, v ...interface{}) {
	Info.Printf(format, v...)
}

// Print writes a message to the log.
func Print(v ...interface{}) {
	Info.Print(v...)
}

// Println writes a line to the log.
func Println(v ...interface{}) {
	Info.Println(v...)
}

// Fatalf writes a formatted message to the log, then exits.
func Fatalf(format string, v ...interface{}) {
	mu.RLock()
	l := zl
	mu.RUnlock()

	l.Fatal().Msgf(format, v...)
}

type logger struct {
	level Level
}

func (l *logger) event() *zerolog.Event {
	mu.RLock()
	defer mu.RUnlock()

	if l.level < currentLevel {
		return nil
	}

	switch l.level {
	case DebugLevel:
		return zl.Debug()
	case ErrorLevel:
		return zl.Error()
	default:
		return zl.Info()
	}
}

// Printf writes a formatted message to the log.
func (l *logger) Printf(format string, v ...interface{}) {
	if e := l.event(); e != nil {
		e.Msgf(format, v...)
	}
}

// Print writes a message to the log.
func (l *logger) Print(v ...interface{}) {
	if e := l.event(); e != nil {
		e.Msg(fmt.Sprint(v...))
	}
}

// Println writes a line to the log.
func (l *logger) Println(v ...interface{}) {
	l.Print(v...)
}
