// Package nlog is the core's logger: leveled, optionally scoped to a
// running module's name and id, backed by zerolog.
package nlog

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var root = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).With().Timestamp().Logger()

var verbose atomic.Bool

// SetVerbose toggles Info-level output; Warning and Error always print.
func SetVerbose(v bool) { verbose.Store(v) }

func Infof(format string, args ...any) {
	if verbose.Load() {
		root.Info().Msgf(format, args...)
	}
}

func Infoln(args ...any) {
	if verbose.Load() {
		root.Info().Msg(sprint(args...))
	}
}

func Warningf(format string, args ...any) { root.Warn().Msgf(format, args...) }
func Warningln(args ...any)               { root.Warn().Msg(sprint(args...)) }
func Errorf(format string, args ...any)   { root.Error().Msgf(format, args...) }
func Errorln(args ...any)                 { root.Error().Msg(sprint(args...)) }

// Fatalf logs at ERROR level and terminates the process. Unlike
// internal/debug's assertions (compiled out in release builds), this is
// for structural invariant violations the design requires to always
// abort - a desynchronized connection graph, a refcount underflow -
// never merely a development-time check.
func Fatalf(format string, args ...any) {
	root.Error().Msgf(format, args...)
	os.Exit(1)
}

// Logger is a view of the root logger scoped to a single named, identified
// entity - a running module, an allocator, a worker. Mirrors the teacher's
// "logger view scoped to its name+id" requirement for RunningModule.
type Logger struct {
	name string
	id   uint64
}

// Named returns a Logger view tagged with the given name and id, e.g. a
// RunningModule's own unique name and RunningModuleID.
func Named(name string, id uint64) *Logger { return &Logger{name: name, id: id} }

func (l *Logger) Infof(format string, args ...any) {
	if verbose.Load() {
		root.Info().Str("module", l.name).Uint64("id", l.id).Msgf(format, args...)
	}
}

func (l *Logger) Warningf(format string, args ...any) {
	root.Warn().Str("module", l.name).Uint64("id", l.id).Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...any) {
	root.Error().Str("module", l.name).Uint64("id", l.id).Msgf(format, args...)
}

func sprint(args ...any) string { return fmt.Sprint(args...) }
