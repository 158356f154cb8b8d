// Package monitoring holds the diagnostic logging hooks shared by the
// processing and search packages.
package monitoring

import (
	"log"
	"sync/atomic"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or CLI code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

var verbose atomic.Bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose toggles Debugf output.
func SetVerbose(on bool) { verbose.Store(on) }

// Verbose reports whether Debugf output is enabled.
func Verbose() bool { return verbose.Load() }

// Debugf logs through Logf only when verbose output is enabled.
func Debugf(format string, v ...interface{}) {
	if verbose.Load() {
		Logf(format, v...)
	}
}

// Stage logs the start of a named processing stage and returns a func that
// logs its completion with the elapsed time. Intended for defer.
func Stage(name string) func() {
	start := time.Now()
	Debugf("[%s] started", name)
	return func() {
		Debugf("[%s] finished in %v", name, time.Since(start).Round(time.Millisecond))
	}
}
