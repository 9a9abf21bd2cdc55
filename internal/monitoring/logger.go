// Package monitoring holds the diagnostic logger shared by the feature
// stages and the run ledger.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be redirected or muted with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Timed logs the start of a named step and returns a func that logs its
// elapsed time when called.
//
//	defer monitoring.Timed("temporal")()
func Timed(step string) func() {
	start := time.Now()
	Logf("[%s] started", step)
	return func() {
		Logf("[%s] finished in %s", step, time.Since(start).Round(time.Millisecond))
	}
}
