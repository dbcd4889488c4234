// Package monitoring holds the package-level diagnostic logger shared
// by the training, persistence, and rendering layers.
package monitoring

import "log"

// Logf is the diagnostic logger. It defaults to log.Printf; tests or
// embedding callers can redirect or mute it via SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
