// Package blog is the logging seam internal/render takes (as
// Renderer.Log) instead of calling the log package directly,
// mirroring cmd/spilld/main.go's Logf field on Spilld: a func value
// that callers can point at log.Printf, redirect, or leave nil to
// silence. The cmd packages log through the log package directly.
package blog

import "log"

// Logger logs a formatted line. The zero value is not callable; use
// Default or assign your own func.
type Logger func(format string, args ...interface{})

// Default logs via the standard library logger.
func Default(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// Discard throws every message away, used by tests that don't want
// log output on stderr.
func Discard(format string, args ...interface{}) {}
