// Package logging builds the structured logger shared by the engine components.
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w at the named level.
// Unknown level names fall back to info.
func New(w io.Writer, level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "trail",
		ReportTimestamp: true,
	})
}

// Stderr returns a logger on stderr, leaving stdout free for MCP stdio and JSON output.
func Stderr(level string) *log.Logger {
	return New(os.Stderr, level)
}

// Discard returns a logger that drops everything. Used by tests and when no
// logger is injected.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
