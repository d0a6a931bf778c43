// Package nntplog wires up the process-wide structured logger: a
// logiface.Logger[*stumpy.Event] backed by stumpy's JSON writer, the same
// pairing demonstrated in logiface-stumpy's own example tests. nntpsink
// only ever logs to standard error; there is no per-connection logger
// state, so New builds one configured *Logger that the caller threads
// through the server.
package nntplog

import (
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the concrete logger type used throughout nntpsink.
type Logger = logiface.Logger[*stumpy.Event]

// New returns a Logger writing newline-delimited JSON to w. Pass os.Stderr
// in production; tests pass a bytes.Buffer to assert on emitted lines.
func New(w io.Writer) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(
			stumpy.WithWriter(w),
		),
	)
}

// Default is a Logger writing to standard error. main and the tests do not
// use it: each builds its own Logger with New.
var Default = New(os.Stderr)
