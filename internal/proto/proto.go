// Package proto implements the per-connection NNTP protocol state machine:
// command parsing in the NORMAL state, and the silent line-consuming
// TAKETHIS/IHAVE states that end on a lone "." terminator. It is
// deliberately I/O-free — Machine consumes one line at a time and returns
// the response lines to write, so the caller (internal/server's Client)
// owns all socket and buffering concerns.
//
// Grounded on the NORMAL/TAKETHIS/IHAVE dispatch in
// original_source/nntpsink.c's client_read, reshaped as an explicit state
// machine rather than a switch inside the read loop.
package proto

import (
	"strconv"
	"strings"
)

// State is one of the three protocol states a connection can be in.
type State int

const (
	// StateNormal accepts commands: CAPABILITIES, QUIT, MODE, CHECK,
	// TAKETHIS, IHAVE.
	StateNormal State = iota
	// StateTakethis consumes article body lines silently until a lone ".".
	StateTakethis
	// StateIhave consumes article body lines silently until a lone ".".
	StateIhave
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateTakethis:
		return "TAKETHIS"
	case StateIhave:
		return "IHAVE"
	default:
		return "UNKNOWN"
	}
}

// Version is reported in the CAPABILITIES IMPLEMENTATION line.
const Version = "1.0"

// Counters receives increments for the two stats-ticker counters the
// protocol drives (send and accept) as a side effect of protocol events. A
// nil Counters is valid: Machine skips the calls in that case.
type Counters interface {
	IncSend()
	IncAccept()
}

// Machine is one connection's protocol state. The zero value is not
// usable; construct with New.
type Machine struct {
	state        State
	msgID        string
	doIhave      bool
	doStreaming  bool
	counters     Counters
}

// New returns a Machine in StateNormal. doIhave and doStreaming mirror the
// -I/-S CLI flags: at least one must be true, enforced by internal/config
// rather than here. counters may be nil.
func New(doIhave, doStreaming bool, counters Counters) *Machine {
	return &Machine{
		doIhave:     doIhave,
		doStreaming: doStreaming,
		counters:    counters,
	}
}

// State returns the machine's current state.
func (m *Machine) State() State {
	return m.state
}

// MessageID returns the message-id currently held open by a TAKETHIS or
// IHAVE in progress, or "" in StateNormal.
func (m *Machine) MessageID() string {
	return m.msgID
}

// Result is the outcome of feeding one line to the machine.
type Result struct {
	// Lines are the CRLF-free response lines to send, in order. The
	// caller appends "\r\n" to each when writing to the wire.
	Lines []string
	// Close indicates the connection should be closed (QUIT was received).
	Close bool
}

func line(s string) Result { return Result{Lines: []string{s}} }
func lines(s ...string) Result { return Result{Lines: s} }

// HandleLine feeds one line (without its line terminator) to the machine
// and returns the response to emit. Dot-stuffing is never un-escaped:
// bodies pass through untouched, since the sink never inspects article
// content.
func (m *Machine) HandleLine(raw string) Result {
	switch m.state {
	case StateTakethis, StateIhave:
		return m.handleBodyLine(raw)
	default:
		return m.handleCommand(raw)
	}
}

func (m *Machine) handleBodyLine(raw string) Result {
	if raw != "." {
		return Result{}
	}
	id := m.msgID
	wasTakethis := m.state == StateTakethis
	m.msgID = ""
	m.state = StateNormal
	if m.counters != nil {
		m.counters.IncAccept()
	}
	if wasTakethis {
		return line("239 " + id)
	}
	return line("235 " + id)
}

func (m *Machine) handleCommand(raw string) Result {
	cmd, arg := splitCommand(raw)
	switch strings.ToUpper(cmd) {
	case "CAPABILITIES":
		return m.capabilities()
	case "QUIT":
		return Result{Close: true}
	case "MODE":
		return m.mode(arg)
	case "CHECK":
		return m.check(arg)
	case "TAKETHIS":
		return m.takethis(arg)
	case "IHAVE":
		return m.ihave(arg)
	default:
		return line("500 Unknown command.")
	}
}

// splitCommand splits raw at the first space, trims leading whitespace
// from the argument, and reports an empty argument as "".
func splitCommand(raw string) (cmd, arg string) {
	idx := strings.IndexByte(raw, ' ')
	if idx < 0 {
		return raw, ""
	}
	return raw[:idx], strings.TrimLeft(raw[idx+1:], " \t")
}

func (m *Machine) capabilities() Result {
	out := []string{
		"101 Capability list:",
		"VERSION 2",
		"IMPLEMENTATION nntpsink " + Version,
	}
	if m.doIhave {
		out = append(out, "IHAVE")
	}
	if m.doStreaming {
		out = append(out, "STREAMING")
	}
	out = append(out, ".")
	return lines(out...)
}

func (m *Machine) mode(arg string) Result {
	if strings.EqualFold(arg, "STREAM") && m.doStreaming {
		return line("203 Streaming OK.")
	}
	return line("501 Unknown MODE.")
}

func (m *Machine) check(arg string) Result {
	if !m.doStreaming {
		return line("500 Unknown command.")
	}
	if arg == "" {
		return line("501 Missing message-id.")
	}
	if m.counters != nil {
		m.counters.IncSend()
	}
	return line("238 " + arg)
}

func (m *Machine) takethis(arg string) Result {
	if !m.doStreaming {
		return line("500 Unknown command.")
	}
	if arg == "" {
		return line("501 Missing message-id.")
	}
	m.msgID = arg
	m.state = StateTakethis
	return Result{}
}

func (m *Machine) ihave(arg string) Result {
	if !m.doIhave {
		return line("500 Unknown command.")
	}
	if arg == "" {
		return line("501 Missing message-id.")
	}
	m.msgID = arg
	m.state = StateIhave
	if m.counters != nil {
		m.counters.IncSend()
	}
	return line("335 " + arg)
}

// Greeting is the line emitted exactly once when a connection is accepted.
const Greeting = "200 nntpsink ready."

// DebugLine formats a line the way -D's debug logging prints an inbound
// line, for callers that want to reuse the exact format in tests.
func DebugLine(fd int, raw string) string {
	return "[" + strconv.Itoa(fd) + "] <- [" + raw + "]"
}
