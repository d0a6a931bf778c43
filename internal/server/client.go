package server

import (
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-eventloop/internal/byteq"
	"github.com/joeycumines/go-eventloop/internal/proto"
	"github.com/joeycumines/go-eventloop/internal/reactor"
)

// scratchSize is the per-read temporary buffer size; onReadable reads again
// within the same wakeup whenever one read fills it.
const scratchSize = 64 * 1024

// client is one accepted connection. Its entire lifetime is confined to
// the worker that owns it: every field is touched only from that worker's
// goroutine, so no per-client locking is required (§5's Client-confinement
// invariant). Grounded on client_t in original_source/nntpsink.c.
type client struct {
	fd       int
	worker   *worker
	rd       *byteq.Queue
	wr       *byteq.Queue
	machine  *proto.Machine
	dead     bool
	writeArm bool
	next     *client // deadlist intrusive link
	scratch  []byte
}

func newClient(fd int, w *worker) *client {
	c := &client{
		fd:      fd,
		worker:  w,
		rd:      byteq.New(),
		wr:      byteq.New(),
		machine: proto.New(w.doIhave, w.doStreaming, w.counters),
		scratch: make([]byte, scratchSize),
	}
	return c
}

// sendLine appends s + CRLF to the write buffer, flushing eagerly once the
// buffer passes byteq's flush threshold, matching client_printf's batching
// rule.
func (c *client) sendLine(s string) {
	c.wr.AppendString(s)
	c.wr.AppendString("\r\n")
	if c.wr.ShouldFlush() {
		c.flush()
	}
}

// onReadable is the read callback: pull bytes, drain complete lines
// through the protocol machine, then flush. Grounded on client_read.
func (c *client) onReadable() {
	if c.dead {
		return
	}

	for {
		n, err := c.rd.ReadFromFD(c.fd, c.scratch)
		if err != nil {
			if byteq.IsIgnorableErrno(err) {
				// Nothing more to read now; still flush any responses
				// produced by earlier reads in this wakeup.
				break
			}
			c.worker.log.Err().Int64("fd", int64(c.fd)).Err(err).Log("read error")
			c.close()
			return
		}
		if n == 0 {
			c.close()
			return
		}

		for {
			lineBytes, ok := c.rd.ReadLine()
			if !ok {
				break
			}
			if c.worker.debug {
				c.worker.log.Debug().Log(proto.DebugLine(c.fd, string(lineBytes)))
			}

			res := c.machine.HandleLine(string(lineBytes))
			for _, out := range res.Lines {
				c.sendLine(out)
			}
			if res.Close {
				c.flush()
				c.close()
				return
			}
			if c.dead {
				return
			}
		}

		// A single read(2) rarely fills scratch; once drained of complete
		// lines, loop back for another non-blocking read attempt so a
		// large pipelined burst doesn't wait for a second wakeup.
		if n < len(c.scratch) {
			break
		}
	}

	c.flush()
}

// onWritable is the write-readiness callback: flush the write buffer.
// Grounded on client_write.
func (c *client) onWritable() {
	c.flush()
}

// flush drains the write buffer to the socket, arming or disarming
// write-readiness as needed. Grounded on client_flush.
func (c *client) flush() {
	if c.dead {
		return
	}

	_, err := c.wr.WriteToFD(c.fd)
	if err != nil {
		if byteq.IsIgnorableErrno(err) {
			c.armWrite()
			return
		}
		c.worker.log.Err().Int64("fd", int64(c.fd)).Err(err).Log("write error")
		c.close()
		return
	}

	if c.wr.Len() > 0 {
		c.armWrite()
		return
	}
	c.disarmWrite()
}

func (c *client) armWrite() {
	if c.writeArm {
		return
	}
	c.writeArm = true
	_ = c.worker.poller.ModifyFD(c.fd, reactor.EventRead|reactor.EventWrite)
}

func (c *client) disarmWrite() {
	if !c.writeArm {
		return
	}
	c.writeArm = false
	_ = c.worker.poller.ModifyFD(c.fd, reactor.EventRead)
}

// close is idempotent: disarm readiness, mark DEAD, and link onto the
// worker's deadlist for the prepare-phase sweep. Grounded on client_close.
func (c *client) close() {
	if c.dead {
		return
	}
	_ = c.worker.poller.UnregisterFD(c.fd)
	c.dead = true
	c.worker.deadlistPush(c)
}

// destroy releases the fd and buffers. Only called from the prepare-phase
// sweep, never from within a client's own callback. Grounded on
// client_destroy.
func (c *client) destroy() {
	_ = unix.Close(c.fd)
	c.rd = nil
	c.wr = nil
}
