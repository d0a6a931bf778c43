// Package server assembles the acceptor/worker event-loop architecture and
// the per-connection protocol wiring described by the nntpsink design:
// one acceptor goroutine round-robins accepted connections across N
// worker goroutines, each running its own epoll/kqueue Poller and owning
// its clients exclusively. Grounded on thread_t/thread_run/thread_accept/
// thread_deadlist in original_source/nntpsink.c, reshaped onto
// internal/reactor's Poller and Wakeup instead of libev.
package server

import (
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"

	"github.com/joeycumines/go-eventloop/internal/proto"
	"github.com/joeycumines/go-eventloop/internal/reactor"
	"github.com/joeycumines/go-eventloop/internal/stats"
)

// worker is one single-threaded event loop, confined to its own OS
// thread via runtime.LockOSThread in Server.Run. It owns a Poller, a Wakeup, a
// pending-accept FIFO, and every client fd it has registered. Grounded on
// thread_t.
type worker struct {
	id          int
	poller      *reactor.Poller
	wakeup      *reactor.Wakeup
	accepts     acceptQueue
	clients     map[int]*client
	deadHead    *client
	doIhave     bool
	doStreaming bool
	debug       bool
	counters    *stats.Counters
	log         *logiface.Logger[*stumpy.Event]
}

// newWorker constructs a worker; the caller still must call Init before
// Run.
func newWorker(id int, doIhave, doStreaming, debug bool, counters *stats.Counters, log *logiface.Logger[*stumpy.Event]) *worker {
	return &worker{
		id:          id,
		clients:     make(map[int]*client),
		doIhave:     doIhave,
		doStreaming: doStreaming,
		debug:       debug,
		counters:    counters,
		log:         log,
	}
}

// Init creates the worker's Poller and Wakeup and registers the wakeup fd
// for readability (on platforms where wake-up uses a pollable fd).
func (w *worker) Init() error {
	w.poller = &reactor.Poller{}
	if err := w.poller.Init(); err != nil {
		return err
	}

	wk, err := reactor.NewWakeup()
	if err != nil {
		return err
	}
	w.wakeup = wk

	if wk.ReadFD() >= 0 {
		if err := w.poller.RegisterFD(wk.ReadFD(), reactor.EventRead, func(reactor.IOEvents) {
			w.wakeup.Drain()
			w.drainAccepts()
		}); err != nil {
			return err
		}
	}
	return nil
}

// enqueueAccept is called from the acceptor goroutine: push fd onto the
// pending-accept FIFO, then signal the worker's wakeup so it stops
// blocking in PollIO. Grounded on listener_accept's
// th_accept[th_naccept-1]=fd + ev_async_send pair.
func (w *worker) enqueueAccept(fd int) {
	w.accepts.push(fd)
	if w.wakeup.ReadFD() >= 0 {
		_ = w.wakeup.Signal()
	} else {
		// Windows: no pollable wakeup fd: PollIO must be interrupted via
		// the IOCP handle directly rather than through Wakeup.Signal.
		_ = w.poller.Wakeup()
	}
}

// drainAccepts empties the pending-accept FIFO, adopting every fd into a
// new client. Grounded on thread_accept.
func (w *worker) drainAccepts() {
	for _, fd := range w.accepts.drain() {
		if err := setClientSockopts(fd); err != nil {
			_ = closeFDQuiet(fd)
			continue
		}

		c := newClient(fd, w)
		w.clients[fd] = c

		if err := w.poller.RegisterFD(fd, reactor.EventRead, func(ev reactor.IOEvents) {
			w.dispatch(c, ev)
		}); err != nil {
			_ = closeFDQuiet(fd)
			delete(w.clients, fd)
			continue
		}

		c.sendLine(proto.Greeting)
		c.flush()
	}
}

// dispatch routes one readiness callback to the client's read or write
// handler, skipping clients already marked DEAD (a callback can still fire
// for a DEAD client if it was already queued this iteration).
func (w *worker) dispatch(c *client, ev reactor.IOEvents) {
	if c.dead {
		return
	}
	if ev&(reactor.EventError|reactor.EventHangup) != 0 {
		c.close()
		return
	}
	if ev&reactor.EventWrite != 0 {
		c.onWritable()
	}
	if c.dead {
		return
	}
	if ev&reactor.EventRead != 0 {
		c.onReadable()
	}
}

// deadlistPush links c onto the deadlist for the next prepare-phase sweep.
// Grounded on client_close's cl->cl_next = th->th_deadlist assignment.
func (w *worker) deadlistPush(c *client) {
	c.next = w.deadHead
	w.deadHead = c
}

// sweepDeadlist destroys every client on the deadlist and clears it.
// Called once per loop iteration, after all readiness callbacks for that
// iteration have run — never from within a client's own callback.
// Grounded on thread_deadlist.
func (w *worker) sweepDeadlist() {
	c := w.deadHead
	w.deadHead = nil
	for c != nil {
		next := c.next
		delete(w.clients, c.fd)
		c.destroy()
		c = next
	}
}

// Run services this worker's Poller until stop is closed or PollIO fails,
// sweeping the deadlist after every iteration. Intended to run on its own
// OS thread.
func (w *worker) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		if _, err := w.poller.PollIO(1000); err != nil {
			return err
		}
		w.sweepDeadlist()
	}
}

// Close releases the worker's poller and wakeup handle.
func (w *worker) Close() error {
	if w.wakeup != nil {
		_ = w.wakeup.Close()
	}
	if w.poller != nil {
		return w.poller.Close()
	}
	return nil
}
