package server

import (
	"errors"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-eventloop/internal/reactor"
	"github.com/joeycumines/go-eventloop/internal/stats"
)

// Acceptor owns the listening fd(s) and round-robins newly accepted
// connections across a fixed set of workers, grounded on
// listener_accept/thread_accept in original_source/nntpsink.c. It runs on
// its own Poller, entirely separate from any worker's.
type Acceptor struct {
	poller   *reactor.Poller
	workers  []*worker
	next     int
	counters *stats.Counters
	log      *logiface.Logger[*stumpy.Event]
}

// NewAcceptor builds an Acceptor that will dispatch across workers in
// round-robin order, starting at worker 0.
func NewAcceptor(workers []*worker, counters *stats.Counters, log *logiface.Logger[*stumpy.Event]) (*Acceptor, error) {
	if len(workers) == 0 {
		return nil, errors.New("server: at least one worker is required")
	}
	p := &reactor.Poller{}
	if err := p.Init(); err != nil {
		return nil, err
	}
	return &Acceptor{poller: p, workers: workers, counters: counters, log: log}, nil
}

// Listen registers listenFD for readability; every accepted connection is
// handed to the next worker in round-robin order.
func (a *Acceptor) Listen(listenFD int) error {
	return a.poller.RegisterFD(listenFD, reactor.EventRead, func(reactor.IOEvents) {
		a.acceptLoop(listenFD)
	})
}

// acceptLoop drains accept(2) until it returns an error, mirroring
// listener_accept's for(;;) loop. Errors other than the ignorable
// would-block set are logged before returning.
func (a *Acceptor) acceptLoop(listenFD int) {
	for {
		fd, _, err := acceptNonblock(listenFD)
		if err != nil {
			if !isIgnorableAcceptErrno(err) {
				if err == unix.ECONNABORTED && a.counters != nil {
					a.counters.IncRefuse()
				}
				a.log.Err().Err(err).Log("accept failed")
			}
			return
		}

		w := a.workers[a.next]
		a.next++
		if a.next == len(a.workers) {
			a.next = 0
		}

		w.enqueueAccept(fd)
	}
}

// Run blocks the calling goroutine, servicing the acceptor's Poller
// forever. Intended to run on its own OS thread, matching the original's
// dedicated acceptor ev_loop.
func (a *Acceptor) Run() error {
	for {
		if _, err := a.poller.PollIO(-1); err != nil {
			return err
		}
	}
}

// Close releases the acceptor's poller.
func (a *Acceptor) Close() error {
	return a.poller.Close()
}
