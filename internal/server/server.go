package server

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-eventloop/internal/stats"
)

// Config is the subset of internal/config.Config the server needs, kept
// as its own type so this package doesn't depend on flag parsing.
type Config struct {
	Host        string
	Port        string
	Threads     int
	DoIhave     bool
	DoStreaming bool
	Debug       bool
}

// Server owns the listening fd(s), the acceptor, and every worker. Its
// zero value is not usable; build one with New.
type Server struct {
	cfg      Config
	log      *logiface.Logger[*stumpy.Event]
	counters *stats.Counters

	listenFDs []int
	acceptor  *Acceptor
	workers   []*worker

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New resolves and binds the listening address(es) and constructs every
// worker, but starts nothing yet: call Run to begin serving.
func New(cfg Config, log *logiface.Logger[*stumpy.Event], counters *stats.Counters) (*Server, error) {
	fds, err := Listen(cfg.Host, cfg.Port)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:       cfg,
		log:       log,
		counters:  counters,
		listenFDs: fds,
		stopCh:    make(chan struct{}),
	}

	for i := 0; i < cfg.Threads; i++ {
		w := newWorker(i, cfg.DoIhave, cfg.DoStreaming, cfg.Debug, counters, log)
		if err := w.Init(); err != nil {
			s.closeListenFDs()
			return nil, fmt.Errorf("worker %d: init: %w", i, err)
		}
		s.workers = append(s.workers, w)
	}

	acc, err := NewAcceptor(s.workers, counters, log)
	if err != nil {
		s.closeListenFDs()
		return nil, err
	}
	for _, fd := range fds {
		if err := acc.Listen(fd); err != nil {
			s.closeListenFDs()
			return nil, fmt.Errorf("acceptor: listen: %w", err)
		}
	}
	s.acceptor = acc

	return s, nil
}

func (s *Server) closeListenFDs() {
	for _, fd := range s.listenFDs {
		_ = unix.Close(fd)
	}
}

// Run starts one goroutine per worker (each locked to its own OS thread,
// matching pthread_create in thread_run) plus the acceptor's own loop, and
// blocks until Stop is called or a loop exits with an error.
func (s *Server) Run() error {
	errCh := make(chan error, len(s.workers)+1)

	for _, w := range s.workers {
		w := w
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			if err := w.Run(s.stopCh); err != nil {
				errCh <- fmt.Errorf("worker %d: %w", w.id, err)
			}
		}()
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := s.acceptor.Run(); err != nil {
			select {
			case <-s.stopCh:
			default:
				errCh <- fmt.Errorf("acceptor: %w", err)
			}
		}
	}()

	select {
	case err := <-errCh:
		s.Stop()
		return err
	case <-s.stopCh:
		return nil
	}
}

// Stop signals every worker loop to exit after its current PollIO
// deadline and closes the acceptor and listening fds. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		_ = s.acceptor.Close()
		s.closeListenFDs()
		for _, w := range s.workers {
			_ = w.Close()
		}
	})
	s.wg.Wait()
}
