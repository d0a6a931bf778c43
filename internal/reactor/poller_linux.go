//go:build linux

package reactor

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// IOEvents represents the type of I/O events to monitor.
type IOEvents uint32

const (
	// EventRead indicates the file descriptor is ready for reading.
	EventRead IOEvents = 1 << iota
	// EventWrite indicates the file descriptor is ready for writing.
	EventWrite
	// EventError indicates an error condition on the file descriptor.
	EventError
	// EventHangup indicates the peer closed its end of the connection.
	EventHangup
)

// Standard errors.
var (
	ErrFDOutOfRange        = errors.New("reactor: fd out of range")
	ErrFDAlreadyRegistered = errors.New("reactor: fd already registered")
	ErrFDNotRegistered     = errors.New("reactor: fd not registered")
	ErrPollerClosed        = errors.New("reactor: poller closed")
)

// IOCallback is the callback type for I/O events.
type IOCallback func(IOEvents)

// fdInfo stores per-FD callback information.
type fdInfo struct {
	callback IOCallback
	events   IOEvents
	active   bool
}

// Poller manages I/O event registration using epoll (Linux). One Poller is
// owned by exactly one worker; it is never shared across goroutines except
// for the dispatch loop that calls PollIO. The fd table is sized once, from
// RLIMIT_NOFILE, in Init — fd numbers the kernel can hand this process are
// bounded by that limit, so there is no need to grow the table at runtime.
type Poller struct {
	epfd     int32
	eventBuf [256]unix.EpollEvent
	fds      []fdInfo
	fdMu     sync.RWMutex
	version  atomic.Uint64
	closed   atomic.Bool
}

// Init initializes the epoll instance and sizes the fd table.
func (p *Poller) Init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	p.epfd = int32(epfd)
	p.fds = make([]fdInfo, fdTableSize())
	return nil
}

// Close closes the epoll instance.
func (p *Poller) Close() error {
	p.closed.Store(true)
	if p.epfd > 0 {
		return unix.Close(int(p.epfd))
	}
	return nil
}

// RegisterFD registers a file descriptor for I/O event monitoring.
func (p *Poller) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	if fd < 0 || fd >= len(p.fds) {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDAlreadyRegistered
	}

	p.fds[fd] = fdInfo{callback: cb, events: events, active: true}
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		p.fdMu.Lock()
		p.fds[fd] = fdInfo{}
		p.fdMu.Unlock()
		return err
	}
	return nil
}

// UnregisterFD removes a file descriptor from monitoring.
func (p *Poller) UnregisterFD(fd int) error {
	if fd < 0 || fd >= len(p.fds) {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}

	p.fds[fd] = fdInfo{}
	p.version.Add(1)
	p.fdMu.Unlock()

	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_DEL, fd, nil)
}

// ModifyFD updates the events being monitored for a file descriptor.
func (p *Poller) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 || fd >= len(p.fds) {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}

	p.fds[fd].events = events
	p.version.Add(1)
	p.fdMu.Unlock()

	ev := &unix.EpollEvent{
		Events: eventsToEpoll(events),
		Fd:     int32(fd),
	}
	return unix.EpollCtl(int(p.epfd), unix.EPOLL_CTL_MOD, fd, ev)
}

// PollIO polls for I/O events and dispatches them inline on the calling
// goroutine. Returns the number of events processed.
func (p *Poller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	v := p.version.Load()

	n, err := unix.EpollWait(int(p.epfd), p.eventBuf[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}

	if p.version.Load() != v {
		// A registration changed mid-wait; the results may reference stale
		// callbacks, so discard this batch rather than risk calling into a
		// just-unregistered fd.
		return 0, nil
	}

	p.dispatchEvents(n)

	return n, nil
}

// dispatchEvents executes callbacks inline. The fdInfo is copied under a
// read lock then invoked outside of it, so a callback is free to register
// or unregister other fds without deadlocking.
func (p *Poller) dispatchEvents(n int) {
	for i := 0; i < n; i++ {
		fd := int(p.eventBuf[i].Fd)
		if fd < 0 || fd >= len(p.fds) {
			continue
		}

		p.fdMu.RLock()
		info := p.fds[fd]
		p.fdMu.RUnlock()

		if info.active && info.callback != nil {
			info.callback(epollToEvents(p.eventBuf[i].Events))
		}
	}
}

// Wakeup is a no-op on Linux/Darwin: PollIO is interrupted via the
// eventfd/self-pipe fd registered through Wakeup.ReadFD, not through the
// Poller directly. It exists for API parity with the Windows IOCP poller.
func (p *Poller) Wakeup() error {
	return nil
}

func eventsToEpoll(events IOEvents) uint32 {
	var epollEvents uint32
	if events&EventRead != 0 {
		epollEvents |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		epollEvents |= unix.EPOLLOUT
	}
	return epollEvents
}

func epollToEvents(epollEvents uint32) IOEvents {
	var events IOEvents
	if epollEvents&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if epollEvents&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if epollEvents&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if epollEvents&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
