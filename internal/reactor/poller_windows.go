//go:build windows

package reactor

import (
	"errors"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/windows"
)

// handleTableSize is the fd/handle table size. Windows HANDLEs aren't
// bounded by a ulimit the way Unix fds are via RLIMIT_NOFILE, so this stays
// a fixed constant rather than being derived the way fdTableSize is on
// Linux/Darwin; it is generous since this poller is a best-effort
// cross-compile stand-in, not the production path (see Poller's doc comment).
const handleTableSize = 65536

// IOEvents represents the type of I/O events to monitor.
type IOEvents uint32

const (
	EventRead IOEvents = 1 << iota
	EventWrite
	EventError
	EventHangup
)

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

// Poller manages I/O event registration using IOCP (Windows). This is a
// best-effort stand-in: nntpsink's accept/read/write path is written
// against epoll/kqueue semantics, so the Windows build exists for cross
// compilation rather than for production use under load.
type Poller struct {
	iocp     windows.Handle
	wakeSock windows.Socket
	fds      []fdInfo
	fdMu     sync.RWMutex
	closed   atomic.Bool
}

// Init initializes the IOCP instance.
func (p *Poller) Init() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}

	iocp, err := windows.CreateIoCompletionPort(windows.InvalidHandle, 0, 0, 0)
	if err != nil {
		return err
	}
	p.iocp = iocp

	wakeSock, err := windows.Socket(windows.AF_INET, windows.SOCK_STREAM, windows.IPPROTO_TCP)
	if err != nil {
		_ = windows.CloseHandle(iocp)
		return err
	}
	p.wakeSock = wakeSock

	if _, err := windows.CreateIoCompletionPort(wakeSock, iocp, 0, 0); err != nil {
		_ = windows.Closesocket(wakeSock)
		_ = windows.CloseHandle(iocp)
		return err
	}

	p.fds = make([]fdInfo, handleTableSize)

	return nil
}

// Close closes the IOCP instance and associated resources.
func (p *Poller) Close() error {
	p.closed.Store(true)
	if p.iocp != 0 {
		_ = windows.CloseHandle(p.iocp)
	}
	if p.wakeSock != windows.InvalidHandle {
		_ = windows.Closesocket(p.wakeSock)
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
	p.fdMu.Unlock()

	handle := windows.Handle(fd)
	if _, err := windows.CreateIoCompletionPort(handle, p.iocp, 0, 0); err != nil {
		p.fdMu.Lock()
		p.fds[fd] = fdInfo{}
		p.fdMu.Unlock()
		return err
	}

	return nil
}

// UnregisterFD removes a file descriptor from monitoring. Closing the
// handle removes its IOCP association, so this only clears bookkeeping.
func (p *Poller) UnregisterFD(fd int) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}

	p.fds[fd] = fdInfo{}
	p.fdMu.Unlock()

	return nil
}

// ModifyFD updates the events being monitored for a file descriptor.
func (p *Poller) ModifyFD(fd int, events IOEvents) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}

	p.fdMu.Lock()
	if fd >= len(p.fds) || !p.fds[fd].active {
		p.fdMu.Unlock()
		return ErrFDNotRegistered
	}

	p.fds[fd].events = events
	p.fdMu.Unlock()

	return nil
}

// PollIO polls for I/O events using IOCP.
func (p *Poller) PollIO(timeoutMs int) (int, error) {
	if p.closed.Load() {
		return 0, ErrPollerClosed
	}

	var timeout *uint32
	if timeoutMs >= 0 {
		t := uint32(timeoutMs)
		timeout = &t
	}

	var bytes uint32
	var key uintptr
	var overlapped *windows.Overlapped

	err := windows.GetQueuedCompletionStatus(p.iocp, &bytes, &key, &overlapped, timeout)
	if err != nil {
		if errno, ok := err.(syscall.Errno); ok {
			if errno == windows.WAIT_TIMEOUT {
				return 0, nil
			}
			if errno == windows.ERROR_ABANDONED_WAIT_0 || errno == windows.ERROR_INVALID_HANDLE {
				return 0, ErrPollerClosed
			}
		}
		return 0, err
	}

	if overlapped == nil {
		// Wake-up notification posted by Wakeup.Signal.
		return 0, nil
	}

	return 1, nil
}

// Wakeup interrupts a blocked PollIO from another goroutine.
func (p *Poller) Wakeup() error {
	if p.closed.Load() {
		return ErrPollerClosed
	}
	return windows.PostQueuedCompletionStatus(p.iocp, 0, 0, nil)
}
