//go:build darwin

package reactor

import (
	"syscall"

	"golang.org/x/sys/unix"
)

const (
	EFD_CLOEXEC  = unix.O_CLOEXEC
	EFD_NONBLOCK = unix.O_NONBLOCK
)

// createWakeFd creates a non-blocking self-pipe for wake-up notifications
// (Darwin/BSD lack eventfd). initval and flags are accepted for API
// parity with the Linux eventfd constructor but otherwise unused.
func createWakeFd(_ uint, _ int) (int, int, error) {
	var fds [2]int
	if err := syscall.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}

	cleanup := func() {
		_ = closeFD(fds[0])
		_ = closeFD(fds[1])
	}

	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])

	if err := syscall.SetNonblock(fds[0], true); err != nil {
		cleanup()
		return 0, 0, err
	}
	if err := syscall.SetNonblock(fds[1], true); err != nil {
		cleanup()
		return 0, 0, err
	}

	return fds[0], fds[1], nil
}

// closeWakeFd closes both ends of the self-pipe.
func closeWakeFd(readFD, writeFD int) error {
	if readFD >= 0 {
		_ = closeFD(readFD)
	}
	if writeFD >= 0 && writeFD != readFD {
		_ = closeFD(writeFD)
	}
	return nil
}

// Signal writes a single byte to the pipe, waking a blocked PollIO.
func (w *Wakeup) Signal() error {
	var b [1]byte
	_, err := writeFD(w.writeFD, b[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// Drain empties the pipe after a wake-up is observed.
func (w *Wakeup) Drain() {
	var buf [64]byte
	for {
		if _, err := readFD(w.readFD, buf[:]); err != nil {
			return
		}
	}
}
