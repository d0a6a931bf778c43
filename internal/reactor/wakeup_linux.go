//go:build linux

package reactor

import (
	"encoding/binary"

	"golang.org/x/sys/unix"
)

const (
	EFD_CLOEXEC  = unix.EFD_CLOEXEC
	EFD_NONBLOCK = unix.EFD_NONBLOCK
)

// createWakeFd creates an eventfd for wake-up notifications (Linux).
// Returns the single eventfd as both read and write ends.
func createWakeFd(initval uint, flags int) (int, int, error) {
	fd, err := unix.Eventfd(initval, flags)
	return fd, fd, err
}

// closeWakeFd closes the wake eventfd on Linux.
func closeWakeFd(wakeFd, _ int) error {
	if wakeFd >= 0 {
		return closeFD(wakeFd)
	}
	return nil
}

// Signal increments the eventfd counter by one, waking a blocked PollIO.
// Multiple signals before the worker drains the fd coalesce into a single
// readable event, which is fine: the worker drains its whole queue per wake.
func (w *Wakeup) Signal() error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := writeFD(w.writeFD, buf[:])
	if err != nil && err != unix.EAGAIN {
		return err
	}
	return nil
}

// Drain resets the eventfd counter to zero after a wake-up is observed.
func (w *Wakeup) Drain() {
	var buf [8]byte
	for {
		if _, err := readFD(w.readFD, buf[:]); err != nil {
			return
		}
	}
}
