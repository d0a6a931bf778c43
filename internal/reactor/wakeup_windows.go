//go:build windows

package reactor

// EFD_CLOEXEC and EFD_NONBLOCK are Unix eventfd flags, unused on Windows but
// defined so NewWakeup's createWakeFd(0, EFD_CLOEXEC|EFD_NONBLOCK) call
// compiles on every platform.
const (
	EFD_CLOEXEC  = 0
	EFD_NONBLOCK = 0
)

// createWakeFd returns -1, -1 on Windows: IOCP wake-up goes through
// PostQueuedCompletionStatus on the worker's Poller, not a pollable fd.
// Callers must check Wakeup.ReadFD() and fall back to Poller.Wakeup()
// directly when it is negative.
func createWakeFd(_ uint, _ int) (int, int, error) {
	return -1, -1, nil
}

// closeWakeFd routes through closeFD for API parity with the Unix
// implementations; both fds are always negative here, so this stays a
// no-op in practice.
func closeWakeFd(readFD, writeFD int) error {
	_ = closeFD(readFD)
	_ = closeFD(writeFD)
	return nil
}

// Signal is a no-op on Windows; use the worker's Poller.Wakeup() instead.
func (w *Wakeup) Signal() error {
	_, err := writeFD(w.writeFD, nil)
	return err
}

// Drain is a no-op on Windows; IOCP wake-ups carry no bytes to consume.
func (w *Wakeup) Drain() {
	_, _ = readFD(w.readFD, nil)
}
