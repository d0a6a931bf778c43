package reactor

// Wakeup lets the acceptor goroutine interrupt a worker blocked in PollIO
// after handing it newly accepted connections, so the worker doesn't have
// to busy-poll its pending-accept queue. Coalescing multiple signals into
// one wake-up is fine: the worker drains its entire queue per wake.
type Wakeup struct {
	readFD  int
	writeFD int
}

// NewWakeup creates a platform wake-up primitive: an eventfd on Linux, a
// non-blocking self-pipe on Darwin/BSD, or (on Windows) a no-op placeholder
// since IOCP wake-up doesn't use a pollable fd.
func NewWakeup() (*Wakeup, error) {
	r, w, err := createWakeFd(0, EFD_CLOEXEC|EFD_NONBLOCK)
	if err != nil {
		return nil, err
	}
	return &Wakeup{readFD: r, writeFD: w}, nil
}

// ReadFD returns the fd a worker should register for EventRead on its
// Poller. It is negative on platforms where wake-up doesn't use a fd.
func (w *Wakeup) ReadFD() int {
	return w.readFD
}

// Close releases the underlying fd(s).
func (w *Wakeup) Close() error {
	return closeWakeFd(w.readFD, w.writeFD)
}
