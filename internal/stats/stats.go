// Package stats implements the five-counter stats ticker printed once per
// second, grounded on do_stats/getrusage in original_source/nntpsink.c.
package stats

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Counters holds the five counters: nsend and naccept, incremented by the
// protocol state machine; nrefuse, incremented by the acceptor when
// accept(2) fails with ECONNABORTED; and nreject and ndefer, which no code
// path increments, so they stay at zero (see DESIGN.md). Safe for
// concurrent use: each worker's Machine and the acceptor call the Inc*
// methods from their own goroutines, while the ticker goroutine reads and
// resets them once a second.
type Counters struct {
	send     atomic.Int64
	accept   atomic.Int64
	reject   atomic.Int64
	deferred atomic.Int64
	refuse   atomic.Int64
}

// IncSend implements proto.Counters: an offer was made to the peer (238 or
// 335 emitted).
func (c *Counters) IncSend() { c.send.Add(1) }

// IncAccept implements proto.Counters: an article was fully accepted (239
// or 235 emitted).
func (c *Counters) IncAccept() { c.accept.Add(1) }

// IncReject records a rejected article. No code path in this sink calls
// it today; kept for wire-format fidelity with the original counter set.
func (c *Counters) IncReject() { c.reject.Add(1) }

// IncDefer records a deferred article. See IncReject.
func (c *Counters) IncDefer() { c.deferred.Add(1) }

// IncRefuse records a refused connection. The acceptor calls it when
// accept(2) fails with ECONNABORTED.
func (c *Counters) IncRefuse() { c.refuse.Add(1) }

// snapshot captures and resets all five counters. Each field is swapped
// independently, not atomically with respect to the others: a caller
// incrementing mid-snapshot may land in either period, matching the
// original's non-atomic read-then-reset in a single-threaded event loop.
func (c *Counters) snapshot() (send, refuse, reject, deferred, accept int64) {
	return c.send.Swap(0), c.refuse.Swap(0), c.reject.Swap(0), c.deferred.Swap(0), c.accept.Swap(0)
}

// Ticker prints the stats line once per second until its stop channel is
// closed.
type Ticker struct {
	counters *Counters
	out      io.Writer
	start    time.Time
}

// NewTicker returns a Ticker that reads from counters and writes to out.
func NewTicker(counters *Counters, out io.Writer) *Ticker {
	return &Ticker{counters: counters, out: out, start: time.Now()}
}

// Run blocks, printing one stats line per second, until stop is closed.
func (t *Ticker) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			t.tick()
		}
	}
}

func (t *Ticker) tick() {
	send, refuse, reject, deferred, accept := t.counters.snapshot()
	cpu := t.cpuPercent()
	fmt.Fprintf(t.out,
		"send it: %d/s, refused: %d/s, rejected: %d/s, deferred: %d/s, accepted: %d/s, cpu %.2f%%\n",
		send, refuse, reject, deferred, accept, cpu)
}

// cpuPercent divides cumulative user+system CPU time (via getrusage) by
// process uptime, matching do_stats's (ct/1000)/upt * 100 computation.
func (t *Ticker) cpuPercent() float64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	userMs := int64(ru.Utime.Sec)*1000 + int64(ru.Utime.Usec)/1000
	sysMs := int64(ru.Stime.Sec)*1000 + int64(ru.Stime.Usec)/1000
	totalMs := userMs + sysMs

	uptime := time.Since(t.start).Seconds()
	if uptime <= 0 {
		return 0
	}
	return (float64(totalMs) / 1000 / uptime) * 100
}
