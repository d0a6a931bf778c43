//go:build linux

package server

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-eventloop/internal/nntplog"
	"github.com/joeycumines/go-eventloop/internal/stats"
)

// TestAcceptor_RoundRobinsAcrossWorkers verifies the property from the
// spec's TESTABLE PROPERTIES section: for N accepted connections across W
// workers, each worker receives ceil(N/W) or floor(N/W) of them. Exercises
// the real acceptLoop/enqueueAccept path — a real listening socket, real
// dialed connections, and the acceptor's own Poller — rather than driving
// the round-robin counter directly.
func TestAcceptor_RoundRobinsAcrossWorkers(t *testing.T) {
	var logBuf bytes.Buffer
	log := nntplog.New(&logBuf)
	counters := &stats.Counters{}

	const numWorkers = 3
	workers := make([]*worker, numWorkers)
	for i := range workers {
		w := newWorker(i, true, true, false, counters, log)
		require.NoError(t, w.Init())
		defer w.Close()
		workers[i] = w
	}

	fds, err := Listen("127.0.0.1", "0")
	require.NoError(t, err)
	require.Len(t, fds, 1)
	listenFD := fds[0]
	defer func() { _ = unix.Close(listenFD) }()

	port := boundPort(t, listenFD)

	acc, err := NewAcceptor(workers, counters, log)
	require.NoError(t, err)
	defer acc.Close()
	require.NoError(t, acc.Listen(listenFD))

	const numConns = 10
	conns := make([]net.Conn, 0, numConns)
	defer func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}()
	for i := 0; i < numConns; i++ {
		c, err := net.DialTimeout("tcp", "127.0.0.1:"+itoa(port), time.Second)
		require.NoError(t, err)
		conns = append(conns, c)
	}

	// Pump the acceptor's real Poller until every dialed connection has
	// been accepted and handed to a worker's pending-accept FIFO via
	// enqueueAccept, exactly as the acceptor goroutine would in Run.
	deadline := time.Now().Add(2 * time.Second)
	for {
		total := 0
		for _, w := range workers {
			total += w.accepts.len()
		}
		if total >= numConns {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d connections via the real accept path, got %d", numConns, total)
		}
		_, err := acc.poller.PollIO(100)
		require.NoError(t, err)
	}

	got := make([]int, numWorkers)
	total := 0
	for _, w := range workers {
		n := w.accepts.len()
		got[w.id] = n
		total += n
	}

	min, max := numConns/numWorkers, (numConns+numWorkers-1)/numWorkers
	for _, n := range got {
		assert.GreaterOrEqual(t, n, min)
		assert.LessOrEqual(t, n, max)
	}
	assert.Equal(t, numConns, total)
}

func TestNewAcceptor_RequiresAtLeastOneWorker(t *testing.T) {
	var logBuf bytes.Buffer
	log := nntplog.New(&logBuf)
	_, err := NewAcceptor(nil, &stats.Counters{}, log)
	assert.Error(t, err)
}
