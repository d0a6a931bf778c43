//go:build linux

package server

import (
	"bufio"
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

// boundPort returns the ephemeral TCP port the OS assigned to a listening
// fd bound with port 0.
func boundPort(t *testing.T, fd int) int {
	t.Helper()
	sa, err := unix.Getsockname(fd)
	require.NoError(t, err)
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return sa.Port
	case *unix.SockaddrInet6:
		return sa.Port
	default:
		t.Fatalf("unexpected sockaddr type %T", sa)
		return 0
	}
}

func startTestServer(t *testing.T, doIhave, doStreaming bool) (addr string, stop func()) {
	t.Helper()

	var logBuf bytes.Buffer
	log := nntplog.New(&logBuf)
	counters := &stats.Counters{}

	srv, err := New(Config{
		Host:        "127.0.0.1",
		Port:        "0",
		Threads:     1,
		DoIhave:     doIhave,
		DoStreaming: doStreaming,
	}, log, counters)
	require.NoError(t, err)

	port := boundPort(t, srv.listenFDs[0])

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run()
	}()

	// Give the acceptor and worker goroutines a moment to start polling.
	time.Sleep(50 * time.Millisecond)

	return "127.0.0.1:" + itoa(port), func() {
		srv.Stop()
		<-done
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestServer_GreetingAndCapabilities(t *testing.T) {
	addr, stop := startTestServer(t, true, true)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	r := bufio.NewReader(conn)

	greeting, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "200 nntpsink ready.\r\n", greeting)

	_, err = conn.Write([]byte("CAPABILITIES\r\n"))
	require.NoError(t, err)

	expected := []string{
		"101 Capability list:\r\n",
		"VERSION 2\r\n",
		"IMPLEMENTATION nntpsink 1.0\r\n",
		"IHAVE\r\n",
		"STREAMING\r\n",
		".\r\n",
	}
	for _, want := range expected {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}
}

func TestServer_CheckAndTakethisAndQuit(t *testing.T) {
	addr, stop := startTestServer(t, false, true)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	r := bufio.NewReader(conn)
	_, err = r.ReadString('\n') // greeting
	require.NoError(t, err)

	_, err = conn.Write([]byte("CHECK <article1@example.com>\r\n"))
	require.NoError(t, err)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "238 <article1@example.com>\r\n", line)

	_, err = conn.Write([]byte("TAKETHIS <article1@example.com>\r\nbody line one\r\nbody line two\r\n.\r\n"))
	require.NoError(t, err)
	line, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "239 <article1@example.com>\r\n", line)

	_, err = conn.Write([]byte("QUIT\r\n"))
	require.NoError(t, err)

	_, err = r.ReadByte()
	assert.Error(t, err) // connection closed, no response line
}

func TestServer_MultipleWorkers_GreetEveryConnection(t *testing.T) {
	var logBuf bytes.Buffer
	log := nntplog.New(&logBuf)
	counters := &stats.Counters{}

	srv, err := New(Config{
		Host:        "127.0.0.1",
		Port:        "0",
		Threads:     2,
		DoIhave:     true,
		DoStreaming: true,
	}, log, counters)
	require.NoError(t, err)
	defer srv.Stop()

	port := boundPort(t, srv.listenFDs[0])
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Run()
	}()
	time.Sleep(50 * time.Millisecond)

	const n = 10
	conns := make([]net.Conn, 0, n)
	defer func() {
		for _, c := range conns {
			c.Close()
		}
	}()

	for i := 0; i < n; i++ {
		c, err := net.DialTimeout("tcp", "127.0.0.1:"+itoa(port), time.Second)
		require.NoError(t, err)
		c.SetDeadline(time.Now().Add(2 * time.Second))
		conns = append(conns, c)
		r := bufio.NewReader(c)
		_, err = r.ReadString('\n')
		require.NoError(t, err)
	}

	// Every connection reached some worker and got a greeting; round-robin
	// fairness itself is exercised directly in TestAcceptor_RoundRobinsAcrossWorkers.
}
