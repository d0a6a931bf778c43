//go:build linux

package reactor

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoller_RegisterFD_FiresOnReadable(t *testing.T) {
	var fds [2]int
	require.NoError(t, syscall.Pipe(fds[:]))
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])

	p := &Poller{}
	require.NoError(t, p.Init())
	defer p.Close()

	fired := make(chan IOEvents, 1)
	require.NoError(t, p.RegisterFD(fds[0], EventRead, func(ev IOEvents) {
		fired <- ev
	}))

	_, err := syscall.Write(fds[1], []byte("x"))
	require.NoError(t, err)

	n, err := p.PollIO(1000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	select {
	case ev := <-fired:
		assert.NotZero(t, ev&EventRead)
	case <-time.After(time.Second):
		t.Fatal("callback did not fire")
	}
}

func TestPoller_UnregisterFD_StopsDelivering(t *testing.T) {
	var fds [2]int
	require.NoError(t, syscall.Pipe(fds[:]))
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])

	p := &Poller{}
	require.NoError(t, p.Init())
	defer p.Close()

	fired := false
	require.NoError(t, p.RegisterFD(fds[0], EventRead, func(IOEvents) { fired = true }))
	require.NoError(t, p.UnregisterFD(fds[0]))

	_, err := syscall.Write(fds[1], []byte("x"))
	require.NoError(t, err)
	n, err := p.PollIO(0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.False(t, fired)

	err = p.UnregisterFD(fds[0])
	assert.ErrorIs(t, err, ErrFDNotRegistered)
}

func TestPoller_DoubleRegister_Errors(t *testing.T) {
	var fds [2]int
	require.NoError(t, syscall.Pipe(fds[:]))
	defer syscall.Close(fds[0])
	defer syscall.Close(fds[1])

	p := &Poller{}
	require.NoError(t, p.Init())
	defer p.Close()

	require.NoError(t, p.RegisterFD(fds[0], EventRead, func(IOEvents) {}))
	err := p.RegisterFD(fds[0], EventRead, func(IOEvents) {})
	assert.ErrorIs(t, err, ErrFDAlreadyRegistered)
}

func TestWakeup_SignalAndDrain(t *testing.T) {
	w, err := NewWakeup()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Signal())

	p := &Poller{}
	require.NoError(t, p.Init())
	defer p.Close()

	fired := make(chan struct{}, 1)
	require.NoError(t, p.RegisterFD(w.ReadFD(), EventRead, func(IOEvents) {
		fired <- struct{}{}
	}))

	n, err := p.PollIO(1000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	<-fired

	w.Drain()
}
