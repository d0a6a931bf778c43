package stats

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounters_IncAndSnapshotResets(t *testing.T) {
	c := &Counters{}
	c.IncSend()
	c.IncSend()
	c.IncAccept()

	send, refuse, reject, deferred, accept := c.snapshot()
	assert.Equal(t, int64(2), send)
	assert.Equal(t, int64(0), refuse)
	assert.Equal(t, int64(0), reject)
	assert.Equal(t, int64(0), deferred)
	assert.Equal(t, int64(1), accept)

	send, _, _, _, accept = c.snapshot()
	assert.Equal(t, int64(0), send)
	assert.Equal(t, int64(0), accept)
}

func TestTicker_Tick_WritesExpectedFormat(t *testing.T) {
	c := &Counters{}
	c.IncSend()
	c.IncAccept()

	var buf bytes.Buffer
	ticker := NewTicker(c, &buf)
	ticker.tick()

	out := buf.String()
	assert.Contains(t, out, "send it: 1/s")
	assert.Contains(t, out, "refused: 0/s")
	assert.Contains(t, out, "rejected: 0/s")
	assert.Contains(t, out, "deferred: 0/s")
	assert.Contains(t, out, "accepted: 1/s")
	assert.Contains(t, out, "cpu ")
	assert.Contains(t, out, "%")
}

func TestTicker_Tick_ResetsCounters(t *testing.T) {
	c := &Counters{}
	c.IncSend()

	var buf bytes.Buffer
	ticker := NewTicker(c, &buf)
	ticker.tick()
	buf.Reset()
	ticker.tick()

	assert.Contains(t, buf.String(), "send it: 0/s")
}
