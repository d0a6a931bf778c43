package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcceptQueue_PushDrainFIFO(t *testing.T) {
	var q acceptQueue
	for i := 0; i < 5; i++ {
		q.push(i)
	}
	assert.Equal(t, 5, q.len())

	got := q.drain()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Equal(t, 0, q.len())
}

func TestAcceptQueue_DrainEmpty(t *testing.T) {
	var q acceptQueue
	assert.Nil(t, q.drain())
}

func TestAcceptQueue_SpansMultipleChunks(t *testing.T) {
	var q acceptQueue
	const n = acceptQueueChunkSize*2 + 7
	for i := 0; i < n; i++ {
		q.push(i)
	}
	got := q.drain()
	assert.Len(t, got, n)
	for i, fd := range got {
		assert.Equal(t, i, fd)
	}
}

func TestAcceptQueue_ReusableAfterDrain(t *testing.T) {
	var q acceptQueue
	q.push(1)
	q.push(2)
	q.drain()

	q.push(3)
	got := q.drain()
	assert.Equal(t, []int{3}, got)
}
