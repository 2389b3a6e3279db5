package socket

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitQueueNotifyInvokesRegisteredCallbacks(t *testing.T) {
	var q WaitQueue
	var n atomic.Int32
	q.Add(func() { n.Add(1) })
	q.Add(func() { n.Add(1) })

	q.Notify()
	assert.Equal(t, int32(2), n.Load())
}

func TestWaitQueueRemoveDetaches(t *testing.T) {
	var q WaitQueue
	var n atomic.Int32
	e := q.Add(func() { n.Add(1) })
	q.Remove(e)

	q.Notify()
	assert.Equal(t, int32(0), n.Load())
}

func TestMockSocketReadyAndRelease(t *testing.T) {
	s := NewMockSocket(0x0a000001, 5000)
	assert.Equal(t, Event(0), s.Poll())

	var woke atomic.Bool
	s.WaitQueue().Add(func() { woke.Store(true) })

	s.SetReady(Readable)
	require.Equal(t, Readable, s.Poll())
	assert.True(t, woke.Load())

	s.ClearReady(Readable)
	assert.Equal(t, Event(0), s.Poll())

	require.NoError(t, s.Release())
	assert.True(t, s.Released())
}

func TestEventStringFormatsCombinedMask(t *testing.T) {
	assert.Equal(t, "none", Event(0).String())
	assert.Equal(t, "READABLE", Readable.String())
	assert.Equal(t, "READABLE|ERROR", (Readable | Error).String())
}
