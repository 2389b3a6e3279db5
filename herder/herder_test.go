package herder

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jixianzhao/TCPHandoff/socket"
	"github.com/jixianzhao/TCPHandoff/workerpool"
)

// newTestHerder returns a herder plus the sync.Once guarding its eventual
// destroy() call. Tests that want to call destroy() themselves (to assert on
// its effects) should do so through that Once, so the deferred t.Cleanup
// doesn't double-destroy.
func newTestHerder(t *testing.T) (*herder, *sync.Once) {
	t.Helper()
	workers := workerpool.NewPool(&workerpool.Config{Workers: 1, QueueSize: 8})
	t.Cleanup(func() { _ = workers.Close() })
	h := newHerder(0, workers, resolveConfig(nil))
	var once sync.Once
	t.Cleanup(func() { once.Do(h.destroy) })
	return h, &once
}

func TestInsertConnLinksShardAndEngine(t *testing.T) {
	h, _ := newTestHerder(t)
	s := socket.NewMockSocket(0x0a000001, 5000)
	conn := newConnRecord(s)

	require.NoError(t, h.insertConn(conn))
	assert.Equal(t, int32(1), h.loadSize())
	assert.Same(t, h, conn.owner)
	assert.Same(t, h.connHead, conn)
	assert.Same(t, h.connTail, conn)
}

func TestInsertConnDuplicateKeyRollsBackShard(t *testing.T) {
	h, _ := newTestHerder(t)
	s1 := socket.NewMockSocket(0x0a000001, 5000)
	s2 := socket.NewMockSocket(0x0a000001, 5000) // same (addr, port)

	require.NoError(t, h.insertConn(newConnRecord(s1)))
	err := h.insertConn(newConnRecord(s2))
	assert.Error(t, err)

	// shard size reflects only the surviving connection; the rolled-back
	// insert must not leave a dangling shard entry.
	assert.Equal(t, int32(1), h.loadSize())
}

func TestRemoveConnReleasesSocketOnceBothClaimsDrop(t *testing.T) {
	h, _ := newTestHerder(t)
	s := socket.NewMockSocket(0x0a000001, 5000)
	conn := newConnRecord(s)
	require.NoError(t, h.insertConn(conn))

	h.removeConn(conn)

	assert.Equal(t, int32(0), h.loadSize())
	assert.True(t, s.Released())
	assert.Nil(t, h.connHead)
	assert.Nil(t, h.connTail)
}

func TestRemoveConnDecrementsLivenessExactlyTwice(t *testing.T) {
	h, _ := newTestHerder(t)
	s := socket.NewMockSocket(0x0a000001, 5000)
	conn := newConnRecord(s)
	require.NoError(t, h.insertConn(conn))

	assert.Equal(t, int32(2), conn.liveness.Load())
	h.removeConn(conn)
	assert.Equal(t, int32(0), conn.liveness.Load())
}

func TestDestroyReleasesAllRemainingConnections(t *testing.T) {
	h, once := newTestHerder(t)
	s1 := socket.NewMockSocket(0x0a000001, 5000)
	s2 := socket.NewMockSocket(0x0a000002, 5001)
	require.NoError(t, h.insertConn(newConnRecord(s1)))
	require.NoError(t, h.insertConn(newConnRecord(s2)))

	once.Do(h.destroy)

	assert.True(t, s1.Released())
	assert.True(t, s2.Released())
	assert.Equal(t, int32(0), h.loadSize())
}
