package herder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jixianzhao/TCPHandoff/socket"
	"github.com/jixianzhao/TCPHandoff/workerpool"
)

func newTestPool(t *testing.T, cpus int, opts ...Option) (*Pool, *workerpool.Pool) {
	t.Helper()
	workers := workerpool.NewPool(&workerpool.Config{Workers: 2, QueueSize: 64})
	t.Cleanup(func() { _ = workers.Close() })

	cpuList := make([]int, cpus)
	for i := range cpuList {
		cpuList[i] = i
	}
	allOpts := append([]Option{WithCPUs(cpuList), WithMaxEventsPerWait(16)}, opts...)

	pool, err := NewPool(context.Background(), workers, allOpts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close(context.Background()) })
	return pool, workers
}

func TestDispatchSingleConnectionSingleEvent(t *testing.T) {
	var mu sync.Mutex
	var jobs []EventJob

	pool, _ := newTestPool(t, 2, WithEventHandler(func(job EventJob) {
		mu.Lock()
		jobs = append(jobs, job)
		mu.Unlock()
	}))

	s := socket.NewMockSocket(0x0a000001, 5000)
	require.NoError(t, pool.Dispatch(s))
	s.SetReady(socket.Readable)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(jobs) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, socket.Readable, jobs[0].Events&socket.Readable)

	var sizes []int32
	for _, h := range pool.herders {
		sizes = append(sizes, h.loadSize())
	}
	assert.Contains(t, sizes, int32(1))
	assert.Contains(t, sizes, int32(0))
}

func TestDispatchLoadBalancesAcrossHerders(t *testing.T) {
	pool, _ := newTestPool(t, 4)

	for i := 0; i < 4; i++ {
		s := socket.NewMockSocket(uint32(0x0a000001+i), uint16(5000+i))
		require.NoError(t, pool.Dispatch(s))
	}

	for _, h := range pool.herders {
		assert.Equal(t, int32(1), h.loadSize())
	}
}

func TestDispatchAfterCloseReturnsShutdown(t *testing.T) {
	pool, _ := newTestPool(t, 1)
	require.NoError(t, pool.Close(context.Background()))

	s := socket.NewMockSocket(0x0a000001, 5000)
	err := pool.Dispatch(s)
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestNewPoolNoHerders(t *testing.T) {
	workers := workerpool.NewPool(nil)
	defer workers.Close()
	_, err := NewPool(context.Background(), workers)
	assert.ErrorIs(t, err, ErrNoHerders)
}

func TestTeardownReleasesSockets(t *testing.T) {
	pool, _ := newTestPool(t, 2)

	s1 := socket.NewMockSocket(0x0a000001, 5000)
	s2 := socket.NewMockSocket(0x0a000002, 5001)
	require.NoError(t, pool.Dispatch(s1))
	require.NoError(t, pool.Dispatch(s2))
	s1.SetReady(socket.Readable)
	s2.SetReady(socket.Readable)

	require.NoError(t, pool.Close(context.Background()))

	assert.True(t, s1.Released())
	assert.True(t, s2.Released())
}
