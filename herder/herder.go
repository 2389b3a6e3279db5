package herder

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/jixianzhao/TCPHandoff/eventpoll"
	"github.com/jixianzhao/TCPHandoff/internal/observability"
	"github.com/jixianzhao/TCPHandoff/workerpool"
)

// EventJob describes one ready socket dispatched to the worker pool: the
// connection, the events that fired, and which herder it came from.
type EventJob struct {
	Conn   *ConnRecord
	Events eventpoll.Mask
	CPU    int
}

// herder is one per-CPU execution context: it owns a connection shard and a
// readiness multiplexer instance, and runs a dedicated goroutine draining
// ready events into the shared worker pool.
type herder struct {
	cpu int

	poll *eventpoll.EventPoll

	connMu   sync.RWMutex
	connHead *ConnRecord
	connTail *ConnRecord
	size     atomic.Int32

	workers *workerpool.Pool
	log     *observability.Logger
	limiter *observability.Limiter
	handler func(EventJob)

	maxEvents int

	stopCh chan struct{}
	doneCh chan struct{}
}

func newHerder(cpu int, workers *workerpool.Pool, cfg *config) *herder {
	h := &herder{
		cpu:       cpu,
		poll:      eventpoll.New(),
		workers:   workers,
		log:       cfg.logger.ForCPU(cpu),
		limiter:   observability.NewLimiter(cfg.warnRateLimit),
		handler:   cfg.handler,
		maxEvents: cfg.maxEvents,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	return h
}

func (h *herder) loadSize() int32 {
	return h.size.Load()
}

// insertConn links conn onto this herder's shard and registers it with the
// readiness engine. Must be called with the connection not yet visible to
// any other goroutine.
func (h *herder) insertConn(conn *ConnRecord) error {
	conn.owner = h
	h.connMu.Lock()
	conn.prev = h.connTail
	if h.connTail != nil {
		h.connTail.next = conn
	} else {
		h.connHead = conn
	}
	h.connTail = conn
	h.size.Add(1)
	h.connMu.Unlock()

	if err := h.poll.Insert(conn.sock, eventpoll.Readable, conn); err != nil {
		h.connMu.Lock()
		h.unlinkConnLocked(conn)
		h.connMu.Unlock()
		h.size.Add(-1)
		return err
	}
	return nil
}

// removeConn detaches conn from this herder's shard, removing it from the
// readiness multiplexer first, then releasing the socket once both the
// shard and the readiness multiplexer have dropped their liveness claim.
func (h *herder) removeConn(conn *ConnRecord) {
	_ = h.poll.Remove(conn.sock)
	if conn.decLiveness() {
		h.finishRemoveConn(conn)
	}

	h.connMu.Lock()
	h.unlinkConnLocked(conn)
	h.connMu.Unlock()
	h.size.Add(-1)

	if conn.decLiveness() {
		h.finishRemoveConn(conn)
	}
}

func (h *herder) finishRemoveConn(conn *ConnRecord) {
	if err := conn.sock.Release(); err != nil {
		h.log.Warn("teardown", func(b *observability.Builder) *observability.Builder {
			return b.Str("err", err.Error())
		})
	}
}

func (h *herder) unlinkConnLocked(conn *ConnRecord) {
	if conn.prev != nil {
		conn.prev.next = conn.next
	} else if h.connHead == conn {
		h.connHead = conn.next
	}
	if conn.next != nil {
		conn.next.prev = conn.prev
	} else if h.connTail == conn {
		h.connTail = conn.prev
	}
	conn.prev, conn.next = nil, nil
}

// destroy tears down every remaining connection on this herder's shard, then
// destroys its readiness multiplexer.
func (h *herder) destroy() {
	h.connMu.Lock()
	var conns []*ConnRecord
	for c := h.connHead; c != nil; c = c.next {
		conns = append(conns, c)
	}
	h.connHead, h.connTail = nil, nil
	h.connMu.Unlock()

	for _, c := range conns {
		_ = h.poll.Remove(c.sock)
		_ = c.sock.Release()
	}
	h.size.Store(0)

	_ = h.poll.Close()
}

// run is the herder's run loop: repeatedly wait for ready sockets and
// submit one EventJob per ready socket to the shared worker pool.
func (h *herder) run() {
	defer close(h.doneCh)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	pinToCPU(h.cpu)

	out := make([]*eventpoll.Ready, h.maxEvents)
	for {
		select {
		case <-h.stopCh:
			return
		default:
		}

		n, err := h.poll.Wait(context.Background(), out, 0)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}

		for i := 0; i < n; i++ {
			ready := out[i]
			conn, _ := ready.Owner.(*ConnRecord)
			job := EventJob{Conn: conn, Events: ready.Pending, CPU: h.cpu}
			handler := h.handler

			err := h.workers.Submit(func(ctx context.Context) {
				handler(job)
			})
			if err != nil {
				if h.limiter.Allow("submit-full") {
					h.log.Warn("submit", func(b *observability.Builder) *observability.Builder {
						return b.Str("err", err.Error())
					})
				}
			}
		}
	}
}

// stop signals the run loop to exit and blocks until it does: the
// should-wake flag unblocks a Wait already in progress, and closing stopCh
// stops the loop from starting another.
func (h *herder) stop() {
	close(h.stopCh)
	h.poll.SetShouldWake()
	<-h.doneCh
}
