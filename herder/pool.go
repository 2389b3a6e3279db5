package herder

import (
	"context"
	"math"
	"sync"

	"github.com/jixianzhao/TCPHandoff/socket"
	"github.com/jixianzhao/TCPHandoff/workerpool"
)

// Pool is the Herder Pool: one herder per configured CPU, a shared Herder
// List used to pick the least-loaded shard, and a shared worker pool that
// every herder's run loop submits EventJobs to.
type Pool struct {
	listMu  sync.RWMutex // Herder List lock; guards herders during Dispatch's scan
	herders []*herder

	workers *workerpool.Pool
	closed  bool
	closeMu sync.Mutex
}

// NewPool creates one herder per CPU in opts (or WithCPUs), starts each
// herder's run loop, and returns the assembled pool. workers is the shared
// Worker Pool collaborator; it is not owned by the returned Pool and must
// be closed separately by the caller.
func NewPool(ctx context.Context, workers *workerpool.Pool, opts ...Option) (*Pool, error) {
	cfg := resolveConfig(opts)
	if len(cfg.cpus) == 0 {
		return nil, ErrNoHerders
	}

	p := &Pool{workers: workers}
	p.herders = make([]*herder, 0, len(cfg.cpus))
	for _, cpu := range cfg.cpus {
		h := newHerder(cpu, workers, cfg)
		p.herders = append(p.herders, h)
		go h.run()
	}
	return p, nil
}

// Dispatch assigns sock to the least-loaded herder and registers it for
// readiness notification. The scan for the least-loaded herder happens
// under the Herder List's read lock, reading each shard's load counter
// atomically without acquiring any shard's own lock, so a busy shard never
// blocks Dispatch's scan of its neighbors.
func (p *Pool) Dispatch(sock socket.Socket) error {
	p.closeMu.Lock()
	closed := p.closed
	p.closeMu.Unlock()
	if closed {
		return ErrShutdown
	}

	p.listMu.RLock()
	var least *herder
	minSize := int32(math.MaxInt32)
	for _, h := range p.herders {
		if sz := h.loadSize(); sz < minSize {
			minSize = sz
			least = h
		}
	}
	p.listMu.RUnlock()

	if least == nil {
		return ErrNoHerders
	}

	conn := newConnRecord(sock)
	return least.insertConn(conn)
}

// Remove tears down conn: unregisters it from its owning herder's readiness
// multiplexer, detaches it from that herder's shard, and releases its
// socket once both claims have been dropped.
func (p *Pool) Remove(conn *ConnRecord) {
	if conn == nil || conn.owner == nil {
		return
	}
	conn.owner.removeConn(conn)
}

// Close stops every herder's run loop, tears down its connections and
// readiness multiplexer, and frees it: signal should-wake, join the run
// loop, then destroy, in that order so destroy never races a still-running
// loop.
func (p *Pool) Close(ctx context.Context) error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	p.closeMu.Unlock()

	p.listMu.Lock()
	herders := p.herders
	p.herders = nil
	p.listMu.Unlock()

	for _, h := range herders {
		h.stop()
		h.destroy()
	}

	return nil
}
