package herder

import (
	"sync"
	"sync/atomic"

	"github.com/jixianzhao/TCPHandoff/socket"
)

// ParseResult is a stand-in for whatever an HTTP header parser produces.
// This module does not parse requests; ParseResult exists only so
// ConnRecord.Request has a concrete type for a caller's parser to populate,
// rather than an untyped placeholder.
type ParseResult struct {
	// Raw holds the parser's output in whatever form a caller's parser
	// chooses to store it.
	Raw []byte
}

// ConnRecord is the per-connection state a herder shard owns: the socket,
// a parsed-request slot, a body-length counter, and a liveness counter
// initialized to 2 and decremented once by shard removal and once by
// readiness-multiplexer removal, so the socket is released exactly once,
// on whichever decrement observes zero.
type ConnRecord struct {
	mu sync.RWMutex

	sock socket.Socket

	// Request holds the connection's parsed request, nil until set by a
	// caller's own HTTP header parser.
	Request *ParseResult

	// BodyLen tracks bytes of request body consumed so far.
	BodyLen int64

	liveness atomic.Int32

	// owner identifies which herder's shard this record belongs to, so
	// Pool.Remove can route to the right shard without a second index.
	owner *herder

	// shard linkage, guarded by the owning herder's pool lock
	prev, next *ConnRecord
}

func newConnRecord(sock socket.Socket) *ConnRecord {
	c := &ConnRecord{sock: sock}
	c.liveness.Store(2)
	return c
}

// Socket returns the connection's underlying socket.
func (c *ConnRecord) Socket() socket.Socket {
	return c.sock
}

// decLiveness drops the liveness counter by one, returning true the first
// (and only the first) time it reaches zero, at which point the caller is
// responsible for releasing the socket.
func (c *ConnRecord) decLiveness() bool {
	return c.liveness.Add(-1) == 0
}
