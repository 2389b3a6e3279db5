// Package eventpoll implements a from-scratch level-triggered readiness
// multiplexer for TCP sockets, analogous in spirit to a kernel-internal
// epoll. It provides Insert, Remove, SetFlags, and Wait over an ordered
// index keyed by remote endpoint, a FIFO ready list, and a wakeup callback
// driven by the socket's wait queue.
//
// Only TCP sockets are supported; there is no edge-triggered mode, no
// per-connection timers, and no persistence across restarts.
package eventpoll

import (
	"github.com/jixianzhao/TCPHandoff/socket"
)

// Mask is the interest/pending event mask understood by the engine. It
// reuses the closed set defined by the socket package: ERROR and HANGUP are
// always implicitly watched.
type Mask = socket.Event

const (
	Readable = socket.Readable
	Writable = socket.Writable
	ErrorEv  = socket.Error
	Hangup   = socket.Hangup
)

// Ready describes one drained ready-list entry, as returned by Wait.
type Ready struct {
	// Socket is the socket the event pertains to.
	Socket socket.Socket
	// Pending is the snapshot of events asserted at drain time.
	Pending Mask
	// Owner is the opaque value supplied to Insert, letting the caller
	// recover its own per-connection state without a second lookup.
	Owner any
}
