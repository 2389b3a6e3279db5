package eventpoll

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jixianzhao/TCPHandoff/socket"
)

// EventPoll is a level-triggered readiness multiplexer: it owns the ordered
// index of Event Items, the ready list, the waiter doorbell, and the
// should-wake flag used during teardown.
type EventPoll struct {
	indexMu sync.RWMutex
	index   avlTree

	readyMu  sync.Mutex
	readyHd  *Item
	readyTl  *Item
	readyLen int

	doorbell chan struct{} // buffered(1); rung on any readiness change

	shouldWake atomic.Bool
	closed     atomic.Bool
}

// New constructs an empty readiness multiplexer, registering one user of the
// shared Event Item pool.
func New() *EventPoll {
	acquireItemPool()
	return &EventPoll{
		doorbell: make(chan struct{}, 1),
	}
}

func (e *EventPoll) ring() {
	select {
	case e.doorbell <- struct{}{}:
	default:
	}
}

// Insert registers sock for readiness notification with the given interest
// mask (ERROR and HANGUP are always implicitly included). owner is an
// opaque value returned on Ready, letting the caller recover its own
// per-connection state.
func (e *EventPoll) Insert(sock socket.Socket, interest Mask, owner any) error {
	if e.closed.Load() {
		return newError(KindShutdown, "Insert", nil)
	}

	addr, port := sock.RemoteAddr()
	key := itemKey{addr: addr, port: port}

	it, err := allocPooledItem()
	if err != nil {
		return newError(KindResourceExhausted, "Insert", err)
	}
	it.key = key
	it.sock = sock
	it.owner = owner
	it.poll = e
	it.interest = interest | socket.AlwaysWatched
	it.refs.Store(1) // the index's reference
	it.setState(stateNew)

	e.indexMu.Lock()
	if !e.index.insert(it) {
		e.indexMu.Unlock()
		it.refs.Store(0)
		releasePooledItem(it)
		return newError(KindDuplicate, "Insert", nil)
	}
	e.indexMu.Unlock()

	it.setState(stateIndexedIdle)

	// Evaluate current readiness synchronously: a socket that's already
	// readable/writable when registered must not wait for a future edge to
	// surface on the ready list.
	if mask := sock.Poll() & it.interest; mask != 0 {
		it.mu.Lock()
		it.pending = mask
		e.linkReady(it)
		it.mu.Unlock()
		it.setState(stateIndexedReady)
	}

	// Attach the wakeup callback last: once attached, it may fire
	// concurrently with anything above, so there must be nothing left to do
	// after this point.
	it.waitEntry = sock.WaitQueue().Add(func() { e.wakeup(it) })

	return nil
}

// wakeup is the callback registered on the socket's wait queue at Insert
// time. It runs in an interrupt-like context: it must not block or allocate
// in the common path.
func (e *EventPoll) wakeup(it *Item) {
	it.addRef()
	defer it.release()

	mask := it.sock.Poll() & it.interest
	if mask == 0 {
		return
	}

	it.mu.Lock()
	it.pending |= mask
	if !it.inReady {
		e.linkReady(it)
	}
	it.mu.Unlock()

	e.ring()
}

// linkReady appends it to the ready list tail. Callers must hold it.mu.
func (e *EventPoll) linkReady(it *Item) {
	e.readyMu.Lock()
	defer e.readyMu.Unlock()
	if it.inReady {
		return
	}
	it.inReady = true
	it.readyNext = nil
	it.readyPrev = e.readyTl
	if e.readyTl != nil {
		e.readyTl.readyNext = it
	} else {
		e.readyHd = it
	}
	e.readyTl = it
	e.readyLen++
}

// unlinkReady removes it from the ready list, if present. Callers must hold
// it.mu.
func (e *EventPoll) unlinkReady(it *Item) {
	e.readyMu.Lock()
	defer e.readyMu.Unlock()
	if !it.inReady {
		return
	}
	if it.readyPrev != nil {
		it.readyPrev.readyNext = it.readyNext
	} else {
		e.readyHd = it.readyNext
	}
	if it.readyNext != nil {
		it.readyNext.readyPrev = it.readyPrev
	} else {
		e.readyTl = it.readyPrev
	}
	it.readyNext, it.readyPrev = nil, nil
	it.inReady = false
	e.readyLen--
}

// popReadyBatch detaches up to n items from the ready list head, returning
// them in FIFO order.
func (e *EventPoll) popReadyBatch(n int) []*Item {
	if n <= 0 {
		return nil
	}
	e.readyMu.Lock()
	defer e.readyMu.Unlock()

	out := make([]*Item, 0, n)
	for e.readyHd != nil && len(out) < n {
		it := e.readyHd
		e.readyHd = it.readyNext
		if e.readyHd != nil {
			e.readyHd.readyPrev = nil
		} else {
			e.readyTl = nil
		}
		it.readyNext, it.readyPrev = nil, nil
		it.inReady = false
		e.readyLen--
		out = append(out, it)
	}
	return out
}

// Remove unregisters sock, detaching its Event Item from the index, its
// wait-queue entry, and the ready list, then dropping the index's
// reference. It is idempotent: a missing key returns NOT_FOUND without
// side effects.
func (e *EventPoll) Remove(sock socket.Socket) error {
	addr, port := sock.RemoteAddr()
	key := itemKey{addr: addr, port: port}

	e.indexMu.Lock()
	it := e.index.find(key)
	if it == nil {
		e.indexMu.Unlock()
		return newError(KindNotFound, "Remove", nil)
	}
	e.index.remove(it)
	e.indexMu.Unlock()

	it.setState(stateRemoving)

	// Detach the wait-queue entry before dropping the reference: a callback
	// already in flight holds its own extra reference and will complete
	// harmlessly, but no new callback can fire after this point.
	sock.WaitQueue().Remove(it.waitEntry)

	it.mu.Lock()
	e.unlinkReady(it)
	it.mu.Unlock()

	it.release() // drops the index's reference

	return nil
}

// SetFlags replaces the interest mask for sock, preserving the implicit
// ERROR|HANGUP bits, and re-evaluates readiness.
func (e *EventPoll) SetFlags(sock socket.Socket, mask Mask) error {
	addr, port := sock.RemoteAddr()
	key := itemKey{addr: addr, port: port}

	e.indexMu.RLock()
	it := e.index.find(key)
	if it != nil {
		it.addRef()
	}
	e.indexMu.RUnlock()
	if it == nil {
		return newError(KindNotFound, "SetFlags", nil)
	}
	defer it.release()

	it.mu.Lock()
	it.interest = mask | socket.AlwaysWatched
	current := sock.Poll() & it.interest
	if current != 0 {
		it.pending |= current
		if !it.inReady {
			e.linkReady(it)
		}
	}
	it.mu.Unlock()

	if current != 0 {
		e.ring()
	}
	return nil
}

// Wait blocks until the ready list is non-empty, the should-wake flag is
// set, or timeout elapses (0 means wait indefinitely; out with length 0
// returns immediately). Drained items whose socket readiness still
// intersects their interest mask are reported and re-appended to the ready
// list tail, preserving level-triggered semantics; drained items whose
// readiness has since been cleared are dropped without being reported.
func (e *EventPoll) Wait(ctx context.Context, out []*Ready, timeout time.Duration) (int, error) {
	if len(out) == 0 {
		return 0, nil
	}

	for {
		items := e.popReadyBatch(len(out))
		if len(items) > 0 {
			n := 0
			for _, it := range items {
				it.mu.Lock()
				snapshot := it.pending
				it.pending = 0
				current := it.sock.Poll() & it.interest
				if current != 0 {
					it.pending |= current
					e.linkReady(it)
				}
				it.mu.Unlock()

				if current == 0 {
					// readiness was cleared since the item was queued
					continue
				}
				out[n] = &Ready{Socket: it.sock, Pending: snapshot, Owner: it.owner}
				n++
			}
			if n > 0 {
				return n, nil
			}
		}

		if e.shouldWake.Load() {
			return 0, nil
		}

		var timeoutCh <-chan time.Time
		if timeout > 0 {
			timer := time.NewTimer(timeout)
			defer timer.Stop()
			timeoutCh = timer.C
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-e.doorbell:
		case <-timeoutCh:
			return 0, nil
		}
	}
}

// SetShouldWake forces any blocked Wait call to return, used during
// teardown.
func (e *EventPoll) SetShouldWake() {
	e.shouldWake.Store(true)
	e.ring()
}

// Close destroys the readiness multiplexer: every remaining Event Item is
// detached from its socket's wait queue and freed.
func (e *EventPoll) Close() error {
	e.closed.Store(true)
	e.SetShouldWake()

	e.indexMu.Lock()
	var items []*Item
	collectInOrder(e.index.root, &items)
	e.index = avlTree{}
	e.indexMu.Unlock()

	for _, it := range items {
		it.setState(stateRemoving)
		it.sock.WaitQueue().Remove(it.waitEntry)
		it.mu.Lock()
		e.unlinkReady(it)
		it.mu.Unlock()
		it.release()
	}

	releasePoolUser()
	return nil
}

func collectInOrder(n *Item, out *[]*Item) {
	if n == nil {
		return
	}
	collectInOrder(n.left, out)
	*out = append(*out, n)
	collectInOrder(n.right, out)
}
