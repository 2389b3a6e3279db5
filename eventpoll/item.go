package eventpoll

import (
	"sync"
	"sync/atomic"

	"github.com/jixianzhao/TCPHandoff/socket"
)

// itemState tracks an Event Item's lifecycle: NEW -> INDEXED_IDLE ->
// (INDEXED_IDLE <-> INDEXED_READY) -> REMOVING -> FREED.
type itemState int32

const (
	stateNew itemState = iota
	stateIndexedIdle
	stateIndexedReady
	stateRemoving
	stateFreed
)

// itemKey is the ordered-index key: the remote endpoint, compared
// lexicographically (addr primary, port tie-break).
type itemKey struct {
	addr uint32
	port uint16
}

func (k itemKey) less(other itemKey) bool {
	if k.addr != other.addr {
		return k.addr < other.addr
	}
	return k.port < other.port
}

func (k itemKey) equal(other itemKey) bool {
	return k.addr == other.addr && k.port == other.port
}

// Item is one record per watched socket. Its lock must be acquirable from
// the wakeup callback's interrupt-like context: hold it only for short,
// bounded, non-blocking critical sections.
type Item struct {
	// immutable after construction, safe to read without the lock
	key   itemKey
	sock  socket.Socket
	owner any
	poll  *EventPoll // non-owning back-pointer, breaks the Item<->EventPoll cycle

	mu       sync.Mutex
	interest Mask
	pending  Mask
	inReady  bool

	refs  atomic.Int32
	state atomic.Int32 // itemState

	waitEntry *socket.WaitQueueEntry

	// ordered-index (AVL tree) linkage, guarded by EventPoll.indexMu
	left, right, parent *Item
	height               int8

	// ready-list (intrusive doubly-linked FIFO) linkage, guarded by
	// EventPoll.readyMu
	readyNext, readyPrev *Item
}

func (i *Item) getState() itemState { return itemState(i.state.Load()) }
func (i *Item) setState(s itemState) { i.state.Store(int32(s)) }

// addRef increments the reference count. Called by the wakeup callback
// before touching the item, and by any code that retrieves a pointer from
// the index and must use it after releasing the index lock.
func (i *Item) addRef() {
	i.refs.Add(1)
}

// release decrements the reference count, freeing the item back to the pool
// when it reaches zero. Only the decrement that observes zero frees it;
// every other caller's decrement is a no-op past the atomic itself.
func (i *Item) release() {
	if i.refs.Add(-1) == 0 {
		i.free()
	}
}

func (i *Item) free() {
	i.setState(stateFreed)
	releasePooledItem(i)
}

// reset clears all fields before an Item is returned to the pool, and before
// it is handed out again, preventing stale data and retained references
// (socket, owner, wait-queue entry) from leaking.
func (i *Item) reset() {
	*i = Item{}
}
