package eventpoll

import (
	"sync"
	"sync/atomic"
)

// itemPool is a shared slab-like cache for Event Items, process-wide rather
// than per-EventPoll, created at package initialization and replaced once the
// last EventPoll using it departs. Go has no way to force-free a sync.Pool, so
// "destroyed" here means the pool is dropped and replaced, letting the GC
// reclaim anything not still referenced.
var (
	itemPoolMu    sync.Mutex
	itemPool      = newItemPool()
	itemPoolUsers atomic.Int64
)

func newItemPool() *sync.Pool {
	return &sync.Pool{New: func() any { return new(Item) }}
}

// acquireItemPool registers one user (one EventPoll) of the shared item
// pool. Pair with releasePoolUser on EventPoll.Close.
func acquireItemPool() {
	itemPoolUsers.Add(1)
}

// releasePoolUser deregisters one user; once the last user departs, the
// pool is replaced.
func releasePoolUser() {
	if itemPoolUsers.Add(-1) == 0 {
		itemPoolMu.Lock()
		if itemPoolUsers.Load() == 0 {
			itemPool = newItemPool()
		}
		itemPoolMu.Unlock()
	}
}

// allocPooledItem returns a zeroed Item, either recycled from the pool or
// freshly allocated. RESOURCE_EXHAUSTED is not modeled as a possible Go
// allocation failure (the runtime panics on true OOM); the error return
// exists so callers follow the same error-handling shape as other fallible
// constructors and so a future bounded-pool policy can return it without an
// API change.
func allocPooledItem() (*Item, error) {
	itemPoolMu.Lock()
	p := itemPool
	itemPoolMu.Unlock()
	it := p.Get().(*Item)
	it.reset()
	return it, nil
}

func releasePooledItem(it *Item) {
	it.reset()
	itemPoolMu.Lock()
	p := itemPool
	itemPoolMu.Unlock()
	p.Put(it)
}
