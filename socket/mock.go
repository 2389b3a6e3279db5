package socket

import "sync/atomic"

// MockSocket is a deterministic, in-memory [Socket] implementation for
// tests and for the example binary in cmd/tcphandoffd. Its readiness is
// driven explicitly via SetReady, which also calls Notify on the wait
// queue, simulating the network stack's wakeup.
type MockSocket struct {
	addr uint32
	port uint16

	ready    atomic.Uint32
	wq       WaitQueue
	released atomic.Bool
}

// NewMockSocket constructs a MockSocket identified by the given remote
// endpoint, initially with no events asserted.
func NewMockSocket(addr uint32, port uint16) *MockSocket {
	return &MockSocket{addr: addr, port: port}
}

func (s *MockSocket) Poll() Event {
	return Event(s.ready.Load())
}

func (s *MockSocket) WaitQueue() *WaitQueue {
	return &s.wq
}

func (s *MockSocket) RemoteAddr() (uint32, uint16) {
	return s.addr, s.port
}

func (s *MockSocket) Release() error {
	s.released.Store(true)
	return nil
}

// Released reports whether Release has been called.
func (s *MockSocket) Released() bool {
	return s.released.Load()
}

// SetReady replaces the currently-asserted events and wakes any waiters
// registered on the socket's wait queue, simulating a state change
// delivered by the network stack.
func (s *MockSocket) SetReady(events Event) {
	s.ready.Store(uint32(events))
	s.wq.Notify()
}

// AddReady ORs events into the currently-asserted mask and notifies
// waiters, without clearing bits already set.
func (s *MockSocket) AddReady(events Event) {
	for {
		old := s.ready.Load()
		if s.ready.CompareAndSwap(old, old|uint32(events)) {
			break
		}
	}
	s.wq.Notify()
}

// ClearReady clears events from the currently-asserted mask. It does not
// notify waiters, matching the real world: clearing readiness (e.g. the
// consumer drained a socket's read buffer) isn't itself a wakeup source.
func (s *MockSocket) ClearReady(events Event) {
	for {
		old := s.ready.Load()
		if s.ready.CompareAndSwap(old, old&^uint32(events)) {
			break
		}
	}
}
