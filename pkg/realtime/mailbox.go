package realtime

import "sync"

// Mailbox is an unbounded FIFO inbox for a single consumer loop. Post never
// blocks, so producers running on sensor, timer or network goroutines cannot
// stall behind the consumer.
type Mailbox[T any] struct {
	mu     sync.Mutex
	queue  []T
	wake   chan struct{}
	closed bool
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		wake: make(chan struct{}, 1),
	}
}

// Post appends v and wakes the consumer. It reports false once the mailbox is closed.
func (m *Mailbox[T]) Post(v T) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, v)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
	return true
}

// Wake returns the channel signalled after every Post. One signal may cover
// several posted values; the consumer should Drain after each receive.
func (m *Mailbox[T]) Wake() <-chan struct{} {
	return m.wake
}

// Drain removes and returns everything queued, oldest first.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil
	}
	out := m.queue
	m.queue = nil
	return out
}

// Len returns the number of queued values.
func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close rejects further posts and discards anything still queued.
func (m *Mailbox[T]) Close() {
	m.mu.Lock()
	m.closed = true
	m.queue = nil
	m.mu.Unlock()
}
