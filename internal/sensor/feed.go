package sensor

import (
	"sync"
	"sync/atomic"
	"time"
)

// Feed is a camera driven from outside the process: an external detector
// pushes frames, and the feed forwards them while sampling is active.
type Feed struct {
	mu     sync.Mutex
	fn     func(Frame)
	closed bool

	seq       atomic.Uint64
	received  atomic.Uint64
	forwarded atomic.Uint64
}

// NewFeed creates an open feed.
func NewFeed() *Feed {
	return &Feed{}
}

// StartSampling attaches fn. It fails once the feed is closed.
func (f *Feed) StartSampling(fn func(Frame)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrSensorUnavailable
	}
	f.fn = fn
	return nil
}

// StopSampling detaches the callback. Push calls that return after it
// deliver nothing.
func (f *Feed) StopSampling() {
	f.mu.Lock()
	f.fn = nil
	f.mu.Unlock()
}

// Push forwards frame to the sampler and reports whether sampling was active.
// Missing sequence numbers and timestamps are filled in.
func (f *Feed) Push(frame Frame) bool {
	f.received.Add(1)
	if frame.Seq == 0 {
		frame.Seq = f.seq.Add(1)
	}
	if frame.Timestamp.IsZero() {
		frame.Timestamp = time.Now()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fn == nil {
		return false
	}
	f.fn(frame)
	f.forwarded.Add(1)
	return true
}

// Sampling reports whether a callback is attached.
func (f *Feed) Sampling() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fn != nil
}

// Close detaches any callback and makes future starts fail.
func (f *Feed) Close() {
	f.mu.Lock()
	f.fn = nil
	f.closed = true
	f.mu.Unlock()
}

// Counts returns how many frames were pushed and how many were forwarded.
func (f *Feed) Counts() (received, forwarded uint64) {
	return f.received.Load(), f.forwarded.Load()
}
