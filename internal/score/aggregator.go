// Package score reduces smile samples to a normalized score.
package score

import (
	"sync"

	"github.com/samber/lo"
)

// WindowSize is the number of samples averaged into one score.
const WindowSize = 5

// Aggregator collects samples into a fixed-size window. Each full window is
// reduced to the fraction of smiling samples, published, and cleared.
// Partial windows are never published.
type Aggregator struct {
	mu      sync.Mutex
	size    int
	window  []bool
	publish func(float64)
}

// NewAggregator creates an aggregator with the given window size.
func NewAggregator(size int) *Aggregator {
	if size < 1 {
		size = WindowSize
	}
	return &Aggregator{
		size:   size,
		window: make([]bool, 0, size),
	}
}

// OnScore subscribes fn to completed-window scores, replacing any previous
// subscriber. fn runs on the caller of Add and must not block.
func (a *Aggregator) OnScore(fn func(score float64)) {
	a.mu.Lock()
	a.publish = fn
	a.mu.Unlock()
}

// Add appends one sample and publishes the window mean once it is full.
func (a *Aggregator) Add(isSmile bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.window = append(a.window, isSmile)
	if len(a.window) < a.size {
		return
	}
	mean := float64(lo.Count(a.window, true)) / float64(a.size)
	a.window = a.window[:0]
	if a.publish != nil {
		a.publish(mean)
	}
}

// Reset drops a partially filled window.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.window = a.window[:0]
	a.mu.Unlock()
}

// Pending returns how many samples sit in the current window.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.window)
}

// Size returns the window size.
func (a *Aggregator) Size() int {
	return a.size
}
