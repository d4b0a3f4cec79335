package realtime

import (
	"sync"
	"time"
)

// Deadline is a re-armable one-shot timer. At most one callback is pending;
// arming again supersedes the previous one, and a superseded or canceled
// callback never runs, even if its timer goroutine had already started.
type Deadline struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
	armed bool
}

// Arm schedules fn to run once after d and returns the token passed to fn.
// Any pending callback is canceled first.
func (dl *Deadline) Arm(d time.Duration, fn func(token uint64)) uint64 {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	dl.stopLocked()

	dl.gen++
	token := dl.gen
	dl.armed = true
	dl.timer = time.AfterFunc(d, func() {
		dl.mu.Lock()
		if !dl.armed || dl.gen != token {
			dl.mu.Unlock()
			return
		}
		dl.armed = false
		dl.timer = nil
		dl.mu.Unlock()
		fn(token)
	})
	return token
}

// Cancel prevents a pending callback from running. Canceling a fired or
// never-armed deadline is a no-op.
func (dl *Deadline) Cancel() {
	dl.mu.Lock()
	dl.stopLocked()
	dl.mu.Unlock()
}

// Armed reports whether a callback is pending.
func (dl *Deadline) Armed() bool {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.armed
}

func (dl *Deadline) stopLocked() {
	if dl.timer != nil {
		dl.timer.Stop()
		dl.timer = nil
	}
	if dl.armed {
		dl.armed = false
		dl.gen++
	}
}
