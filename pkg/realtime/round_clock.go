package realtime

import "time"

// RoundClock holds the timing of the current round: which round it is, how
// long a round lasts and when it started. It carries no game state; the game
// composes it and reads it back when rendering a countdown.
type RoundClock struct {
	Duration time.Duration
	Round    int
	Started  time.Time
}

// DefaultRoundDuration is how long a round runs before new content is loaded.
const DefaultRoundDuration = 5 * time.Second

// Start begins the next round at now.
func (c *RoundClock) Start(now time.Time) {
	c.Round++
	c.Started = now
}

// Stop marks the clock idle without forgetting the round number.
func (c *RoundClock) Stop() {
	c.Started = time.Time{}
}

// Running reports whether a round is in progress.
func (c *RoundClock) Running() bool {
	return !c.Started.IsZero()
}

// EndsAt returns when the current round runs out, or zero when idle.
func (c *RoundClock) EndsAt() time.Time {
	if !c.Running() {
		return time.Time{}
	}
	return c.Started.Add(c.Duration)
}

// Until returns the time left before endsAt at now, never negative. A zero
// endsAt means no round is running.
func Until(endsAt, now time.Time) time.Duration {
	if endsAt.IsZero() {
		return 0
	}
	if left := endsAt.Sub(now); left > 0 {
		return left
	}
	return 0
}
