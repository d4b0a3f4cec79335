package game

import (
	"time"

	"laughgame/internal/content"
	"laughgame/pkg/realtime"
)

// Snapshot is an immutable view of a Machine, safe to share across goroutines.
type Snapshot struct {
	State    GameState    `json:"state"`
	Score    float64      `json:"score"`
	Round    int          `json:"round"`
	RoundID  string       `json:"round_id,omitempty"`
	Item     content.Item `json:"item"`
	Items    int          `json:"items"`
	Category string       `json:"category,omitempty"`
	Status   string       `json:"status,omitempty"`
	Failure  Code         `json:"failure,omitempty"`
	// RoundEndsAt is zero outside Running.
	RoundEndsAt time.Time `json:"round_ends_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Remaining returns the time left in the round at now.
func (s Snapshot) Remaining(now time.Time) time.Duration {
	return realtime.Until(s.RoundEndsAt, now)
}

func (m *Machine) buildSnapshot() Snapshot {
	return Snapshot{
		State:       m.state,
		Score:       m.score,
		Round:       m.clock.Round,
		RoundID:     m.roundID,
		Item:        m.current,
		Items:       len(m.items),
		Category:    m.category,
		Status:      m.status,
		Failure:     m.failure,
		RoundEndsAt: m.clock.EndsAt(),
		UpdatedAt:   m.now().UTC(),
	}
}
