package viewmodel

import (
	"time"

	"laughgame/internal/game"
)

// View is the presentation projection of one game snapshot.
type View struct {
	State           string  `json:"state"`
	StateLabel      string  `json:"state_label"`
	ScoreLabel      string  `json:"score_label"`
	ActivityVisible bool    `json:"activity_visible"`
	Message         string  `json:"message"`
	Failure         string  `json:"failure,omitempty"`
	Score           float64 `json:"score"`
	Round           int     `json:"round"`
	RoundID         string  `json:"round_id,omitempty"`
	MediaURL        string  `json:"media_url,omitempty"`
	RemainingMs     int64   `json:"remaining_ms"`
	CanStart        bool    `json:"can_start"`
	CanReset        bool    `json:"can_reset"`
}

// GamePage holds data for the main page template.
type GamePage struct {
	Title string
	View  View
	// FeedSensor enables the in-browser detector that posts frames.
	FeedSensor    bool
	RoundDuration time.Duration
}

// Score display buckets.
const (
	scoreSerious = 0.25
	scoreSmile   = 0.5
)

// Labels shown for states and score buckets.
const (
	LabelFetching = "Fetching content..."
	LabelLoading  = "Loading GIF..."
	LabelFinished = "You lost!"

	LabelSerious  = "Why so serious!!! 😐"
	LabelSmile    = "I think I saw a laugh!!! 🙂"
	LabelLaughing = "Oh, I saw you laughing!!! 😀"
)

// StateLabel returns the headline shown for state.
func StateLabel(state game.GameState) string {
	switch state {
	case game.Fetching:
		return LabelFetching
	case game.Loading:
		return LabelLoading
	case game.Finished:
		return LabelFinished
	default:
		return ""
	}
}

// ScoreLabel buckets a score for display.
func ScoreLabel(score float64) string {
	switch {
	case score < scoreSerious:
		return LabelSerious
	case score < scoreSmile:
		return LabelSmile
	default:
		return LabelLaughing
	}
}

// activityVisible is true while the game is working toward the next round.
// A stalled or ended game has nothing in progress.
func activityVisible(s game.Snapshot) bool {
	if s.Failure != "" {
		return false
	}
	switch s.State {
	case game.Initializing, game.Fetching, game.Fetched, game.Loading:
		return true
	default:
		return false
	}
}

// FromSnapshot projects s at time now.
func FromSnapshot(s game.Snapshot, now time.Time) View {
	v := View{
		State:           s.State.String(),
		StateLabel:      StateLabel(s.State),
		ActivityVisible: activityVisible(s),
		Message:         s.Status,
		Failure:         string(s.Failure),
		Score:           s.Score,
		Round:           s.Round,
		RoundID:         s.RoundID,
		MediaURL:        s.Item.MediaURL,
		RemainingMs:     s.Remaining(now).Milliseconds(),
		CanStart:        s.State == game.Initializing || (s.State == game.Fetching && s.Failure != ""),
		CanReset:        s.State != game.Initializing,
	}
	if s.State == game.Running || s.State == game.Loading {
		v.ScoreLabel = ScoreLabel(s.Score)
	}
	return v
}
