package game

import "fmt"

// GameState is the lifecycle stage of a Machine.
type GameState int

const (
	Initializing GameState = iota
	Fetching
	// Fetched is never entered; successful fetches go straight to Loading.
	Fetched
	Loading
	Running
	Finished
	Ended
)

var stateNames = map[GameState]string{
	Initializing: "initializing",
	Fetching:     "fetching",
	Fetched:      "fetched",
	Loading:      "loading",
	Running:      "running",
	Finished:     "finished",
	Ended:        "ended",
}

func (s GameState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("GameState(%d)", int(s))
}

// MarshalText encodes the state as its lower-case name.
func (s GameState) MarshalText() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown game state %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText decodes a lower-case state name.
func (s *GameState) UnmarshalText(b []byte) error {
	for state, name := range stateNames {
		if name == string(b) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown game state %q", b)
}

// transitions lists the legal edges. Finished and Ended are absorbing; a
// fresh Machine replaces them.
var transitions = map[GameState][]GameState{
	Initializing: {Fetching},
	Fetching:     {Loading},
	Loading:      {Running},
	Running:      {Finished, Loading, Ended},
}

func canTransition(from, to GameState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
