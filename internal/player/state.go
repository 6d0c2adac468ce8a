package player

import "fmt"

// Phase is the tag of a State
type Phase int

const (
	Idle    Phase = iota // no track selected
	Playing              // engine advancing the track at Index
	Paused               // engine holding position on the track at Index
)

// String returns a human-readable representation of the Phase
func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// State is the playback state. Index is only meaningful when Phase is
// Playing or Paused.
type State struct {
	Phase Phase
	Index int
}

// IdleState returns the initial state
func IdleState() State { return State{Phase: Idle, Index: -1} }

// PlayingAt returns Playing(index)
func PlayingAt(index int) State { return State{Phase: Playing, Index: index} }

// PausedAt returns Paused(index)
func PausedAt(index int) State { return State{Phase: Paused, Index: index} }

// Active reports whether a track is selected
func (s State) Active() bool {
	return s.Phase == Playing || s.Phase == Paused
}

func (s State) String() string {
	if !s.Active() {
		return s.Phase.String()
	}
	return fmt.Sprintf("%s(%d)", s.Phase, s.Index)
}
