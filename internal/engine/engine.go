package engine

import (
	"time"
)

// EventKind identifies an asynchronous engine signal
type EventKind int

const (
	Ready  EventKind = iota // media loaded and ready to play
	Failed                  // media could not be loaded
	Ended                   // media played to the end
)

// String returns a human-readable representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is a signal about a loaded item. Item is the stamp passed to
// Load, so receivers can drop signals for items that were replaced.
type Event struct {
	Item uint64
	Kind EventKind
	Err  error
}

// Engine is the audio transport driven by the player.
//
// Load replaces the current item. Signals are stamped with the item
// they belong to and may still arrive for a replaced item, so receivers
// compare the stamp. Implementations never deliver events synchronously
// from inside their own methods.
type Engine interface {
	// Load starts loading the stream at url as item
	Load(item uint64, url string)

	// Play starts or resumes the loaded item
	Play()

	// Pause holds the current position
	Pause()

	// SeekToStart rewinds the loaded item
	SeekToStart()

	// Elapsed returns the playback position of the loaded item
	Elapsed() time.Duration

	// Duration returns the length of the loaded item, or <= 0 if unknown
	Duration() time.Duration

	// Rate returns 1 while playback is advancing and 0 otherwise
	Rate() float64

	// Release drops the loaded item
	Release()

	// Events delivers Ready, Failed and Ended signals
	Events() <-chan Event
}
