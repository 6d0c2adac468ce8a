// Package nowplaying mirrors the player's state into a JSON file that
// short-lived processes, such as status bar commands, can read.
package nowplaying

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
)

// Status values stored in a Snapshot
const (
	StatusIdle    = "idle"
	StatusLoading = "loading"
	StatusPlaying = "playing"
	StatusPaused  = "paused"
)

// Snapshot is the persisted view of the player
type Snapshot struct {
	Track         *catalog.Track `json:"track,omitempty"`
	Status        string         `json:"status"`
	StartTime     time.Time      `json:"start_time"`          // start of the current playing stretch
	PausedAt      time.Time      `json:"paused_at,omitempty"` // zero unless paused
	TotalPlayTime time.Duration  `json:"total_play_time"`     // played before StartTime
	Progress      float64        `json:"progress"`
	Duration      time.Duration  `json:"duration"`
	Error         string         `json:"error,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Played returns the time spent playing the track as of now, pauses
// excluded
func (s Snapshot) Played(now time.Time) time.Duration {
	switch {
	case s.Track == nil:
		return 0
	case !s.PausedAt.IsZero():
		return s.TotalPlayTime + s.PausedAt.Sub(s.StartTime)
	case s.Status == StatusPlaying:
		return s.TotalPlayTime + now.Sub(s.StartTime)
	default:
		return s.TotalPlayTime
	}
}

// IsPlaying reports whether the snapshot describes a playing track
func (s Snapshot) IsPlaying() bool {
	return s.Track != nil && s.Status == StatusPlaying
}

// Read loads the snapshot written by a Writer at path
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read now playing state: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to parse now playing state: %w", err)
	}
	return s, nil
}
