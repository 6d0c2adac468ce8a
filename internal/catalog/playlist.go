package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// apiTrack mirrors the track object returned by the SoundCloud API
type apiTrack struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	ArtworkURL string `json:"artwork_url"`
	User       struct {
		Username string `json:"username"`
	} `json:"user"`
}

// ParseTracks decodes a JSON array of SoundCloud track objects
func ParseTracks(data []byte) ([]Track, error) {
	var raw []apiTrack
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode tracks: %w", err)
	}

	tracks := make([]Track, 0, len(raw))
	for _, r := range raw {
		if r.ID == 0 {
			continue // not a playable track
		}
		tracks = append(tracks, Track{
			ID:         TrackID(r.ID),
			Title:      r.Title,
			Owner:      r.User.Username,
			ArtworkURL: r.ArtworkURL,
		})
	}
	return tracks, nil
}

// LoadPlaylist reads a playlist file into a new Catalog
func LoadPlaylist(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read playlist: %w", err)
	}

	tracks, err := ParseTracks(data)
	if err != nil {
		return nil, err
	}

	return New(tracks...), nil
}
