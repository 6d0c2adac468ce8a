package catalog

import (
	"sync"
)

// TrackID identifies a track in the remote catalog
type TrackID int64

// ExtendedInfo is the per-track data resolved on demand
type ExtendedInfo struct {
	Description string `json:"description,omitempty"`
	StreamURL   string `json:"stream_url"`
}

// Track is a catalog entry. Extended is nil until the player resolves it.
type Track struct {
	ID         TrackID       `json:"id"`
	Title      string        `json:"title"`
	Owner      string        `json:"owner"`
	ArtworkURL string        `json:"artwork_url,omitempty"`
	Extended   *ExtendedInfo `json:"extended,omitempty"`
}

// HasStream reports whether the track's stream location is known
func (t Track) HasStream() bool {
	return t.Extended != nil && t.Extended.StreamURL != ""
}

// Catalog is an ordered track list shared between the player and any
// other holder. Entries are returned as snapshots; annotations written
// through Annotate are visible to every holder of the same Catalog.
type Catalog struct {
	mu       sync.RWMutex
	tracks   []Track
	version  uint64
	onChange []func()
}

// New creates a catalog holding the given tracks
func New(tracks ...Track) *Catalog {
	c := &Catalog{}
	c.tracks = append(c.tracks, tracks...)
	return c
}

// Len returns the number of tracks
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tracks)
}

// At returns a snapshot of the track at index i
func (c *Catalog) At(i int) (Track, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if i < 0 || i >= len(c.tracks) {
		return Track{}, false
	}
	return cloneTrack(c.tracks[i]), true
}

// Tracks returns a snapshot of every track in order
func (c *Catalog) Tracks() []Track {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Track, len(c.tracks))
	for i, t := range c.tracks {
		out[i] = cloneTrack(t)
	}
	return out
}

// Version increases on every structural change (Replace, Append)
func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Annotate stores resolved extended info on the entry at index i.
// The write only lands if the entry still holds track id; it returns
// false when the catalog changed underneath the caller.
func (c *Catalog) Annotate(i int, id TrackID, info ExtendedInfo) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.tracks) || c.tracks[i].ID != id {
		return false
	}
	c.tracks[i].Extended = &info
	return true
}

// Replace swaps the whole track list and fires change hooks
func (c *Catalog) Replace(tracks []Track) {
	c.mu.Lock()
	c.tracks = append([]Track(nil), tracks...)
	c.version++
	hooks := c.hooksLocked()
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Append adds tracks at the end, e.g. when another result page arrives
func (c *Catalog) Append(tracks ...Track) {
	if len(tracks) == 0 {
		return
	}

	c.mu.Lock()
	c.tracks = append(c.tracks, tracks...)
	c.version++
	hooks := c.hooksLocked()
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// OnChange registers fn to run after every structural change.
// Hooks run outside the catalog lock.
func (c *Catalog) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = append(c.onChange, fn)
}

func (c *Catalog) hooksLocked() []func() {
	return append([]func(){}, c.onChange...)
}

func cloneTrack(t Track) Track {
	if t.Extended != nil {
		ext := *t.Extended
		t.Extended = &ext
	}
	return t
}
