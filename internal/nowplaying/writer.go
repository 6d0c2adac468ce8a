package nowplaying

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/player"
)

// DefaultPersistInterval bounds how often progress updates hit the disk
const DefaultPersistInterval = 5 * time.Second

// Writer observes the player and keeps the snapshot file current.
// Transitions are written immediately; progress updates are throttled.
type Writer struct {
	path            string
	source          Playback
	persistInterval time.Duration
	logger          zerolog.Logger
	now             func() time.Time

	mu          sync.Mutex
	current     Snapshot
	lastPersist time.Time
	dirty       bool
}

// Verify Writer handles every notification at compile time.
var (
	_ player.Observer        = (*Writer)(nil)
	_ player.StopObserver    = (*Writer)(nil)
	_ player.FailureObserver = (*Writer)(nil)
)

// Playback tells whether a freshly started track is advancing
type Playback interface {
	IsPlaying() bool
}

// NewWriter creates a Writer for path and writes an idle snapshot
func NewWriter(path string, source Playback, logger zerolog.Logger) (*Writer, error) {
	w := &Writer{
		path:            path,
		source:          source,
		persistInterval: DefaultPersistInterval,
		logger:          logger.With().Str("component", "nowplaying").Logger(),
		now:             time.Now,
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = Snapshot{Status: StatusIdle}
	if err := w.persistLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

// Snapshot returns a copy of the current snapshot
func (w *Writer) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

func (w *Writer) OnLoading(t catalog.Track) {
	w.update(func(s *Snapshot) {
		*s = Snapshot{Track: &t, Status: StatusLoading}
	})
}

func (w *Writer) OnStarted(t catalog.Track) { w.begin(t) }

func (w *Writer) OnChanged(t catalog.Track) { w.begin(t) }

func (w *Writer) OnPaused(catalog.Track) {
	w.update(func(s *Snapshot) {
		if s.PausedAt.IsZero() {
			s.PausedAt = w.now()
		}
		s.Status = StatusPaused
	})
}

func (w *Writer) OnContinued(catalog.Track) {
	w.update(func(s *Snapshot) {
		if !s.PausedAt.IsZero() {
			s.TotalPlayTime += s.PausedAt.Sub(s.StartTime)
			s.StartTime = w.now()
			s.PausedAt = time.Time{}
		}
		s.Status = StatusPlaying
	})
}

func (w *Writer) OnFailed(t catalog.Track, err error) {
	w.update(func(s *Snapshot) {
		*s = Snapshot{Status: StatusIdle, Error: err.Error()}
	})
}

func (w *Writer) OnStopped() {
	w.update(func(s *Snapshot) {
		*s = Snapshot{Status: StatusIdle}
	})
}

// SetProgress records the latest position. It only reaches the disk
// once per persist interval; Flush writes anything pending.
func (w *Writer) SetProgress(progress float64, duration time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.current.Track == nil {
		return
	}
	w.current.Progress = progress
	w.current.Duration = duration
	w.dirty = true

	if w.now().Sub(w.lastPersist) < w.persistInterval {
		return
	}
	if err := w.persistLocked(); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to persist progress")
	}
}

// Flush writes pending progress to disk
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirty {
		return nil
	}
	return w.persistLocked()
}

func (w *Writer) begin(t catalog.Track) {
	w.update(func(s *Snapshot) {
		now := w.now()
		*s = Snapshot{Track: &t, Status: StatusPlaying, StartTime: now}
		if !w.source.IsPlaying() {
			s.Status = StatusPaused
			s.PausedAt = now
		}
	})
}

func (w *Writer) update(fn func(*Snapshot)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fn(&w.current)
	if err := w.persistLocked(); err != nil {
		w.logger.Warn().Err(err).Msg("Failed to persist now playing state")
	}
}

// persistLocked writes the snapshot atomically via temp file + rename.
// Must be called with lock held.
func (w *Writer) persistLocked() error {
	w.current.UpdatedAt = w.now()

	data, err := json.MarshalIndent(w.current, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return err
	}

	tmpPath := w.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, w.path); err != nil {
		return err
	}

	w.lastPersist = w.now()
	w.dirty = false
	return nil
}
