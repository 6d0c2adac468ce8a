package history

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/player"
)

// Playback is the part of the player the recorder reads from
type Playback interface {
	CurrentDuration() time.Duration
	IsPlaying() bool
}

// listen tracks one stretch of time spent on a track
type listen struct {
	track    catalog.Track
	duration time.Duration
	started  time.Time     // first moment of the listen
	resumed  time.Time     // start of the current playing stretch
	played   time.Duration // accumulated before resumed
	paused   bool
}

// Recorder observes the player and stores every listen that passes its
// rules once the listener moves on.
type Recorder struct {
	store  *Store
	rules  Rules
	source Playback
	logger zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	current *listen
}

// Verify Recorder handles stop and failure notifications at compile time.
var (
	_ player.Observer        = (*Recorder)(nil)
	_ player.StopObserver    = (*Recorder)(nil)
	_ player.FailureObserver = (*Recorder)(nil)
)

// NewRecorder creates a recorder writing to store
func NewRecorder(store *Store, rules Rules, source Playback, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		rules:  rules,
		source: source,
		logger: logger.With().Str("component", "history").Logger(),
		now:    time.Now,
	}
}

func (r *Recorder) OnLoading(catalog.Track) { r.Flush() }

func (r *Recorder) OnStarted(t catalog.Track) { r.begin(t) }

func (r *Recorder) OnChanged(t catalog.Track) { r.begin(t) }

func (r *Recorder) OnPaused(catalog.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.current
	if l == nil || l.paused {
		return
	}
	l.played += r.now().Sub(l.resumed)
	l.paused = true
	r.refreshDurationLocked()
}

func (r *Recorder) OnContinued(catalog.Track) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.current
	if l == nil || !l.paused {
		return
	}
	l.resumed = r.now()
	l.paused = false
	r.refreshDurationLocked()
}

func (r *Recorder) OnFailed(catalog.Track, error) { r.Flush() }

func (r *Recorder) OnStopped() { r.Flush() }

// Flush ends the current listen, storing it if it counts
func (r *Recorder) Flush() {
	r.mu.Lock()
	l := r.current
	r.current = nil
	var played time.Duration
	if l != nil {
		played = l.played
		if !l.paused {
			played += r.now().Sub(l.resumed)
		}
	}
	r.mu.Unlock()

	if l == nil {
		return
	}
	if !r.rules.ShouldRecord(l.duration, played) {
		r.logger.Debug().
			Str("track", l.track.Title).
			Dur("played", played).
			Dur("duration", l.duration).
			Msg("Listen too short to record")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	play := Play{
		TrackID:   l.track.ID,
		Title:     l.track.Title,
		Owner:     l.track.Owner,
		Duration:  l.duration,
		Played:    played,
		Timestamp: l.started,
	}
	if _, err := r.store.Add(ctx, play); err != nil {
		r.logger.Error().Err(err).Str("track", l.track.Title).Msg("Failed to record play")
		return
	}
	r.logger.Info().
		Str("track", l.track.Title).
		Str("owner", l.track.Owner).
		Dur("played", played).
		Msg("Recorded play")
}

func (r *Recorder) begin(t catalog.Track) {
	r.Flush()

	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &listen{
		track:    t,
		duration: r.source.CurrentDuration(),
		started:  now,
		resumed:  now,
		paused:   !r.source.IsPlaying(),
	}
}

// refreshDurationLocked fills in a duration the engine did not know yet
func (r *Recorder) refreshDurationLocked() {
	if r.current.duration <= 0 {
		r.current.duration = r.source.CurrentDuration()
	}
}
