package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/engine"
)

var (
	// ErrIndexOutOfRange is returned when a selection falls outside the catalog
	ErrIndexOutOfRange = errors.New("player: index out of range")

	// ErrNoTrack is returned by Advance and Retreat before any selection
	ErrNoTrack = errors.New("player: no track selected")

	errNoStream = errors.New("player: resolver returned no stream location")
)

// Resolver fetches extended metadata for a track
type Resolver interface {
	Resolve(ctx context.Context, id catalog.TrackID) (*catalog.ExtendedInfo, error)
}

// Coordinator owns playback position within a catalog, drives the
// engine and notifies observers of every transition.
//
// One Coordinator is built per process and lives until Run returns. All
// state is guarded by mu; resolver results and engine signals carry the
// generation of the attempt that produced them and are dropped once a
// newer attempt has started.
type Coordinator struct {
	catalog   *catalog.Catalog
	resolver  Resolver
	engine    engine.Engine
	observers *Registry
	outbox    *dispatcher
	logger    zerolog.Logger

	mu         sync.Mutex
	state      State
	index      int            // selected index, -1 when idle
	current    *catalog.Track // track at index, updated once resolved
	generation uint64         // stamp of the latest attempt, also the engine item
	cancel     context.CancelFunc
	loading    bool  // attempt in flight, engine not ready yet
	intent     Phase // phase entered when the engine becomes ready
}

// New creates a Coordinator over cat. The engine is owned by the
// Coordinator from here on; nothing else may drive it.
func New(cat *catalog.Catalog, resolver Resolver, eng engine.Engine, logger zerolog.Logger) *Coordinator {
	c := &Coordinator{
		catalog:   cat,
		resolver:  resolver,
		engine:    eng,
		observers: NewRegistry(),
		outbox:    newDispatcher(),
		logger:    logger.With().Str("component", "player").Logger(),
		state:     IdleState(),
		index:     -1,
		intent:    Playing,
	}
	cat.OnChange(c.catalogChanged)
	return c
}

// Run delivers notifications and engine signals until ctx is cancelled.
// On return the engine has been released.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info().Msg("Starting player")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.outbox.run(ctx, c.deliver)
	}()

	events := c.engine.Events()
	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.resetLocked()
			c.mu.Unlock()
			wg.Wait()
			c.logger.Info().Msg("Player stopped")
			return ctx.Err()
		case ev := <-events:
			c.handleEngineEvent(ev)
		}
	}
}

func (c *Coordinator) deliver(ev Event) {
	n := c.observers.NotifyAll(ev)
	c.logger.Debug().
		Str("event", ev.Kind.String()).
		Int("index", ev.Index).
		Int("observers", n).
		Msg("Notified observers")
}

// RegisterObserver starts delivering notifications to ref
func (c *Coordinator) RegisterObserver(ref ObserverRef) {
	c.observers.Register(ref)
}

// UnregisterObserver stops delivering notifications to ref
func (c *Coordinator) UnregisterObserver(ref ObserverRef) {
	c.observers.Unregister(ref)
}

// Select starts playback of the track at index
func (c *Coordinator) Select(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectLocked(index)
}

// Toggle pauses or resumes the current track, or selects the first
// track when idle. While a track is still loading it only flips whether
// the track will start playing or paused: nothing is notified and State
// is unchanged until the engine is ready, when Started or Changed
// reports the resulting phase.
func (c *Coordinator) Toggle() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loading {
		if c.intent == Playing {
			c.intent = Paused
		} else {
			c.intent = Playing
		}
		return nil
	}

	switch c.state.Phase {
	case Playing:
		c.engine.Pause()
		c.state = PausedAt(c.state.Index)
		c.notifyLocked(EventPaused)
	case Paused:
		c.engine.Play()
		c.state = PlayingAt(c.state.Index)
		c.notifyLocked(EventContinued)
	default:
		return c.selectLocked(0)
	}
	return nil
}

// Advance moves to the next track; at the last track it does nothing
func (c *Coordinator) Advance() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index < 0 {
		return ErrNoTrack
	}
	if c.index >= c.catalog.Len()-1 {
		return nil
	}
	return c.selectLocked(c.index + 1)
}

// Retreat moves to the previous track; at the first track it does nothing
func (c *Coordinator) Retreat() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index < 0 {
		return ErrNoTrack
	}
	if c.index == 0 {
		return nil
	}
	return c.selectLocked(c.index - 1)
}

// Stop releases the engine and returns to Idle
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index < 0 {
		return
	}
	c.logger.Info().Msg("Playback stopped")
	c.resetLocked()
	c.outbox.push(Event{Kind: EventStopped, Index: -1})
}

// State returns the current playback state. While a new track loads it
// still reports the phase and index of the previous one (Idle on a first
// selection); CurrentTrack already returns the loading track and
// IsPlaying is false.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// CurrentTrack returns the selected track, including one still loading
func (c *Coordinator) CurrentTrack() (catalog.Track, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return catalog.Track{}, false
	}
	return snapshot(*c.current), true
}

// CurrentProgress returns elapsed/duration of the loaded track in [0,1]
func (c *Coordinator) CurrentProgress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.loading {
		return 0
	}
	return progress(c.engine)
}

// CurrentDuration returns the length of the loaded track, or 0 while
// nothing is loaded or the engine cannot tell
func (c *Coordinator) CurrentDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.loading {
		return 0
	}
	return max(c.engine.Duration(), 0)
}

// IsPlaying reports whether the engine is advancing playback
func (c *Coordinator) IsPlaying() bool {
	return c.engine.Rate() > 0
}

// selectLocked runs the synchronous part of track initialization and
// hands the rest to a resolver goroutine
func (c *Coordinator) selectLocked(index int) error {
	track, ok := c.catalog.At(index)
	if !ok {
		return fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, c.catalog.Len())
	}

	c.engine.Pause()
	c.engine.SeekToStart()

	gen := c.beginAttemptLocked()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.index = index
	c.current = &track
	c.loading = true
	c.intent = Playing

	c.logger.Info().
		Int("index", index).
		Str("track", track.Title).
		Str("owner", track.Owner).
		Msg("Loading track")
	c.notifyLocked(EventLoading)

	go c.resolve(ctx, gen, index, track.ID)
	return nil
}

func (c *Coordinator) resolve(ctx context.Context, gen uint64, index int, id catalog.TrackID) {
	info, err := c.resolver.Resolve(ctx, id)
	if err == nil && (info == nil || info.StreamURL == "") {
		err = errNoStream
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.logger.Debug().Uint64("generation", gen).Msg("Discarding stale metadata")
		return
	}
	if err != nil {
		c.failLocked(fmt.Errorf("failed to resolve track %d: %w", id, err))
		return
	}

	if !c.catalog.Annotate(index, id, *info) {
		c.logger.Debug().Int("index", index).Msg("Catalog entry changed before annotation")
	}
	ext := *info
	c.current.Extended = &ext

	c.engine.Load(gen, info.StreamURL)
}

func (c *Coordinator) handleEngineEvent(ev engine.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Item != c.generation || c.index < 0 {
		c.logger.Debug().
			Uint64("item", ev.Item).
			Str("event", ev.Kind.String()).
			Msg("Discarding stale engine event")
		return
	}

	switch ev.Kind {
	case engine.Ready:
		if !c.loading {
			return
		}
		c.loading = false
		prior := c.state
		if c.intent == Playing {
			c.engine.Play()
			c.state = PlayingAt(c.index)
		} else {
			c.state = PausedAt(c.index)
		}
		if prior.Active() {
			c.notifyLocked(EventChanged)
		} else {
			c.notifyLocked(EventStarted)
		}

	case engine.Failed:
		c.failLocked(fmt.Errorf("failed to load track: %w", ev.Err))

	case engine.Ended:
		if c.loading {
			return
		}
		if c.index < c.catalog.Len()-1 {
			if err := c.selectLocked(c.index + 1); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to advance after end of track")
			}
			return
		}
		// last track: hold at the end without notifying; the engine has
		// stopped and rewinds on the next Play
		c.engine.Pause()
		c.state = PausedAt(c.index)
	}
}

// catalogChanged drops the selection when the selected entry no longer
// holds the selected track
func (c *Coordinator) catalogChanged() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index < 0 || c.current == nil {
		return
	}
	track, ok := c.catalog.At(c.index)
	if ok && track.ID == c.current.ID {
		return
	}

	c.logger.Info().Int("index", c.index).Msg("Selected track left the catalog, stopping")
	c.resetLocked()
	c.outbox.push(Event{Kind: EventStopped, Index: -1})
}

func (c *Coordinator) failLocked(err error) {
	track := *c.current
	index := c.index

	c.logger.Warn().Err(err).Int("index", index).Str("track", track.Title).Msg("Track failed")
	c.resetLocked()
	c.outbox.push(Event{Kind: EventFailed, Track: snapshot(track), Index: index, Err: err})
}

// beginAttemptLocked invalidates the in-flight attempt and returns the
// stamp for a new one
func (c *Coordinator) beginAttemptLocked() uint64 {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.generation++
	return c.generation
}

func (c *Coordinator) resetLocked() {
	c.beginAttemptLocked()
	c.engine.Release()
	c.state = IdleState()
	c.index = -1
	c.current = nil
	c.loading = false
	c.intent = Playing
}

func (c *Coordinator) notifyLocked(kind EventKind) {
	c.outbox.push(Event{Kind: kind, Track: snapshot(*c.current), Index: c.index})
}

func snapshot(t catalog.Track) catalog.Track {
	if t.Extended != nil {
		ext := *t.Extended
		t.Extended = &ext
	}
	return t
}

// progress computes elapsed/duration, clamped to [0,1]
func progress(e engine.Engine) float64 {
	d := e.Duration()
	if d <= 0 {
		return 0
	}
	p := float64(e.Elapsed()) / float64(d)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}
