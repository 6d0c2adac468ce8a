// Package discord shows the playing track as Discord Rich Presence.
package discord

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/player"
)

type rpcClient interface {
	SetActivity(Activity) error
	Close() error
}

// Playback is the part of the player presence reads timing from
type Playback interface {
	IsPlaying() bool
	CurrentProgress() float64
	CurrentDuration() time.Duration
}

// update is the latest thing to show; a nil track clears the presence
type update struct {
	track *catalog.Track
}

// Presence observes the player and mirrors it into Discord. Callbacks
// only record the latest update; Run does the IPC.
type Presence struct {
	appID   string
	source  Playback
	logger  zerolog.Logger
	client  rpcClient
	connect func(string) (rpcClient, error)
	updates chan update
	last    lastActivity
	now     func() time.Time
}

type lastActivity struct {
	id      catalog.TrackID
	playing bool
}

// Verify Presence clears on stop and failure at compile time.
var (
	_ player.Observer        = (*Presence)(nil)
	_ player.StopObserver    = (*Presence)(nil)
	_ player.FailureObserver = (*Presence)(nil)
)

func New(appID string, source Playback, logger zerolog.Logger) *Presence {
	return &Presence{
		appID:  appID,
		source: source,
		logger: logger.With().Str("component", "discord").Logger(),
		connect: func(appID string) (rpcClient, error) {
			return ipcConnect(appID)
		},
		updates: make(chan update, 1),
		now:     time.Now,
	}
}

func (p *Presence) OnLoading(catalog.Track)     {}
func (p *Presence) OnStarted(t catalog.Track)   { p.push(update{track: &t}) }
func (p *Presence) OnChanged(t catalog.Track)   { p.push(update{track: &t}) }
func (p *Presence) OnContinued(t catalog.Track) { p.push(update{track: &t}) }
func (p *Presence) OnPaused(catalog.Track)      { p.push(update{}) }
func (p *Presence) OnStopped()                  { p.push(update{}) }
func (p *Presence) OnFailed(catalog.Track, error) {
	p.push(update{})
}

// push replaces any update Run has not picked up yet
func (p *Presence) push(u update) {
	for {
		select {
		case p.updates <- u:
			return
		default:
		}
		select {
		case <-p.updates:
		default:
		}
	}
}

// Run applies updates until ctx is cancelled. Connects lazily on the
// first playing track. If Discord isn't running, logs the error and
// retries on the next update.
func (p *Presence) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.clearActivity()
			p.close()
			return
		case u := <-p.updates:
			p.handle(u)
		}
	}
}

func (p *Presence) handle(u update) {
	if u.track == nil || !p.source.IsPlaying() {
		if p.last.playing {
			p.clearActivity()
			p.last = lastActivity{}
		}
		return
	}

	cur := lastActivity{id: u.track.ID, playing: true}
	if cur == p.last {
		return
	}

	if err := p.ensureConnected(); err != nil {
		p.logger.Warn().Err(err).Msg("Discord not available")
		return
	}

	if err := p.client.SetActivity(p.activityFor(*u.track)); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to set activity")
		p.close()
		return
	}
	p.last = cur
}

func (p *Presence) activityFor(t catalog.Track) Activity {
	a := Activity{
		Type:    2, // Listening
		Name:    "SoundCloud",
		Details: t.Title,
		State:   "by " + t.Owner,
		Assets: &Assets{
			LargeImage: t.ArtworkURL,
			LargeText:  t.Title,
			SmallImage: "scplayer",
			SmallText:  "scplayer",
		},
	}

	if d := p.source.CurrentDuration(); d > 0 {
		elapsed := time.Duration(p.source.CurrentProgress() * float64(d))
		start := p.now().Add(-elapsed)
		startUnix := start.Unix()
		endUnix := start.Add(d).Unix()
		a.Timestamps = &Timestamps{Start: &startUnix, End: &endUnix}
	}
	return a
}

func (p *Presence) ensureConnected() error {
	if p.client != nil {
		return nil
	}
	client, err := p.connect(p.appID)
	if err != nil {
		return err
	}
	p.logger.Info().Msg("Connected to Discord")
	p.client = client
	return nil
}

func (p *Presence) clearActivity() {
	if p.client == nil {
		return
	}
	if err := p.client.SetActivity(Activity{}); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to clear activity")
		p.close()
	}
}

func (p *Presence) close() {
	if p.client == nil {
		return
	}
	_ = p.client.Close()
	p.client = nil
}
