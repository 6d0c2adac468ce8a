package daemon

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
	"github.com/marinapotashenkova/SCPlayer/internal/engine"
	"github.com/marinapotashenkova/SCPlayer/internal/history"
	"github.com/marinapotashenkova/SCPlayer/internal/nowplaying"
	"github.com/marinapotashenkova/SCPlayer/internal/player"
)

type stubResolver struct{}

func (stubResolver) Resolve(_ context.Context, id catalog.TrackID) (*catalog.ExtendedInfo, error) {
	return &catalog.ExtendedInfo{StreamURL: fmt.Sprintf("https://cdn.test/%d", id)}, nil
}

func newTestDaemon(t *testing.T) (*Daemon, *engine.Mock, Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		PollInterval:     10 * time.Millisecond,
		StateFile:        filepath.Join(dir, "state.json"),
		HistoryDB:        filepath.Join(dir, "history.db"),
		ListenAddr:       "127.0.0.1:0",
		MetadataTTL:      time.Hour,
		HistoryRetention: 24 * time.Hour,
		Rules:            history.Rules{MinDuration: time.Second},
	}
	cat := catalog.New(
		catalog.Track{ID: 1, Title: "Intro", Owner: "dj"},
		catalog.Track{ID: 2, Title: "Outro", Owner: "dj"},
	)
	eng := engine.NewMock()
	d, err := New(cfg, cat, stubResolver{}, eng, zerolog.Nop())
	require.NoError(t, err)
	return d, eng, cfg
}

func TestDaemon_PlaysRecordsAndShutsDown(t *testing.T) {
	d, eng, cfg := newTestDaemon(t)
	eng.SetTimes(0, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.run(ctx) }()

	require.NoError(t, d.Player().Select(0))
	require.Eventually(t, func() bool {
		return eng.URL() == "https://cdn.test/1"
	}, 2*time.Second, 5*time.Millisecond)
	eng.Ready(eng.Item())

	require.Eventually(t, func() bool {
		snap, err := nowplaying.Read(cfg.StateFile)
		return err == nil && snap.Status == nowplaying.StatusPlaying
	}, 2*time.Second, 5*time.Millisecond, "snapshot never showed playing")

	// progress reaches the writer through the poller
	eng.SetTimes(30*time.Second, time.Minute)
	require.Eventually(t, func() bool {
		return d.writer.Snapshot().Progress == 0.5
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
	require.NoError(t, d.Shutdown())

	snap, err := nowplaying.Read(cfg.StateFile)
	require.NoError(t, err)
	assert.Equal(t, nowplaying.StatusIdle, snap.Status)

	store, err := history.Open(cfg.HistoryDB)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	plays, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, plays, 1)
	assert.Equal(t, catalog.TrackID(1), plays[0].TrackID)

	// the resolved stream was cached for next time
	info, err := store.Metadata(context.Background(), 1, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/1", info.StreamURL)
}

func TestDaemon_ServerFailureStopsRun(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	d.config.ListenAddr = "256.0.0.1:bad"

	err := d.run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control server")
	assert.Equal(t, player.IdleState(), d.Player().State())
	require.NoError(t, d.Shutdown())
}

func TestDaemon_DiscordDisabledByDefault(t *testing.T) {
	d, _, _ := newTestDaemon(t)
	assert.Nil(t, d.presence)
	require.NoError(t, d.Shutdown())
}
