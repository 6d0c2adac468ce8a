package discord

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/marinapotashenkova/SCPlayer/internal/catalog"
)

type fakeRPC struct {
	activities []Activity
	closed     bool
	failNext   error
}

func (f *fakeRPC) SetActivity(a Activity) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	f.activities = append(f.activities, a)
	return nil
}

func (f *fakeRPC) Close() error {
	f.closed = true
	return nil
}

type fakePlayback struct {
	playing  bool
	progress float64
	duration time.Duration
}

func (f *fakePlayback) IsPlaying() bool                { return f.playing }
func (f *fakePlayback) CurrentProgress() float64       { return f.progress }
func (f *fakePlayback) CurrentDuration() time.Duration { return f.duration }

func newTestPresence() (*Presence, *fakeRPC, *fakePlayback) {
	fake := &fakeRPC{}
	src := &fakePlayback{playing: true, progress: 0.25, duration: 2 * time.Minute}
	p := New("test", src, zerolog.Nop())
	p.connect = func(string) (rpcClient, error) {
		return fake, nil
	}
	p.now = func() time.Time { return time.Unix(1_000_000, 0) }
	return p, fake, src
}

func track(id catalog.TrackID, title string) *catalog.Track {
	return &catalog.Track{
		ID: id, Title: title, Owner: "Owner",
		ArtworkURL: "https://i1.sndcdn.test/artworks-large.jpg",
	}
}

func TestDedup_SkipsDuplicateUpdates(t *testing.T) {
	p, fake, _ := newTestPresence()

	p.handle(update{track: track(1, "Song")})
	p.handle(update{track: track(1, "Song")})
	p.handle(update{track: track(1, "Song")})

	if len(fake.activities) != 1 {
		t.Fatalf("expected 1 SetActivity call, got %d", len(fake.activities))
	}
}

func TestDedup_SendsOnTrackChange(t *testing.T) {
	p, fake, _ := newTestPresence()

	p.handle(update{track: track(1, "Song A")})
	p.handle(update{track: track(2, "Song B")})

	if len(fake.activities) != 2 {
		t.Fatalf("expected 2 SetActivity calls, got %d", len(fake.activities))
	}
	if fake.activities[0].Details != "Song A" {
		t.Errorf("first activity details = %q, want %q", fake.activities[0].Details, "Song A")
	}
	if fake.activities[1].Details != "Song B" {
		t.Errorf("second activity details = %q, want %q", fake.activities[1].Details, "Song B")
	}
}

func TestActivityContents(t *testing.T) {
	p, fake, _ := newTestPresence()

	p.handle(update{track: track(1, "Song")})

	a := fake.activities[0]
	if a.State != "by Owner" {
		t.Errorf("State = %q", a.State)
	}
	if a.Assets == nil || a.Assets.LargeImage != "https://i1.sndcdn.test/artworks-large.jpg" {
		t.Errorf("Assets = %+v, want artwork url as large image", a.Assets)
	}
	if a.Timestamps == nil {
		t.Fatal("Timestamps missing")
	}
	// 25% of 2 minutes elapsed
	if got, want := *a.Timestamps.Start, int64(1_000_000-30); got != want {
		t.Errorf("Start = %d, want %d", got, want)
	}
	if got, want := *a.Timestamps.End, int64(1_000_000+90); got != want {
		t.Errorf("End = %d, want %d", got, want)
	}
}

func TestNoTimestampsWithoutDuration(t *testing.T) {
	p, fake, src := newTestPresence()
	src.duration = 0

	p.handle(update{track: track(1, "Song")})

	if fake.activities[0].Timestamps != nil {
		t.Errorf("Timestamps = %+v, want nil", fake.activities[0].Timestamps)
	}
}

func TestClearsOnPause(t *testing.T) {
	p, fake, _ := newTestPresence()

	p.handle(update{track: track(1, "Song")})
	p.handle(update{})

	if len(fake.activities) != 2 {
		t.Fatalf("expected 2 SetActivity calls, got %d", len(fake.activities))
	}
	if fake.activities[1].Details != "" {
		t.Errorf("clear activity should have empty details, got %q", fake.activities[1].Details)
	}

	// resuming the same track shows it again
	p.handle(update{track: track(1, "Song")})
	if len(fake.activities) != 3 {
		t.Fatalf("expected 3 SetActivity calls, got %d", len(fake.activities))
	}
}

func TestClearsWhenEngineNotPlaying(t *testing.T) {
	p, fake, src := newTestPresence()

	p.handle(update{track: track(1, "Song")})
	src.playing = false
	p.handle(update{track: track(2, "Other")})

	if len(fake.activities) != 2 || fake.activities[1].Details != "" {
		t.Fatalf("activities = %+v, want set then clear", fake.activities)
	}
}

func TestNoClearWhenAlreadyStopped(t *testing.T) {
	p, fake, _ := newTestPresence()

	p.handle(update{})
	p.handle(update{})

	if len(fake.activities) != 0 {
		t.Fatalf("expected no SetActivity calls, got %d", len(fake.activities))
	}
}

func TestReconnectsAfterError(t *testing.T) {
	p, fake, _ := newTestPresence()
	fake.failNext = errors.New("pipe closed")

	p.handle(update{track: track(1, "Song")})
	if !fake.closed {
		t.Error("client should be closed after a failed SetActivity")
	}
	if p.client != nil {
		t.Error("client should be dropped after a failed SetActivity")
	}

	p.handle(update{track: track(1, "Song")})
	if len(fake.activities) != 1 {
		t.Fatalf("expected retry to succeed, got %d activities", len(fake.activities))
	}
}

func TestConnectFailureIsRetried(t *testing.T) {
	p, fake, _ := newTestPresence()
	attempts := 0
	p.connect = func(string) (rpcClient, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("discord not running")
		}
		return fake, nil
	}

	p.handle(update{track: track(1, "Song")})
	p.handle(update{track: track(1, "Song")})

	if attempts != 2 || len(fake.activities) != 1 {
		t.Errorf("attempts = %d, activities = %d", attempts, len(fake.activities))
	}
}

func TestPushKeepsLatest(t *testing.T) {
	p, _, _ := newTestPresence()

	p.OnStarted(*track(1, "A"))
	p.OnChanged(*track(2, "B"))
	p.OnPaused(*track(2, "B"))
	p.OnContinued(*track(2, "B"))

	u := <-p.updates
	if u.track == nil || u.track.ID != 2 {
		t.Errorf("latest update = %+v, want track 2", u.track)
	}
	select {
	case extra := <-p.updates:
		t.Errorf("unexpected queued update %+v", extra)
	default:
	}
}

func TestRunClearsOnShutdown(t *testing.T) {
	p, fake, _ := newTestPresence()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.OnStarted(*track(1, "Song"))
	deadline := time.Now().Add(2 * time.Second)
	for len(p.updates) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if !fake.closed {
		t.Error("client should be closed on shutdown")
	}
}
